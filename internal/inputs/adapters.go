package inputs

import "github.com/hotrack/layoutctl/internal/sensorbus"

// columnMask is the active-low output pattern for each of the 4 keypad
// columns (bit clear = driven low); the other three bits stay high.
var columnMask = [4]byte{
	0xFE, // col 0: bit0 low
	0xFD, // col 1: bit1 low
	0xFB, // col 2: bit2 low
	0xF7, // col 3: bit3 low
}

// KeypadExpander adapts a sensorbus.Expander (chip 3: column output on
// port A, row input on port B) to ColumnDriver and RowReader.
type KeypadExpander struct {
	Chip *sensorbus.Expander
}

func (k KeypadExpander) DriveColumn(col int) error {
	return k.Chip.WriteOutputA(columnMask[col])
}

func (k KeypadExpander) ReadRows() (byte, error) {
	return k.Chip.ReadPortB()
}

// ButtonExpander adapts a sensorbus.Expander's input port to PortReader,
// widening the 8-bit port read to the uint32 bitmask ButtonScanner expects.
type ButtonExpander struct {
	Chip *sensorbus.Expander
}

func (b ButtonExpander) ReadButtons() (uint32, error) {
	v, err := b.Chip.ReadPortA()
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
