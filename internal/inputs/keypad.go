// Package inputs is the Keypad/Button Scanner (C6): 4x4 matrix keypad
// decode with held-key suppression, and discrete-button single/double
// press classification (§4.6).
package inputs

import (
	"context"
	"time"

	"github.com/hotrack/layoutctl/internal/logging"
)

// ColumnDriver drives exactly one matrix column low (active-low) per scan
// step; other columns are driven high.
type ColumnDriver interface {
	DriveColumn(col int) error
}

// RowReader reads the 4-bit row input mask (bit i = row i).
type RowReader interface {
	ReadRows() (byte, error)
}

// KeyMap is the 4x4 hex-character layout, KeyMap[col][row].
var KeyMap = [4][4]byte{
	{'1', '2', '3', 'A'},
	{'4', '5', '6', 'B'},
	{'7', '8', '9', 'C'},
	{'0', 'F', 'E', 'D'},
}

const (
	keypadColumnSettle = 20 * time.Millisecond
	keypadScanPeriod   = 100 * time.Millisecond
)

// KeypadScanner owns the yard keypad's column output latch and row input
// port exclusively (§5).
type KeypadScanner struct {
	cols ColumnDriver
	rows RowReader
	log  *logging.Scoped

	Events chan byte // single-producer queue of emitted hex characters

	// Heartbeat, if set, is called once per scan tick regardless of
	// whether a key event fires, so the main loop's watchdog (§9) can
	// tell a live-but-idle scanner from a wedged one.
	Heartbeat func()

	lastKey    byte
	hasLastKey bool
}

// NewKeypadScanner wires the scanner to its column/row access.
func NewKeypadScanner(cols ColumnDriver, rows RowReader, log *logging.Scoped) *KeypadScanner {
	return &KeypadScanner{cols: cols, rows: rows, log: log, Events: make(chan byte, 8)}
}

// Run scans all four columns every ~100ms cadence (§4.6).
func (k *KeypadScanner) Run(ctx context.Context) {
	ticker := time.NewTicker(keypadScanPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		k.scanOnce()
		if k.Heartbeat != nil {
			k.Heartbeat()
		}
	}
}

func (k *KeypadScanner) scanOnce() {
	var pressed byte
	hasPressed := false
	multiplePressed := false

	for col := 0; col < 4; col++ {
		if err := k.cols.DriveColumn(col); err != nil {
			k.log.Warn("keypad column drive failed: %v", err)
			return
		}
		time.Sleep(keypadColumnSettle)
		rowBits, err := k.rows.ReadRows()
		if err != nil {
			k.log.Warn("keypad row read failed: %v", err)
			return
		}
		row, ok := singleRow(rowBits)
		if !ok {
			continue // no key, or more than one row active in this column: ignore
		}
		if hasPressed {
			multiplePressed = true
		}
		pressed = KeyMap[col][row]
		hasPressed = true
	}

	if multiplePressed {
		return // discard multi-key patterns (§4.6)
	}

	if !hasPressed {
		k.hasLastKey = false
		return
	}

	if k.hasLastKey && k.lastKey == pressed {
		return // held-key suppression: do not re-emit
	}

	k.lastKey = pressed
	k.hasLastKey = true
	select {
	case k.Events <- pressed:
	default:
		k.log.Warn("keypad event queue full; dropping '%c'", pressed)
	}
}

// singleRow reports which row (0-3) is active, iff exactly one row bit is
// set; multi-row patterns are rejected by the matrix decode rule (§4.6).
func singleRow(rowBits byte) (row int, ok bool) {
	masked := rowBits & 0x0F
	if masked == 0 {
		return 0, false
	}
	// power-of-two check: exactly one bit set
	if masked&(masked-1) != 0 {
		return 0, false
	}
	for i := 0; i < 4; i++ {
		if masked&(1<<uint(i)) != 0 {
			return i, true
		}
	}
	return 0, false
}
