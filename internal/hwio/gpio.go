package hwio

// Pull selects an input pin's bias.
type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// Edge selects which transition(s) an IRQ-capable pin should report.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// Pin is a single GPIO line: mode configuration, level read/write. This is
// the shape the wider TinyGo/periph.io ecosystem converges on, kept here
// without pulling in either as a direct dependency for the interface.
type Pin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Number() int
}

// PinFactory resolves a GPIO pin by its board-numbering scheme.
type PinFactory interface {
	ByNumber(n int) (Pin, bool)
}

// I2CFactory resolves a configured I²C bus by id ("i2c0", "i2c1", ...).
type I2CFactory interface {
	ByID(id string) (I2C, bool)
}
