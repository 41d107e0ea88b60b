// Package layoutcfg is the fixed wiring of one physical layout: I²C bus
// and GPIO identifiers, the turnout/signal/sensor/grade-crossing/yard
// data model, and the section-controller configs that tie them together
// (§3, §6 "hardware identifiers"). It holds plain data only — no
// goroutines, no I/O — so a different layout ships as a different
// Go literal set without touching any component package.
package layoutcfg

import "github.com/hotrack/layoutctl/internal/servo"

// System is the board-level hardware configuration: bus/device
// identifiers and filesystem paths (§0 "target platform", §6 "hardware
// identifiers").
type System struct {
	I2CBus string // logical bus id resolved by hwio.HostI2CFactory, e.g. "i2c0"

	ServoBoard1Addr uint16
	ServoBoard2Addr uint16
	BlockSensorAddr uint16 // chip 1
	TrackSensorAddr uint16 // chip 2
	KeypadAddr      uint16 // chip 3
	PanelAddr       uint16 // chip 4: buttons, panel LEDs, bell enables

	ShiftData, ShiftClock, ShiftLatch, ShiftEnable int // GPIO numbers

	PolarityRelayHoldover int
	PolarityRelayWye      int

	KeypadIndicatorGPIO    int
	RouteLockIndicatorGPIO int
	TimingTestOutputGPIO   int
	ShutdownButtonGPIO     int

	TempSensorPath string

	CalibrationPath string
	StatusDir       string
}

// DefaultSystem is the reference layout's board-level configuration.
func DefaultSystem() System {
	return System{
		I2CBus:          "i2c0",
		ServoBoard1Addr: servo.AddrBoard1,
		ServoBoard2Addr: servo.AddrBoard2,
		BlockSensorAddr: 0x20,
		TrackSensorAddr: 0x21,
		KeypadAddr:      0x22,
		PanelAddr:       0x23,

		ShiftData:   17,
		ShiftClock:  27,
		ShiftLatch:  22,
		ShiftEnable: 23,

		PolarityRelayHoldover: 24,
		PolarityRelayWye:      25,

		KeypadIndicatorGPIO:    5,
		RouteLockIndicatorGPIO: 6,
		TimingTestOutputGPIO:   26,
		ShutdownButtonGPIO:     12,

		TempSensorPath: "/sys/bus/w1/devices/28-000000000000/w1_slave",

		CalibrationPath: "/var/lib/layoutctl/calibration.txt",
		StatusDir:       "/run/layoutctl/status",
	}
}
