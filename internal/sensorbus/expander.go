// Package sensorbus is the Sensor Driver (C4): MCP23017-style I²C port
// expanders for block/track sensors (chips 1-2), the yard keypad matrix
// (chip 3), and discrete buttons/panel LEDs/bell enables (chip 4, §6).
package sensorbus

import (
	"github.com/hotrack/layoutctl/internal/hwio"
	"github.com/hotrack/layoutctl/internal/logging"
)

// MCP23017 register addresses, IOCON BANK=0 layout (§4.4 "bank mode 0").
const (
	regIODIRA = 0x00
	regIODIRB = 0x01
	regIPOLA  = 0x02
	regIPOLB  = 0x03
	regIOCON  = 0x0A
	regGPPUA  = 0x0C
	regGPPUB  = 0x0D
	regGPIOA  = 0x12
	regGPIOB  = 0x13
	regOLATA  = 0x14
	regOLATB  = 0x15
)

// DirBit selects input (1) vs output (0) per the IODIR convention.
const (
	DirOutput = 0
	DirInput  = 1
)

// ChipConfig describes one expander's register configuration at init: for
// each port, the direction byte, polarity byte, and pull-up byte.
type ChipConfig struct {
	DirA, DirB   byte
	PolA, PolB   byte
	PullA, PullB byte
}

// Expander is one MCP23017-class chip on the I²C bus.
type Expander struct {
	Addr uint16
	bus  *hwio.Bus
	log  *logging.Scoped
	ok   bool
}

// NewExpander wraps addr on bus.
func NewExpander(addr uint16, bus *hwio.Bus, log *logging.Scoped) *Expander {
	return &Expander{Addr: addr, bus: bus, log: log}
}

// Init writes IOCON first (bank mode 0), then direction, polarity, and
// pullup registers per cfg (§4.4). A failed probe disables the chip
// (warning, not fatal) rather than aborting startup.
func (e *Expander) Init(cfg ChipConfig) error {
	if !e.bus.Probe(e.Addr) {
		e.log.Warn("expander 0x%02X absent; its sensors read as inactive", e.Addr)
		e.ok = false
		return nil
	}
	if err := e.bus.WriteByte(e.Addr, regIOCON, 0x00); err != nil {
		return err
	}
	if err := e.bus.WriteByte(e.Addr, regIODIRA, cfg.DirA); err != nil {
		return err
	}
	if err := e.bus.WriteByte(e.Addr, regIODIRB, cfg.DirB); err != nil {
		return err
	}
	if err := e.bus.WriteByte(e.Addr, regIPOLA, cfg.PolA); err != nil {
		return err
	}
	if err := e.bus.WriteByte(e.Addr, regIPOLB, cfg.PolB); err != nil {
		return err
	}
	if err := e.bus.WriteByte(e.Addr, regGPPUA, cfg.PullA); err != nil {
		return err
	}
	if err := e.bus.WriteByte(e.Addr, regGPPUB, cfg.PullB); err != nil {
		return err
	}
	e.ok = true
	return nil
}

// Available reports whether the chip answered its startup probe.
func (e *Expander) Available() bool { return e.ok }

// Read16 reads GPIOA then GPIOB and concatenates to one 16-bit word, bits
// 0-7 from port A and 8-15 from port B (§4.4 "read GPIOB and GPIOA bytes
// ... concatenating to a 16-bit word per chip"). Returns 0 if the chip is
// absent, so callers can treat it as "nothing active" without
// special-casing.
func (e *Expander) Read16() (uint16, error) {
	if !e.ok {
		return 0, nil
	}
	a, err := e.bus.ReadByte(e.Addr, regGPIOA)
	if err != nil {
		return 0, err
	}
	b, err := e.bus.ReadByte(e.Addr, regGPIOB)
	if err != nil {
		return 0, err
	}
	return uint16(b)<<8 | uint16(a), nil
}

// WriteOutputA writes port A's output latch (used by the keypad column
// drive and panel LEDs).
func (e *Expander) WriteOutputA(v byte) error {
	if !e.ok {
		return nil
	}
	return e.bus.WriteByte(e.Addr, regOLATA, v)
}

// WriteOutputB writes port B's output latch (bell enables + holdover
// indicator LEDs share chip 4's OLATB, statically partitioned per §5).
func (e *Expander) WriteOutputB(v byte) error {
	if !e.ok {
		return nil
	}
	return e.bus.WriteByte(e.Addr, regOLATB, v)
}

// ReadOutputB reads back the current OLATB value, needed for the
// read-modify-write bell-bit updates §5 requires to avoid clobbering
// neighboring bits.
func (e *Expander) ReadOutputB() (byte, error) {
	if !e.ok {
		return 0, nil
	}
	return e.bus.ReadByte(e.Addr, regOLATB)
}

// ReadPortA/ReadPortB read the live input level of one port (used by the
// keypad row scan, which needs just port A or B rather than the
// concatenated word).
func (e *Expander) ReadPortA() (byte, error) {
	if !e.ok {
		return 0, nil
	}
	return e.bus.ReadByte(e.Addr, regGPIOA)
}

func (e *Expander) ReadPortB() (byte, error) {
	if !e.ok {
		return 0, nil
	}
	return e.bus.ReadByte(e.Addr, regGPIOB)
}
