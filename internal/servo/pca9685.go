// Package servo drives the PCA9685-style PWM controller boards (C2) that
// actuate SG90 hobby servos through 32 turnout channels spread across two
// boards at I²C 0x41 and 0x42 (§6).
package servo

import (
	"fmt"

	"github.com/hotrack/layoutctl/errcode"
	"github.com/hotrack/layoutctl/internal/hwio"
	"github.com/hotrack/layoutctl/internal/logging"
)

// PCA9685 register layout (subset used here).
const (
	regMode1     = 0x00
	regMode2     = 0x01
	regPrescale  = 0xFE
	regLED0OnL   = 0x06 // channel 0 base; each channel occupies 4 registers
	regAllLEDOff = 0xFD // ALL_LED_OFF_H, used at shutdown (bit 4 = full off)
)

const (
	mode1Sleep    = 1 << 4
	mode1AutoInc  = 1 << 5
	mode1Restart  = 1 << 7
	allLEDOffBit4 = 1 << 4
)

// Board is one PCA9685 controller chip.
type Board struct {
	Addr uint16
	bus  *hwio.Bus
	log  *logging.Scoped
	ok   bool // false if the I²C probe failed at init (skipped, not fatal)
}

// NewBoard wires a board to its bus wrapper.
func NewBoard(addr uint16, bus *hwio.Bus, log *logging.Scoped) *Board {
	return &Board{Addr: addr, bus: bus, log: log}
}

// Init performs the §4.2 safety sequence: all-LEDs-off, sleep, prescaler
// for ~105 Hz refresh (usable pulse range 300-900 for SG90 endpoints),
// then re-enable with auto-increment. A failed probe is logged as a
// warning and the board is marked unavailable rather than aborting
// startup (§4.2 "skip boards whose I²C probe fails").
func (b *Board) Init() error {
	if !b.bus.Probe(b.Addr) {
		b.log.Warn("servo board 0x%02X absent; turnouts on this board disabled", b.Addr)
		b.ok = false
		return nil
	}
	// All-LEDs-off safety write before touching mode registers.
	if err := b.bus.WriteByte(b.Addr, regAllLEDOff, allLEDOffBit4); err != nil {
		return err
	}
	if err := b.bus.WriteByte(b.Addr, regMode1, mode1Sleep); err != nil {
		return err
	}
	// ~105 Hz: prescale = round(25MHz/(4096*105)) - 1 = 57.
	const prescale105Hz = 57
	if err := b.bus.WriteByte(b.Addr, regPrescale, prescale105Hz); err != nil {
		return err
	}
	if err := b.bus.WriteByte(b.Addr, regMode1, mode1Restart|mode1AutoInc); err != nil {
		return err
	}
	b.ok = true
	return nil
}

// Available reports whether this board answered its startup probe.
func (b *Board) Available() bool { return b.ok }

// SetChannelPulse writes the four-byte ON/OFF register block for channel
// (0-15). Per §4.2, ON is staggered by channel to spread inrush across a
// shared 5V rail: on_count = channel*10, off_count = on_count + pulse.
func (b *Board) SetChannelPulse(channel int, pulse int) error {
	if !b.ok {
		return errcode.ErrDeviceAbsent
	}
	if channel < 0 || channel > 15 {
		return fmt.Errorf("%w: channel %d out of range", errcode.ErrConfigInvalid, channel)
	}
	onCount := channel * 10
	offCount := onCount + pulse
	reg := byte(regLED0OnL + 4*channel)
	block := []byte{
		byte(onCount & 0xFF), byte((onCount >> 8) & 0x0F),
		byte(offCount & 0xFF), byte((offCount >> 8) & 0x0F),
	}
	return b.bus.WriteBlock(b.Addr, reg, block)
}

// AllOff releases every channel's pulse output (shutdown step §4.14 step
// 4: "write the PWM-chip all-LEDs-off-H byte on every servo board").
func (b *Board) AllOff() error {
	if !b.ok {
		return nil
	}
	return b.bus.WriteByte(b.Addr, regAllLEDOff, allLEDOffBit4)
}
