package servo

import (
	"fmt"

	"github.com/hotrack/layoutctl/errcode"
	"github.com/hotrack/layoutctl/internal/hwio"
	"github.com/hotrack/layoutctl/internal/logging"
)

// Addresses fixed by §6's hardware layout.
const (
	AddrBoard1 uint16 = 0x41
	AddrBoard2 uint16 = 0x42
)

// Manager owns the configured boards and maps a 1-32 turnout index to its
// (board, channel) pair.
type Manager struct {
	boards map[uint16]*Board
	log    *logging.Scoped
}

// NewManager initializes every board in addrs (normally AddrBoard1,
// AddrBoard2), skipping (with a warning, not a fatal error) any board
// whose probe fails.
func NewManager(bus *hwio.Bus, log *logging.Scoped, addrs ...uint16) (*Manager, error) {
	m := &Manager{boards: map[uint16]*Board{}, log: log}
	for _, a := range addrs {
		b := NewBoard(a, bus, log)
		if err := b.Init(); err != nil {
			return nil, fmt.Errorf("servo board 0x%02X init: %w", a, err)
		}
		m.boards[a] = b
	}
	return m, nil
}

// Index maps a 1-32 servo index to its board address and 0-15 channel:
// indices 1-16 live on board 1, 17-32 on board 2 (§3 "32 channels across
// 2 boards").
func Index(servoIdx int) (addr uint16, channel int, err error) {
	if servoIdx < 1 || servoIdx > 32 {
		return 0, 0, fmt.Errorf("%w: servo index %d out of range", errcode.ErrConfigInvalid, servoIdx)
	}
	if servoIdx <= 16 {
		return AddrBoard1, servoIdx - 1, nil
	}
	return AddrBoard2, servoIdx - 17, nil
}

// SetPulse resolves servoIdx to its board/channel and writes pulse.
func (m *Manager) SetPulse(servoIdx int, pulse int) error {
	addr, ch, err := Index(servoIdx)
	if err != nil {
		return err
	}
	b, ok := m.boards[addr]
	if !ok || !b.Available() {
		return errcode.ErrDeviceAbsent
	}
	return b.SetChannelPulse(ch, pulse)
}

// AllOff quiesces every managed board (§4.14 step 4).
func (m *Manager) AllOff() {
	for _, b := range m.boards {
		_ = b.AllOff()
	}
}
