// Package hwio is the Hardware Abstraction component (C1): typed wrappers
// over I²C byte/block read-write, GPIO pin mode/read/write, the 1-wire
// temperature file, and audio clip playback. Every other component talks
// to hardware only through this package.
package hwio

import (
	"fmt"
	"sync"

	"github.com/hotrack/layoutctl/errcode"
	"github.com/hotrack/layoutctl/internal/logging"
)

// I2C is the minimal transaction primitive every bus implementation must
// provide: a write followed, if r is non-empty, by a repeated-start read,
// without releasing the bus. This mirrors the shape the wider Go hardware
// ecosystem (tinygo.org/x/drivers, periph.io) converges on, so host and
// board-level implementations are interchangeable behind it.
type I2C interface {
	Tx(addr uint16, w, r []byte) error
}

// Bus wraps a raw I2C transport with the probe-once/no-op-after semantics
// of §4.1's DeviceAbsent handling: when Probe finds that a device does not
// ACK, the bus remembers it and every subsequent call for that address
// returns errcode.ErrDeviceAbsent without touching the bus, so a partial
// wiring harness still boots. Other failed transactions return ErrBus and
// do not mark the address absent.
type Bus struct {
	raw I2C
	log *logging.Scoped

	mu     sync.Mutex
	absent map[uint16]bool
}

// NewBus wraps raw with probe/no-op bookkeeping; log is the scoped logger
// the bus reports through.
func NewBus(raw I2C, log *logging.Scoped) *Bus {
	return &Bus{raw: raw, log: log, absent: map[uint16]bool{}}
}

func (b *Bus) isAbsent(addr uint16) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.absent[addr]
}

func (b *Bus) markAbsent(addr uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.absent[addr] {
		b.absent[addr] = true
		b.log.Warn("device absent at 0x%02X; disabling dependent features", addr)
	}
}

// Probe performs a zero-length write to addr to check for an ACK. A failed
// probe marks the address absent for the lifetime of the Bus.
func (b *Bus) Probe(addr uint16) bool {
	if b.isAbsent(addr) {
		return false
	}
	if err := b.raw.Tx(addr, []byte{}, nil); err != nil {
		b.markAbsent(addr)
		return false
	}
	return true
}

// ReadByte reads one register byte. Returns ErrDeviceAbsent if addr was
// previously marked absent, else ErrBus on a failed transaction (the
// caller should skip this tick's operation and retry the next one).
func (b *Bus) ReadByte(addr uint16, reg byte) (byte, error) {
	if b.isAbsent(addr) {
		return 0, errcode.ErrDeviceAbsent
	}
	var out [1]byte
	if err := b.raw.Tx(addr, []byte{reg}, out[:]); err != nil {
		b.log.Warn("read_byte addr=0x%02X reg=0x%02X: %v", addr, reg, err)
		return 0, fmt.Errorf("%w: %v", errcode.ErrBus, err)
	}
	return out[0], nil
}

// ReadBlock reads n bytes starting at reg.
func (b *Bus) ReadBlock(addr uint16, reg byte, n int) ([]byte, error) {
	if b.isAbsent(addr) {
		return nil, errcode.ErrDeviceAbsent
	}
	out := make([]byte, n)
	if err := b.raw.Tx(addr, []byte{reg}, out); err != nil {
		b.log.Warn("read_block addr=0x%02X reg=0x%02X n=%d: %v", addr, reg, n, err)
		return nil, fmt.Errorf("%w: %v", errcode.ErrBus, err)
	}
	return out, nil
}

// WriteByte writes one register byte.
func (b *Bus) WriteByte(addr uint16, reg, v byte) error {
	if b.isAbsent(addr) {
		return errcode.ErrDeviceAbsent
	}
	if err := b.raw.Tx(addr, []byte{reg, v}, nil); err != nil {
		b.log.Warn("write_byte addr=0x%02X reg=0x%02X v=0x%02X: %v", addr, reg, v, err)
		return fmt.Errorf("%w: %v", errcode.ErrBus, err)
	}
	return nil
}

// WriteBlock writes reg followed by bytes in a single transaction (used by
// the servo driver's 4-byte ON/OFF register writes and by expander
// configuration writes).
func (b *Bus) WriteBlock(addr uint16, reg byte, bytes []byte) error {
	if b.isAbsent(addr) {
		return errcode.ErrDeviceAbsent
	}
	buf := make([]byte, 0, len(bytes)+1)
	buf = append(buf, reg)
	buf = append(buf, bytes...)
	if err := b.raw.Tx(addr, buf, nil); err != nil {
		b.log.Warn("write_block addr=0x%02X reg=0x%02X n=%d: %v", addr, reg, len(bytes), err)
		return fmt.Errorf("%w: %v", errcode.ErrBus, err)
	}
	return nil
}
