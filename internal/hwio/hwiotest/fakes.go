// Package hwiotest provides in-memory fakes of the hwio interfaces for use
// by every component's unit tests, so section controllers, the turnout
// mover, the signal driver, and the sensor driver can be exercised without
// real hardware.
package hwiotest

import (
	"sync"

	"github.com/hotrack/layoutctl/internal/hwio"
)

// FakeI2C is a register-file-per-address fake satisfying hwio.I2C.
type FakeI2C struct {
	mu   sync.Mutex
	regs map[uint16]map[byte]byte
	// Absent addresses return an error from Tx, simulating a missing
	// device for DeviceAbsent testing.
	Absent map[uint16]bool
	// Fail forces every Tx to error, for BusError testing.
	Fail bool

	Calls int
}

func NewFakeI2C() *FakeI2C {
	return &FakeI2C{regs: map[uint16]map[byte]byte{}, Absent: map[uint16]bool{}}
}

func (f *FakeI2C) Tx(addr uint16, w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.Fail {
		return errBus
	}
	if f.Absent[addr] {
		return errBus
	}
	if len(w) == 0 && r == nil {
		return nil // probe
	}
	bank := f.regs[addr]
	if bank == nil {
		bank = map[byte]byte{}
		f.regs[addr] = bank
	}
	if len(w) > 0 {
		reg := w[0]
		for i, v := range w[1:] {
			bank[reg+byte(i)] = v
		}
		if r != nil {
			for i := range r {
				r[i] = bank[reg+byte(i)]
			}
		}
	}
	return nil
}

// RegByte returns the raw stored register value, for assertions.
func (f *FakeI2C) RegByte(addr uint16, reg byte) byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.regs[addr][reg]
}

type busErr struct{ s string }

func (e busErr) Error() string { return e.s }

var errBus = busErr{"fake i2c bus error"}

// FakePin is an in-memory GPIO pin satisfying hwio.Pin.
type FakePin struct {
	mu      sync.Mutex
	num     int
	level   bool
	isInput bool
	pull    hwio.Pull
}

func NewFakePin(n int) *FakePin { return &FakePin{num: n} }

func (p *FakePin) ConfigureInput(pull hwio.Pull) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isInput = true
	p.pull = pull
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isInput = false
	p.level = initial
	return nil
}

func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
}

func (p *FakePin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *FakePin) Number() int { return p.num }

// SetLevel lets a test simulate an external signal change on an input pin.
func (p *FakePin) SetLevel(level bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
}

// FakePinFactory resolves FakePins by number, creating them lazily.
type FakePinFactory struct {
	mu   sync.Mutex
	pins map[int]*FakePin
}

func NewFakePinFactory() *FakePinFactory {
	return &FakePinFactory{pins: map[int]*FakePin{}}
}

func (f *FakePinFactory) ByNumber(n int) (hwio.Pin, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[n]
	if !ok {
		p = NewFakePin(n)
		f.pins[n] = p
	}
	return p, true
}
