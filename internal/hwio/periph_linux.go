//go:build linux

package hwio

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	i2cdev "periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// HostI2CFactory resolves I2C buses opened via periph.io's i2creg registry
// (which enumerates /dev/i2c-N on Linux). Bus ids are periph bus names,
// e.g. "1" for /dev/i2c-1, matching the board's device tree overlay.
type HostI2CFactory struct {
	mu    sync.Mutex
	opts  map[string]string // logical id -> periph bus name
	boxes map[string]*i2cBusCloser
}

// NewHostI2CFactory builds a factory mapping logical ids (as used in
// layout config, e.g. "i2c0") to the underlying periph bus name.
func NewHostI2CFactory(idToBusName map[string]string) (*HostI2CFactory, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("hwio: periph host init: %w", err)
	}
	return &HostI2CFactory{opts: idToBusName, boxes: map[string]*i2cBusCloser{}}, nil
}

type i2cBusCloser struct {
	bus i2cdev.BusCloser
}

// devAtAddr adapts a periph i2c.BusCloser to the I2C.Tx shape. Tx passes
// the caller's address straight through, so one handle serves every chip
// on the bus; the addr field is not set or read.
type devAtAddr struct {
	b    i2cdev.BusCloser
	addr uint16
}

func (d devAtAddr) Tx(addr uint16, w, r []byte) error {
	return d.b.Tx(uint16(addr), w, r)
}

func (f *HostI2CFactory) ByID(id string) (I2C, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if box, ok := f.boxes[id]; ok {
		return devAtAddr{b: box.bus}, true
	}
	name, ok := f.opts[id]
	if !ok {
		return nil, false
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, false
	}
	f.boxes[id] = &i2cBusCloser{bus: b}
	return devAtAddr{b: b}, true
}

// HostPinFactory resolves GPIO pins through periph.io's gpioreg registry,
// which maps Broadcom/CPU pin numbers to the running board's actual
// numbering scheme.
type HostPinFactory struct{}

func NewHostPinFactory() (*HostPinFactory, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("hwio: periph host init: %w", err)
	}
	return &HostPinFactory{}, nil
}

func (HostPinFactory) ByNumber(n int) (Pin, bool) {
	p := gpioreg.ByName(fmt.Sprintf("GPIO%d", n))
	if p == nil {
		return nil, false
	}
	return &periphPin{p: p}, true
}

type periphPin struct {
	p      gpio.PinIO
	invert bool
}

func (pp *periphPin) ConfigureInput(pull Pull) error {
	var pm gpio.Pull
	switch pull {
	case PullUp:
		pm = gpio.PullUp
	case PullDown:
		pm = gpio.PullDown
	default:
		pm = gpio.Float
	}
	return pp.p.In(pm, gpio.NoEdge)
}

func (pp *periphPin) ConfigureOutput(initial bool) error {
	return pp.p.Out(gpio.Level(initial))
}

func (pp *periphPin) Set(level bool) { _ = pp.p.Out(gpio.Level(level)) }
func (pp *periphPin) Get() bool      { return pp.p.Read() == gpio.High }
func (pp *periphPin) Number() int    { return pp.p.Number() }
