package hwio

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/hotrack/layoutctl/errcode"
)

// TempSensor reads the ambient Celsius reading from a kernel-exposed
// 1-wire device file (§6 "1-wire temperature sensor via a kernel-exposed
// path"). The w1 slave file format is two lines; the second carries
// "t=<millidegrees>" once the CRC check passes.
//
// A plain kernel-file read is the correct tool here: there is no
// published Go 1-wire driver in the retrieved corpus, and the kernel w1
// subsystem already does the bus timing and CRC work, leaving this
// package a one-line textual parse — introducing a library for that would
// add a dependency without adding capability.
type TempSensor struct {
	Path string
}

// NewTempSensor wraps the kernel path (e.g.
// "/sys/bus/w1/devices/28-000000000000/w1_slave").
func NewTempSensor(path string) *TempSensor { return &TempSensor{Path: path} }

// ReadC returns the current reading as whole-number Celsius, matching
// §3's "single Celsius reading" ambient temperature record.
func (t *TempSensor) ReadC() (int, error) {
	raw, err := os.ReadFile(t.Path)
	if err != nil {
		return 0, errors.Join(errcode.ErrBus, err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) < 2 || !strings.Contains(lines[0], "YES") {
		return 0, errors.Join(errcode.ErrBus, errors.New("onewire: CRC not ready"))
	}
	idx := strings.Index(lines[1], "t=")
	if idx < 0 {
		return 0, errors.Join(errcode.ErrBus, errors.New("onewire: no t= field"))
	}
	milliC, err := strconv.Atoi(lines[1][idx+2:])
	if err != nil {
		return 0, errors.Join(errcode.ErrBus, err)
	}
	return milliC / 1000, nil
}
