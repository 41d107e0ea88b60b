//go:build !linux

package hwio

// On non-Linux builds (development workstations running the test suite)
// there is no real I²C/GPIO bus; factories report everything absent so
// production wiring code is still exercised and tests inject hwiotest
// fakes instead.
type HostI2CFactory struct{}

func NewHostI2CFactory(map[string]string) (*HostI2CFactory, error) { return &HostI2CFactory{}, nil }
func (*HostI2CFactory) ByID(string) (I2C, bool)                    { return nil, false }

type HostPinFactory struct{}

func NewHostPinFactory() (*HostPinFactory, error) { return &HostPinFactory{}, nil }
func (*HostPinFactory) ByNumber(int) (Pin, bool)  { return nil, false }
