// Package sections is the Section Controllers component (C9): the
// holdover reverse-loop, the midway spring-turnout auto-reset pair, and
// the yard wye, plus the operator route/toggle button dispatch of §4.12.
package sections

import "github.com/hotrack/layoutctl/internal/hwio"

// Relay is a track-power polarity relay output (§6 "three polarity-relay
// outputs"), a thin wrapper so section controllers don't reach for raw
// hwio.Pin calls directly.
type Relay struct {
	pin hwio.Pin
}

// NewRelay configures pin as an output and wraps it.
func NewRelay(pin hwio.Pin) (*Relay, error) {
	if err := pin.ConfigureOutput(false); err != nil {
		return nil, err
	}
	return &Relay{pin: pin}, nil
}

// Set drives the relay coil.
func (r *Relay) Set(v bool) { r.pin.Set(v) }

// Get reads the relay's last commanded level.
func (r *Relay) Get() bool { return r.pin.Get() }
