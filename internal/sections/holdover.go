package sections

import (
	"context"
	"fmt"
	"time"

	"github.com/hotrack/layoutctl/errcode"
	"github.com/hotrack/layoutctl/internal/hwio"
	"github.com/hotrack/layoutctl/internal/logging"
	"github.com/hotrack/layoutctl/internal/sensorbus"
	"github.com/hotrack/layoutctl/internal/turnout"
	"github.com/hotrack/layoutctl/types"
)

const (
	s1RetriggerSuppress  = 10 * time.Second
	s23RetriggerSuppress = 3 * time.Second
	routeLockWindow      = 60 * time.Second
)

// RouteStep is one (turnout, position) command in a section route.
type RouteStep struct {
	Turnout int
	Target  types.Position
}

// RouteSpec is an ordered set of turnout commands plus the track-power
// polarity the route requires.
type RouteSpec struct {
	Steps    []RouteStep
	Polarity bool
}

// HoldoverConfig is the fixed wiring of the holdover reverse-loop: sensor
// and block bit indices, and the inbound/outbound route per siding.
type HoldoverConfig struct {
	S1, S2, S3 int
	B1, B2, B3 int

	Inbound  map[types.Siding]RouteSpec
	Outbound map[types.Siding]RouteSpec
	// ExplicitRoutes services the four operator route buttons (§4.12);
	// index 0-3.
	ExplicitRoutes [4]RouteSpec
}

// Holdover is the §4.9 "Holdover (reverse loop)" controller.
type Holdover struct {
	cfg       HoldoverConfig
	relay     *Relay
	mover     *turnout.Mover
	audio     hwio.AudioPlayer
	indicator hwio.Pin // route-lock panel LED (§6); may be nil
	log       *logging.Scoped

	LastUsed       types.Siding
	Direction      types.Direction
	WaitB3Inactive bool
	RouteLocked    bool

	routeLockDeadline                  time.Time
	s1Suppress, s2Suppress, s3Suppress time.Time
}

// NewHoldover wires a Holdover controller to its config and actuators.
// indicator is the route-lock panel LED and may be nil.
func NewHoldover(cfg HoldoverConfig, relay *Relay, mover *turnout.Mover, audio hwio.AudioPlayer, indicator hwio.Pin, log *logging.Scoped) *Holdover {
	return &Holdover{cfg: cfg, relay: relay, mover: mover, audio: audio, indicator: indicator, log: log, LastUsed: types.SidingB2}
}

func (h *Holdover) setLocked(locked bool) {
	h.RouteLocked = locked
	if h.indicator != nil {
		h.indicator.Set(locked)
	}
}

// Tick advances the holdover controller by one main-loop iteration.
func (h *Holdover) Tick(ctx context.Context, snap sensorbus.Snapshot, now time.Time) {
	s1 := snap.Active(h.cfg.S1)
	s2 := snap.Active(h.cfg.S2)
	s3 := snap.Active(h.cfg.S3)

	if h.RouteLocked {
		if s1 || s2 || s3 {
			h.routeLockDeadline = now.Add(routeLockWindow)
		}
		if !now.Before(h.routeLockDeadline) {
			h.setLocked(false)
		}
		return
	}

	if s1 && h.Direction == types.DirIn && !now.Before(h.s1Suppress) {
		b1 := snap.Active(h.cfg.B1)
		b2 := snap.Active(h.cfg.B2)
		switch {
		case b1 && b2:
			h.audio.PlayClip("wreck", 100)
		default:
			siding := h.pickSiding(b1, b2)
			h.applyRoute(ctx, h.cfg.Inbound[siding])
			h.LastUsed = siding
		}
		h.s1Suppress = now.Add(s1RetriggerSuppress)
	}

	if s1 && h.Direction == types.DirOut {
		h.WaitB3Inactive = true
	}
	if h.WaitB3Inactive && !snap.Active(h.cfg.B3) {
		h.WaitB3Inactive = false
		h.Direction = types.DirIn
	}

	if s2 && !now.Before(h.s2Suppress) {
		h.applyRoute(ctx, h.cfg.Outbound[types.SidingB2])
		h.Direction = types.DirOut
		h.s2Suppress = now.Add(s23RetriggerSuppress)
	}
	if s3 && !now.Before(h.s3Suppress) {
		h.applyRoute(ctx, h.cfg.Outbound[types.SidingB1])
		h.Direction = types.DirOut
		h.s3Suppress = now.Add(s23RetriggerSuppress)
	}
}

// pickSiding returns the free siding, alternating via LastUsed when both
// are free (§4.9).
func (h *Holdover) pickSiding(b1Occupied, b2Occupied bool) types.Siding {
	b1Free, b2Free := !b1Occupied, !b2Occupied
	switch {
	case b1Free && !b2Free:
		return types.SidingB1
	case b2Free && !b1Free:
		return types.SidingB2
	default:
		return h.LastUsed.Other()
	}
}

func (h *Holdover) applyRoute(ctx context.Context, route RouteSpec) {
	for _, step := range route.Steps {
		if _, err := h.mover.Move(ctx, step.Turnout, step.Target); err != nil {
			h.log.Warn("holdover: turnout %d move failed: %v", step.Turnout, err)
		}
	}
	h.relay.Set(route.Polarity)
}

// RequestRoute services one of the four operator route buttons (§4.12):
// if a route is already locked, any button unlocks it (returns unlocked
// = true); otherwise it applies routeIdx's route and engages the lock.
func (h *Holdover) RequestRoute(ctx context.Context, routeIdx int, now time.Time) (unlocked bool, err error) {
	if routeIdx < 0 || routeIdx > 3 {
		return false, fmt.Errorf("%w: route index %d", errcode.ErrOperatorInput, routeIdx)
	}
	if h.RouteLocked {
		h.setLocked(false)
		return true, nil
	}
	h.applyRoute(ctx, h.cfg.ExplicitRoutes[routeIdx])
	h.setLocked(true)
	h.routeLockDeadline = now.Add(routeLockWindow)
	return false, nil
}
