package sections

import (
	"context"
	"fmt"
	"time"

	"github.com/hotrack/layoutctl/errcode"
	"github.com/hotrack/layoutctl/internal/logging"
	"github.com/hotrack/layoutctl/internal/sensorbus"
	"github.com/hotrack/layoutctl/internal/turnout"
	"github.com/hotrack/layoutctl/types"
)

// MidwayResetDeadline is the §4.9 "15s retriggerable deadline".
const MidwayResetDeadline = 15 * time.Second

// MidwayLockWindow is the §4.12 lock-arming gesture's own re-press
// window (500ms) — distinct from the generic button scanner's 1s
// double-press window (§9 open question resolution).
const MidwayLockWindow = 500 * time.Millisecond

// MidwayConfig wires one spring-loaded siding turnout to its sensor and
// endpoints.
type MidwayConfig struct {
	TurnoutIdx             int
	SensorIdx              int
	ActivePos, InactivePos types.Position
}

// Midway is one §4.9 "Midway (spring-loaded siding)" controller (T05 or
// T06).
type Midway struct {
	cfg   MidwayConfig
	table *turnout.Table
	mover *turnout.Mover
	log   *logging.Scoped

	ManualSet bool
	Locked    bool

	deadline       time.Time
	lastButtonPress time.Time
}

// NewMidway wires a Midway controller.
func NewMidway(cfg MidwayConfig, table *turnout.Table, mover *turnout.Mover, log *logging.Scoped) *Midway {
	return &Midway{cfg: cfg, table: table, mover: mover, log: log}
}

// Tick advances the controller by one main-loop iteration.
func (m *Midway) Tick(ctx context.Context, snap sensorbus.Snapshot, now time.Time) {
	if snap.Active(m.cfg.SensorIdx) {
		m.move(ctx, m.cfg.ActivePos)
		m.deadline = now.Add(MidwayResetDeadline)
		m.ManualSet = false
	}

	if m.ManualSet || m.Locked {
		return
	}
	if now.Before(m.deadline) {
		return
	}
	if m.idle() {
		m.move(ctx, m.cfg.InactivePos)
	}
}

func (m *Midway) idle() bool {
	rec, err := m.table.Get(m.cfg.TurnoutIdx)
	if err != nil {
		return false
	}
	return !rec.InMotion()
}

func (m *Midway) move(ctx context.Context, pos types.Position) {
	if _, err := m.mover.Move(ctx, m.cfg.TurnoutIdx, pos); err != nil {
		m.log.Warn("midway: turnout %d move failed: %v", m.cfg.TurnoutIdx, err)
	}
}

// HandleButtonPress services one operator toggle-button press (§4.12): a
// single press toggles the turnout (auto-resetting on the next sensor
// transit); a second press within MidwayLockWindow locks to the
// non-normal position until the next single press. Buttons are ignored
// while the turnout's motion handle is non-idle.
//
// sibling is the other midway controller sharing the derail guard: T05
// and T06 may never be locked simultaneously.
func (m *Midway) HandleButtonPress(ctx context.Context, now time.Time, sibling *Midway) error {
	if !m.idle() {
		return fmt.Errorf("%w: midway turnout %d in motion", errcode.ErrOperatorInput, m.cfg.TurnoutIdx)
	}

	isDoublePress := !m.lastButtonPress.IsZero() && now.Sub(m.lastButtonPress) < MidwayLockWindow
	m.lastButtonPress = now

	if isDoublePress {
		if sibling != nil && sibling.Locked {
			return fmt.Errorf("%w: midway turnout %d cannot lock, sibling already locked", errcode.ErrOperatorInput, m.cfg.TurnoutIdx)
		}
		m.Locked = true
		m.ManualSet = true
		m.move(ctx, m.cfg.ActivePos)
		return nil
	}

	if m.Locked {
		m.Locked = false
		m.ManualSet = false
		return nil
	}

	m.ManualSet = true
	rec, err := m.table.Get(m.cfg.TurnoutIdx)
	if err != nil {
		return err
	}
	if turnout.AtPosition(rec, m.cfg.ActivePos) {
		m.move(ctx, m.cfg.InactivePos)
	} else {
		m.move(ctx, m.cfg.ActivePos)
	}
	return nil
}
