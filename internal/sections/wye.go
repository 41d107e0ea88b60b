package sections

import (
	"context"
	"time"

	"github.com/hotrack/layoutctl/internal/logging"
	"github.com/hotrack/layoutctl/internal/sensorbus"
	"github.com/hotrack/layoutctl/internal/turnout"
	"github.com/hotrack/layoutctl/types"
)

// WyeRetrigger is the §4.9 "2s re-trigger suppression" shared by S7/S8/S9.
const WyeRetrigger = 2 * time.Second

// WyeConfig wires the wye's turnout, polarity relay, and sensors.
type WyeConfig struct {
	TurnoutIdx int // T07
	S7, S8, S9 int // sensor bit indices
}

// Wye is the §4.9 "Wye (T07 + polarity relay PR03)" controller.
type Wye struct {
	cfg   WyeConfig
	table *turnout.Table
	mover *turnout.Mover
	relay *Relay
	log   *logging.Scoped

	LastPolarity bool

	s7Suppress, s8Suppress, s9Suppress time.Time
}

// NewWye wires a Wye controller.
func NewWye(cfg WyeConfig, table *turnout.Table, mover *turnout.Mover, relay *Relay, log *logging.Scoped) *Wye {
	return &Wye{cfg: cfg, table: table, mover: mover, relay: relay, log: log}
}

// Tick advances the controller by one main-loop iteration.
func (w *Wye) Tick(ctx context.Context, snap sensorbus.Snapshot, now time.Time) {
	if snap.Active(w.cfg.S7) && !now.Before(w.s7Suppress) {
		rec, err := w.table.Get(w.cfg.TurnoutIdx)
		if err == nil {
			polarity := turnout.AtPosition(rec, types.PosOpen)
			w.relay.Set(polarity)
			w.LastPolarity = polarity
		}
		w.s7Suppress = now.Add(WyeRetrigger)
	}

	if snap.Active(w.cfg.S8) && !now.Before(w.s8Suppress) {
		w.set(ctx, types.PosClose, false)
		w.s8Suppress = now.Add(WyeRetrigger)
	}

	if snap.Active(w.cfg.S9) && !now.Before(w.s9Suppress) {
		w.set(ctx, types.PosOpen, true)
		w.s9Suppress = now.Add(WyeRetrigger)
	}
}

func (w *Wye) set(ctx context.Context, pos types.Position, polarity bool) {
	if _, err := w.mover.Move(ctx, w.cfg.TurnoutIdx, pos); err != nil {
		w.log.Warn("wye: turnout %d move failed: %v", w.cfg.TurnoutIdx, err)
	}
	w.relay.Set(polarity)
	w.LastPolarity = polarity
}

