package shutdown

import (
	"context"
	"time"

	"github.com/hotrack/layoutctl/internal/logging"
	"github.com/hotrack/layoutctl/internal/persistence"
	"github.com/hotrack/layoutctl/internal/sections"
	"github.com/hotrack/layoutctl/internal/sensorbus"
	"github.com/hotrack/layoutctl/internal/servo"
	"github.com/hotrack/layoutctl/internal/signalreg"
	"github.com/hotrack/layoutctl/internal/turnout"
	"github.com/hotrack/layoutctl/internal/yard"
	"github.com/hotrack/layoutctl/types"
)

// motionWaitWindow is §4.14 step 3's "wait up to 6s for any in-flight
// motion".
const motionWaitWindow = 6 * time.Second

// Sequencer runs the §4.14 ordered quiesce. Every collaborator field may
// be nil; a nil collaborator's step is skipped rather than failing the
// whole sequence (§7 "shutdown proceeds on a best-effort basis even if
// individual steps fail").
type Sequencer struct {
	Join func(ctx context.Context) error // step 1: stop/join every worker task

	Turnouts *turnout.Table
	Mover    *turnout.Mover

	Servos   *servo.Manager
	Signals  *signalreg.Driver
	Relays   []*sections.Relay
	KeyEntry *yard.KeyEntry
	Chip4    *sensorbus.Expander // OLATB owner: bell enables + holdover LEDs

	CalibrationPath string
	Backup          bool

	Log *logging.Scoped
}

// Run executes the eight steps in order, logging and continuing past any
// step's failure.
func (s *Sequencer) Run(ctx context.Context) {
	s.stopWorkers(ctx)
	s.raiseGatesAndSemaphores(ctx)
	s.waitForMotion(ctx)
	s.releaseServos()
	s.darkenSignals()
	s.zeroRelaysAndIndicators()
	s.silenceBellsAndHoldoverLEDs()
	s.saveCalibration()
}

func (s *Sequencer) stopWorkers(ctx context.Context) {
	if s.Join == nil {
		return
	}
	if err := s.Join(ctx); err != nil {
		s.Log.Warn("shutdown: worker join failed: %v", err)
	}
}

func (s *Sequencer) raiseGatesAndSemaphores(ctx context.Context) {
	if s.Turnouts == nil || s.Mover == nil {
		return
	}
	for _, rec := range s.Turnouts.All() {
		if !rec.IsGateOrSemaphore {
			continue
		}
		if _, err := s.Mover.Move(ctx, rec.Index, types.PosOpen); err != nil {
			s.Log.Warn("shutdown: raising gate/semaphore %d failed: %v", rec.Index, err)
		}
	}
}

func (s *Sequencer) waitForMotion(ctx context.Context) {
	if s.Turnouts == nil {
		return
	}
	deadline := time.Now().Add(motionWaitWindow)
	for time.Now().Before(deadline) {
		if !s.anyInMotion() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
	s.Log.Warn("shutdown: motion still in flight after %s, proceeding anyway", motionWaitWindow)
}

func (s *Sequencer) anyInMotion() bool {
	for _, rec := range s.Turnouts.All() {
		if rec.InMotion() {
			return true
		}
	}
	return false
}

func (s *Sequencer) releaseServos() {
	if s.Servos == nil {
		return
	}
	s.Servos.AllOff()
}

func (s *Sequencer) darkenSignals() {
	if s.Signals == nil {
		return
	}
	s.Signals.Submit(signalreg.ZeroAllUpdate())
}

func (s *Sequencer) zeroRelaysAndIndicators() {
	for _, r := range s.Relays {
		r.Set(false)
	}
	if s.KeyEntry != nil {
		s.KeyEntry.Clear()
	}
}

func (s *Sequencer) silenceBellsAndHoldoverLEDs() {
	if s.Chip4 == nil {
		return
	}
	if err := s.Chip4.WriteOutputB(0); err != nil {
		s.Log.Warn("shutdown: clearing chip-4 OLATB failed: %v", err)
	}
}

func (s *Sequencer) saveCalibration() {
	if s.Turnouts == nil || s.CalibrationPath == "" {
		return
	}
	records := make([]persistence.Record, 0, len(s.Turnouts.All()))
	for _, rec := range s.Turnouts.All() {
		records = append(records, persistence.FromTurnoutRecord(rec))
	}
	if err := persistence.Save(s.CalibrationPath, records, s.Backup, s.Log); err != nil {
		s.Log.Warn("shutdown: calibration save failed: %v", err)
	}
}
