package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hotrack/layoutctl/internal/layoutcfg"
	"github.com/hotrack/layoutctl/internal/logging"
	"github.com/hotrack/layoutctl/internal/sensorbus"
	"github.com/hotrack/layoutctl/types"
)

// diagStepDelay paces every diagnostic mode's visible steps; these run
// at human, not control-loop, speed so an operator standing at the
// layout can watch each transition.
const diagStepDelay = 1 * time.Second

// diagTestSignals cycles every configured signal through green, yellow,
// red and back to off (§6 "test-signals").
func diagTestSignals(ctx context.Context, rt *runtime, log *logging.Scoped) error {
	for _, sig := range rt.signals.All() {
		for _, c := range []types.Color{types.ColorGreen, types.ColorYellow, types.ColorRed, types.ColorOff} {
			if err := rt.signals.SetColor(sig.Index, c); err != nil {
				log.Warn("signal %d -> %s: %v", sig.Index, c, err)
				continue
			}
			log.Info("signal %d -> %s", sig.Index, c)
			if !sleepOrDone(ctx, diagStepDelay) {
				return ctx.Err()
			}
		}
	}
	return nil
}

// diagTestTurnouts sweeps every turnout through open, middle, close
// (§6 "test-turnouts").
func diagTestTurnouts(ctx context.Context, rt *runtime, log *logging.Scoped) error {
	for _, rec := range rt.turnouts.All() {
		for _, pos := range []types.Position{types.PosOpen, types.PosMiddle, types.PosClose} {
			outcome, err := rt.mover.Move(ctx, rec.Index, pos)
			if err != nil {
				log.Warn("turnout %d -> %s: %v", rec.Index, pos, err)
				continue
			}
			log.Info("turnout %d -> %s (%s)", rec.Index, pos, outcome)
			if !sleepOrDone(ctx, diagStepDelay) {
				return ctx.Err()
			}
		}
	}
	return nil
}

// diagTestGradeCrossing force-feeds each configured crossing a synthetic
// approach-east activation and ticks it until the gate has raised again,
// printing every state transition (§6 "test-grade-crossing").
func diagTestGradeCrossing(ctx context.Context, rt *runtime, log *logging.Scoped) error {
	for _, c := range rt.crossings {
		last := c.State()
		log.Info("crossing: initial state %s", last)
		deadline := time.Now().Add(30 * time.Second)
		triggered := false
		for time.Now().Before(deadline) {
			snap := sensorbus.Snapshot{}
			if !triggered {
				snap = approachSnapshot(rt)
				triggered = true
			}
			c.Tick(ctx, snap, time.Now())
			if s := c.State(); s != last {
				log.Info("crossing: state -> %s", s)
				last = s
			}
			if last == types.GradeIdle && triggered {
				break
			}
			if !sleepOrDone(ctx, 200*time.Millisecond) {
				return ctx.Err()
			}
		}
	}
	return nil
}

// approachSnapshot activates every configured crossing's approach-east
// bit via a synthetic snapshot, so the state machine can be exercised
// without a real sensor read.
func approachSnapshot(rt *runtime) sensorbus.Snapshot {
	var s1, s2 uint16
	// Bit indices below 16 live in State1, the rest in State2 (§4.4).
	setBit := func(idx int) {
		if idx < 16 {
			s1 |= 1 << uint(idx)
		} else {
			s2 |= 1 << uint(idx-16)
		}
	}
	for _, rec := range layoutcfg.Crossings() {
		setBit(rec.AprE)
	}
	return sensorbus.Snapshot{State1: s1, State2: s2}
}

// diagTestKeypad echoes every scanned yard keypad character until
// cancelled (§6 "test-keypad").
func diagTestKeypad(ctx context.Context, rt *runtime, log *logging.Scoped) error {
	log.Info("test-keypad: press keys on the yard panel, ^C to stop")
	go rt.keypad.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ch := <-rt.keypad.Events:
			fmt.Printf("key: %c\n", ch)
		}
	}
}

// diagTestSensors dumps the combined 32-bit sensor word once a second
// (§6 "test-sensors").
func diagTestSensors(ctx context.Context, rt *runtime, log *logging.Scoped) error {
	for {
		snap, err := rt.sensors.Read()
		if err != nil {
			log.Warn("sensor read: %v", err)
		} else {
			fmt.Printf("sensors: %032b\n", snap.Combined())
		}
		if !sleepOrDone(ctx, diagStepDelay) {
			return ctx.Err()
		}
	}
}

// diagTestRelays toggles every polarity relay on then off (§6
// "test-relays").
func diagTestRelays(ctx context.Context, rt *runtime, log *logging.Scoped) error {
	for i, r := range rt.relays {
		r.Set(true)
		log.Info("relay %d -> on", i+1)
		if !sleepOrDone(ctx, diagStepDelay) {
			return ctx.Err()
		}
		r.Set(false)
		log.Info("relay %d -> off", i+1)
		if !sleepOrDone(ctx, diagStepDelay) {
			return ctx.Err()
		}
	}
	return nil
}

// diagTestSound plays every clip in the §4.13 shutdown countdown
// sequence plus the "unlock" abort clip, back to back (§6 "test-sound").
func diagTestSound(ctx context.Context, rt *runtime, log *logging.Scoped) error {
	clips := []string{"G", "F", "E", "D", "C", "C_", "unlock"}
	for _, clip := range clips {
		log.Info("playing clip %q", clip)
		rt.audio.PlayClip(clip, 100)
		if !sleepOrDone(ctx, diagStepDelay) {
			return ctx.Err()
		}
	}
	return nil
}

// diagServoAdjust is the per-turnout calibration check (§6
// "servo-adjust"): it logs the named turnout's calibration record and
// steps the turnout through open/middle/close once so an operator can
// watch it settle. It takes no operator input and does not change or save
// the record.
func diagServoAdjust(ctx context.Context, rt *runtime, log *logging.Scoped, turnoutIdx int) error {
	rec, err := rt.turnouts.Get(turnoutIdx)
	if err != nil {
		return fmt.Errorf("turnout %d: %w", turnoutIdx, err)
	}
	log.Info("servo-adjust: turnout %d (%s), rate=%d open=%d middle=%d close=%d min=%d max=%d",
		rec.Index, rec.Label, rec.Rate, rec.Open, rec.Middle, rec.Close, rec.Min, rec.Max)
	for _, pos := range []types.Position{types.PosOpen, types.PosMiddle, types.PosClose} {
		outcome, err := rt.mover.Move(ctx, turnoutIdx, pos)
		if err != nil {
			return fmt.Errorf("moving to %s: %w", pos, err)
		}
		log.Info("-> %s (%s), current=%d", pos, outcome, rec.CurrentValue())
		if !sleepOrDone(ctx, 2*diagStepDelay) {
			return ctx.Err()
		}
	}
	return nil
}

// sleepOrDone waits for d or ctx cancellation, reporting which happened
// so callers can unwind cleanly on ^C mid-sequence.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
