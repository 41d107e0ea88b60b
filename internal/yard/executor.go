package yard

import (
	"context"

	"github.com/hotrack/layoutctl/internal/hwio"
	"github.com/hotrack/layoutctl/internal/logging"
	"github.com/hotrack/layoutctl/internal/turnout"
)

// Executor drives the in-progress yard-route control record of §3: the
// current route key plus step index. Execution is stepped — one turnout
// command per main-loop tick — and skips any turnout already at its
// requested position, which is also what makes re-running an unchanged
// route a no-op (§8 invariant 6).
type Executor struct {
	table    *Table
	turnouts *turnout.Table
	mover    *turnout.Mover
	audio    hwio.AudioPlayer
	log      *logging.Scoped

	// lastRawKey is the last raw two-digit key that completed a route,
	// used by the mirror-entry gesture: pressing the identical raw key
	// again substitutes the lowercase "r"-prefixed entry for reverse
	// traversal (§4.11, §9 open question).
	lastRawKey string

	steps   []Step
	stepIdx int
}

// NewExecutor wires an Executor to its route table and turnout access.
func NewExecutor(table *Table, turnouts *turnout.Table, mover *turnout.Mover, audio hwio.AudioPlayer, log *logging.Scoped) *Executor {
	return &Executor{table: table, turnouts: turnouts, mover: mover, audio: audio, log: log}
}

// RequestKey begins executing the route for a completed two-digit raw
// key (e.g. "45"). An unknown key plays the error tone and resets
// without changing any turnout (§4.11, §7 OperatorInputInvalid).
func (e *Executor) RequestKey(rawKey string) {
	lookupKey := "R" + rawKey
	if rawKey == e.lastRawKey {
		lookupKey = "r" + rawKey
	}
	e.requestLookupKey(rawKey, lookupKey)
}

// RequestComposite begins executing a named "all turnouts to normal"
// composite entry (e.g. "X01"); these are never subject to the mirror
// substitution.
func (e *Executor) RequestComposite(name string) {
	e.requestLookupKey("", name)
}

func (e *Executor) requestLookupKey(rawKey, lookupKey string) {
	steps, ok := e.table.Lookup(lookupKey)
	if !ok {
		e.log.Warn("yard route: unknown key %q", lookupKey)
		e.audio.PlayClip("error", 100)
		e.reset()
		return
	}
	e.steps = steps
	e.stepIdx = 0
	e.lastRawKey = rawKey
}

func (e *Executor) reset() {
	e.steps = nil
	e.stepIdx = 0
}

// Busy reports whether a route is still executing.
func (e *Executor) Busy() bool { return e.stepIdx < len(e.steps) }

// Step advances execution by (at most) one turnout command, skipping any
// number of already-correct steps first (§4.11 "skipping turnouts
// already at the requested position").
func (e *Executor) Step(ctx context.Context) {
	for e.stepIdx < len(e.steps) {
		step := e.steps[e.stepIdx]
		rec, err := e.turnouts.Get(step.Turnout)
		if err != nil {
			e.log.Warn("yard route: %v", err)
			e.stepIdx++
			continue
		}
		if turnout.AtPosition(rec, step.Target) {
			e.stepIdx++
			continue
		}
		if _, err := e.mover.Move(ctx, step.Turnout, step.Target); err != nil {
			e.log.Warn("yard route: turnout %d move failed: %v", step.Turnout, err)
		}
		e.stepIdx++
		return
	}
}
