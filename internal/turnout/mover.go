package turnout

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hotrack/layoutctl/errcode"
	"github.com/hotrack/layoutctl/internal/logging"
	"github.com/hotrack/layoutctl/types"
	"github.com/hotrack/layoutctl/x/mathx"
)

// PulseWriter is the subset of servo.Manager the mover needs, so tests can
// inject a fake without constructing real boards.
type PulseWriter interface {
	SetPulse(servoIdx int, pulse int) error
}

// Outcome classifies how a Move call resolved.
type Outcome int

const (
	OutcomeMoved Outcome = iota
	OutcomeAlreadyInPosition
	OutcomeReplaced
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAlreadyInPosition:
		return "AlreadyInPosition"
	case OutcomeReplaced:
		return "Replaced"
	case OutcomeFailed:
		return "Failed"
	default:
		return "Moved"
	}
}

// CompletionEvent is the §9 "explicit completion message {turnout_id,
// final_pulse, outcome}" consumed by the main loop, which updates the
// table authoritatively.
type CompletionEvent struct {
	TurnoutID  int
	FinalPulse int
	Outcome    Outcome
	Err        error
}

// ContentionWait is the §4.5 "caller waits up to ~10s" window before a
// prior motion is killed and replaced.
const ContentionWait = 10 * time.Second

const tickInterval = 20 * time.Millisecond

type motionState struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Mover is the sole writer of any turnout's PWM channel while a motion
// task is active (§5 ownership model).
type Mover struct {
	table   *Table
	boards  PulseWriter
	temp    *AmbientTemp
	log     *logging.Scoped

	mu       sync.Mutex
	inflight map[int]*motionState
	handles  atomic.Uint64

	Completions chan CompletionEvent
}

// NewMover wires a Mover to its table, servo board manager, and ambient
// temperature record.
func NewMover(table *Table, boards PulseWriter, temp *AmbientTemp, log *logging.Scoped) *Mover {
	return &Mover{
		table:       table,
		boards:      boards,
		temp:        temp,
		log:         log,
		inflight:    map[int]*motionState{},
		Completions: make(chan CompletionEvent, 8),
	}
}

// Move commands turnout idx toward target (§4.5). Gate/semaphore devices
// get the temperature offset applied to the endpoint before clamping.
func (m *Mover) Move(ctx context.Context, idx int, target types.Position) (Outcome, error) {
	rec, err := m.table.Get(idx)
	if err != nil {
		return OutcomeFailed, err
	}

	final := rec.EndpointFor(target)
	if rec.IsGateOrSemaphore {
		final += m.temp.Signed(rec.TempOrientation)
	}
	final = mathx.Clamp(final, rec.Min, rec.Max)

	if !rec.InMotion() && final == rec.CurrentValue() {
		return OutcomeAlreadyInPosition, nil
	}

	replaced := false
	m.mu.Lock()
	if ms, ok := m.inflight[idx]; ok {
		m.mu.Unlock()
		select {
		case <-ms.done:
		case <-time.After(ContentionWait):
			m.log.Error("turnout %d: %v, killing and replacing in-flight motion", idx, errcode.ErrContention)
			ms.cancel()
			<-ms.done
			replaced = true
		}
		m.mu.Lock()
	}

	if !replaced && !rec.InMotion() && final == rec.CurrentValue() {
		m.mu.Unlock()
		return OutcomeAlreadyInPosition, nil
	}

	handle := m.handles.Add(1)
	motionCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.inflight[idx] = &motionState{cancel: cancel, done: done}
	m.mu.Unlock()

	rec.motion.Store(handle)
	go m.run(motionCtx, rec, idx, final, done)

	if replaced {
		return OutcomeReplaced, nil
	}
	return OutcomeMoved, nil
}

func (m *Mover) run(ctx context.Context, rec *Record, idx, target int, done chan struct{}) {
	defer close(done)
	defer func() {
		m.mu.Lock()
		delete(m.inflight, idx)
		m.mu.Unlock()
	}()

	step := rec.Rate / 50
	if step < 1 {
		step = 1
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	cur := rec.CurrentValue()
	for cur != target {
		select {
		case <-ctx.Done():
			rec.motion.Store(0)
			m.emit(CompletionEvent{TurnoutID: idx, FinalPulse: rec.CurrentValue(), Outcome: OutcomeReplaced, Err: ctx.Err()})
			return
		case <-ticker.C:
		}

		delta := target - cur
		if mathx.Abs(delta) <= step {
			cur = target
		} else if delta > 0 {
			cur += step
		} else {
			cur -= step
		}

		if err := m.boards.SetPulse(idx, cur); err != nil {
			rec.motion.Store(0)
			m.emit(CompletionEvent{TurnoutID: idx, FinalPulse: rec.CurrentValue(), Outcome: OutcomeFailed,
				Err: fmt.Errorf("turnout %d: %w", idx, err)})
			return
		}
		rec.setCurrent(cur)
	}

	rec.motion.Store(0)
	m.emit(CompletionEvent{TurnoutID: idx, FinalPulse: cur, Outcome: OutcomeMoved})
}

func (m *Mover) emit(ev CompletionEvent) {
	select {
	case m.Completions <- ev:
	default:
		m.log.Warn("completion queue full; dropping event for turnout %d", ev.TurnoutID)
	}
}

// AtPosition reports whether rec's current pulse equals the (temperature-
// uncompensated) endpoint for pos — used by yard-route execution's
// "skipping turnouts already at the requested position" and by the
// midway/wye controllers.
func AtPosition(rec *Record, pos types.Position) bool {
	return !rec.InMotion() && rec.CurrentValue() == rec.EndpointFor(pos)
}
