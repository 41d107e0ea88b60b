package turnout

import (
	"context"
	"fmt"
	"sync"

	"github.com/hotrack/layoutctl/errcode"
	"github.com/hotrack/layoutctl/internal/logging"
	"github.com/hotrack/layoutctl/internal/signalreg"
	"github.com/hotrack/layoutctl/types"
)

// PositionForColor maps a semaphore's displayed color to the flag-board
// servo position that produces it (§4.10 "move servo to the flag
// position for that color").
func PositionForColor(c types.Color) types.Position {
	switch c {
	case types.ColorGreen:
		return types.PosOpen
	case types.ColorYellow:
		return types.PosMiddle
	default:
		return types.PosClose
	}
}

// SemaphoreRecord is the §3 "semaphore record": the actuating turnout
// index, an in-motion flag (the turnout's own motion handle serves that
// role, so it isn't duplicated here), and the composed lamp+servo color.
type SemaphoreRecord struct {
	Index      int
	TurnoutIdx int
	LampSignal int

	mu      sync.Mutex
	current types.Color
	pending types.Color
	inFlux  bool
}

// Current returns the semaphore's last-finalized displayed color.
func (r *SemaphoreRecord) Current() types.Color {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// SemaphoreController drives the §4.10 semaphore color-change flow: lamp
// off, move servo, lamp on (if not Off) once motion completes, only then
// record the new current color.
type SemaphoreController struct {
	table *Table
	mover *Mover
	lamps *signalreg.Registry
	log   *logging.Scoped

	mu    sync.Mutex
	byTNO map[int]*SemaphoreRecord // keyed by actuating turnout index
}

// NewSemaphoreController indexes records by their actuating turnout.
func NewSemaphoreController(table *Table, mover *Mover, lamps *signalreg.Registry, log *logging.Scoped, records []*SemaphoreRecord) *SemaphoreController {
	m := make(map[int]*SemaphoreRecord, len(records))
	for _, r := range records {
		m[r.TurnoutIdx] = r
	}
	return &SemaphoreController{table: table, mover: mover, lamps: lamps, log: log, byTNO: m}
}

// Has reports whether turnoutIdx actuates a semaphore (used by the signal
// colorer to pick the C5 vs. C3 dispatch path, §4.8).
func (c *SemaphoreController) Has(turnoutIdx int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.byTNO[turnoutIdx]
	return ok
}

// SetColor requests the semaphore actuated by turnoutIdx display color.
// If the servo is already in the matching position, the lamp change is
// applied synchronously; otherwise it completes asynchronously when
// HandleCompletion observes the motion finish.
func (c *SemaphoreController) SetColor(ctx context.Context, turnoutIdx int, color types.Color) error {
	c.mu.Lock()
	rec, ok := c.byTNO[turnoutIdx]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: turnout %d has no semaphore record", errcode.ErrConfigInvalid, turnoutIdx)
	}

	rec.mu.Lock()
	if !rec.inFlux && rec.current == color {
		rec.mu.Unlock()
		return nil
	}
	rec.pending = color
	rec.inFlux = true
	rec.mu.Unlock()

	if err := c.lamps.SetColor(rec.LampSignal, types.ColorOff); err != nil {
		c.log.Warn("semaphore %d: lamp off failed: %v", rec.Index, err)
	}

	target := PositionForColor(color)
	turnoutRec, err := c.table.Get(turnoutIdx)
	if err != nil {
		return err
	}
	wasInPosition := AtPosition(turnoutRec, target)

	outcome, err := c.mover.Move(ctx, turnoutIdx, target)
	if err != nil {
		return err
	}

	if wasInPosition || outcome == OutcomeAlreadyInPosition {
		c.finish(rec)
	}
	return nil
}

// HandleCompletion finalizes a pending color change when the actuating
// turnout's motion reports done. Completions for non-semaphore turnouts
// are ignored.
func (c *SemaphoreController) HandleCompletion(ev CompletionEvent) {
	c.mu.Lock()
	rec, ok := c.byTNO[ev.TurnoutID]
	c.mu.Unlock()
	if !ok {
		return
	}
	if ev.Outcome != OutcomeMoved {
		return // replaced/failed: leave pending, a later SetColor call will retry
	}
	c.finish(rec)
}

func (c *SemaphoreController) finish(rec *SemaphoreRecord) {
	rec.mu.Lock()
	color := rec.pending
	rec.mu.Unlock()

	if color != types.ColorOff {
		if err := c.lamps.SetColor(rec.LampSignal, color); err != nil {
			c.log.Warn("semaphore %d: lamp on failed: %v", rec.Index, err)
		}
	}

	rec.mu.Lock()
	rec.current = color
	rec.inFlux = false
	rec.mu.Unlock()
}
