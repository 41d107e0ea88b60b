// Package turnout is the Turnout Mover (C5): per-turnout stepped servo
// interpolation with temperature compensation, plus the §3 turnout
// calibration data model shared with persistence (C11) and the status
// snapshot (C13).
package turnout

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hotrack/layoutctl/errcode"
	"github.com/hotrack/layoutctl/types"
	"github.com/hotrack/layoutctl/x/mathx"
)

// Record is the §3 turnout calibration record: one per servo channel.
type Record struct {
	Index int    // 1-32, stable identity
	Label string // human label
	Addr  uint16 // servo board I²C address (derived, kept for the cal file)
	Port  int    // channel on that board (derived, kept for the cal file)

	Rate int // pulse-units/second

	Open, Middle, Close int // configured endpoints
	Min, Max             int // hard limits

	// IsGateOrSemaphore marks devices whose endpoint targets get the §3
	// temperature compensation applied (gates and semaphores).
	IsGateOrSemaphore bool
	// TempOrientation is +1 or -1: whether the temperature offset is
	// added or subtracted for this device (§8 invariant 8: a mirrored
	// pair of servos gets equal-magnitude, opposite-sign adjustments).
	TempOrientation int

	// InitialCurrent seeds current (read once at construction; use
	// CurrentValue() afterwards, since the motion worker is the sole
	// writer thereafter).
	InitialCurrent int

	current atomic.Int64 // last pulse value actually written when idle

	// motion is a handle identifying the in-flight motion task; zero
	// means idle (§3 "runtime: an opaque handle ... zero means idle").
	motion atomic.Uint64
}

// CurrentValue returns the last pulse value actually written to hardware
// (when idle, this equals the commanded position's endpoint).
func (r *Record) CurrentValue() int { return int(r.current.Load()) }

func (r *Record) setCurrent(v int) { r.current.Store(int64(v)) }

// InMotion reports whether a motion task currently owns this turnout.
func (r *Record) InMotion() bool { return r.motion.Load() != 0 }

// MotionHandle returns the opaque in-flight handle (0 = idle), for the
// status snapshot and grade-crossing "when that servo's motion handle is
// idle" wait condition.
func (r *Record) MotionHandle() uint64 { return r.motion.Load() }

// Validate checks the §3 invariants that must hold for a freshly loaded
// or configured record: min <= open,middle,close <= max, min <= current
// <= max.
func (r *Record) Validate() error {
	if r.Min > r.Max {
		return fmt.Errorf("%w: turnout %d min %d > max %d", errcode.ErrConfigInvalid, r.Index, r.Min, r.Max)
	}
	for name, v := range map[string]int{"open": r.Open, "middle": r.Middle, "close": r.Close, "current": r.InitialCurrent} {
		if !mathx.Between(v, r.Min, r.Max) {
			return fmt.Errorf("%w: turnout %d %s=%d outside [%d,%d]", errcode.ErrConfigInvalid, r.Index, name, v, r.Min, r.Max)
		}
	}
	r.current.Store(int64(r.InitialCurrent))
	return nil
}

// EndpointFor returns the configured pulse value for a commanded
// position.
func (r *Record) EndpointFor(pos types.Position) int {
	switch pos {
	case types.PosOpen:
		return r.Open
	case types.PosClose:
		return r.Close
	default:
		return r.Middle
	}
}

// Table owns every turnout record for the process lifetime (§3
// "Lifecycle").
type Table struct {
	mu      sync.RWMutex
	records map[int]*Record
}

// NewTable builds a Table from the given records, indexed by Index.
func NewTable(records []*Record) (*Table, error) {
	t := &Table{records: map[int]*Record{}}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		t.records[r.Index] = r
	}
	return t, nil
}

// Get returns the record for idx, or ErrConfigInvalid if unknown.
func (t *Table) Get(idx int) (*Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.records[idx]
	if !ok {
		return nil, fmt.Errorf("%w: unknown turnout %d", errcode.ErrConfigInvalid, idx)
	}
	return r, nil
}

// All returns every record in index order, for iteration by the status
// snapshot and shutdown sequencer.
func (t *Table) All() []*Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Record, 0, len(t.records))
	for _, r := range t.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
