package signalreg

import (
	"fmt"
	"sync"

	"github.com/hotrack/layoutctl/errcode"
	"github.com/hotrack/layoutctl/types"
)

// Registry is the single owner of every signal's currently-displayed
// color (§3 "signal record"); apart from the shutdown sequencer's final
// all-dark update, it is the only thing that submits frame updates to the
// Driver, so C7 (grade-crossing lamps) and C8 (signal coloring) share one
// consistent view of "currently displayed" for the dispatch-on-change
// rule in §4.8.
type Registry struct {
	mu      sync.RWMutex
	signals map[int]*Signal
	driver  *Driver
}

// NewRegistry indexes signals by their Index field.
func NewRegistry(driver *Driver, signals []Signal) *Registry {
	m := make(map[int]*Signal, len(signals))
	for i := range signals {
		sig := signals[i]
		m[sig.Index] = &sig
	}
	return &Registry{signals: m, driver: driver}
}

// Current returns the signal's last-set color.
func (r *Registry) Current(index int) (types.Color, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sig, ok := r.signals[index]
	if !ok {
		return types.ColorOff, fmt.Errorf("%w: unknown signal %d", errcode.ErrConfigInvalid, index)
	}
	return sig.Current, nil
}

// SetColor submits a frame update for index and records it as the
// currently-displayed color, unconditionally (callers that care about
// "only dispatch on change", like C8, check Current first).
func (r *Registry) SetColor(index int, color types.Color) error {
	r.mu.Lock()
	sig, ok := r.signals[index]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: unknown signal %d", errcode.ErrConfigInvalid, index)
	}
	sig.Current = color
	update := UpdateFor(*sig, color)
	r.mu.Unlock()

	r.driver.Submit(update)
	return nil
}

// All returns every signal record (for the status snapshot, C13).
func (r *Registry) All() []Signal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Signal, 0, len(r.signals))
	for _, sig := range r.signals {
		out = append(out, *sig)
	}
	return out
}
