// Package signaling is the Signal Coloring component (C8): it maps the
// set of occupied blocks to each signal's displayed color with Red >
// Yellow > Green > Off priority, and dispatches only the signals whose
// desired color changed (§4.8).
package signaling

import (
	"context"

	"github.com/hotrack/layoutctl/internal/logging"
	"github.com/hotrack/layoutctl/internal/signalreg"
	"github.com/hotrack/layoutctl/types"
)

// BlockRule is one row of the block->{green,yellow,red} aspect table: the
// signals each occupied block demands at each color.
type BlockRule struct {
	Block              int
	Green, Yellow, Red []int // signal indices
}

// SemaphoreSetter is the subset of turnout.SemaphoreController the
// colorer needs, so tests can substitute a fake.
type SemaphoreSetter interface {
	Has(turnoutIdx int) bool
	SetColor(ctx context.Context, turnoutIdx int, color types.Color) error
}

// Colorer recomputes every signal's desired color once per main-loop
// iteration from the current occupied-block set.
type Colorer struct {
	rules      []BlockRule
	registry   *signalreg.Registry
	semaphores SemaphoreSetter
	// semaphoreTurnout maps a signal index to the turnout index that
	// actuates it, for signals that are semaphores rather than wayside
	// shift-register LEDs (§4.8 "semaphores via C5; all others via C3").
	semaphoreTurnout map[int]int
	log              *logging.Scoped
}

// NewColorer builds a Colorer from the block-aspect table and the
// signal-index -> actuating-turnout map for semaphore signals.
func NewColorer(rules []BlockRule, registry *signalreg.Registry, semaphores SemaphoreSetter, semaphoreTurnout map[int]int, log *logging.Scoped) *Colorer {
	return &Colorer{rules: rules, registry: registry, semaphores: semaphores, semaphoreTurnout: semaphoreTurnout, log: log}
}

// Recompute runs the three-pass Green/Yellow/Red assignment over the
// occupied set and dispatches every signal whose desired color differs
// from its currently displayed one.
func (c *Colorer) Recompute(ctx context.Context, occupied map[int]bool) {
	desired := map[int]types.Color{}
	for _, sig := range c.registry.All() {
		desired[sig.Index] = types.ColorOff
	}

	passes := []struct {
		color types.Color
		pick  func(BlockRule) []int
	}{
		{types.ColorGreen, func(r BlockRule) []int { return r.Green }},
		{types.ColorYellow, func(r BlockRule) []int { return r.Yellow }},
		{types.ColorRed, func(r BlockRule) []int { return r.Red }},
	}
	for _, pass := range passes {
		for _, rule := range c.rules {
			if !occupied[rule.Block] {
				continue
			}
			for _, sig := range pass.pick(rule) {
				desired[sig] = pass.color
			}
		}
	}

	for sigIdx, color := range desired {
		current, err := c.registry.Current(sigIdx)
		if err != nil {
			c.log.Warn("signal coloring: %v", err)
			continue
		}
		if current == color {
			continue
		}

		if turnoutIdx, ok := c.semaphoreTurnout[sigIdx]; ok && c.semaphores.Has(turnoutIdx) {
			if err := c.semaphores.SetColor(ctx, turnoutIdx, color); err != nil {
				c.log.Warn("signal %d: semaphore color set failed: %v", sigIdx, err)
			}
			continue
		}

		if err := c.registry.SetColor(sigIdx, color); err != nil {
			c.log.Warn("signal %d: %v", sigIdx, err)
		}
	}
}
