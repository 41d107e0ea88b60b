// Package shutdown is the Shutdown Arming input (§4.13) and the Shutdown
// Sequencer (C12, §4.14): the single momentary button that starts a
// tone-sequence countdown to power-off, and the ordered quiesce of every
// actuator once the countdown (or a ^C) ends the main loop.
package shutdown

import (
	"context"
	"time"

	"github.com/hotrack/layoutctl/internal/hwio"
	"github.com/hotrack/layoutctl/internal/logging"
)

// countdownClips is the §4.13 "G, F, E, D, C, C_" tone sequence, one clip
// per second.
var countdownClips = []string{"G", "F", "E", "D", "C", "C_"}

const tonePeriod = time.Second

type armState int

const (
	armIdle armState = iota
	armCounting
)

// Armer is the §4.13 state machine: idle -> armed (on release-after-press)
// -> counting down, with a second press during the countdown aborting
// back to idle. It satisfies control.ShutdownPoller.
type Armer struct {
	pin   hwio.Pin
	audio hwio.AudioPlayer
	log   *logging.Scoped

	state    armState
	pressed  bool // last observed pressed level (active low)
	// awaitingRelease swallows the trailing release of whichever press
	// just caused an abort, so that same physical press can't also be
	// read as a fresh idle->armed gesture.
	awaitingRelease bool
	step            int
	lastTone        time.Time
	done            bool
}

// NewArmer configures pin as a pulled-up input (pressed reads 0) and
// wires the countdown to audio.
func NewArmer(pin hwio.Pin, audio hwio.AudioPlayer, log *logging.Scoped) (*Armer, error) {
	if err := pin.ConfigureInput(hwio.PullUp); err != nil {
		return nil, err
	}
	return &Armer{pin: pin, audio: audio, log: log}, nil
}

// Done reports whether the countdown ran to completion; once true the
// main loop should stop calling Poll and run the Sequencer.
func (a *Armer) Done() bool { return a.done }

// Poll advances the state machine by one main-loop iteration (§5's
// "shutdown-button poll" step). A no-op once Done.
func (a *Armer) Poll(_ context.Context, now time.Time) {
	if a.done {
		return
	}
	pressed := !a.pin.Get()
	defer func() { a.pressed = pressed }()

	if a.awaitingRelease {
		if !pressed {
			a.awaitingRelease = false
		}
		return
	}

	switch a.state {
	case armIdle:
		if !pressed && a.pressed {
			a.arm(now)
		}
	case armCounting:
		if pressed && !a.pressed {
			a.abort()
			a.awaitingRelease = true
			return
		}
		if now.Sub(a.lastTone) >= tonePeriod {
			a.advance(now)
		}
	}
}

func (a *Armer) arm(now time.Time) {
	a.state = armCounting
	a.lastTone = now
	a.step = 0
	a.log.Info("shutdown armed, countdown started")
	a.audio.PlayClip(countdownClips[0], 100)
	a.step = 1
}

func (a *Armer) advance(now time.Time) {
	a.lastTone = now
	if a.step >= len(countdownClips) {
		a.done = true
		a.log.Info("shutdown countdown complete")
		return
	}
	a.audio.PlayClip(countdownClips[a.step], 100)
	a.step++
}

func (a *Armer) abort() {
	a.state = armIdle
	a.step = 0
	a.log.Info("shutdown arming aborted")
	a.audio.PlayClip("unlock", 100)
}
