// Package control is the Main Loop & Scheduler (C10): the fixed-order
// per-tick orchestration of sensor read, section control, signal
// recomputation, input draining, and the worker liveness watchdog (§5,
// §9).
package control

import (
	"sync"
	"time"

	"github.com/hotrack/layoutctl/internal/logging"
)

// Watchdog tracks a liveness heartbeat per named worker task and flags
// one stale if it has not beaten within 3x its declared nominal cadence
// (§9 "Watchdog" supplemented feature). This stands in for the forked
// workers' OS-level liveness the teacher's process model got for free.
type Watchdog struct {
	mu      sync.Mutex
	nominal map[string]time.Duration
	last    map[string]time.Time
	log     *logging.Scoped
}

// NewWatchdog builds an empty watchdog.
func NewWatchdog(log *logging.Scoped) *Watchdog {
	return &Watchdog{nominal: map[string]time.Duration{}, last: map[string]time.Time{}, log: log}
}

// Register declares a worker's nominal scan cadence; call once per
// worker before its first Beat.
func (w *Watchdog) Register(name string, nominal time.Duration, now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nominal[name] = nominal
	w.last[name] = now
}

// Beat records a liveness tick for name, called from the worker's own
// scan loop.
func (w *Watchdog) Beat(name string, now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last[name] = now
}

// CheckStale logs a warning for every registered worker that has not
// beaten within 3x its nominal cadence, once per call (the main loop
// calls this every iteration).
func (w *Watchdog) CheckStale(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for name, nominal := range w.nominal {
		if now.Sub(w.last[name]) > 3*nominal {
			w.log.Warn("watchdog: %s has not reported in %s (nominal %s)", name, now.Sub(w.last[name]), nominal)
		}
	}
}
