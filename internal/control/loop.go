package control

import (
	"context"
	"time"

	"github.com/hotrack/layoutctl/internal/crossing"
	"github.com/hotrack/layoutctl/internal/hwio"
	"github.com/hotrack/layoutctl/internal/inputs"
	"github.com/hotrack/layoutctl/internal/logging"
	"github.com/hotrack/layoutctl/internal/sections"
	"github.com/hotrack/layoutctl/internal/sensorbus"
	"github.com/hotrack/layoutctl/internal/signaling"
	"github.com/hotrack/layoutctl/internal/turnout"
	"github.com/hotrack/layoutctl/internal/yard"
)

// TickPeriod is the §5 "main loop sleeps ~90ms after each iteration".
const TickPeriod = 90 * time.Millisecond

// StatusPublisher is the subset of the status-snapshot writer (C13) the
// loop needs; kept as a narrow interface here so control does not import
// the concrete writer (status.Writer satisfies it).
type StatusPublisher interface {
	Publish(ctx context.Context, iteration uint64, snap sensorbus.Snapshot)
}

// ShutdownPoller is the subset of the shutdown sequencer (C12) the loop
// needs to poll the arming button each iteration.
type ShutdownPoller interface {
	Poll(ctx context.Context, now time.Time)
}

// ButtonAction handles one classified button edge (§4.6/§4.12 wiring:
// midway toggles, holdover route requests, panel buttons).
type ButtonAction func(ctx context.Context, ev inputs.ButtonEvent, now time.Time)

// MidwayUnit pairs a midway auto-reset turnout with its derail-guard
// sibling (may be nil) for the §4.12 "never locked simultaneously" rule.
type MidwayUnit struct {
	Midway  *sections.Midway
	Sibling *sections.Midway
}

// Loop is the Main Loop & Scheduler (C10): it owns the fixed per-tick
// ordering of §5 and nothing else — every actual decision lives in the
// component it calls into.
type Loop struct {
	log      *logging.Scoped
	watchdog *Watchdog

	sensors *sensorbus.Reader

	holdover  *sections.Holdover
	midways   []MidwayUnit
	wye       *sections.Wye
	crossings []*crossing.Controller

	colorer   *signaling.Colorer
	blockBits map[int]int // block number -> sensor bit index (§3 "the 10 block-occupancy bits")

	yardExec *yard.Executor
	yardKeys *yard.KeyEntry

	keypad  *inputs.KeypadScanner
	buttons *inputs.ButtonScanner

	buttonActions map[int]ButtonAction

	semaphores *turnout.SemaphoreController
	mover      *turnout.Mover

	temp        *turnout.AmbientTemp
	tempSensor  *hwio.TempSensor
	statusEvery uint64
	status      StatusPublisher
	shutdown    ShutdownPoller

	iteration uint64
}

// Config wires every collaborator a Loop iteration touches. Collaborator
// fields left nil are simply skipped; Log is always used and must be set.
type Config struct {
	Log *logging.Scoped

	Sensors *sensorbus.Reader

	Holdover  *sections.Holdover
	Midways   []MidwayUnit
	Wye       *sections.Wye
	Crossings []*crossing.Controller

	Colorer   *signaling.Colorer
	BlockBits map[int]int

	YardExec *yard.Executor
	YardKeys *yard.KeyEntry

	Keypad  *inputs.KeypadScanner
	Buttons *inputs.ButtonScanner

	Semaphores *turnout.SemaphoreController
	Mover      *turnout.Mover

	Temp       *turnout.AmbientTemp
	TempSensor *hwio.TempSensor

	StatusEvery uint64 // iterations between status-snapshot publishes (§5 "~10")
	Status      StatusPublisher
	Shutdown    ShutdownPoller
}

// NewLoop builds a Loop from Config and registers the always-running
// scanners with the watchdog.
func NewLoop(cfg Config, now time.Time) *Loop {
	statusEvery := cfg.StatusEvery
	if statusEvery == 0 {
		statusEvery = 10
	}
	l := &Loop{
		log:           cfg.Log,
		watchdog:      NewWatchdog(cfg.Log),
		sensors:       cfg.Sensors,
		holdover:      cfg.Holdover,
		midways:       cfg.Midways,
		wye:           cfg.Wye,
		crossings:     cfg.Crossings,
		colorer:       cfg.Colorer,
		blockBits:     cfg.BlockBits,
		yardExec:      cfg.YardExec,
		yardKeys:      cfg.YardKeys,
		keypad:        cfg.Keypad,
		buttons:       cfg.Buttons,
		buttonActions: map[int]ButtonAction{},
		semaphores:    cfg.Semaphores,
		mover:         cfg.Mover,
		temp:          cfg.Temp,
		tempSensor:    cfg.TempSensor,
		statusEvery:   statusEvery,
		status:        cfg.Status,
		shutdown:      cfg.Shutdown,
	}
	if l.keypad != nil {
		l.watchdog.Register("keypad", 100*time.Millisecond, now)
		l.keypad.Heartbeat = func() { l.watchdog.Beat("keypad", time.Now()) }
	}
	if l.buttons != nil {
		l.watchdog.Register("buttons", 50*time.Millisecond, now)
		l.buttons.Heartbeat = func() { l.watchdog.Beat("buttons", time.Now()) }
	}
	return l
}

// RegisterButton wires a button index to its action, for the §4.6/§4.12
// button-queue drain step. Actions not registered are logged and
// ignored.
func (l *Loop) RegisterButton(idx int, action ButtonAction) {
	l.buttonActions[idx] = action
}

// Run drives Tick every TickPeriod until ctx is cancelled (§5's "main
// loop sleeps ~90ms after each iteration").
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(TickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		l.Tick(ctx, time.Now())
	}
}

// Tick runs exactly one main-loop iteration in the §5 fixed order: read
// sensors -> holdover -> midway -> wye -> grade crossings -> recompute
// signals -> yard-route step -> drain button/keypad queues -> temperature
// refresh -> status-snapshot publish -> shutdown-button poll.
func (l *Loop) Tick(ctx context.Context, now time.Time) {
	l.iteration++

	var snap sensorbus.Snapshot
	if l.sensors != nil {
		var err error
		snap, err = l.sensors.Read()
		if err != nil {
			l.log.Warn("sensor read failed, skipping tick: %v", err)
			return
		}
	}

	if l.holdover != nil {
		l.holdover.Tick(ctx, snap, now)
	}
	for _, mu := range l.midways {
		mu.Midway.Tick(ctx, snap, now)
	}
	if l.wye != nil {
		l.wye.Tick(ctx, snap, now)
	}
	for _, c := range l.crossings {
		c.Tick(ctx, snap, now)
	}

	if l.colorer != nil {
		occupied := make(map[int]bool, len(l.blockBits))
		for block, bit := range l.blockBits {
			occupied[block] = snap.Active(bit)
		}
		l.colorer.Recompute(ctx, occupied)
	}

	l.drainSemaphoreCompletions()

	if l.yardExec != nil && l.yardExec.Busy() {
		l.yardExec.Step(ctx)
	}

	l.drainButtons(ctx, now)
	l.drainKeypad(ctx)

	if l.temp != nil && l.tempSensor != nil && l.temp.Due(now) {
		c, err := l.tempSensor.ReadC()
		if err != nil {
			l.log.Warn("temperature refresh failed: %v", err)
		} else {
			l.temp.Set(c, now)
		}
	}

	if l.status != nil && l.iteration%l.statusEvery == 0 {
		l.status.Publish(ctx, l.iteration, snap)
	}

	if l.shutdown != nil {
		l.shutdown.Poll(ctx, now)
	}

	l.watchdog.CheckStale(now)
}

// drainSemaphoreCompletions finalizes any in-flight semaphore color
// changes whose motion has completed (§4.10), non-blocking.
func (l *Loop) drainSemaphoreCompletions() {
	if l.mover == nil || l.semaphores == nil {
		return
	}
	for {
		select {
		case ev := <-l.mover.Completions:
			l.semaphores.HandleCompletion(ev)
		default:
			return
		}
	}
}

func (l *Loop) drainButtons(ctx context.Context, now time.Time) {
	if l.buttons == nil {
		return
	}
	for {
		select {
		case ev := <-l.buttons.Events:
			action, ok := l.buttonActions[ev.Button]
			if !ok {
				l.log.Warn("button %d pressed with no registered action", ev.Button)
				continue
			}
			action(ctx, ev, now)
		default:
			return
		}
	}
}

func (l *Loop) drainKeypad(ctx context.Context) {
	if l.keypad == nil || l.yardKeys == nil || l.yardExec == nil {
		return
	}
	for {
		select {
		case ch := <-l.keypad.Events:
			key, complete := l.yardKeys.Feed(ch)
			if complete {
				l.yardExec.RequestKey(key)
			}
		default:
			return
		}
	}
}
