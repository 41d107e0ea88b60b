package crossing

import (
	"context"
	"time"

	"github.com/hotrack/layoutctl/internal/logging"
	"github.com/hotrack/layoutctl/internal/sensorbus"
	"github.com/hotrack/layoutctl/internal/turnout"
	"github.com/hotrack/layoutctl/types"
)

// approachTimer is the §4.7 "approach" state's 10s dwell; roadDwell and
// departDwell are the road/gateRaise-to-depart windows.
const (
	gateDelayWindow = 500 * time.Millisecond
	approachTimer   = 10 * time.Second
	roadDwell       = 1 * time.Second
	departDwell     = 1 * time.Second
)

// Record is the §3 grade-crossing record.
type Record struct {
	Index int

	AprE, Road, AprW int // sensor bit indices
	LampSignal       int
	GateTurnouts     []int

	State types.GradeState

	aprTimer, roadTimer, depTimer, gateDelay time.Time
	pendingGateServo                         int
}

// Controller is the per-crossing §4.7 state machine. It owns rec and the
// crossing's LampTask exclusively; gate commands go through the shared
// turnout.Mover (the turnout itself is still that mover's sole writer).
type Controller struct {
	rec   *Record
	lamp  *LampTask
	table *turnout.Table
	mover *turnout.Mover
	log   *logging.Scoped
}

// NewController wires a crossing's record, lamp task, and gate-servo
// access together.
func NewController(rec *Record, lamp *LampTask, table *turnout.Table, mover *turnout.Mover, log *logging.Scoped) *Controller {
	return &Controller{rec: rec, lamp: lamp, table: table, mover: mover, log: log}
}

// State returns the crossing's current state (for the status snapshot).
func (c *Controller) State() types.GradeState { return c.rec.State }

// Snapshot is the per-crossing status-snapshot view (C13, §6 "grade.dat"):
// state, whether the lamp/bell worker is running, the first gate's
// position (or "none" if the crossing has no gates), and the three
// approach/road sensor bits as read this tick.
type Snapshot struct {
	Index     int
	State     types.GradeState
	LampsOn   bool
	GateState string
	AprW, Road, AprE bool
}

// Snapshot reports c's current display state against snap's sensor bits.
func (c *Controller) Snapshot(snap sensorbus.Snapshot) Snapshot {
	return Snapshot{
		Index:     c.rec.Index,
		State:     c.rec.State,
		LampsOn:   c.rec.State != types.GradeIdle && c.rec.State != types.GradeDepart,
		GateState: c.gateState(),
		AprW:      snap.Active(c.rec.AprW),
		Road:      snap.Active(c.rec.Road),
		AprE:      snap.Active(c.rec.AprE),
	}
}

// gateState reports the first gate turnout's commanded position, or
// "none" if this crossing has no gate servos.
func (c *Controller) gateState() string {
	if len(c.rec.GateTurnouts) == 0 {
		return "none"
	}
	rec, err := c.table.Get(c.rec.GateTurnouts[0])
	if err != nil {
		return "none"
	}
	if turnout.AtPosition(rec, types.PosOpen) {
		return "Open"
	}
	return "Closed"
}

// Tick advances the state machine by one main-loop iteration, given the
// current sensor snapshot and wall-clock time.
func (c *Controller) Tick(ctx context.Context, snap sensorbus.Snapshot, now time.Time) {
	rec := c.rec
	aprE := snap.Active(rec.AprE)
	road := snap.Active(rec.Road)
	aprW := snap.Active(rec.AprW)

	switch rec.State {
	case types.GradeIdle:
		if aprE || road || aprW {
			c.lamp.Start(types.BellApproach)
			rec.gateDelay = now.Add(gateDelayWindow)
			rec.State = types.GradeGateLower
		}

	case types.GradeGateLower:
		if !now.Before(rec.gateDelay) {
			c.commandGates(ctx, types.PosClose)
			rec.aprTimer = now.Add(approachTimer)
			rec.State = types.GradeApproach
		}

	case types.GradeApproach:
		if road {
			rec.roadTimer = now.Add(roadDwell)
			c.lamp.Start(types.BellRoad)
			rec.State = types.GradeRoad
		} else if !now.Before(rec.aprTimer) {
			c.enterGateRaise(ctx, now)
		}

	case types.GradeRoad:
		if road {
			rec.roadTimer = now.Add(roadDwell)
		} else if !now.Before(rec.roadTimer) {
			c.enterGateRaise(ctx, now)
		}

	case types.GradeGateRaise:
		gateless := rec.pendingGateServo == 0
		if (gateless && !now.Before(rec.depTimer)) || (!gateless && c.firstGateIdle()) {
			rec.depTimer = now.Add(departDwell)
			rec.State = types.GradeDepart
		}

	case types.GradeDepart:
		c.lamp.Stop()
		switch {
		case road:
			rec.State = types.GradeIdle // train backed up
		case aprE || aprW:
			rec.depTimer = now.Add(departDwell)
		case !now.Before(rec.depTimer):
			rec.State = types.GradeIdle
		}
	}
}

// enterGateRaise commands gates open (if any) and remembers the first
// gate servo's index for the motion-idle wait; crossings with no gates
// still spend ~1s here via the departDwell seed (§4.7 final paragraph).
func (c *Controller) enterGateRaise(ctx context.Context, now time.Time) {
	rec := c.rec
	if len(rec.GateTurnouts) > 0 {
		c.commandGates(ctx, types.PosOpen)
		rec.pendingGateServo = rec.GateTurnouts[0]
	} else {
		rec.pendingGateServo = 0
		rec.depTimer = now.Add(departDwell)
	}
	rec.State = types.GradeGateRaise
}

func (c *Controller) commandGates(ctx context.Context, pos types.Position) {
	for _, idx := range c.rec.GateTurnouts {
		if _, err := c.mover.Move(ctx, idx, pos); err != nil {
			c.log.Warn("crossing %d: gate turnout %d move failed: %v", c.rec.Index, idx, err)
		}
	}
}

// firstGateIdle reports whether the remembered first gate servo's motion
// handle is idle, or true immediately if there was no gate to begin with.
func (c *Controller) firstGateIdle() bool {
	if c.rec.pendingGateServo == 0 {
		return true
	}
	rec, err := c.table.Get(c.rec.pendingGateServo)
	if err != nil {
		return true
	}
	return !rec.InMotion()
}
