// Package crossing is the Grade-Crossing Controller (C7): a per-crossing
// lamp/bell worker plus the six-state machine that drives it and the
// crossing's gate servos from the three approach/road sensor bits.
package crossing

import (
	"context"
	"time"

	"github.com/hotrack/layoutctl/internal/logging"
	"github.com/hotrack/layoutctl/internal/sensorbus"
	"github.com/hotrack/layoutctl/internal/signalreg"
	"github.com/hotrack/layoutctl/types"
)

const flashInterval = 800 * time.Millisecond

type lampCmdKind int

const (
	cmdStart lampCmdKind = iota
	cmdStop
	cmdExit
)

// LampControl is the §4.7 "{start(bell_kind), stop, exit}" message.
type LampControl struct {
	Cmd  lampCmdKind
	Bell types.BellKind
}

// BellBit identifies one bell-enable output bit on a shared expander
// output latch (chip 4's OLATB, per §6 "buttons + panel LEDs + bell
// enables").
type BellBit struct {
	Chip *sensorbus.Expander
	Bit  byte
}

// setBell drives exactly the bit for kind high and the other low, via
// read-modify-write so neighboring OLATB bits (panel LEDs) are untouched
// (§5 "bell writes always use read-modify-write with the known bit
// mask").
func setBell(approach, road BellBit, kind types.BellKind) error {
	cur, err := approach.Chip.ReadOutputB()
	if err != nil {
		return err
	}
	cur &^= (1 << approach.Bit) | (1 << road.Bit)
	switch kind {
	case types.BellApproach:
		cur |= 1 << approach.Bit
	case types.BellRoad:
		cur |= 1 << road.Bit
	}
	return approach.Chip.WriteOutputB(cur)
}

// LampTask is the "dedicated lamp task" of §4.7: it owns one crossing's
// signal and bell bits exclusively and is driven only by Control messages
// from the crossing's state machine.
type LampTask struct {
	signalIdx      int
	approach, road BellBit
	registry       *signalreg.Registry
	log            *logging.Scoped

	Control chan LampControl
}

// NewLampTask wires a lamp task to its signal and bell bits.
func NewLampTask(signalIdx int, approach, road BellBit, registry *signalreg.Registry, log *logging.Scoped) *LampTask {
	return &LampTask{
		signalIdx: signalIdx,
		approach:  approach,
		road:      road,
		registry:  registry,
		log:       log,
		Control:   make(chan LampControl, 4),
	}
}

// Start requests the flashing lamp and named bell begin.
func (l *LampTask) Start(bell types.BellKind) {
	l.send(LampControl{Cmd: cmdStart, Bell: bell})
}

// Stop requests lamps and bell off.
func (l *LampTask) Stop() {
	l.send(LampControl{Cmd: cmdStop})
}

// Exit requests the task's Run loop return.
func (l *LampTask) Exit() {
	l.send(LampControl{Cmd: cmdExit})
}

func (l *LampTask) send(c LampControl) {
	select {
	case l.Control <- c:
	default:
		l.log.Warn("crossing %d lamp control queue full; dropping command", l.signalIdx)
	}
}

// Run alternates Red/Green at ~0.8s while running (§4.7).
func (l *LampTask) Run(ctx context.Context) {
	running := false
	color := types.ColorRed

	ticker := time.NewTicker(flashInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-l.Control:
			switch c.Cmd {
			case cmdStart:
				running = true
				color = types.ColorRed
				if err := l.registry.SetColor(l.signalIdx, color); err != nil {
					l.log.Warn("crossing lamp %d: %v", l.signalIdx, err)
				}
				if err := setBell(l.approach, l.road, c.Bell); err != nil {
					l.log.Warn("crossing lamp %d: bell set failed: %v", l.signalIdx, err)
				}
			case cmdStop:
				running = false
				if err := l.registry.SetColor(l.signalIdx, types.ColorOff); err != nil {
					l.log.Warn("crossing lamp %d: %v", l.signalIdx, err)
				}
				if err := setBell(l.approach, l.road, types.BellNone); err != nil {
					l.log.Warn("crossing lamp %d: bell clear failed: %v", l.signalIdx, err)
				}
			case cmdExit:
				return
			}
		case <-ticker.C:
			if !running {
				continue
			}
			if color == types.ColorRed {
				color = types.ColorGreen
			} else {
				color = types.ColorRed
			}
			if err := l.registry.SetColor(l.signalIdx, color); err != nil {
				l.log.Warn("crossing lamp %d: %v", l.signalIdx, err)
			}
		}
	}
}
