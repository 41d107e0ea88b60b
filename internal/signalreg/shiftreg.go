// Package signalreg is the Signal Shift-Register Driver (C3): it serializes
// a pair of 32-bit frames to the 74HC595 chain at a timed cadence,
// producing Off/Red/Green/Yellow via two-frame weaving (§4.3).
package signalreg

import (
	"context"
	"time"

	"github.com/hotrack/layoutctl/internal/hwio"
	"github.com/hotrack/layoutctl/internal/logging"
)

// FrameUpdate is the tuple §4.3 describes: frame_x := (frame_x & mask) |
// data_x, applied atomically between shift-outs so a color change is
// never torn across a weave pair.
type FrameUpdate struct {
	Mask  uint32
	DataA uint32
	DataB uint32
}

const (
	holdFrameA  = 6 * time.Millisecond
	holdFrameB  = 19 * time.Millisecond
	idleSleep   = 250 * time.Millisecond
	updateQueue = 8
)

// Driver owns the shift register chain exclusively; all color changes
// arrive as FrameUpdate messages over its input channel (§5: "The shift
// register is solely owned by C3; all color changes arrive as messages").
type Driver struct {
	data, clock, latch, enable hwio.Pin
	log                        *logging.Scoped

	updates chan FrameUpdate

	frameA, frameB uint32
}

// New wires the driver to its four GPIO lines (DATA/CLOCK/LATCH/ENABLE,
// §6).
func New(data, clock, latch, enable hwio.Pin, log *logging.Scoped) (*Driver, error) {
	for _, p := range []hwio.Pin{data, clock, latch} {
		if err := p.ConfigureOutput(false); err != nil {
			return nil, err
		}
	}
	if enable != nil {
		if err := enable.ConfigureOutput(false); err != nil { // active-low enable, drive low = enabled
			return nil, err
		}
	}
	return &Driver{data: data, clock: clock, latch: latch, enable: enable,
		log: log, updates: make(chan FrameUpdate, updateQueue)}, nil
}

// Submit queues a frame update; never blocks the caller (best-effort,
// matching the FIFO/merge guarantee of §5 — the main loop never issues
// two contradictory commands in the same tick, so a full queue here
// indicates a stuck driver rather than lost updates under normal load).
func (d *Driver) Submit(u FrameUpdate) {
	select {
	case d.updates <- u:
	default:
		d.log.Warn("frame update queue full; dropping update mask=0x%08X", u.Mask)
	}
}

// Run is the dedicated task: apply pending updates, then shift frame_a,
// latch, hold ~6ms; shift frame_b, latch, hold ~19ms. When frame_a ==
// frame_b for the whole register (no yellow requested), sleep ~250ms
// between frames to cut CPU cost.
func (d *Driver) Run(ctx context.Context) {
	for {
		d.drainUpdates()

		if d.frameA == d.frameB {
			d.shiftOut(d.frameA)
			d.latchOut()
			if !sleepCtx(ctx, idleSleep) {
				return
			}
			continue
		}

		d.shiftOut(d.frameA)
		d.latchOut()
		if !sleepCtx(ctx, holdFrameA) {
			return
		}

		d.drainUpdates()

		d.shiftOut(d.frameB)
		d.latchOut()
		if !sleepCtx(ctx, holdFrameB) {
			return
		}
	}
}

func (d *Driver) drainUpdates() {
	for {
		select {
		case u := <-d.updates:
			d.frameA = (d.frameA & u.Mask) | u.DataA
			d.frameB = (d.frameB & u.Mask) | u.DataB
		default:
			return
		}
	}
}

// shiftOut clocks 32 bits MSB-first into the 74HC595 chain.
func (d *Driver) shiftOut(frame uint32) {
	for i := 31; i >= 0; i-- {
		bit := (frame >> uint(i)) & 1
		d.data.Set(bit != 0)
		d.clock.Set(true)
		d.clock.Set(false)
	}
}

func (d *Driver) latchOut() {
	d.latch.Set(true)
	d.latch.Set(false)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
