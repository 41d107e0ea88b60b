// Package status is the Status Snapshot writer (C13): a read-only
// presentation feed, published periodically by the main loop, consumed
// by something outside this repo's scope (§6). Every file is replaced
// atomically (create-temp, write, rename) so a reader never observes a
// half-written snapshot.
package status

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hotrack/layoutctl/internal/crossing"
	"github.com/hotrack/layoutctl/internal/logging"
	"github.com/hotrack/layoutctl/internal/sensorbus"
	"github.com/hotrack/layoutctl/internal/signalreg"
	"github.com/hotrack/layoutctl/internal/turnout"
	"github.com/hotrack/layoutctl/types"
)

// Writer publishes sensor.dat, grade.dat, and the per-signal/per-crossing
// overlay pointer files from one tick's sensor snapshot. Any field left
// nil simply contributes nothing to the published files.
type Writer struct {
	Dir string

	Turnouts  *turnout.Table
	Signals   *signalreg.Registry
	Crossings []*crossing.Controller

	Log *logging.Scoped
}

// Publish satisfies control.StatusPublisher. Each file write is
// independent and best-effort: a failure on one doesn't block the
// others, matching §7's tolerance for non-critical I/O.
func (w *Writer) Publish(ctx context.Context, iteration uint64, snap sensorbus.Snapshot) {
	if w.Turnouts != nil || w.Signals != nil {
		if err := w.writeAtomic("sensor.dat", w.sensorFile(snap)); err != nil {
			w.Log.Warn("status: sensor.dat write failed: %v", err)
		}
	}
	if len(w.Crossings) > 0 {
		if err := w.writeAtomic("grade.dat", w.gradeFile(snap)); err != nil {
			w.Log.Warn("status: grade.dat write failed: %v", err)
		}
	}
	w.writeOverlays(snap)
}

// sensorFile builds §6's sensor.dat: the combined 32-bit sensor word,
// one "Signal:" line listing every signal's color code, then one "TNN="
// line per turnout with its live servo state.
func (w *Writer) sensorFile(snap sensorbus.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sensor: %d\n", snap.Combined())

	if w.Signals != nil {
		signals := w.Signals.All()
		sort.Slice(signals, func(i, j int) bool { return signals[i].Index < signals[j].Index })
		parts := make([]string, 0, len(signals))
		for _, sig := range signals {
			parts = append(parts, fmt.Sprintf("L%02d=%s", sig.Index, colorCode(sig.Current)))
		}
		fmt.Fprintf(&b, "Signal: %s\n", strings.Join(parts, ","))
	}

	if w.Turnouts != nil {
		turnouts := w.Turnouts.All()
		sort.Slice(turnouts, func(i, j int) bool { return turnouts[i].Index < turnouts[j].Index })
		for _, rec := range turnouts {
			fmt.Fprintf(&b, "T%02d=%d:%d:%d:%d:%d:%d:%d:%s\n",
				rec.Index, rec.CurrentValue(), rec.Rate, rec.Open, rec.Middle, rec.Close, rec.Min, rec.Max, rec.Label)
		}
	}
	return b.String()
}

// gradeFile builds §6's grade.dat: one "GCNN:" line per crossing.
func (w *Writer) gradeFile(snap sensorbus.Snapshot) string {
	var b strings.Builder
	for _, c := range w.Crossings {
		s := c.Snapshot(snap)
		fmt.Fprintf(&b, "GC%02d: %s:%s:%s:%d:%d:%d\n",
			s.Index, s.State.String(), lampsCode(s.LampsOn), s.GateState,
			boolBit(s.AprW), boolBit(s.Road), boolBit(s.AprE))
	}
	return b.String()
}

// writeOverlays publishes one overlay pointer file per signal
// (Lnn-overlay.dat) and per crossing (GCnn-overlay.dat). No holdover,
// midway, wye, or yard-siding overlay is published: Writer holds no
// reference to those section controllers.
func (w *Writer) writeOverlays(snap sensorbus.Snapshot) {
	if w.Signals != nil {
		for _, sig := range w.Signals.All() {
			name := fmt.Sprintf("L%02d-overlay.dat", sig.Index)
			if err := w.writeAtomic(name, OverlayFor(OverlaySignal, sig.Current)+"\n"); err != nil {
				w.Log.Warn("status: %s write failed: %v", name, err)
			}
		}
	}
	for _, c := range w.Crossings {
		s := c.Snapshot(snap)
		name := fmt.Sprintf("GC%02d-overlay.dat", s.Index)
		if err := w.writeAtomic(name, OverlayFor(OverlayGrade, s.State)+"\n"); err != nil {
			w.Log.Warn("status: %s write failed: %v", name, err)
		}
	}
}

func colorCode(c types.Color) string {
	switch c {
	case types.ColorRed:
		return "Red"
	case types.ColorGreen:
		return "Grn"
	case types.ColorYellow:
		return "Yel"
	default:
		return "Off"
	}
}

func lampsCode(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func boolBit(v bool) int {
	if v {
		return 1
	}
	return 0
}

// writeAtomic replaces name (relative to Dir) with content via
// create-temp-then-rename, so a concurrent reader never sees a partial
// write.
func (w *Writer) writeAtomic(name, content string) error {
	tmp, err := os.CreateTemp(w.Dir, "."+name+"-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, filepath.Join(w.Dir, name))
}
