package status

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hotrack/layoutctl/internal/crossing"
	"github.com/hotrack/layoutctl/internal/hwio/hwiotest"
	"github.com/hotrack/layoutctl/internal/logging"
	"github.com/hotrack/layoutctl/internal/sensorbus"
	"github.com/hotrack/layoutctl/internal/signalreg"
	"github.com/hotrack/layoutctl/internal/turnout"
	"github.com/hotrack/layoutctl/types"
	"github.com/stretchr/testify/require"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLog() *logging.Scoped {
	return logging.New(discardWriter{}, logging.LevelError).Component("test")
}

func newTestDriver(t *testing.T) *signalreg.Driver {
	t.Helper()
	pf := hwiotest.NewFakePinFactory()
	data, _ := pf.ByNumber(1)
	clock, _ := pf.ByNumber(2)
	latch, _ := pf.ByNumber(3)
	enable, _ := pf.ByNumber(4)
	driver, err := signalreg.New(data, clock, latch, enable, testLog())
	require.NoError(t, err)
	return driver
}

func TestWriterPublishesSensorFile(t *testing.T) {
	driver := newTestDriver(t)
	registry := signalreg.NewRegistry(driver, []signalreg.Signal{{Index: 1}, {Index: 2}})
	require.NoError(t, registry.SetColor(1, types.ColorGreen))

	table, err := turnout.NewTable([]*turnout.Record{
		{Index: 1, Label: "main", Min: 0, Max: 100, Open: 100, Close: 0, Middle: 50, InitialCurrent: 100, Rate: 10000},
	})
	require.NoError(t, err)

	dir := t.TempDir()
	w := &Writer{Dir: dir, Turnouts: table, Signals: registry, Log: testLog()}

	snap := sensorbus.Snapshot{State1: 0x0001, State2: 0x0000}
	w.Publish(context.Background(), 1, snap)

	data, err := os.ReadFile(filepath.Join(dir, "sensor.dat"))
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, "Sensor: 1\n")
	require.Contains(t, content, "Signal: L01=Grn,L02=Off\n")
	require.Contains(t, content, "T01=100:10000:100:50:0:0:100:main\n")

	overlay, err := os.ReadFile(filepath.Join(dir, "L01-overlay.dat"))
	require.NoError(t, err)
	require.Equal(t, "signal-grn.png\n", string(overlay))
}

func TestWriterPublishesGradeFile(t *testing.T) {
	rec := &crossing.Record{Index: 3, AprE: 0, Road: 1, AprW: 2, GateTurnouts: nil}
	c := crossing.NewController(rec, nil, nil, nil, testLog())

	dir := t.TempDir()
	w := &Writer{Dir: dir, Crossings: []*crossing.Controller{c}, Log: testLog()}

	snap := sensorbus.Snapshot{State1: 0b0000_0000_0000_0011} // bits 0,1 set
	w.Publish(context.Background(), 1, snap)

	data, err := os.ReadFile(filepath.Join(dir, "grade.dat"))
	require.NoError(t, err)
	require.Contains(t, string(data), "GC03: idle:off:none:0:1:1\n")

	overlay, err := os.ReadFile(filepath.Join(dir, "GC03-overlay.dat"))
	require.NoError(t, err)
	require.Equal(t, "crossing-idle.png\n", string(overlay))
}

func TestWriterSkipsEmptyCollaboratorsWithoutError(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir, Log: testLog()}
	require.NotPanics(t, func() { w.Publish(context.Background(), 1, sensorbus.Snapshot{}) })

	_, err := os.Stat(filepath.Join(dir, "sensor.dat"))
	require.True(t, os.IsNotExist(err))
}

func TestWriterAtomicReplaceOverwritesPriorContent(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir, Log: testLog()}

	require.NoError(t, w.writeAtomic("x.dat", "first\n"))
	require.NoError(t, w.writeAtomic("x.dat", "second\n"))

	data, err := os.ReadFile(filepath.Join(dir, "x.dat"))
	require.NoError(t, err)
	require.Equal(t, "second\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestOverlayFor(t *testing.T) {
	require.Equal(t, "signal-red.png", OverlayFor(OverlaySignal, types.ColorRed))
	require.Equal(t, "crossing-approach.png", OverlayFor(OverlayGrade, types.GradeApproach))
	require.Equal(t, "section-occupied.png", OverlayFor(OverlaySection, true))
	require.Equal(t, "section-clear.png", OverlayFor(OverlaySection, false))
	require.Equal(t, "", OverlayFor(OverlaySignal, "not-a-color"))
}
