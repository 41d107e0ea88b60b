package crossing

import (
	"context"
	"testing"
	"time"

	"github.com/hotrack/layoutctl/internal/hwio"
	"github.com/hotrack/layoutctl/internal/hwio/hwiotest"
	"github.com/hotrack/layoutctl/internal/logging"
	"github.com/hotrack/layoutctl/internal/sensorbus"
	"github.com/hotrack/layoutctl/internal/signalreg"
	"github.com/hotrack/layoutctl/internal/turnout"
	"github.com/hotrack/layoutctl/types"
	"github.com/stretchr/testify/require"
)

func testLog() *logging.Scoped {
	return logging.New(discardWriter{}, logging.LevelError).Component("test")
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestExpander(t *testing.T) *sensorbus.Expander {
	t.Helper()
	fi2c := hwiotest.NewFakeI2C()
	bus := hwio.NewBus(fi2c, testLog())
	exp := sensorbus.NewExpander(0x23, bus, testLog())
	require.NoError(t, exp.Init(sensorbus.ChipConfig{}))
	return exp
}

func newTestRegistry(t *testing.T) (*signalreg.Registry, *signalreg.Driver) {
	t.Helper()
	pf := hwiotest.NewFakePinFactory()
	data, _ := pf.ByNumber(1)
	clock, _ := pf.ByNumber(2)
	latch, _ := pf.ByNumber(3)
	enable, _ := pf.ByNumber(4)
	driver, err := signalreg.New(data, clock, latch, enable, testLog())
	require.NoError(t, err)
	reg := signalreg.NewRegistry(driver, []signalreg.Signal{
		{Index: 13, BitLo: 24, BitHi: 25},
		{Index: 14, BitLo: 26, BitHi: 27},
	})
	return reg, driver
}

func fakePulseWriterTurnouts(t *testing.T, gateIdx ...int) *turnout.Table {
	t.Helper()
	var recs []*turnout.Record
	for _, idx := range gateIdx {
		recs = append(recs, &turnout.Record{
			Index: idx, Min: 100, Max: 200, Open: 200, Close: 100, Middle: 150,
			InitialCurrent: 100, IsGateOrSemaphore: false, Rate: 5000,
		})
	}
	tbl, err := turnout.NewTable(recs)
	require.NoError(t, err)
	return tbl
}

type fakePulseWriter struct{ failIdx map[int]bool }

func (f *fakePulseWriter) SetPulse(idx, pulse int) error { return nil }

func newMover(t *testing.T, table *turnout.Table) *turnout.Mover {
	t.Helper()
	temp := &turnout.AmbientTemp{}
	return turnout.NewMover(table, &fakePulseWriter{}, temp, testLog())
}

func TestCrossingHappyPath(t *testing.T) {
	exp := newTestExpander(t)
	reg, _ := newTestRegistry(t)
	table := fakePulseWriterTurnouts(t, 31)
	mover := newMover(t, table)

	lamp := NewLampTask(13, BellBit{Chip: exp, Bit: 0}, BellBit{Chip: exp, Bit: 1}, reg, testLog())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go lamp.Run(ctx)

	rec := &Record{Index: 2, AprE: 0, Road: 1, AprW: 2, LampSignal: 13, GateTurnouts: []int{31}}
	ctl := NewController(rec, lamp, table, mover, testLog())

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// aprE active: idle -> gateLower
	ctl.Tick(ctx, snap(1<<0), now)
	require.Equal(t, types.GradeGateLower, ctl.State())

	// gateDelay elapsed: gateLower -> approach, gate commanded close
	now = now.Add(600 * time.Millisecond)
	ctl.Tick(ctx, snap(0), now)
	require.Equal(t, types.GradeApproach, ctl.State())

	gateRec, err := table.Get(31)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !gateRec.InMotion() }, time.Second, time.Millisecond)
	require.Equal(t, gateRec.Close, gateRec.CurrentValue())

	// road active: approach -> road
	now = now.Add(100 * time.Millisecond)
	ctl.Tick(ctx, snap(1<<1), now)
	require.Equal(t, types.GradeRoad, ctl.State())

	// all sensors clear, roadTimer elapses: road -> gateRaise
	now = now.Add(2 * time.Second)
	ctl.Tick(ctx, snap(0), now)
	require.Equal(t, types.GradeGateRaise, ctl.State())

	require.Eventually(t, func() bool { return !gateRec.InMotion() }, time.Second, time.Millisecond)
	require.Equal(t, gateRec.Open, gateRec.CurrentValue())

	// gate idle: gateRaise -> depart
	ctl.Tick(ctx, snap(0), now)
	require.Equal(t, types.GradeDepart, ctl.State())

	// depTimer elapses: depart -> idle
	now = now.Add(2 * time.Second)
	ctl.Tick(ctx, snap(0), now)
	require.Equal(t, types.GradeIdle, ctl.State())
}

func TestCrossingBackupFromDepart(t *testing.T) {
	exp := newTestExpander(t)
	reg, _ := newTestRegistry(t)
	table := fakePulseWriterTurnouts(t) // no gates
	mover := newMover(t, table)

	lamp := NewLampTask(14, BellBit{Chip: exp, Bit: 2}, BellBit{Chip: exp, Bit: 3}, reg, testLog())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go lamp.Run(ctx)

	rec := &Record{Index: 3, AprE: 3, Road: 4, AprW: 5, LampSignal: 14}
	ctl := NewController(rec, lamp, table, mover, testLog())
	ctl.State()

	rec.State = types.GradeDepart
	rec.depTimer = time.Date(2026, 1, 1, 0, 0, 10, 0, time.UTC)

	now := time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC)
	ctl.Tick(ctx, snap(1<<4), now) // road active mid-depart
	require.Equal(t, types.GradeIdle, ctl.State())
}

func snap(bits uint32) sensorbus.Snapshot {
	return sensorbus.Snapshot{State1: uint16(bits), State2: uint16(bits >> 16)}
}
