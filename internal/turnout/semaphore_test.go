package turnout

import (
	"context"
	"testing"
	"time"

	"github.com/hotrack/layoutctl/internal/hwio/hwiotest"
	"github.com/hotrack/layoutctl/internal/logging"
	"github.com/hotrack/layoutctl/internal/signalreg"
	"github.com/hotrack/layoutctl/types"
	"github.com/stretchr/testify/require"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLog() *logging.Scoped {
	return logging.New(discardWriter{}, logging.LevelError).Component("test")
}

type fakeWriter struct{}

func (fakeWriter) SetPulse(idx, pulse int) error { return nil }

func newSemaphoreFixture(t *testing.T) (*Table, *Mover, *signalreg.Registry) {
	t.Helper()
	table, err := NewTable([]*Record{
		{Index: 9, Min: 100, Max: 200, Open: 200, Middle: 150, Close: 100, InitialCurrent: 100, Rate: 10000},
	})
	require.NoError(t, err)
	mover := NewMover(table, fakeWriter{}, &AmbientTemp{}, testLog())

	pf := hwiotest.NewFakePinFactory()
	data, _ := pf.ByNumber(1)
	clock, _ := pf.ByNumber(2)
	latch, _ := pf.ByNumber(3)
	enable, _ := pf.ByNumber(4)
	driver, err := signalreg.New(data, clock, latch, enable, testLog())
	require.NoError(t, err)
	registry := signalreg.NewRegistry(driver, []signalreg.Signal{{Index: 21, BitLo: 0, BitHi: 1}})

	return table, mover, registry
}

func TestSemaphoreController_MovesThenLampsOn(t *testing.T) {
	table, mover, registry := newSemaphoreFixture(t)
	sem := NewSemaphoreController(table, mover, registry, testLog(), []*SemaphoreRecord{
		{Index: 1, TurnoutIdx: 9, LampSignal: 21},
	})

	ctx := context.Background()
	require.NoError(t, sem.SetColor(ctx, 9, types.ColorGreen))

	rec, err := table.Get(9)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !rec.InMotion() }, time.Second, time.Millisecond)

	// drain the mover's completion and let the controller finish the color.
	select {
	case ev := <-mover.Completions:
		sem.HandleCompletion(ev)
	case <-time.After(time.Second):
		t.Fatal("no completion event")
	}

	require.Equal(t, types.ColorGreen, sem.byTNO[9].Current())
	cur, err := registry.Current(21)
	require.NoError(t, err)
	require.Equal(t, types.ColorGreen, cur)
}

func TestSemaphoreController_AlreadyInPositionIsSynchronous(t *testing.T) {
	table, mover, registry := newSemaphoreFixture(t)
	rec, err := table.Get(9)
	require.NoError(t, err)
	rec.setCurrent(rec.Close) // already at Close == Red's position

	sem := NewSemaphoreController(table, mover, registry, testLog(), []*SemaphoreRecord{
		{Index: 1, TurnoutIdx: 9, LampSignal: 21},
	})

	require.NoError(t, sem.SetColor(context.Background(), 9, types.ColorRed))
	require.Equal(t, types.ColorRed, sem.byTNO[9].Current())

	cur, err := registry.Current(21)
	require.NoError(t, err)
	require.Equal(t, types.ColorRed, cur)
}

