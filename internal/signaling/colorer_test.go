package signaling

import (
	"context"
	"testing"

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

func newRegistry(t *testing.T, signals []signalreg.Signal) *signalreg.Registry {
	t.Helper()
	pf := hwiotest.NewFakePinFactory()
	data, _ := pf.ByNumber(1)
	clock, _ := pf.ByNumber(2)
	latch, _ := pf.ByNumber(3)
	enable, _ := pf.ByNumber(4)
	driver, err := signalreg.New(data, clock, latch, enable, testLog())
	require.NoError(t, err)
	return signalreg.NewRegistry(driver, signals)
}

type noSemaphores struct{}

func (noSemaphores) Has(int) bool                                     { return false }
func (noSemaphores) SetColor(context.Context, int, types.Color) error { return nil }

// TestSignalPriorityUnderMultiBlockOccupancy is seed scenario S3: occupied
// blocks {B03, B04} produce L01=Red, L02=Red, L03=Red, L04=Red, L05=Green,
// L06=Yellow, L07=Green, L08=Yellow, L09-L12=Off.
func TestSignalPriorityUnderMultiBlockOccupancy(t *testing.T) {
	var signals []signalreg.Signal
	for i := 1; i <= 12; i++ {
		signals = append(signals, signalreg.Signal{Index: i, BitLo: (i - 1) * 2, BitHi: (i-1)*2 + 1})
	}
	registry := newRegistry(t, signals)

	rules := []BlockRule{
		{Block: 3, Red: []int{1, 2, 3, 4}, Green: []int{5}, Yellow: []int{6}},
		{Block: 4, Yellow: []int{2, 8}, Red: []int{3, 4}, Green: []int{7}},
	}

	c := NewColorer(rules, registry, noSemaphores{}, nil, testLog())
	c.Recompute(context.Background(), map[int]bool{3: true, 4: true})

	expect := map[int]types.Color{
		1: types.ColorRed, 2: types.ColorRed, 3: types.ColorRed, 4: types.ColorRed,
		5: types.ColorGreen, 6: types.ColorYellow, 7: types.ColorGreen, 8: types.ColorYellow,
		9: types.ColorOff, 10: types.ColorOff, 11: types.ColorOff, 12: types.ColorOff,
	}
	for sig, want := range expect {
		got, err := registry.Current(sig)
		require.NoError(t, err)
		require.Equalf(t, want, got, "signal %d", sig)
	}
}

func TestSignalColoring_NoOccupancyIsAllOff(t *testing.T) {
	signals := []signalreg.Signal{{Index: 1, BitLo: 0, BitHi: 1}}
	registry := newRegistry(t, signals)
	c := NewColorer([]BlockRule{{Block: 1, Red: []int{1}}}, registry, noSemaphores{}, nil, testLog())
	c.Recompute(context.Background(), map[int]bool{})

	got, err := registry.Current(1)
	require.NoError(t, err)
	require.Equal(t, types.ColorOff, got)
}

func TestSignalColoring_DispatchesSemaphoreSeparately(t *testing.T) {
	signals := []signalreg.Signal{{Index: 9, BitLo: 16, BitHi: 17}}
	registry := newRegistry(t, signals)

	fake := &fakeSemaphores{}
	rules := []BlockRule{{Block: 9, Red: []int{9}}}
	c := NewColorer(rules, registry, fake, map[int]int{9: 21}, testLog())
	c.Recompute(context.Background(), map[int]bool{9: true})

	require.Equal(t, 21, fake.lastTurnout)
	require.Equal(t, types.ColorRed, fake.lastColor)

	// the wayside registry itself must NOT have been touched for signal 9
	cur, err := registry.Current(9)
	require.NoError(t, err)
	require.Equal(t, types.ColorOff, cur)
}

type fakeSemaphores struct {
	lastTurnout int
	lastColor   types.Color
}

func (f *fakeSemaphores) Has(turnoutIdx int) bool { return true }
func (f *fakeSemaphores) SetColor(_ context.Context, turnoutIdx int, color types.Color) error {
	f.lastTurnout, f.lastColor = turnoutIdx, color
	return nil
}
