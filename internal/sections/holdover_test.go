package sections

import (
	"context"
	"testing"
	"time"

	"github.com/hotrack/layoutctl/internal/hwio/hwiotest"
	"github.com/hotrack/layoutctl/internal/logging"
	"github.com/hotrack/layoutctl/internal/sensorbus"
	"github.com/hotrack/layoutctl/internal/turnout"
	"github.com/hotrack/layoutctl/types"
	"github.com/stretchr/testify/require"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLog() *logging.Scoped {
	return logging.New(discardWriter{}, logging.LevelError).Component("test")
}

type fakeAudio struct{ clips []string }

func (f *fakeAudio) PlayClip(name string, volumePct int) { f.clips = append(f.clips, name) }

type fakePulse struct{}

func (fakePulse) SetPulse(idx, pulse int) error { return nil }

func snap(bits uint32) sensorbus.Snapshot {
	return sensorbus.Snapshot{State1: uint16(bits), State2: uint16(bits >> 16)}
}

func newHoldoverFixture(t *testing.T) (*Holdover, *turnout.Table) {
	t.Helper()
	recs := []*turnout.Record{
		{Index: 1, Min: 0, Max: 100, Open: 100, Close: 0, Middle: 50, InitialCurrent: 0, Rate: 10000},
		{Index: 2, Min: 0, Max: 100, Open: 100, Close: 0, Middle: 50, InitialCurrent: 0, Rate: 10000},
		{Index: 3, Min: 0, Max: 100, Open: 100, Close: 0, Middle: 50, InitialCurrent: 0, Rate: 10000},
	}
	table, err := turnout.NewTable(recs)
	require.NoError(t, err)
	mover := turnout.NewMover(table, fakePulse{}, &turnout.AmbientTemp{}, testLog())

	pf := hwiotest.NewFakePinFactory()
	pin, _ := pf.ByNumber(10)
	relay, err := NewRelay(pin)
	require.NoError(t, err)

	audio := &fakeAudio{}
	cfg := HoldoverConfig{
		S1: 0, S2: 1, S3: 2, B1: 3, B2: 4, B3: 5,
		Inbound: map[types.Siding]RouteSpec{
			types.SidingB1: {Steps: []RouteStep{{Turnout: 1, Target: types.PosClose}}, Polarity: false},
			types.SidingB2: {Steps: []RouteStep{{Turnout: 1, Target: types.PosOpen}}, Polarity: true},
		},
		Outbound: map[types.Siding]RouteSpec{
			types.SidingB1: {Steps: []RouteStep{{Turnout: 2, Target: types.PosClose}}},
			types.SidingB2: {Steps: []RouteStep{{Turnout: 3, Target: types.PosOpen}}},
		},
	}
	h := NewHoldover(cfg, relay, mover, audio, nil, testLog())
	h.LastUsed = types.SidingB2
	return h, table
}

// TestHoldoverInboundAlternation is seed scenario S1.
func TestHoldoverInboundAlternation(t *testing.T) {
	h, table := newHoldoverFixture(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	h.Tick(context.Background(), snap(1<<0), now) // S1=1, B1=B2=0
	require.Equal(t, types.SidingB1, h.LastUsed)

	rec1, err := table.Get(1)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !rec1.InMotion() }, time.Second, time.Millisecond)
	require.Equal(t, rec1.Close, rec1.CurrentValue())

	// further S1=1 within 10s makes no additional writes (suppressed)
	h.LastUsed = types.SidingB2 // sentinel: if Tick re-routes it would flip back to B1
	h.Tick(context.Background(), snap(1<<0), now.Add(2*time.Second))
	require.Equal(t, types.SidingB2, h.LastUsed)
}

func TestHoldoverWreckDetection(t *testing.T) {
	h, _ := newHoldoverFixture(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	h.Tick(context.Background(), snap(1<<0|1<<3|1<<4), now) // S1, B1, B2 all active
	require.Equal(t, []string{"wreck"}, h.audioClips())
}

func (h *Holdover) audioClips() []string { return h.audio.(*fakeAudio).clips }

func TestHoldoverRouteLockAndButtons(t *testing.T) {
	h, _ := newHoldoverFixture(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	unlocked, err := h.RequestRoute(context.Background(), 0, now)
	require.NoError(t, err)
	require.False(t, unlocked)
	require.True(t, h.RouteLocked)

	// while locked, sensor activity is suppressed from routing logic
	h.Tick(context.Background(), snap(1<<0), now.Add(time.Second))
	require.True(t, h.RouteLocked)

	// any button unlocks
	unlocked, err = h.RequestRoute(context.Background(), 1, now.Add(2*time.Second))
	require.NoError(t, err)
	require.True(t, unlocked)
	require.False(t, h.RouteLocked)
}

func TestHoldoverRouteLockDrivesIndicator(t *testing.T) {
	h, _ := newHoldoverFixture(t)
	pf := hwiotest.NewFakePinFactory()
	pin, _ := pf.ByNumber(20)
	h.indicator = pin
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := h.RequestRoute(context.Background(), 0, now)
	require.NoError(t, err)
	require.True(t, pin.Get())

	_, err = h.RequestRoute(context.Background(), 1, now.Add(time.Second))
	require.NoError(t, err)
	require.False(t, pin.Get())
}

func TestHoldoverRouteLockExpires(t *testing.T) {
	h, _ := newHoldoverFixture(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := h.RequestRoute(context.Background(), 0, now)
	require.NoError(t, err)

	h.Tick(context.Background(), snap(0), now.Add(61*time.Second))
	require.False(t, h.RouteLocked)
}

