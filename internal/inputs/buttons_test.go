package inputs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakePort struct {
	levels uint32
}

func (f *fakePort) ReadButtons() (uint32, error) { return f.levels, nil }

func TestButtonScanner_SingleThenDouble(t *testing.T) {
	port := &fakePort{}
	b := NewButtonScanner(port, silentLog())

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	port.levels = 1 << 3
	b.scanOnce(base)
	ev := <-b.Events
	require.Equal(t, ButtonEvent{Button: 3, Kind: PressSingle, When: base}, ev)

	// release, then re-press within the double window
	port.levels = 0
	b.scanOnce(base.Add(100 * time.Millisecond))
	port.levels = 1 << 3
	second := base.Add(400 * time.Millisecond)
	b.scanOnce(second)
	ev = <-b.Events
	require.Equal(t, ButtonEvent{Button: 3, Kind: PressDouble, When: second}, ev)
}

func TestButtonScanner_HeldEmitsOnce(t *testing.T) {
	port := &fakePort{levels: 1 << 1}
	b := NewButtonScanner(port, silentLog())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	b.scanOnce(now)
	<-b.Events

	// still held, same level: no further edge
	b.scanOnce(now.Add(50 * time.Millisecond))
	select {
	case v := <-b.Events:
		t.Fatalf("expected no re-emit while held, got %+v", v)
	default:
	}
}

func TestButtonScanner_SlowRepressIsSingle(t *testing.T) {
	port := &fakePort{}
	b := NewButtonScanner(port, silentLog())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	port.levels = 1
	b.scanOnce(base)
	require.Equal(t, ButtonEvent{Button: 0, Kind: PressSingle, When: base}, <-b.Events)

	port.levels = 0
	b.scanOnce(base.Add(2 * time.Second))
	port.levels = 1
	third := base.Add(3 * time.Second)
	b.scanOnce(third)
	require.Equal(t, ButtonEvent{Button: 0, Kind: PressSingle, When: third}, <-b.Events)
}
