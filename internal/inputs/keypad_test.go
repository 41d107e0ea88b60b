package inputs

import (
	"testing"

	"github.com/hotrack/layoutctl/internal/logging"
	"github.com/stretchr/testify/require"
)

type fakeMatrix struct {
	driven  []int
	rowFunc func(col int) byte
}

func (f *fakeMatrix) DriveColumn(col int) error {
	f.driven = append(f.driven, col)
	return nil
}

func (f *fakeMatrix) ReadRows() (byte, error) {
	col := f.driven[len(f.driven)-1]
	return f.rowFunc(col), nil
}

func silentLog() *logging.Scoped {
	return logging.New(discardWriter{}, logging.LevelError).Component("test")
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestKeypadScanner_EmitsOnEdge(t *testing.T) {
	m := &fakeMatrix{rowFunc: func(col int) byte {
		if col == 2 {
			return 0x04 // row 2
		}
		return 0
	}}
	k := NewKeypadScanner(m, m, silentLog())

	k.scanOnce()
	require.Equal(t, byte('9'), <-k.Events)

	// held: no re-emit
	k.scanOnce()
	select {
	case v := <-k.Events:
		t.Fatalf("expected no re-emit while held, got %c", v)
	default:
	}
}

func TestKeypadScanner_MultiKeyDiscarded(t *testing.T) {
	m := &fakeMatrix{rowFunc: func(col int) byte {
		if col == 0 || col == 1 {
			return 0x01
		}
		return 0
	}}
	k := NewKeypadScanner(m, m, silentLog())
	k.scanOnce()
	select {
	case v := <-k.Events:
		t.Fatalf("expected multi-key pattern discarded, got %c", v)
	default:
	}
}

func TestSingleRow(t *testing.T) {
	_, ok := singleRow(0x00)
	require.False(t, ok)

	_, ok = singleRow(0x03)
	require.False(t, ok, "two bits set should be rejected")

	row, ok := singleRow(0x08)
	require.True(t, ok)
	require.Equal(t, 3, row)
}
