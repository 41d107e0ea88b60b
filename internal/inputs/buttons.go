package inputs

import (
	"context"
	"time"

	"github.com/hotrack/layoutctl/internal/logging"
)

// PressKind distinguishes a single tap from a double tap (§4.6).
type PressKind int

const (
	PressSingle PressKind = iota
	PressDouble
)

func (k PressKind) String() string {
	if k == PressDouble {
		return "double"
	}
	return "single"
}

// ButtonDoublePressWindow is the maximum gap between two presses of the
// same button that still counts as a double-press.
const ButtonDoublePressWindow = 1 * time.Second

const buttonScanPeriod = 50 * time.Millisecond

// PortReader reads the discrete-button input port as a bitmask, one bit
// per button index.
type PortReader interface {
	ReadButtons() (uint32, error)
}

// ButtonEvent is a classified 0->1 edge on one button bit. When is the
// edge's own timestamp, carried so a consumer needing a different
// re-press window (e.g. the midway lock-arming gesture's 500ms window,
// distinct from this scanner's 1s double-press window) can reclassify
// without re-reading hardware.
type ButtonEvent struct {
	Button int
	Kind   PressKind
	When   time.Time
}

// ButtonScanner owns the discrete-button input port exclusively (§5).
type ButtonScanner struct {
	port PortReader
	log  *logging.Scoped

	Events chan ButtonEvent // single-producer queue

	// Heartbeat, if set, is called once per scan tick; see
	// KeypadScanner.Heartbeat.
	Heartbeat func()

	prevLevels uint32
	lastPress  map[int]time.Time
}

// NewButtonScanner wires the scanner to its button port.
func NewButtonScanner(port PortReader, log *logging.Scoped) *ButtonScanner {
	return &ButtonScanner{
		port:      port,
		log:       log,
		Events:    make(chan ButtonEvent, 8),
		lastPress: map[int]time.Time{},
	}
}

// Run polls the button port every ~50ms and emits classified edges.
func (b *ButtonScanner) Run(ctx context.Context) {
	ticker := time.NewTicker(buttonScanPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		b.scanOnce(time.Now())
		if b.Heartbeat != nil {
			b.Heartbeat()
		}
	}
}

func (b *ButtonScanner) scanOnce(now time.Time) {
	levels, err := b.port.ReadButtons()
	if err != nil {
		b.log.Warn("button port read failed: %v", err)
		return
	}

	rising := levels &^ b.prevLevels
	b.prevLevels = levels

	for bit := 0; bit < 32; bit++ {
		if rising&(1<<uint(bit)) == 0 {
			continue
		}
		kind := PressSingle
		if last, ok := b.lastPress[bit]; ok && now.Sub(last) < ButtonDoublePressWindow {
			kind = PressDouble
		}
		b.lastPress[bit] = now

		select {
		case b.Events <- ButtonEvent{Button: bit, Kind: kind, When: now}:
		default:
			b.log.Warn("button event queue full; dropping button %d", bit)
		}
	}
}
