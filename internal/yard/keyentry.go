package yard

import "github.com/hotrack/layoutctl/internal/hwio"

// KeyEntry accumulates the two hex digits an operator keys on the yard
// keypad into one route key string (§4.11): the first-entry indicator
// LED lights on the first digit and clears once the pair completes.
type KeyEntry struct {
	indicator hwio.Pin

	first    byte
	hasFirst bool
}

// NewKeyEntry wires the accumulator to its first-entry indicator LED.
func NewKeyEntry(indicator hwio.Pin) *KeyEntry {
	return &KeyEntry{indicator: indicator}
}

// Feed accepts one keypad character. It returns (key, true) once two
// digits have been accumulated, or ("", false) after the first.
func (k *KeyEntry) Feed(ch byte) (key string, complete bool) {
	if !k.hasFirst {
		k.first = ch
		k.hasFirst = true
		if k.indicator != nil {
			k.indicator.Set(true)
		}
		return "", false
	}
	key = string([]byte{k.first, ch})
	k.hasFirst = false
	if k.indicator != nil {
		k.indicator.Set(false)
	}
	return key, true
}

// Clear resets any partial entry and forces the indicator LED off,
// for shutdown (§4.14 step 6).
func (k *KeyEntry) Clear() {
	k.hasFirst = false
	if k.indicator != nil {
		k.indicator.Set(false)
	}
}
