package signalreg

import "github.com/hotrack/layoutctl/types"

// Signal is the per-signal record from §3: the two consecutive
// shift-register bit positions it occupies and its currently displayed
// color. 16 positions total: 12 wayside, 2 grade-crossing, 2 spare.
type Signal struct {
	Index       int // 1-16
	BitLo, BitHi int // consecutive shift-register bit positions
	Current     types.Color
}

// colorBits returns the frame_a/frame_b bit pair for a color, per §4.3's
// table (Off=00/00, Red=01/01, Green=10/10, Yellow=01/10 - alternation
// realizes Yellow).
func colorBits(c types.Color) (a, b uint8) {
	switch c {
	case types.ColorRed:
		return 0b01, 0b01
	case types.ColorGreen:
		return 0b10, 0b10
	case types.ColorYellow:
		return 0b01, 0b10
	default:
		return 0b00, 0b00
	}
}

// UpdateFor builds the FrameUpdate that sets sig's two bits to color,
// leaving every other bit untouched (mask covers only this signal's bit
// pair).
func UpdateFor(sig Signal, color types.Color) FrameUpdate {
	a, b := colorBits(color)
	bits := uint32(0b11) << uint(sig.BitLo) // sig.BitHi == sig.BitLo+1
	dataA := uint32(a) << uint(sig.BitLo)
	dataB := uint32(b) << uint(sig.BitLo)
	return FrameUpdate{Mask: ^bits, DataA: dataA, DataB: dataB}
}

// ZeroAllUpdate clears every bit in both frames (§4.14 step 5: "shift in
// 32 zero bits and latch to dark all signal LEDs").
func ZeroAllUpdate() FrameUpdate {
	return FrameUpdate{Mask: 0, DataA: 0, DataB: 0}
}
