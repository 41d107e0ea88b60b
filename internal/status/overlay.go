package status

import (
	"fmt"
	"strings"

	"github.com/hotrack/layoutctl/types"
)

// OverlayKind selects which enumerated identifier set OverlayFor maps
// from.
type OverlayKind int

const (
	OverlaySignal OverlayKind = iota
	OverlayGrade
	OverlaySection // generic occupied/clear overlay (holdover/midway/wye/yard)
)

// OverlayFor derives the deterministic overlay image filename for one
// piece of display state (§9 "overlay filename derivation" design note).
// kind selects the enumerated identifier set; state must be a
// types.Color for OverlaySignal, a types.GradeState for OverlayGrade, or
// a bool (occupied) for OverlaySection. An unrecognized kind or a state
// of the wrong type returns "".
func OverlayFor(kind OverlayKind, state any) string {
	switch kind {
	case OverlaySignal:
		color, ok := state.(types.Color)
		if !ok {
			return ""
		}
		return fmt.Sprintf("signal-%s.png", strings.ToLower(colorCode(color)))
	case OverlayGrade:
		gs, ok := state.(types.GradeState)
		if !ok {
			return ""
		}
		return fmt.Sprintf("crossing-%s.png", strings.ToLower(gs.String()))
	case OverlaySection:
		occupied, ok := state.(bool)
		if !ok {
			return ""
		}
		if occupied {
			return "section-occupied.png"
		}
		return "section-clear.png"
	default:
		return ""
	}
}
