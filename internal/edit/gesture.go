// Package edit implements the interactive footprint edit machine: drag
// gestures interpreted as move/rotate/scale, each candidate validated
// against the buildable envelope before being committed.
package edit

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/sitefit/server/internal/geo"
)

// Mode identifies the active gesture.
type Mode string

const (
	ModeNone   Mode = "none"
	ModeMove   Mode = "move"
	ModeRotate Mode = "rotate"
	ModeScale  Mode = "scale"
)

// Target is the part of the footprint the pointer went down on.
type Target string

const (
	// TargetInterior starts a move.
	TargetInterior Target = "interior"
	// TargetCornerHandle starts a scale about the centroid.
	TargetCornerHandle Target = "corner_handle"
	// TargetRotateHandle starts a rotation about the centroid.
	TargetRotateHandle Target = "rotate_handle"
)

const (
	// Scale factors are clamped so a gesture cannot collapse the
	// footprint to a point or blow it past any plausible envelope.
	scaleClampMin = 0.2
	scaleClampMax = 5.0
)

// Action is the transient gesture state captured on pointer-down and
// discarded on pointer-up. Candidates are always derived from Original,
// never from the previous frame, so repeated moves cannot drift.
type Action struct {
	Mode            Mode
	StartPointer    orb.Point
	StartBearingDeg float64
	StartDistanceM  float64
	Pivot           orb.Point
	Original        orb.Polygon
}

// BeginGesture captures the gesture state for a pointer-down on the given
// target. Returns nil when the footprint is empty or the target is
// unknown.
func BeginGesture(target Target, pointer orb.Point, footprint orb.Polygon) *Action {
	if len(footprint) == 0 || len(footprint[0]) == 0 {
		return nil
	}

	pivot := geo.Centroid(footprint)
	a := &Action{
		StartPointer: pointer,
		Pivot:        pivot,
		Original:     footprint,
	}

	switch target {
	case TargetInterior:
		a.Mode = ModeMove
	case TargetCornerHandle:
		a.Mode = ModeScale
		a.StartDistanceM = geo.DistanceM(pivot, pointer)
		if a.StartDistanceM == 0 {
			return nil
		}
	case TargetRotateHandle:
		a.Mode = ModeRotate
		a.StartBearingDeg = geo.BearingDeg(pivot, pointer)
	default:
		return nil
	}
	return a
}

// ApplyGesture computes the candidate footprint for the current pointer
// position. The transform is derived from the pointer's relation to the
// gesture start and applied to the original footprint.
func ApplyGesture(a *Action, pointer orb.Point) orb.Polygon {
	if a == nil {
		return nil
	}

	switch a.Mode {
	case ModeMove:
		return geo.Translate(a.Original, a.StartPointer, pointer)
	case ModeRotate:
		delta := geo.BearingDeg(a.Pivot, pointer) - a.StartBearingDeg
		return geo.RotateAbout(a.Original, a.Pivot, delta)
	case ModeScale:
		factor := geo.DistanceM(a.Pivot, pointer) / a.StartDistanceM
		factor = math.Max(scaleClampMin, math.Min(scaleClampMax, factor))
		return geo.ScaleAbout(a.Original, a.Pivot, factor)
	default:
		return nil
	}
}
