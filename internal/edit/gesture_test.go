package edit

import (
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/sitefit/server/internal/geo"
)

var testCenter = orb.Point{2.3522, 48.8566}

// rectAt builds a closed axis-aligned rectangle of the given metric
// dimensions centered on a point.
func rectAt(center orb.Point, widthM, heightM float64) orb.Polygon {
	north := geo.Destination(center, 0, heightM/2)
	south := geo.Destination(center, 180, heightM/2)
	ne := geo.Destination(north, 90, widthM/2)
	nw := geo.Destination(north, 270, widthM/2)
	se := geo.Destination(south, 90, widthM/2)
	sw := geo.Destination(south, 270, widthM/2)
	return orb.Polygon{orb.Ring{nw, ne, se, sw, nw}}
}

func maxVertexDriftM(a, b orb.Polygon) float64 {
	worst := 0.0
	for i := range a[0] {
		if d := geo.DistanceM(a[0][i], b[0][i]); d > worst {
			worst = d
		}
	}
	return worst
}

func TestBeginGestureTargets(t *testing.T) {
	fp := rectAt(testCenter, 10, 10)
	pointer := geo.Destination(testCenter, 45, 3)

	tests := []struct {
		name   string
		target Target
		mode   Mode
	}{
		{"interior starts move", TargetInterior, ModeMove},
		{"corner handle starts scale", TargetCornerHandle, ModeScale},
		{"rotate handle starts rotation", TargetRotateHandle, ModeRotate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := BeginGesture(tt.target, pointer, fp)
			if a == nil {
				t.Fatal("BeginGesture returned nil")
			}
			if a.Mode != tt.mode {
				t.Errorf("mode = %s, want %s", a.Mode, tt.mode)
			}
		})
	}
}

func TestBeginGestureRejectsDegenerate(t *testing.T) {
	if a := BeginGesture(TargetInterior, testCenter, orb.Polygon{}); a != nil {
		t.Error("expected nil action for an empty footprint")
	}
	if a := BeginGesture(Target("edge"), testCenter, rectAt(testCenter, 10, 10)); a != nil {
		t.Error("expected nil action for an unknown target")
	}
	// Pointer exactly on the centroid cannot anchor a scale.
	fp := rectAt(testCenter, 10, 10)
	if a := BeginGesture(TargetCornerHandle, geo.Centroid(fp), fp); a != nil {
		t.Error("expected nil action for a zero-distance scale anchor")
	}
}

func TestApplyGestureMove(t *testing.T) {
	fp := rectAt(testCenter, 10, 10)
	start := geo.Destination(testCenter, 0, 1)

	a := BeginGesture(TargetInterior, start, fp)
	moved := ApplyGesture(a, geo.Destination(start, 90, 7))

	wantCenter := geo.Destination(geo.Centroid(fp), 90, 7)
	if d := geo.DistanceM(geo.Centroid(moved), wantCenter); d > 0.01 {
		t.Errorf("moved centroid is %.3f m off the expected position", d)
	}
	if math.Abs(geo.AreaM2(moved)-geo.AreaM2(fp)) > 0.1 {
		t.Error("move changed the footprint area")
	}
}

func TestApplyGestureDerivesFromOriginal(t *testing.T) {
	// Repeated moves to the same pointer position must yield identical
	// results; incremental application would drift.
	fp := rectAt(testCenter, 10, 10)
	start := geo.Destination(testCenter, 0, 1)
	target := geo.Destination(start, 90, 5)

	a := BeginGesture(TargetInterior, start, fp)
	first := ApplyGesture(a, target)
	for i := 0; i < 50; i++ {
		ApplyGesture(a, geo.Destination(start, 45, float64(i)))
	}
	again := ApplyGesture(a, target)

	if drift := maxVertexDriftM(first, again); drift > 1e-9 {
		t.Errorf("repeated gestures drifted by %.12f m", drift)
	}
}

func TestApplyGestureRotate(t *testing.T) {
	fp := rectAt(testCenter, 10, 30)
	pivot := geo.Centroid(fp)
	handle := geo.Destination(pivot, 0, 20)

	a := BeginGesture(TargetRotateHandle, handle, fp)
	rotated := ApplyGesture(a, geo.Destination(pivot, 90, 20))

	// A 90 degree rotation turns the tall rectangle on its side: a point
	// 12 m east of the pivot is now inside, 12 m north no longer is.
	if !geo.ContainsPoint(rotated, geo.Destination(pivot, 90, 12)) {
		t.Error("rotated footprint does not extend east")
	}
	if geo.ContainsPoint(rotated, geo.Destination(pivot, 0, 12)) {
		t.Error("rotated footprint still extends north")
	}
	if math.Abs(geo.AreaM2(rotated)-geo.AreaM2(fp)) > 0.5 {
		t.Error("rotation changed the footprint area")
	}
}

func TestApplyGestureScaleClamped(t *testing.T) {
	fp := rectAt(testCenter, 10, 10)
	pivot := geo.Centroid(fp)
	handle := geo.Destination(pivot, 45, 5)
	baseArea := geo.AreaM2(fp)

	a := BeginGesture(TargetCornerHandle, handle, fp)

	tests := []struct {
		name       string
		pointerAtM float64
		wantFactor float64
	}{
		{"doubling", 10, 2.0},
		{"clamped above", 100, scaleClampMax},
		{"clamped below", 0.01, scaleClampMin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scaled := ApplyGesture(a, geo.Destination(pivot, 45, tt.pointerAtM))
			want := baseArea * tt.wantFactor * tt.wantFactor
			if math.Abs(geo.AreaM2(scaled)-want) > want*0.02 {
				t.Errorf("scaled area = %.2f m², want ~%.2f m²", geo.AreaM2(scaled), want)
			}
		})
	}
}

func TestApplyGestureNilAction(t *testing.T) {
	if got := ApplyGesture(nil, testCenter); got != nil {
		t.Errorf("ApplyGesture(nil) = %v, want nil", got)
	}
}
