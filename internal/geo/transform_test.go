package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

// maxVertexDrift returns the largest per-vertex displacement between two
// polygons with identical structure.
func maxVertexDrift(a, b orb.Polygon) float64 {
	max := 0.0
	for i := range a {
		for j := range a[i] {
			if d := DistanceM(a[i][j], b[i][j]); d > max {
				max = d
			}
		}
	}
	return max
}

func TestTranslate(t *testing.T) {
	poly := rectPoly(testCenter, 10, 10)
	from := testCenter
	to := Destination(Destination(testCenter, 90, 8), 0, 6)

	moved := Translate(poly, from, to)

	wantShift := DistanceM(from, to)
	gotShift := DistanceM(Centroid(poly), Centroid(moved))
	if math.Abs(gotShift-wantShift) > 0.05 {
		t.Errorf("centroid moved %.3f m, expected %.3f m", gotShift, wantShift)
	}
	if math.Abs(AreaM2(moved)-AreaM2(poly)) > 0.5 {
		t.Errorf("translation changed area: %.2f -> %.2f", AreaM2(poly), AreaM2(moved))
	}
}

func TestRotateAboutPreservesShape(t *testing.T) {
	poly := rectPoly(testCenter, 10, 30)
	pivot := Centroid(poly)

	rotated := RotateAbout(poly, pivot, 90)
	if math.Abs(AreaM2(rotated)-AreaM2(poly)) > 0.5 {
		t.Errorf("rotation changed area: %.2f -> %.2f", AreaM2(poly), AreaM2(rotated))
	}
	if d := DistanceM(Centroid(rotated), pivot); d > 0.05 {
		t.Errorf("rotation moved centroid by %.3f m", d)
	}

	// The long axis (north-south) should now run east-west: the rotated
	// polygon must contain a point 12 m east of the pivot.
	if !ContainsPoint(rotated, Destination(pivot, 90, 12)) {
		t.Error("rotated polygon does not extend east along its new long axis")
	}
}

func TestRotateRoundTrip(t *testing.T) {
	poly := rectPoly(testCenter, 12, 20)
	pivot := Centroid(poly)

	back := RotateAbout(RotateAbout(poly, pivot, 37.5), pivot, -37.5)
	if drift := maxVertexDrift(poly, back); drift > 1e-3 {
		t.Errorf("rotate +37.5/-37.5 drifted vertices by %.6f m", drift)
	}
}

func TestScaleRoundTrip(t *testing.T) {
	poly := rectPoly(testCenter, 12, 20)
	pivot := Centroid(poly)

	tests := []struct {
		name   string
		factor float64
	}{
		{"grow", 1.8},
		{"shrink", 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			back := ScaleAbout(ScaleAbout(poly, pivot, tt.factor), pivot, 1/tt.factor)
			if drift := maxVertexDrift(poly, back); drift > 1e-3 {
				t.Errorf("scale %g then 1/%g drifted vertices by %.6f m", tt.factor, tt.factor, drift)
			}
		})
	}
}

func TestScaleAboutArea(t *testing.T) {
	poly := rectPoly(testCenter, 10, 10)
	pivot := Centroid(poly)

	scaled := ScaleAbout(poly, pivot, 2)
	if got, want := AreaM2(scaled), 4*AreaM2(poly); math.Abs(got-want) > 2 {
		t.Errorf("scaled area = %.2f, expected %.2f", got, want)
	}
}
