package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

// testCenter is an arbitrary urban coordinate used by geometry tests.
var testCenter = orb.Point{2.3522, 48.8566}

// rectPoly builds a closed axis-aligned rectangle of the given metric
// dimensions centered on a point.
func rectPoly(center orb.Point, widthM, heightM float64) orb.Polygon {
	north := Destination(center, 0, heightM/2)
	south := Destination(center, 180, heightM/2)
	ne := Destination(north, 90, widthM/2)
	nw := Destination(north, 270, widthM/2)
	se := Destination(south, 90, widthM/2)
	sw := Destination(south, 270, widthM/2)
	return orb.Polygon{orb.Ring{nw, ne, se, sw, nw}}
}

func TestInwardBufferRectangle(t *testing.T) {
	parcel := rectPoly(testCenter, 20, 30)

	buffered := InwardBuffer(parcel, 5)
	if buffered == nil {
		t.Fatal("InwardBuffer(20x30, 5) returned nil, expected a polygon")
	}

	// 20x30 shrunk by 5 on every side is 10x20 = 200 m².
	area := AreaM2(buffered)
	if math.Abs(area-200) > 5 {
		t.Errorf("buffered area = %.2f m², expected ~200 m²", area)
	}

	if !ContainsPolygon(parcel, buffered) {
		t.Error("buffered polygon is not contained in the original parcel")
	}
}

func TestInwardBufferZeroEqualsInput(t *testing.T) {
	parcel := rectPoly(testCenter, 20, 30)

	buffered := InwardBuffer(parcel, 0)
	if buffered == nil {
		t.Fatal("InwardBuffer(parcel, 0) returned nil")
	}
	if len(buffered[0]) != len(parcel[0]) {
		t.Fatalf("vertex count = %d, expected %d", len(buffered[0]), len(parcel[0]))
	}
	for i, p := range parcel[0] {
		if DistanceM(p, buffered[0][i]) > 1e-6 {
			t.Errorf("vertex %d moved by %.9f m", i, DistanceM(p, buffered[0][i]))
		}
	}
}

func TestInwardBufferCollapse(t *testing.T) {
	tests := []struct {
		name     string
		poly     orb.Polygon
		distance float64
	}{
		{"distance exceeds half width", rectPoly(testCenter, 20, 30), 15},
		{"distance exceeds inradius", rectPoly(testCenter, 8, 100), 4.5},
		{"empty polygon", orb.Polygon{}, 5},
		{"negative distance", rectPoly(testCenter, 20, 30), -1},
		{"nan distance", rectPoly(testCenter, 20, 30), math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InwardBuffer(tt.poly, tt.distance); got != nil {
				t.Errorf("InwardBuffer = %v, expected nil", got)
			}
		})
	}
}

func TestInwardBufferPinchedParcel(t *testing.T) {
	// Two 20x20 m lobes joined by a 4 m wide corridor. A 3 m offset
	// cannot round the corridor: a naive miter offset folds the ring
	// back on itself and reports ground near the neck as buildable.
	// The buffer must collapse to nil instead.
	origin := Destination(Destination(testCenter, 270, 25), 180, 10)
	pt := func(eastM, northM float64) orb.Point {
		return Destination(Destination(origin, 90, eastM), 0, northM)
	}
	parcel := orb.Polygon{orb.Ring{
		pt(0, 0), pt(20, 0), pt(20, 8), pt(30, 8), pt(30, 0), pt(50, 0),
		pt(50, 20), pt(30, 20), pt(30, 12), pt(20, 12), pt(20, 20), pt(0, 20),
		pt(0, 0),
	}}

	if got := InwardBuffer(parcel, 3); got != nil {
		t.Errorf("InwardBuffer(pinched, 3) = %v, expected nil", got)
		if ContainsPoint(got, pt(25, 10)) {
			t.Error("envelope covers the corridor center, 2 m from the parcel boundary")
		}
	}

	// An offset that fits through the corridor still succeeds.
	small := InwardBuffer(parcel, 1)
	if small == nil {
		t.Fatal("InwardBuffer(pinched, 1) returned nil, expected a polygon")
	}
	if !ContainsPolygon(parcel, small) {
		t.Error("buffered polygon is not contained in the original parcel")
	}
}

func TestInwardBufferTriangle(t *testing.T) {
	a := Destination(testCenter, 0, 30)
	b := Destination(testCenter, 120, 30)
	c := Destination(testCenter, 240, 30)
	tri := orb.Polygon{orb.Ring{a, b, c, a}}

	buffered := InwardBuffer(tri, 3)
	if buffered == nil {
		t.Fatal("InwardBuffer(triangle, 3) returned nil")
	}
	if !ContainsPolygon(tri, buffered) {
		t.Error("buffered triangle escapes the original")
	}
	if AreaM2(buffered) >= AreaM2(tri) {
		t.Errorf("buffered area %.2f not smaller than original %.2f", AreaM2(buffered), AreaM2(tri))
	}
}

func TestDisk(t *testing.T) {
	disk := Disk(testCenter, 6)

	want := math.Pi * 36
	area := AreaM2(disk)
	// A 32-gon undershoots the circle slightly.
	if area < want*0.95 || area > want {
		t.Errorf("disk area = %.2f m², expected within [%.2f, %.2f]", area, want*0.95, want)
	}

	if !ContainsPoint(disk, testCenter) {
		t.Error("disk does not contain its center")
	}
}
