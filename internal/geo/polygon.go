package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// AreaM2 returns the geodesic area of a geometry in square meters.
func AreaM2(g orb.Geometry) float64 {
	return math.Abs(orbgeo.Area(g))
}

// Centroid returns the area centroid of a polygon.
func Centroid(p orb.Polygon) orb.Point {
	c, _ := planar.CentroidArea(p)
	return c
}

// DistanceM returns the geodesic distance between two points in meters.
func DistanceM(a, b orb.Point) float64 {
	return orbgeo.Distance(a, b)
}

// BearingDeg returns the compass bearing from a to b in degrees.
func BearingDeg(a, b orb.Point) float64 {
	return orbgeo.Bearing(a, b)
}

// Destination returns the point at the given bearing (degrees) and
// distance (meters) from p.
func Destination(p orb.Point, bearingDeg, distanceM float64) orb.Point {
	return orbgeo.PointAtBearingAndDistance(p, bearingDeg, distanceM)
}

// ContainsPoint reports whether the polygon contains the point.
func ContainsPoint(poly orb.Polygon, p orb.Point) bool {
	return planar.PolygonContains(poly, p)
}

// ContainsPolygon reports whether inner lies entirely within outer.
// Every vertex of inner must be inside outer and no edge of inner may
// cross an edge of outer; the vertex test alone is not enough around
// concave outlines.
func ContainsPolygon(outer, inner orb.Polygon) bool {
	if len(outer) == 0 || len(inner) == 0 {
		return false
	}
	for _, p := range inner[0] {
		if !planar.PolygonContains(outer, p) {
			return false
		}
	}
	innerRing := inner[0]
	outerRing := outer[0]
	for i := 0; i < len(innerRing)-1; i++ {
		for j := 0; j < len(outerRing)-1; j++ {
			if segmentsCross(innerRing[i], innerRing[i+1], outerRing[j], outerRing[j+1]) {
				return false
			}
		}
	}
	return true
}

// OverlapAreaM2 returns the intersection area in square meters between a
// subject polygon and a convex clip polygon. The clip polygon must be
// convex (placement candidates are rectangles or regular disks); the
// subject may be any simple polygon.
func OverlapAreaM2(subject, convexClip orb.Polygon) float64 {
	if len(subject) == 0 || len(convexClip) == 0 {
		return 0
	}
	frame := NewFrame(Centroid(convexClip))
	out := frame.RingToLocal(openRing(subject[0]))
	clip := frame.RingToLocal(openRing(convexClip[0]))
	if signedArea(clip) < 0 {
		reverseVecs(clip)
	}

	// Sutherland-Hodgman: clip the subject against every edge of the
	// convex clip ring.
	for i := 0; i < len(clip); i++ {
		a := clip[i]
		b := clip[(i+1)%len(clip)]
		out = clipAgainstEdge(out, a, b)
		if len(out) == 0 {
			return 0
		}
	}
	return math.Abs(signedArea(out))
}

// DistanceToSegmentM returns the perpendicular distance in meters from p
// to the segment ab.
func DistanceToSegmentM(p, a, b orb.Point) float64 {
	frame := NewFrame(p)
	va := frame.ToLocal(a)
	vb := frame.ToLocal(b)

	dx := vb.X - va.X
	dy := vb.Y - va.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(va.X, va.Y)
	}
	// Projection parameter of the origin (p) onto the segment, clamped
	// so points beyond the endpoints measure to the endpoint.
	t := -(va.X*dx + va.Y*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	cx := va.X + t*dx
	cy := va.Y + t*dy
	return math.Hypot(cx, cy)
}

// clipAgainstEdge keeps the part of the subject ring on the interior
// (left) side of the directed edge ab of a counterclockwise clip ring.
func clipAgainstEdge(subject []Vec, a, b Vec) []Vec {
	var out []Vec
	for i := 0; i < len(subject); i++ {
		cur := subject[i]
		prev := subject[(i+len(subject)-1)%len(subject)]

		curIn := edgeSide(a, b, cur) >= 0
		prevIn := edgeSide(a, b, prev) >= 0

		if curIn {
			if !prevIn {
				out = append(out, lineIntersection(prev, cur, a, b))
			}
			out = append(out, cur)
		} else if prevIn {
			out = append(out, lineIntersection(prev, cur, a, b))
		}
	}
	return out
}

func edgeSide(a, b, p Vec) float64 {
	return (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
}

// lineIntersection returns the intersection of lines (p1,p2) and (p3,p4).
// Callers guarantee the lines are not parallel.
func lineIntersection(p1, p2, p3, p4 Vec) Vec {
	d := (p1.X-p2.X)*(p3.Y-p4.Y) - (p1.Y-p2.Y)*(p3.X-p4.X)
	if d == 0 {
		return p2
	}
	t := ((p1.X-p3.X)*(p3.Y-p4.Y) - (p1.Y-p3.Y)*(p3.X-p4.X)) / d
	return Vec{
		X: p1.X + t*(p2.X-p1.X),
		Y: p1.Y + t*(p2.Y-p1.Y),
	}
}

// segmentsCross reports whether segments ab and cd properly intersect.
// Shared endpoints and collinear touching do not count as crossing.
func segmentsCross(a, b, c, d orb.Point) bool {
	o1 := orient(a, b, c)
	o2 := orient(a, b, d)
	o3 := orient(c, d, a)
	o4 := orient(c, d, b)
	return o1*o2 < 0 && o3*o4 < 0
}

func orient(a, b, c orb.Point) float64 {
	return (b.Lon()-a.Lon())*(c.Lat()-a.Lat()) - (b.Lat()-a.Lat())*(c.Lon()-a.Lon())
}

// openRing strips the closing duplicate vertex from a ring, if present.
func openRing(r orb.Ring) orb.Ring {
	if len(r) > 1 && r[0] == r[len(r)-1] {
		return r[:len(r)-1]
	}
	return r
}

func reverseVecs(vs []Vec) {
	for i, j := 0, len(vs)-1; i < j; i, j = i+1, j-1 {
		vs[i], vs[j] = vs[j], vs[i]
	}
}
