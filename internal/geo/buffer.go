package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// diskSegments is the number of vertices used to approximate a disk.
const diskSegments = 32

// InwardBuffer shrinks a polygon by offsetting every edge of its outer
// ring toward the interior by distanceM meters. Returns nil when the
// offset collapses the polygon (degenerate input, distance larger than
// the polygon's inradius, or a pinched outline that folds the offset
// ring back on itself).
//
// Holes are ignored: a buildable envelope is derived from the outer
// boundary only.
func InwardBuffer(poly orb.Polygon, distanceM float64) orb.Polygon {
	if len(poly) == 0 || len(poly[0]) < 4 {
		return nil
	}
	if distanceM == 0 {
		return clonePolygon(poly)
	}
	if distanceM < 0 || math.IsNaN(distanceM) || math.IsInf(distanceM, 0) {
		return nil
	}

	ring := openRing(poly[0])
	if len(ring) < 3 {
		return nil
	}

	frame := NewFrame(Centroid(poly))
	local := frame.RingToLocal(ring)

	originalArea := signedArea(local)
	if originalArea < 0 {
		reverseVecs(local)
		originalArea = -originalArea
	}
	if originalArea == 0 {
		return nil
	}

	// Offset each edge inward along its left normal (interior side of a
	// counterclockwise ring), then rebuild vertices as intersections of
	// consecutive offset lines (miter joins).
	n := len(local)
	offA := make([]Vec, n) // offset edge start
	offB := make([]Vec, n) // offset edge end
	for i := 0; i < n; i++ {
		a := local[i]
		b := local[(i+1)%n]
		dx := b.X - a.X
		dy := b.Y - a.Y
		length := math.Hypot(dx, dy)
		if length == 0 {
			return nil
		}
		nx := -dy / length
		ny := dx / length
		offA[i] = Vec{X: a.X + nx*distanceM, Y: a.Y + ny*distanceM}
		offB[i] = Vec{X: b.X + nx*distanceM, Y: b.Y + ny*distanceM}
	}

	shrunk := make([]Vec, n)
	for i := 0; i < n; i++ {
		prev := (i + n - 1) % n
		shrunk[i] = lineIntersection(offA[prev], offB[prev], offA[i], offB[i])
	}

	// Collapse detection: the result must keep its winding, lose area,
	// and stay inside the original outline.
	newArea := signedArea(shrunk)
	if newArea <= 1e-6 || newArea >= originalArea {
		return nil
	}
	for _, v := range shrunk {
		if !pointInLocalRing(local, v) {
			return nil
		}
	}

	// A pinched outline whose neck is narrower than twice the offset
	// folds the ring back on itself: the result can pass the area and
	// containment checks while covering ground within distanceM of the
	// far side of the neck. Every shrunk edge must keep the full offset
	// distance from every original edge.
	const clearanceSlackM = 0.01
	for i := 0; i < n; i++ {
		sa := shrunk[i]
		sb := shrunk[(i+1)%n]
		for j := 0; j < n; j++ {
			if segmentDistance(sa, sb, local[j], local[(j+1)%n]) < distanceM-clearanceSlackM {
				return nil
			}
		}
	}

	out := frame.RingToGeo(shrunk)
	out = append(out, out[0])
	return orb.Polygon{out}
}

// segmentDistance returns the minimum distance between segments ab and
// cd in the local frame.
func segmentDistance(a, b, c, d Vec) float64 {
	if vecSegmentsCross(a, b, c, d) {
		return 0
	}
	return math.Min(
		math.Min(pointSegmentDistance(a, c, d), pointSegmentDistance(b, c, d)),
		math.Min(pointSegmentDistance(c, a, b), pointSegmentDistance(d, a, b)),
	)
}

// pointSegmentDistance returns the distance from p to segment ab in the
// local frame.
func pointSegmentDistance(p, a, b Vec) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}

// vecSegmentsCross reports whether segments ab and cd properly intersect
// in the local frame. Shared endpoints and collinear touching do not
// count as crossing.
func vecSegmentsCross(a, b, c, d Vec) bool {
	o1 := edgeSide(a, b, c)
	o2 := edgeSide(a, b, d)
	o3 := edgeSide(c, d, a)
	o4 := edgeSide(c, d, b)
	return o1*o2 < 0 && o3*o4 < 0
}

// Disk builds a polygonal approximation of a geodesic circle around
// center with the given radius in meters.
func Disk(center orb.Point, radiusM float64) orb.Polygon {
	ring := make(orb.Ring, 0, diskSegments+1)
	for i := 0; i < diskSegments; i++ {
		bearing := float64(i) * 360.0 / diskSegments
		ring = append(ring, Destination(center, bearing, radiusM))
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// pointInLocalRing is a ray-casting point-in-polygon test in the local
// frame (open ring).
func pointInLocalRing(ring []Vec, p Vec) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi := ring[i]
		vj := ring[j]
		if (vi.Y > p.Y) != (vj.Y > p.Y) &&
			p.X < (vj.X-vi.X)*(p.Y-vi.Y)/(vj.Y-vi.Y)+vi.X {
			inside = !inside
		}
	}
	return inside
}

func clonePolygon(p orb.Polygon) orb.Polygon {
	out := make(orb.Polygon, len(p))
	for i, ring := range p {
		out[i] = make(orb.Ring, len(ring))
		copy(out[i], ring)
	}
	return out
}
