package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// Translate shifts every vertex of a polygon by the displacement between
// two points (from -> to).
func Translate(poly orb.Polygon, from, to orb.Point) orb.Polygon {
	frame := NewFrame(from)
	delta := frame.ToLocal(to)
	return mapPolygon(poly, frame, func(v Vec) Vec {
		return Vec{X: v.X + delta.X, Y: v.Y + delta.Y}
	})
}

// RotateAbout rotates a polygon around a pivot by the given angle in
// degrees. Positive angles rotate clockwise, matching compass bearings.
func RotateAbout(poly orb.Polygon, pivot orb.Point, angleDeg float64) orb.Polygon {
	frame := NewFrame(pivot)
	sin := math.Sin(angleDeg * degToRad)
	cos := math.Cos(angleDeg * degToRad)
	return mapPolygon(poly, frame, func(v Vec) Vec {
		return Vec{
			X: v.X*cos + v.Y*sin,
			Y: -v.X*sin + v.Y*cos,
		}
	})
}

// ScaleAbout scales a polygon around a pivot by the given factor.
func ScaleAbout(poly orb.Polygon, pivot orb.Point, factor float64) orb.Polygon {
	frame := NewFrame(pivot)
	return mapPolygon(poly, frame, func(v Vec) Vec {
		return Vec{X: v.X * factor, Y: v.Y * factor}
	})
}

// mapPolygon applies a local-frame transform to every vertex of every
// ring of a polygon, returning a new polygon.
func mapPolygon(poly orb.Polygon, frame Frame, fn func(Vec) Vec) orb.Polygon {
	out := make(orb.Polygon, len(poly))
	for i, ring := range poly {
		newRing := make(orb.Ring, len(ring))
		for j, p := range ring {
			newRing[j] = frame.ToGeo(fn(frame.ToLocal(p)))
		}
		out[i] = newRing
	}
	return out
}
