package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// EarthRadius is the WGS84 equatorial radius in meters
const EarthRadius = 6378137.0

const degToRad = math.Pi / 180.0

// Vec is a position in a local metric frame, in meters.
// X points east, Y points north.
type Vec struct {
	X float64
	Y float64
}

// Frame is a local equirectangular projection anchored at an origin point.
// Within a parcel-sized extent (tens to hundreds of meters) the distortion
// is negligible, which lets all planar geometry run in plain meters.
type Frame struct {
	origin orb.Point
	cosLat float64
}

// NewFrame creates a local metric frame anchored at origin.
func NewFrame(origin orb.Point) Frame {
	return Frame{
		origin: origin,
		cosLat: math.Cos(origin.Lat() * degToRad),
	}
}

// Origin returns the anchor point of the frame.
func (f Frame) Origin() orb.Point {
	return f.origin
}

// ToLocal converts a geographic point to local meters east/north of the origin.
func (f Frame) ToLocal(p orb.Point) Vec {
	return Vec{
		X: (p.Lon() - f.origin.Lon()) * degToRad * EarthRadius * f.cosLat,
		Y: (p.Lat() - f.origin.Lat()) * degToRad * EarthRadius,
	}
}

// ToGeo converts local meters back to a geographic point.
func (f Frame) ToGeo(v Vec) orb.Point {
	return orb.Point{
		f.origin.Lon() + v.X/(degToRad*EarthRadius*f.cosLat),
		f.origin.Lat() + v.Y/(degToRad*EarthRadius),
	}
}

// RingToLocal projects every point of a ring into the local frame.
func (f Frame) RingToLocal(r orb.Ring) []Vec {
	out := make([]Vec, len(r))
	for i, p := range r {
		out[i] = f.ToLocal(p)
	}
	return out
}

// RingToGeo converts local vertices back into a geographic ring.
func (f Frame) RingToGeo(vs []Vec) orb.Ring {
	out := make(orb.Ring, len(vs))
	for i, v := range vs {
		out[i] = f.ToGeo(v)
	}
	return out
}

// signedArea computes the shoelace area of a local ring in square meters.
// Positive for counterclockwise winding.
func signedArea(vs []Vec) float64 {
	if len(vs) < 3 {
		return 0
	}
	sum := 0.0
	for i := 0; i < len(vs); i++ {
		j := (i + 1) % len(vs)
		sum += vs[i].X*vs[j].Y - vs[j].X*vs[i].Y
	}
	return sum / 2
}
