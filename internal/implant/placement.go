package implant

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/sitefit/server/internal/geo"
)

// Shape selects the footprint aspect ratio.
type Shape string

const (
	// ShapeSquare is a 1:1 rectangle.
	ShapeSquare Shape = "square"
	// ShapeBar is a 1:3 rectangle, long axis along the bearing.
	ShapeBar Shape = "bar"
)

const (
	// placementMaxAttempts bounds the shrink-and-retry loop; combined
	// with geometric decay the total work is bounded regardless of the
	// starting size.
	placementMaxAttempts = 12
	// placementShrinkFactor scales the rectangle dimensions between
	// attempts.
	placementShrinkFactor = 0.85
	// placementMinOverlapM2 accepts candidates that poke outside an
	// irregular envelope as long as they overlap it by more than this.
	placementMinOverlapM2 = 5.0
	// fallbackDiskRadiusM is the radius of the editable disk placed when
	// every rectangle attempt fails.
	fallbackDiskRadiusM = 6.0
)

// Footprint is a placed building outline.
type Footprint struct {
	Polygon  orb.Polygon `json:"polygon"`
	AreaM2   float64     `json:"area_m2"`
	Fallback bool        `json:"fallback"`
	Attempts int         `json:"attempts"`
}

// Place fits a footprint of roughly the target area into the envelope,
// oriented along bearingDeg. The degradation ladder is: direct fit,
// shrink-and-retry, 6 m disk fallback. Only a nil envelope yields nil, so
// the interactive workflow always has an editable shape to offer.
func Place(env *Envelope, areaTargetM2 float64, shape Shape, bearingDeg float64) *Footprint {
	if env == nil || len(env.Polygon) == 0 {
		return nil
	}
	if areaTargetM2 <= 0 || math.IsNaN(areaTargetM2) || math.IsInf(areaTargetM2, 0) {
		areaTargetM2 = fallbackDiskRadiusM * fallbackDiskRadiusM * math.Pi
	}

	center := geo.Centroid(env.Polygon)

	ratio := 1.0
	if shape == ShapeBar {
		ratio = 3.0
	}

	halfLong := math.Sqrt(areaTargetM2*ratio) / 2
	halfShort := math.Sqrt(areaTargetM2/ratio) / 2

	for attempt := 1; attempt <= placementMaxAttempts; attempt++ {
		candidate := rectangleAt(center, bearingDeg, halfLong, halfShort)

		if geo.ContainsPolygon(env.Polygon, candidate) ||
			geo.OverlapAreaM2(env.Polygon, candidate) > placementMinOverlapM2 {
			return &Footprint{
				Polygon:  candidate,
				AreaM2:   geo.AreaM2(candidate),
				Attempts: attempt,
			}
		}

		halfLong *= placementShrinkFactor
		halfShort *= placementShrinkFactor
	}

	disk := geo.Disk(center, fallbackDiskRadiusM)
	return &Footprint{
		Polygon:  disk,
		AreaM2:   geo.AreaM2(disk),
		Fallback: true,
		Attempts: placementMaxAttempts,
	}
}

// rectangleAt builds a closed rectangle centered on a point with its long
// axis along the given bearing.
func rectangleAt(center orb.Point, bearingDeg, halfLongM, halfShortM float64) orb.Polygon {
	head := geo.Destination(center, bearingDeg, halfLongM)
	tail := geo.Destination(center, bearingDeg+180, halfLongM)

	headRight := geo.Destination(head, bearingDeg+90, halfShortM)
	headLeft := geo.Destination(head, bearingDeg+270, halfShortM)
	tailRight := geo.Destination(tail, bearingDeg+90, halfShortM)
	tailLeft := geo.Destination(tail, bearingDeg+270, halfShortM)

	return orb.Polygon{orb.Ring{headLeft, headRight, tailRight, tailLeft, headLeft}}
}
