// Package implant derives legal buildable envelopes from parcel geometry
// and resolved zoning constraints, places building footprints inside
// them, and validates proposed projects.
package implant

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/sitefit/server/internal/geo"
	"github.com/sitefit/server/internal/ruleset"
)

// EnvelopeMode records which setback regime applied to the parcel.
type EnvelopeMode string

const (
	// ModeUniform means a single setback distance applies to every edge.
	ModeUniform EnvelopeMode = "uniform"
	// ModeDirectionalByFacade means the ruleset carries distinct
	// front/side/rear distances. The envelope is still computed as a
	// uniform inward buffer of the strictest distance, which never
	// overstates the buildable area; true per-edge offsetting by facade
	// category is a known simplification.
	ModeDirectionalByFacade EnvelopeMode = "directional_by_facade"
)

// Envelope is the buildable area after applying setbacks to a parcel.
type Envelope struct {
	Polygon       orb.Polygon  `json:"polygon"`
	Parcel        orb.Polygon  `json:"-"`
	Mode          EnvelopeMode `json:"mode"`
	SetbackMeters float64      `json:"setback_meters"`
	AreaM2        float64      `json:"area_m2"`
	ParcelAreaM2  float64      `json:"parcel_area_m2"`
}

// ComputeEnvelope derives the buildable envelope for a parcel under the
// resolved ruleset. Returns nil when no setback is resolved or the
// inward buffer collapses the parcel; callers must treat nil as "no
// automatic envelope", not "zero area".
func ComputeEnvelope(parcel orb.MultiPolygon, rs ruleset.Ruleset) *Envelope {
	poly := largestPolygon(parcel)
	if poly == nil {
		return nil
	}

	setback, found := maxSetback(rs)
	if !found {
		return nil
	}

	mode := ModeUniform
	if anyExplicitDirectional(rs) {
		mode = ModeDirectionalByFacade
	}

	buffered := geo.InwardBuffer(poly, setback)
	if buffered == nil {
		return nil
	}

	return &Envelope{
		Polygon:       buffered,
		Parcel:        poly,
		Mode:          mode,
		SetbackMeters: setback,
		AreaM2:        geo.AreaM2(buffered),
		ParcelAreaM2:  geo.AreaM2(poly),
	}
}

// maxSetback returns the strictest resolved setback distance. found is
// false when no direction carries a usable value.
func maxSetback(rs ruleset.Ruleset) (setback float64, found bool) {
	for _, rule := range []ruleset.SetbackRule{rs.Front, rs.Side, rs.Rear} {
		if rule.MinMeters == nil {
			continue
		}
		v := *rule.MinMeters
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			continue
		}
		if !found || v > setback {
			setback = v
		}
		found = true
	}
	return setback, found
}

// anyExplicitDirectional reports whether any facade-specific minimum was
// resolved from an explicit directional field.
func anyExplicitDirectional(rs ruleset.Ruleset) bool {
	for _, rule := range []ruleset.SetbackRule{rs.Front, rs.Side, rs.Rear} {
		if rule.Status == ruleset.StatusExplicit && rule.MinMeters != nil {
			return true
		}
	}
	return false
}

// largestPolygon picks the largest member of a multipolygon. Parcels are
// usually a single polygon; fragmented cadastral records keep only their
// dominant part for envelope purposes.
func largestPolygon(mp orb.MultiPolygon) orb.Polygon {
	var best orb.Polygon
	bestArea := 0.0
	for _, poly := range mp {
		if len(poly) == 0 || len(poly[0]) < 4 {
			continue
		}
		area := geo.AreaM2(poly)
		if area > bestArea {
			best = poly
			bestArea = area
		}
	}
	return best
}
