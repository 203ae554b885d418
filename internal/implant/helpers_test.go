package implant

import (
	"github.com/paulmach/orb"

	"github.com/sitefit/server/internal/geo"
	"github.com/sitefit/server/internal/ruleset"
)

// testCenter is an arbitrary urban coordinate used across implant tests.
var testCenter = orb.Point{2.3522, 48.8566}

// rectParcel builds a closed axis-aligned rectangular parcel of the given
// metric dimensions centered on a point.
func rectParcel(center orb.Point, widthM, heightM float64) orb.MultiPolygon {
	north := geo.Destination(center, 0, heightM/2)
	south := geo.Destination(center, 180, heightM/2)
	ne := geo.Destination(north, 90, widthM/2)
	nw := geo.Destination(north, 270, widthM/2)
	se := geo.Destination(south, 90, widthM/2)
	sw := geo.Destination(south, 270, widthM/2)
	return orb.MultiPolygon{orb.Polygon{orb.Ring{nw, ne, se, sw, nw}}}
}

func fptr(v float64) *float64 { return &v }
func bptr(v bool) *bool       { return &v }

// explicitRuleset builds a complete ruleset with explicit directional
// setbacks.
func explicitRuleset(front, side, rear float64) ruleset.Ruleset {
	rs := ruleset.Ruleset{
		Front:                ruleset.SetbackRule{Type: ruleset.RuleFixed, MinMeters: fptr(front), Status: ruleset.StatusExplicit},
		Side:                 ruleset.SetbackRule{Type: ruleset.RuleFixed, MinMeters: fptr(side), Status: ruleset.StatusExplicit},
		Rear:                 ruleset.SetbackRule{Type: ruleset.RuleFixed, MinMeters: fptr(rear), Status: ruleset.StatusExplicit},
		BoundaryImplantation: bptr(false),
		ParkingPerDwelling:   fptr(1),
	}
	rs.Completeness = ruleset.Completeness{OK: true, MissingFields: []string{}}
	return rs
}
