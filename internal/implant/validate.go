package implant

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/sitefit/server/internal/geo"
	"github.com/sitefit/server/internal/ruleset"
)

// boundaryContactToleranceM treats footprint vertices closer than this to
// the parcel boundary as touching it.
const boundaryContactToleranceM = 0.01

// Violation is one failed compliance check.
type Violation struct {
	// Building is the 1-based index of the offending building, or 0 for
	// project-level violations.
	Building int    `json:"building"`
	Rule     string `json:"rule"`
	Detail   string `json:"detail"`
}

// Result is a compliance verdict. Checks whose ruleset field is
// unresolved are listed in Skipped instead of silently passing or
// failing; completeness reporting covers them separately.
type Result struct {
	OK         bool        `json:"ok"`
	Violations []Violation `json:"violations"`
	Skipped    []string    `json:"skipped,omitempty"`
}

// Validate checks a proposed project against the resolved ruleset. Only
// non-null ruleset fields are checked.
func Validate(rs ruleset.Ruleset, spec ProjectSpec, env *Envelope, footprints []Footprint) Result {
	res := Result{OK: true}

	if env == nil {
		res.Skipped = append(res.Skipped, "envelope")
	} else {
		for i, fp := range footprints {
			if !geo.ContainsPolygon(env.Polygon, fp.Polygon) {
				res.fail(i+1, "setback", "footprint leaves the buildable envelope")
			}
		}
	}

	if rs.MaxHeightMeters == nil {
		res.Skipped = append(res.Skipped, "max_height")
	} else {
		for i, b := range spec.Buildings {
			height := float64(b.Floors) * FloorHeightM
			if height > *rs.MaxHeightMeters {
				res.fail(i+1, "max_height",
					fmt.Sprintf("%d floors ≈ %.1f m exceeds the %.1f m cap", b.Floors, height, *rs.MaxHeightMeters))
			}
		}
	}

	if rs.MaxCoverageRatio == nil || env == nil {
		res.Skipped = append(res.Skipped, "coverage")
	} else {
		total := 0.0
		for _, fp := range footprints {
			total += fp.AreaM2
		}
		capM2 := *rs.MaxCoverageRatio * env.ParcelAreaM2
		if total > capM2 {
			res.fail(0, "coverage",
				fmt.Sprintf("footprints cover %.0f m², cap is %.0f m²", total, capM2))
		}
	}

	if rs.ParkingPerDwelling == nil || env == nil {
		res.Skipped = append(res.Skipped, "parking")
	} else {
		spaceArea := DefaultParkingSpaceAreaM2
		if rs.ParkingSpaceAreaM2 != nil {
			spaceArea = *rs.ParkingSpaceAreaM2
		}
		acct := Account(AccountInput{
			DwellingCount:      spec.DwellingCount,
			EnvelopeAreaM2:     env.AreaM2,
			TerrainAreaM2:      env.ParcelAreaM2,
			ParkingPerDwelling: *rs.ParkingPerDwelling,
			ParkingSpaceAreaM2: spaceArea,
			MaxCoverageRatio:   rs.MaxCoverageRatio,
		})
		total := 0.0
		for _, fp := range footprints {
			total += fp.AreaM2
		}
		if total > acct.UsableAreaM2 {
			res.fail(0, "parking",
				fmt.Sprintf("footprints cover %.0f m², only %.0f m² remain after parking", total, acct.UsableAreaM2))
		}
	}

	if rs.BoundaryImplantation == nil || env == nil {
		res.Skipped = append(res.Skipped, "boundary_implantation")
	} else if !*rs.BoundaryImplantation {
		// Without boundary-implantation permission, touching the parcel
		// outline is a violation. A positive setback makes this
		// unreachable for envelope-contained footprints, but the check
		// still runs so the verdict is never silent.
		for i, fp := range footprints {
			if touchesBoundary(fp, env.Parcel) {
				res.fail(i+1, "boundary_implantation", "footprint touches the parcel boundary")
			}
		}
	}

	return res
}

func (r *Result) fail(building int, rule, detail string) {
	r.OK = false
	r.Violations = append(r.Violations, Violation{Building: building, Rule: rule, Detail: detail})
}

// touchesBoundary reports whether any footprint vertex lies on the parcel
// outline within tolerance.
func touchesBoundary(fp Footprint, parcel orb.Polygon) bool {
	if len(fp.Polygon) == 0 || len(parcel) == 0 {
		return false
	}
	ring := parcel[0]
	for _, p := range fp.Polygon[0] {
		for i := 0; i < len(ring)-1; i++ {
			if geo.DistanceToSegmentM(p, ring[i], ring[i+1]) < boundaryContactToleranceM {
				return true
			}
		}
	}
	return false
}
