package implant

import (
	"github.com/paulmach/orb"

	"github.com/sitefit/server/internal/geo"
)

// FacadeToleranceM is the maximum click distance, in meters, at which an
// edge is still considered selected. Beyond it the click is a miss,
// reported rather than silently resolved to the nearest edge.
const FacadeToleranceM = 0.8

// Facade is the parcel edge selected by a click, fixing the placement
// orientation. Transient: recomputed whenever the parcel changes, never
// persisted.
type Facade struct {
	A          orb.Point `json:"a"`
	B          orb.Point `json:"b"`
	DistanceM  float64   `json:"distance_m"`
	BearingDeg float64   `json:"bearing_deg"`
}

// SelectFacade maps a click point to the nearest parcel edge. Every edge
// of every ring of every polygon is scanned; the minimum-distance edge is
// returned only when the click lands within FacadeToleranceM, otherwise
// nil (a miss).
func SelectFacade(parcel orb.MultiPolygon, click orb.Point) *Facade {
	var best *Facade
	for _, poly := range parcel {
		for _, ring := range poly {
			for i := 0; i < len(ring)-1; i++ {
				d := geo.DistanceToSegmentM(click, ring[i], ring[i+1])
				if best == nil || d < best.DistanceM {
					best = &Facade{
						A:         ring[i],
						B:         ring[i+1],
						DistanceM: d,
					}
				}
			}
		}
	}
	if best == nil || best.DistanceM > FacadeToleranceM {
		return nil
	}
	best.BearingDeg = geo.BearingDeg(best.A, best.B)
	return best
}
