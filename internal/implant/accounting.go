package implant

import "math"

// DefaultParkingSpaceAreaM2 is used when the ruleset does not specify a
// per-space area.
const DefaultParkingSpaceAreaM2 = 25.0

// AccountInput carries everything the parking/coverage accountant needs.
type AccountInput struct {
	DwellingCount      int
	EnvelopeAreaM2     float64
	TerrainAreaM2      float64
	ParkingPerDwelling float64
	ParkingSpaceAreaM2 float64
	// MaxCoverageRatio caps the usable area to a fraction of the terrain
	// when resolved; nil skips the cap.
	MaxCoverageRatio *float64
}

// Accounting is the parking requirement and the resulting usable area.
type Accounting struct {
	RequiredSpaces int     `json:"required_spaces"`
	ParkingAreaM2  float64 `json:"parking_area_m2"`
	UsableAreaM2   float64 `json:"usable_area_m2"`
}

// Account converts the dwelling count into a required parking area and a
// coverage-capped usable area. The usable area couples the coverage cap
// and the post-setback envelope by minimum, clamped non-negative.
func Account(in AccountInput) Accounting {
	spaceArea := in.ParkingSpaceAreaM2
	if spaceArea <= 0 {
		spaceArea = DefaultParkingSpaceAreaM2
	}

	spaces := int(math.Ceil(float64(in.DwellingCount) * in.ParkingPerDwelling))
	if spaces < 0 {
		spaces = 0
	}
	parkingArea := float64(spaces) * spaceArea

	usable := in.EnvelopeAreaM2 - parkingArea
	if in.MaxCoverageRatio != nil {
		usable = math.Min(*in.MaxCoverageRatio*in.TerrainAreaM2, usable)
	}
	if usable < 0 {
		usable = 0
	}

	return Accounting{
		RequiredSpaces: spaces,
		ParkingAreaM2:  parkingArea,
		UsableAreaM2:   usable,
	}
}
