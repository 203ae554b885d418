package implant

import (
	"math"
	"testing"
)

func TestAccountParkingArea(t *testing.T) {
	// 10 dwellings at one space per dwelling, 25 m² per space: 250 m² of
	// parking. Coverage 0.4 on a 600 m² terrain caps the usable area at
	// 240 m² before the parking deduction is even considered.
	out := Account(AccountInput{
		DwellingCount:      10,
		EnvelopeAreaM2:     400,
		TerrainAreaM2:      600,
		ParkingPerDwelling: 1,
		ParkingSpaceAreaM2: 25,
		MaxCoverageRatio:   fptr(0.4),
	})

	if out.RequiredSpaces != 10 {
		t.Errorf("required spaces = %d, want 10", out.RequiredSpaces)
	}
	if out.ParkingAreaM2 != 250 {
		t.Errorf("parking area = %.2f m², want 250", out.ParkingAreaM2)
	}
	// min(0.4*600, 400-250) = min(240, 150) = 150.
	if out.UsableAreaM2 != 150 {
		t.Errorf("usable area = %.2f m², want 150", out.UsableAreaM2)
	}
}

func TestAccountCoverageBinds(t *testing.T) {
	out := Account(AccountInput{
		DwellingCount:      2,
		EnvelopeAreaM2:     500,
		TerrainAreaM2:      600,
		ParkingPerDwelling: 1,
		ParkingSpaceAreaM2: 25,
		MaxCoverageRatio:   fptr(0.4),
	})

	// min(240, 500-50) = 240: the coverage cap binds.
	if out.UsableAreaM2 != 240 {
		t.Errorf("usable area = %.2f m², want 240", out.UsableAreaM2)
	}
}

func TestAccountFractionalRatioCeils(t *testing.T) {
	out := Account(AccountInput{
		DwellingCount:      7,
		EnvelopeAreaM2:     400,
		TerrainAreaM2:      600,
		ParkingPerDwelling: 1.5,
		ParkingSpaceAreaM2: 25,
	})

	// ceil(7 * 1.5) = 11 spaces.
	if out.RequiredSpaces != 11 {
		t.Errorf("required spaces = %d, want 11", out.RequiredSpaces)
	}
	if out.ParkingAreaM2 != 275 {
		t.Errorf("parking area = %.2f m², want 275", out.ParkingAreaM2)
	}
}

func TestAccountClampsNonNegative(t *testing.T) {
	// Parking demand exceeding the envelope clamps usable area to zero
	// instead of going negative.
	out := Account(AccountInput{
		DwellingCount:      20,
		EnvelopeAreaM2:     100,
		TerrainAreaM2:      600,
		ParkingPerDwelling: 1,
		ParkingSpaceAreaM2: 25,
		MaxCoverageRatio:   fptr(0.4),
	})

	if out.UsableAreaM2 != 0 {
		t.Errorf("usable area = %.2f m², want 0", out.UsableAreaM2)
	}
}

func TestAccountDefaults(t *testing.T) {
	// Missing space area falls back to the 25 m² default; missing
	// coverage leaves the envelope-minus-parking term as the cap.
	out := Account(AccountInput{
		DwellingCount:      4,
		EnvelopeAreaM2:     300,
		TerrainAreaM2:      600,
		ParkingPerDwelling: 1,
	})

	if out.ParkingAreaM2 != 4*DefaultParkingSpaceAreaM2 {
		t.Errorf("parking area = %.2f m², want %.2f", out.ParkingAreaM2, 4*DefaultParkingSpaceAreaM2)
	}
	if out.UsableAreaM2 != 200 {
		t.Errorf("usable area = %.2f m², want 200", out.UsableAreaM2)
	}
}

func TestAccountNoParkingRatio(t *testing.T) {
	out := Account(AccountInput{
		DwellingCount:    6,
		EnvelopeAreaM2:   300,
		TerrainAreaM2:    600,
		MaxCoverageRatio: fptr(0.5),
	})

	if out.RequiredSpaces != 0 || out.ParkingAreaM2 != 0 {
		t.Errorf("expected no parking demand, got %d spaces / %.2f m²", out.RequiredSpaces, out.ParkingAreaM2)
	}
	if math.Abs(out.UsableAreaM2-300) > 1e-9 {
		t.Errorf("usable area = %.2f m², want 300", out.UsableAreaM2)
	}
}
