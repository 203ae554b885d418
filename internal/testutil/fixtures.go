package testutil

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// TestFixtures provides test data generators
type TestFixtures struct{}

// NewTestFixtures creates a new test fixtures helper
func NewTestFixtures() *TestFixtures {
	return &TestFixtures{}
}

// RandomString generates a random string of specified length
func RandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	seed := time.Now().UnixNano()
	for i := range b {
		seed = seed*1103515245 + 12345 // Simple LCG
		idx := int(seed % int64(len(charset)))
		if idx < 0 {
			idx = -idx
		}
		b[i] = charset[idx]
	}
	return string(b)
}

// RandomUsername generates a random username
func RandomUsername() string {
	return "testuser_" + RandomString(8)
}

// RandomEmail generates a random email address
func RandomEmail() string {
	return "test_" + RandomString(8) + "@example.com"
}

// TestUserData represents test account data
type TestUserData struct {
	Username string
	Email    string
	Password string
}

// NewTestUser creates test account data. The password satisfies the
// strength policy.
func (f *TestFixtures) NewTestUser() TestUserData {
	return TestUserData{
		Username: RandomUsername(),
		Email:    RandomEmail(),
		Password: "Testpassword123!",
	}
}

// RectParcelGeoJSON builds a MultiPolygon GeoJSON document for a
// rectangular parcel of the given size centered on (lon, lat). Sizes are
// in meters, converted with the equirectangular approximation the
// geometry pipeline itself uses.
func RectParcelGeoJSON(lon, lat, widthM, heightM float64) json.RawMessage {
	const earthRadiusM = 6378137.0
	dLat := heightM / 2 / earthRadiusM * 180 / math.Pi
	dLon := widthM / 2 / (earthRadiusM * math.Cos(lat*math.Pi/180)) * 180 / math.Pi

	doc := fmt.Sprintf(`{
		"type": "MultiPolygon",
		"coordinates": [[[
			[%[1]f, %[3]f], [%[2]f, %[3]f], [%[2]f, %[4]f], [%[1]f, %[4]f], [%[1]f, %[3]f]
		]]]
	}`, lon-dLon, lon+dLon, lat-dLat, lat+dLat)
	return json.RawMessage(doc)
}

// ZoningRowModern returns a raw zoning document using the explicit
// rules.* field layout.
func (f *TestFixtures) ZoningRowModern() json.RawMessage {
	return json.RawMessage(`{
		"zone": "UB",
		"rules": {
			"front": {"min_m": 5, "type": "fixed"},
			"side": {"min_m": 3, "type": "fixed"},
			"rear": {"min_m": 4, "type": "fixed"},
			"boundary_implantation": {"allowed": false},
			"coverage": {"max_ratio": 0.4},
			"height": {"max_m": 12},
			"parking": {"ratio_per_dwelling": 1, "space_area_m2": 25}
		}
	}`)
}

// ZoningRowLegacy returns a raw zoning document using the legacy flat
// French field names, including locale quirks the resolver must absorb.
func (f *TestFixtures) ZoningRowLegacy() json.RawMessage {
	return json.RawMessage(`{
		"zone": "UA",
		"recul_facade_avant": "5,50 m",
		"recul_lateral": 3,
		"recul_arriere": "4 m minimum",
		"implantation_en_limite": "non",
		"ces": 40,
		"hauteur_max": "12 m",
		"stationnement_ratio": 1.5
	}`)
}

// ZoningRowIncomplete returns a raw zoning document missing blocking
// fields, for exercising the completeness gate.
func (f *TestFixtures) ZoningRowIncomplete() json.RawMessage {
	return json.RawMessage(`{
		"zone": "N",
		"hauteur_max": 9
	}`)
}
