package testutil

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func TestRandomString(t *testing.T) {
	str := RandomString(10)
	if len(str) != 10 {
		t.Errorf("Expected string length 10, got %d", len(str))
	}

	// Test multiple times to ensure randomness
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		str2 := RandomString(10)
		if len(str2) != 10 {
			t.Errorf("Expected string length 10, got %d", len(str2))
		}
		if seen[str2] {
			t.Logf("Warning: Duplicate string generated (this is rare but possible)")
		}
		seen[str2] = true
	}
}

func TestRandomUsername(t *testing.T) {
	username := RandomUsername()
	if len(username) == 0 {
		t.Error("Username should not be empty")
	}
	if username[:9] != "testuser_" {
		t.Errorf("Expected username to start with 'testuser_', got %s", username)
	}
}

func TestRandomEmail(t *testing.T) {
	email := RandomEmail()
	if !strings.HasSuffix(email, "@example.com") {
		t.Errorf("Expected email to end with '@example.com', got %s", email)
	}
	if !strings.HasPrefix(email, "test_") {
		t.Errorf("Expected email to start with 'test_', got %s", email)
	}
}

func TestNewTestUser(t *testing.T) {
	fixtures := NewTestFixtures()
	user := fixtures.NewTestUser()

	if user.Username == "" {
		t.Error("Username should not be empty")
	}
	if user.Email == "" {
		t.Error("Email should not be empty")
	}
	if user.Password == "" {
		t.Error("Password should not be empty")
	}
}

func TestRectParcelGeoJSON(t *testing.T) {
	raw := RectParcelGeoJSON(2.3522, 48.8566, 20, 30)

	geom, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		t.Fatalf("Fixture is not valid GeoJSON: %v", err)
	}

	mp, ok := geom.Geometry().(orb.MultiPolygon)
	if !ok {
		t.Fatalf("Expected MultiPolygon, got %T", geom.Geometry())
	}
	if len(mp) != 1 || len(mp[0]) != 1 || len(mp[0][0]) != 5 {
		t.Errorf("Expected a single closed rectangular ring, got %v", mp)
	}
}

func TestZoningFixturesAreValidJSON(t *testing.T) {
	fixtures := NewTestFixtures()
	for name, raw := range map[string][]byte{
		"modern":     fixtures.ZoningRowModern(),
		"legacy":     fixtures.ZoningRowLegacy(),
		"incomplete": fixtures.ZoningRowIncomplete(),
	} {
		if !json.Valid(raw) {
			t.Errorf("%s fixture is not valid JSON", name)
		}
	}
}
