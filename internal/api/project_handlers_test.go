package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sitefit/server/internal/cache"
	"github.com/sitefit/server/internal/config"
	"github.com/sitefit/server/internal/implant"
	"github.com/sitefit/server/internal/performance"
	"github.com/sitefit/server/internal/testutil"
)

func testProjectHandlers(t *testing.T) *ProjectHandlers {
	t.Helper()
	cfg := &config.Config{}
	return NewProjectHandlers(nil, cfg, cache.NewRulesetCache(cfg), performance.NewProfiler(false))
}

func TestApplyRejectsMalformedBody(t *testing.T) {
	handlers := testProjectHandlers(t)

	req := httptest.NewRequest("POST", "/api/projects/apply", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	handlers.Apply(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestApplyValidatesRequest(t *testing.T) {
	handlers := testProjectHandlers(t)
	helper := testutil.NewHTTPTestHelper(http.HandlerFunc(handlers.Apply))

	tests := []struct {
		name string
		body applyRequest
	}{
		{
			name: "missing parcel id",
			body: applyRequest{
				Jurisdiction: "lyon",
				Project:      validProject(),
			},
		},
		{
			name: "missing jurisdiction",
			body: applyRequest{
				ParcelID: "0850512345",
				Project:  validProject(),
			},
		},
		{
			name: "no buildings",
			body: applyRequest{
				ParcelID:     "0850512345",
				Jurisdiction: "lyon",
				Project: implant.ProjectSpec{
					BuildingCount:     0,
					DwellingCount:     10,
					AvgDwellingAreaM2: 60,
				},
			},
		},
		{
			name: "too many floors",
			body: applyRequest{
				ParcelID:     "0850512345",
				Jurisdiction: "lyon",
				Project: implant.ProjectSpec{
					BuildingCount:     1,
					DwellingCount:     10,
					AvgDwellingAreaM2: 60,
					Buildings: []implant.BuildingSpec{
						{Shape: implant.ShapeSquare, FootprintAreaM2: 200, Floors: 50},
					},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := helper.MakeRequest("POST", "/api/projects/apply", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", rr.Code)
			}
		})
	}
}

func TestApplyRejectsBuildingCountMismatch(t *testing.T) {
	handlers := testProjectHandlers(t)
	helper := testutil.NewHTTPTestHelper(http.HandlerFunc(handlers.Apply))

	body := applyRequest{
		ParcelID:     "0850512345",
		Jurisdiction: "lyon",
		Project: implant.ProjectSpec{
			BuildingCount:     3,
			DwellingCount:     10,
			AvgDwellingAreaM2: 60,
			Buildings: []implant.BuildingSpec{
				{Shape: implant.ShapeSquare, FootprintAreaM2: 200, Floors: 2},
			},
		},
	}

	rr := helper.MakeRequest("POST", "/api/projects/apply", body)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "building_count") {
		t.Errorf("Expected the error to name building_count, got %s", rr.Body.String())
	}
}

func validProject() implant.ProjectSpec {
	return implant.ProjectSpec{
		BuildingCount:     1,
		DwellingCount:     10,
		AvgDwellingAreaM2: 60,
		Buildings: []implant.BuildingSpec{
			{Shape: implant.ShapeSquare, FootprintAreaM2: 200, Floors: 3},
		},
	}
}
