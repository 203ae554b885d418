package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/sitefit/server/internal/cache"
	"github.com/sitefit/server/internal/config"
	"github.com/sitefit/server/internal/implant"
	"github.com/sitefit/server/internal/performance"
)

// ProjectHandlers manages the feasibility pipeline endpoint: parcel +
// ruleset + project spec in, envelope + footprints + compliance verdict
// out.
type ProjectHandlers struct {
	parcelHandlers *ParcelHandlers
	profiler       *performance.Profiler
	validator      *validator.Validate
}

// NewProjectHandlers creates a new ProjectHandlers instance.
func NewProjectHandlers(db *sql.DB, cfg *config.Config, rulesets *cache.RulesetCache, profiler *performance.Profiler) *ProjectHandlers {
	return &ProjectHandlers{
		parcelHandlers: NewParcelHandlers(db, cfg, rulesets, profiler),
		profiler:       profiler,
		validator:      validator.New(),
	}
}

type applyRequest struct {
	ParcelID     string              `json:"parcel_id" validate:"required"`
	Jurisdiction string              `json:"jurisdiction" validate:"required"`
	Project      implant.ProjectSpec `json:"project" validate:"required"`
	// FacadeClick optionally orients placement along the clicked parcel
	// edge; building orientation_deg is used otherwise.
	FacadeClick *[2]float64 `json:"facade_click,omitempty"`
}

type placedBuilding struct {
	Polygon  json.RawMessage `json:"polygon"`
	AreaM2   float64         `json:"area_m2"`
	Fallback bool            `json:"fallback"`
	Floors   int             `json:"floors"`
}

type applyResponse struct {
	Envelope         json.RawMessage    `json:"envelope"`
	EnvelopeAreaM2   float64            `json:"envelope_area_m2"`
	EnvelopeMode     string             `json:"envelope_mode"`
	SetbackMeters    float64            `json:"setback_m"`
	Buildings        []placedBuilding   `json:"buildings"`
	Accounting       implant.Accounting `json:"accounting"`
	Validation       implant.Result     `json:"validation"`
	GrossFloorAreaM2 float64            `json:"gross_floor_area_m2"`
	FacadeMiss       bool               `json:"facade_miss,omitempty"`
}

type incompleteRulesetResponse struct {
	Error         string   `json:"error"`
	Code          string   `json:"code"`
	MissingFields []string `json:"missing_fields"`
}

// Apply handles POST /api/projects/apply
func (h *ProjectHandlers) Apply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	if len(req.Project.Buildings) != req.Project.BuildingCount {
		respondWithError(w, http.StatusBadRequest, "building_count must match the buildings array")
		return
	}

	parcel, ok := h.parcelHandlers.loadParcel(w, req.Jurisdiction, req.ParcelID)
	if !ok {
		return
	}

	rs, _, ok := h.parcelHandlers.loadRuleset(w, r, req.Jurisdiction, req.ParcelID)
	if !ok {
		return
	}

	// Incomplete rulesets block the pipeline with the named fields
	// rather than guessing values.
	if !rs.Completeness.OK {
		writeJSON(w, http.StatusUnprocessableEntity, incompleteRulesetResponse{
			Error:         "Ruleset is incomplete",
			Code:          "ruleset_incomplete",
			MissingFields: rs.Completeness.MissingFields,
		})
		return
	}

	op := h.profiler.Start(performance.OpEnvelopeCompute)
	env := implant.ComputeEnvelope(parcel.Geometry, *rs)
	op.End()

	if env == nil {
		respondWithCodedError(w, http.StatusUnprocessableEntity, "envelope_collapsed",
			"Setbacks leave no buildable area on this parcel")
		return
	}

	// Facade click fixes the placement bearing for every building; a
	// miss falls back to per-building orientation.
	facadeBearing, facadeMiss := 0.0, false
	useFacade := false
	if req.FacadeClick != nil {
		facade := implant.SelectFacade(parcel.Geometry, orb.Point{req.FacadeClick[0], req.FacadeClick[1]})
		if facade == nil {
			facadeMiss = true
		} else {
			facadeBearing = facade.BearingDeg
			useFacade = true
		}
	}

	footprints := make([]implant.Footprint, 0, len(req.Project.Buildings))
	buildings := make([]placedBuilding, 0, len(req.Project.Buildings))
	for i, b := range req.Project.Buildings {
		bearing := b.OrientationDeg
		if useFacade && b.FacadeMode != "auto" {
			bearing = facadeBearing
		}

		placeOp := h.profiler.Start(performance.OpPlacement)
		fp := implant.Place(env, b.FootprintAreaM2, b.Shape, bearing)
		placeOp.End()
		if fp == nil {
			respondWithError(w, http.StatusInternalServerError,
				fmt.Sprintf("Placement failed for building %d", i+1))
			return
		}

		geomRaw, err := geojson.NewGeometry(fp.Polygon).MarshalJSON()
		if err != nil {
			log.Printf("Failed to encode footprint: %v", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to encode footprint")
			return
		}

		footprints = append(footprints, *fp)
		buildings = append(buildings, placedBuilding{
			Polygon:  geomRaw,
			AreaM2:   fp.AreaM2,
			Fallback: fp.Fallback,
			Floors:   b.Floors,
		})
	}

	spaceArea := implant.DefaultParkingSpaceAreaM2
	if rs.ParkingSpaceAreaM2 != nil {
		spaceArea = *rs.ParkingSpaceAreaM2
	}
	parkingRatio := 0.0
	if rs.ParkingPerDwelling != nil {
		parkingRatio = *rs.ParkingPerDwelling
	}
	accounting := implant.Account(implant.AccountInput{
		DwellingCount:      req.Project.DwellingCount,
		EnvelopeAreaM2:     env.AreaM2,
		TerrainAreaM2:      env.ParcelAreaM2,
		ParkingPerDwelling: parkingRatio,
		ParkingSpaceAreaM2: spaceArea,
		MaxCoverageRatio:   rs.MaxCoverageRatio,
	})

	verdict := implant.Validate(*rs, req.Project, env, footprints)

	envRaw, err := geojson.NewGeometry(env.Polygon).MarshalJSON()
	if err != nil {
		log.Printf("Failed to encode envelope: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to encode envelope")
		return
	}

	writeJSON(w, http.StatusOK, applyResponse{
		Envelope:         envRaw,
		EnvelopeAreaM2:   env.AreaM2,
		EnvelopeMode:     string(env.Mode),
		SetbackMeters:    env.SetbackMeters,
		Buildings:        buildings,
		Accounting:       accounting,
		Validation:       verdict,
		GrossFloorAreaM2: implant.GrossFloorAreaM2(req.Project, footprints),
		FacadeMiss:       facadeMiss,
	})
}

// validationMessage flattens validator errors into one readable line.
func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return "Invalid request"
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
