package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/sitefit/server/internal/cache"
	"github.com/sitefit/server/internal/cadastral"
	"github.com/sitefit/server/internal/config"
	"github.com/sitefit/server/internal/database"
	"github.com/sitefit/server/internal/geo"
	"github.com/sitefit/server/internal/implant"
	"github.com/sitefit/server/internal/performance"
	"github.com/sitefit/server/internal/ruleset"
)

// ParcelHandlers manages HTTP handlers for parcel lookup, ruleset
// resolution and facade selection.
type ParcelHandlers struct {
	parcels  *database.ParcelStorage
	zoning   *database.ZoningStorage
	cadastre *cadastral.Client
	rulesets *cache.RulesetCache
	profiler *performance.Profiler
	config   *config.Config
	db       *sql.DB
}

// NewParcelHandlers creates a new ParcelHandlers instance.
func NewParcelHandlers(db *sql.DB, cfg *config.Config, rulesets *cache.RulesetCache, profiler *performance.Profiler) *ParcelHandlers {
	return &ParcelHandlers{
		parcels:  database.NewParcelStorage(db),
		zoning:   database.NewZoningStorage(db),
		cadastre: cadastral.NewClient(cfg),
		rulesets: rulesets,
		profiler: profiler,
		config:   cfg,
		db:       db,
	}
}

type parcelResponse struct {
	ID           string          `json:"id"`
	Jurisdiction string          `json:"jurisdiction"`
	Geometry     json.RawMessage `json:"geometry"`
	AreaM2       float64         `json:"area_m2"`
	Source       string          `json:"source"`
}

type rulesetResponse struct {
	ParcelID     string          `json:"parcel_id"`
	Jurisdiction string          `json:"jurisdiction"`
	Ruleset      ruleset.Ruleset `json:"ruleset"`
	Cached       bool            `json:"cached"`
}

type facadeRequest struct {
	Click [2]float64 `json:"click"` // [lng, lat]
}

type facadeResponse struct {
	Miss       bool            `json:"miss"`
	Facade     *implant.Facade `json:"facade,omitempty"`
	BearingDeg float64         `json:"bearing_deg,omitempty"`
}

// GetParcel handles GET /api/parcels/{id}
func (h *ParcelHandlers) GetParcel(w http.ResponseWriter, r *http.Request) {
	jurisdiction, parcelID, ok := h.parcelKey(w, r)
	if !ok {
		return
	}

	parcel, ok := h.loadParcel(w, jurisdiction, parcelID)
	if !ok {
		return
	}

	geomRaw, err := geojson.NewGeometry(parcel.Geometry).MarshalJSON()
	if err != nil {
		log.Printf("Failed to encode parcel geometry: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to encode parcel geometry")
		return
	}

	totalArea := 0.0
	for _, poly := range parcel.Geometry {
		totalArea += geo.AreaM2(poly)
	}

	writeJSON(w, http.StatusOK, parcelResponse{
		ID:           parcel.ID,
		Jurisdiction: parcel.Jurisdiction,
		Geometry:     geomRaw,
		AreaM2:       totalArea,
		Source:       parcel.Source,
	})
}

// GetRuleset handles GET /api/parcels/{id}/ruleset
func (h *ParcelHandlers) GetRuleset(w http.ResponseWriter, r *http.Request) {
	jurisdiction, parcelID, ok := h.parcelKey(w, r)
	if !ok {
		return
	}

	rs, cached, ok := h.loadRuleset(w, r, jurisdiction, parcelID)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, rulesetResponse{
		ParcelID:     parcelID,
		Jurisdiction: jurisdiction,
		Ruleset:      *rs,
		Cached:       cached,
	})
}

// SelectFacade handles POST /api/parcels/{id}/facade. A click beyond the
// snapping tolerance is a miss reported to the caller, never a guessed
// edge.
func (h *ParcelHandlers) SelectFacade(w http.ResponseWriter, r *http.Request) {
	jurisdiction, parcelID, ok := h.parcelKey(w, r)
	if !ok {
		return
	}

	var req facadeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	parcel, ok := h.loadParcel(w, jurisdiction, parcelID)
	if !ok {
		return
	}

	op := h.profiler.Start(performance.OpFacadeSelect)
	facade := implant.SelectFacade(parcel.Geometry, orb.Point{req.Click[0], req.Click[1]})
	op.End()

	if facade == nil {
		writeJSON(w, http.StatusOK, facadeResponse{Miss: true})
		return
	}

	writeJSON(w, http.StatusOK, facadeResponse{
		Facade:     facade,
		BearingDeg: facade.BearingDeg,
	})
}

// parcelKey extracts the jurisdiction and parcel id from the request.
func (h *ParcelHandlers) parcelKey(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	path := strings.TrimPrefix(r.URL.Path, "/api/parcels")
	path = strings.Trim(path, "/")
	parcelID := strings.SplitN(path, "/", 2)[0]
	if parcelID == "" {
		respondWithError(w, http.StatusBadRequest, "Parcel id is required")
		return "", "", false
	}

	jurisdiction := r.URL.Query().Get("jurisdiction")
	if jurisdiction == "" {
		respondWithError(w, http.StatusBadRequest, "jurisdiction query parameter is required")
		return "", "", false
	}

	return jurisdiction, parcelID, true
}

// loadParcel returns the mirrored parcel, fetching and mirroring it from
// the cadastral source on a miss. The two 404 codes matter: an unknown
// parcel is permanent, a pending one may appear on retry.
func (h *ParcelHandlers) loadParcel(w http.ResponseWriter, jurisdiction, parcelID string) (*database.Parcel, bool) {
	parcel, err := h.parcels.GetParcel(jurisdiction, parcelID)
	if err != nil {
		log.Printf("Failed to read parcel mirror: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load parcel")
		return nil, false
	}
	if parcel != nil {
		return parcel, true
	}

	op := h.profiler.Start(performance.OpCadastralFetch)
	feature, err := h.cadastre.FetchParcel(jurisdiction, parcelID)
	op.End()

	if errors.Is(err, cadastral.ErrParcelUnknown) {
		respondWithCodedError(w, http.StatusNotFound, "parcel_unknown", "Parcel unknown to the cadastral source")
		return nil, false
	}
	if err != nil {
		log.Printf("Cadastral fetch failed for %s/%s: %v", jurisdiction, parcelID, err)
		respondWithCodedError(w, http.StatusNotFound, "parcel_pending", "Parcel geometry not available yet")
		return nil, false
	}

	parcel = &database.Parcel{
		ID:           feature.ID,
		Jurisdiction: feature.Jurisdiction,
		Geometry:     feature.Geometry,
		Source:       feature.Source,
		FetchedAt:    feature.FetchedAt,
	}
	if err := h.parcels.UpsertParcel(parcel); err != nil {
		// Mirror failures are not fatal: we already have the geometry.
		log.Printf("Failed to mirror parcel %s/%s: %v", jurisdiction, parcelID, err)
	}
	return parcel, true
}

// loadRuleset returns the resolved ruleset, via the cache when possible.
func (h *ParcelHandlers) loadRuleset(w http.ResponseWriter, r *http.Request, jurisdiction, parcelID string) (*ruleset.Ruleset, bool, bool) {
	if cached, err := h.rulesets.Get(r.Context(), jurisdiction, parcelID); err != nil {
		log.Printf("Ruleset cache read failed: %v", err)
	} else if cached != nil {
		return cached, true, true
	}

	row, err := h.zoning.GetZoningRow(jurisdiction, parcelID)
	if err != nil {
		log.Printf("Failed to read zoning row: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load zoning data")
		return nil, false, false
	}
	if row == nil {
		respondWithCodedError(w, http.StatusNotFound, "zoning_missing", "No zoning document for this parcel")
		return nil, false, false
	}

	op := h.profiler.Start(performance.OpRulesetResolve)
	rs := ruleset.Resolve(row.Raw)
	op.End()

	if err := h.rulesets.Set(r.Context(), jurisdiction, parcelID, rs); err != nil {
		log.Printf("Ruleset cache write failed: %v", err)
	}
	return &rs, false, true
}
