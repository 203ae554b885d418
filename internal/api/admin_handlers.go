package api

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/sitefit/server/internal/cache"
	"github.com/sitefit/server/internal/config"
	"github.com/sitefit/server/internal/database"
	"github.com/sitefit/server/internal/performance"
)

// AdminHandlers handles admin operations
type AdminHandlers struct {
	db       *sql.DB
	cfg      *config.Config
	parcels  *database.ParcelStorage
	zoning   *database.ZoningStorage
	rulesets *cache.RulesetCache
	profiler *performance.Profiler
	hub      *WebSocketHub
}

// NewAdminHandlers creates a new AdminHandlers instance.
func NewAdminHandlers(db *sql.DB, cfg *config.Config, rulesets *cache.RulesetCache, profiler *performance.Profiler, hub *WebSocketHub) *AdminHandlers {
	return &AdminHandlers{
		db:       db,
		cfg:      cfg,
		parcels:  database.NewParcelStorage(db),
		zoning:   database.NewZoningStorage(db),
		rulesets: rulesets,
		profiler: profiler,
		hub:      hub,
	}
}

// GetMetrics handles GET /api/admin/metrics
func (h *AdminHandlers) GetMetrics(w http.ResponseWriter, r *http.Request) {
	report, err := h.profiler.JSONReport()
	if err != nil {
		log.Printf("Failed to build metrics report: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to build metrics report")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(report); err != nil {
		log.Printf("Failed to write metrics report: %v", err)
	}
}

// ResetMetrics handles DELETE /api/admin/metrics
func (h *AdminHandlers) ResetMetrics(w http.ResponseWriter, r *http.Request) {
	h.profiler.Reset()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Pipeline metrics reset",
	})
}

// GetMirrorStatus handles GET /api/admin/mirror
func (h *AdminHandlers) GetMirrorStatus(w http.ResponseWriter, r *http.Request) {
	count, err := h.parcels.CountParcels()
	if err != nil {
		log.Printf("Error counting mirrored parcels: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to count mirrored parcels")
		return
	}

	jurisdictions, err := h.zoning.ListJurisdictions()
	if err != nil {
		log.Printf("Error listing jurisdictions: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to list jurisdictions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"parcel_count":  count,
		"jurisdictions": jurisdictions,
	})
}

// InvalidateRulesets handles POST /api/admin/rulesets/invalidate/{jurisdiction}.
// It drops every cached ruleset for the jurisdiction so the next request
// re-resolves against the current zoning rows.
func (h *AdminHandlers) InvalidateRulesets(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/admin/rulesets/invalidate")
	jurisdiction := strings.Trim(path, "/")
	if jurisdiction == "" {
		respondWithError(w, http.StatusBadRequest, "Jurisdiction is required")
		return
	}

	if err := h.rulesets.InvalidateJurisdiction(r.Context(), jurisdiction); err != nil {
		log.Printf("Error invalidating rulesets for %s: %v", jurisdiction, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to invalidate cached rulesets")
		return
	}

	// Tell connected editors so open sessions re-resolve their envelope.
	notice, err := json.Marshal(map[string]string{
		"type":         "rulesets_invalidated",
		"jurisdiction": jurisdiction,
	})
	if err == nil && h.hub != nil {
		h.hub.Broadcast(notice)
	}

	log.Printf("Admin: Invalidated cached rulesets for jurisdiction %s", jurisdiction)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"message":      "Cached rulesets invalidated",
		"jurisdiction": jurisdiction,
	})
}
