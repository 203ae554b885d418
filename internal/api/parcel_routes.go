package api

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/sitefit/server/internal/auth"
	"github.com/sitefit/server/internal/cache"
	"github.com/sitefit/server/internal/config"
	"github.com/sitefit/server/internal/performance"
)

// SetupParcelRoutes registers parcel lookup and ruleset routes.
func SetupParcelRoutes(mux *http.ServeMux, db *sql.DB, cfg *config.Config, rulesets *cache.RulesetCache, profiler *performance.Profiler) {
	handlers := NewParcelHandlers(db, cfg, rulesets, profiler)

	jwtService := auth.NewJWTService(cfg)
	passwordService := auth.NewPasswordService(cfg)
	authHandlers := auth.NewAuthHandlers(db, jwtService, passwordService)

	authMiddleware := authHandlers.AuthMiddleware
	userRateLimit := UserRateLimitMiddleware(200, 1*time.Minute)

	parcelHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/parcels")
		path = strings.Trim(path, "/")

		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(path, "/ruleset"):
			handlers.GetRuleset(w, r)
		case r.Method == http.MethodPost && strings.HasSuffix(path, "/facade"):
			handlers.SelectFacade(w, r)
		case r.Method == http.MethodGet && path != "":
			handlers.GetParcel(w, r)
		default:
			http.NotFound(w, r)
		}
	})

	authenticated := authMiddleware(parcelHandler)
	rateLimited := userRateLimit(authenticated)

	mux.Handle("/api/parcels/", rateLimited)
	mux.Handle("/api/parcels", rateLimited)
}
