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

// SetupAdminRoutes registers admin management routes. The hub is used to
// notify connected editors about cache invalidations.
func SetupAdminRoutes(mux *http.ServeMux, db *sql.DB, cfg *config.Config, rulesets *cache.RulesetCache, profiler *performance.Profiler, hub *WebSocketHub) {
	handlers := NewAdminHandlers(db, cfg, rulesets, profiler, hub)

	jwtService := auth.NewJWTService(cfg)
	passwordService := auth.NewPasswordService(cfg)
	authHandlers := auth.NewAuthHandlers(db, jwtService, passwordService)

	authMiddleware := authHandlers.AuthMiddleware
	adminOnly := authHandlers.RequireRole("admin")
	userRateLimit := UserRateLimitMiddleware(10, 1*time.Minute) // Lower rate limit for admin operations

	adminHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/admin")
		path = strings.Trim(path, "/")

		switch {
		case r.Method == http.MethodGet && path == "metrics":
			handlers.GetMetrics(w, r)
		case r.Method == http.MethodDelete && path == "metrics":
			handlers.ResetMetrics(w, r)
		case r.Method == http.MethodGet && path == "mirror":
			handlers.GetMirrorStatus(w, r)
		case r.Method == http.MethodPost && strings.HasPrefix(path, "rulesets/invalidate/"):
			handlers.InvalidateRulesets(w, r)
		default:
			http.NotFound(w, r)
		}
	})

	authenticated := authMiddleware(adminOnly(adminHandler))
	rateLimited := userRateLimit(authenticated)

	mux.Handle("/api/admin/", rateLimited)
	mux.Handle("/api/admin", rateLimited)
}
