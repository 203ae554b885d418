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

// SetupProjectRoutes registers the feasibility pipeline routes.
func SetupProjectRoutes(mux *http.ServeMux, db *sql.DB, cfg *config.Config, rulesets *cache.RulesetCache, profiler *performance.Profiler) {
	handlers := NewProjectHandlers(db, cfg, rulesets, profiler)

	jwtService := auth.NewJWTService(cfg)
	passwordService := auth.NewPasswordService(cfg)
	authHandlers := auth.NewAuthHandlers(db, jwtService, passwordService)

	authMiddleware := authHandlers.AuthMiddleware
	userRateLimit := UserRateLimitMiddleware(100, 1*time.Minute)

	projectHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/projects")
		path = strings.Trim(path, "/")

		switch {
		case r.Method == http.MethodPost && path == "apply":
			handlers.Apply(w, r)
		default:
			http.NotFound(w, r)
		}
	})

	authenticated := authMiddleware(projectHandler)
	rateLimited := userRateLimit(authenticated)

	mux.Handle("/api/projects/", rateLimited)
	mux.Handle("/api/projects", rateLimited)
}
