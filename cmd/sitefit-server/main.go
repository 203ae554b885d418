package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"github.com/sitefit/server/internal/api"
	"github.com/sitefit/server/internal/cache"
	"github.com/sitefit/server/internal/config"
	"github.com/sitefit/server/internal/performance"
)

// main starts the sitefit server: parcel mirror, ruleset resolution,
// feasibility pipeline and the interactive edit WebSocket.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DatabaseURL())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Printf("Connected to database %s", cfg.Database.Database)

	rulesets := cache.NewRulesetCache(cfg)
	defer rulesets.Close()
	if cfg.Redis.Addr != "" {
		if err := rulesets.Ping(context.Background()); err != nil {
			log.Printf("Warning: Redis unavailable, rulesets will be re-resolved on every request: %v", err)
		} else {
			log.Printf("Connected to Redis at %s", cfg.Redis.Addr)
		}
	} else {
		log.Printf("Warning: Redis disabled, rulesets will be re-resolved on every request")
	}

	profiler := performance.NewProfiler(true)

	mux := http.NewServeMux()

	wsHandlers := api.NewWebSocketHandlers(db, cfg, rulesets, profiler)
	go wsHandlers.GetHub().Run()

	api.SetupAuthRoutes(mux, db, cfg)
	api.SetupParcelRoutes(mux, db, cfg, rulesets, profiler)
	api.SetupProjectRoutes(mux, db, cfg, rulesets, profiler)
	api.SetupAdminRoutes(mux, db, cfg, rulesets, profiler, wsHandlers.GetHub())

	mux.HandleFunc("/ws/edit", wsHandlers.HandleWebSocket)

	mux.HandleFunc("/health", healthHandler)

	handler := api.SecurityHeadersMiddleware(api.CORSMiddleware(mux))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("sitefit server starting on %s (env: %s)", addr, cfg.Server.Environment)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// healthHandler responds to health check requests.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"sitefit-server"}`)
}
