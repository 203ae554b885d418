package testutil

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"testing"

	_ "github.com/lib/pq"
)

// TestDBConfig holds test database configuration
type TestDBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DefaultTestDBConfig returns a default test database configuration
func DefaultTestDBConfig() TestDBConfig {
	return TestDBConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getIntEnv("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		Database: getEnv("TEST_DB_NAME", "sitefit_test"),
		SSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}
}

// DatabaseURL returns a PostgreSQL connection string
func (c TestDBConfig) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
	)
}

// SetupTestDB creates a test database connection.
// Returns a connection that should be closed after tests.
func SetupTestDB(t *testing.T) *sql.DB {
	cfg := DefaultTestDBConfig()

	// Connect to postgres database first to create test database
	adminURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/postgres?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.SSLMode,
	)

	adminDB, err := sql.Open("postgres", adminURL)
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	defer adminDB.Close()

	if err := adminDB.Ping(); err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}

	// Create test database if it doesn't exist
	_, err = adminDB.Exec(fmt.Sprintf("CREATE DATABASE %s", cfg.Database))
	if err != nil {
		// Database might already exist, which is fine
		t.Logf("Test database creation: %v (may already exist)", err)
	}

	// Connect to test database
	db, err := sql.Open("postgres", cfg.DatabaseURL())
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		t.Skipf("Test database not available: %v", err)
	}

	return db
}

// CloseDB registers the connection for cleanup when the test finishes.
func CloseDB(t *testing.T, db *sql.DB) {
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close test database: %v", err)
		}
	})
}

// CleanupTestDB drops all tables in the test database.
// Useful for integration tests that need a clean slate.
func CleanupTestDB(t *testing.T, db *sql.DB) {
	tables := []string{
		"zoning_documents",
		"parcels",
		"users",
	}

	for _, table := range tables {
		_, err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table))
		if err != nil {
			t.Logf("Warning: Failed to drop table %s: %v", table, err)
		}
	}
}

// CreateSchema creates the tables the storage layer expects.
func CreateSchema(t *testing.T, db *sql.DB) {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username VARCHAR(64) UNIQUE NOT NULL,
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(32) NOT NULL DEFAULT 'analyst',
			organization VARCHAR(128) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_login TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS parcels (
			id VARCHAR(64) NOT NULL,
			jurisdiction VARCHAR(64) NOT NULL,
			geometry JSONB NOT NULL,
			source VARCHAR(64) NOT NULL DEFAULT 'cadastre',
			fetched_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (jurisdiction, id)
		)`,
		`CREATE TABLE IF NOT EXISTS zoning_documents (
			id BIGSERIAL PRIMARY KEY,
			jurisdiction VARCHAR(64) NOT NULL,
			parcel_id VARCHAR(64) NOT NULL,
			zone_code VARCHAR(32) NOT NULL DEFAULT '',
			raw JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_zoning_documents_parcel
			ON zoning_documents (jurisdiction, parcel_id, updated_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Failed to create schema: %v", err)
		}
	}
}

// getEnv gets an environment variable with a fallback default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable with a fallback default
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
