package cadastral

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sitefit/server/internal/config"
)

func testConfig(baseURL string, retries int) *config.Config {
	return &config.Config{
		Cadastral: config.CadastralConfig{
			BaseURL:    baseURL,
			Timeout:    5 * time.Second,
			RetryCount: retries,
		},
	}
}

const parcelFeatureJSON = `{
	"type": "Feature",
	"properties": {"source": "cadastre.gouv.fr"},
	"geometry": {
		"type": "Polygon",
		"coordinates": [[[2.35, 48.85], [2.351, 48.85], [2.351, 48.851], [2.35, 48.851], [2.35, 48.85]]]
	}
}`

func TestNewClient(t *testing.T) {
	client := NewClient(testConfig("http://localhost:8081", 3))
	if client == nil {
		t.Fatal("NewClient returned nil")
	}

	if client.baseURL != "http://localhost:8081" {
		t.Errorf("Expected baseURL http://localhost:8081, got %s", client.baseURL)
	}

	if client.retryCount != 3 {
		t.Errorf("Expected retryCount 3, got %d", client.retryCount)
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("Expected path /health, got %s", r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL, 0))
	if err := client.HealthCheck(); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}

func TestHealthCheckUnhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "error"})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL, 0))
	if err := client.HealthCheck(); err == nil {
		t.Error("Expected error for unhealthy service, got nil")
	}
}

func TestFetchParcel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/parcels/lyon/0850512345" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(parcelFeatureJSON))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL, 0))
	feature, err := client.FetchParcel("lyon", "0850512345")
	if err != nil {
		t.Fatalf("FetchParcel failed: %v", err)
	}

	if feature.ID != "0850512345" || feature.Jurisdiction != "lyon" {
		t.Errorf("Unexpected feature identity: %+v", feature)
	}
	if feature.Source != "cadastre.gouv.fr" {
		t.Errorf("Expected source from properties, got %s", feature.Source)
	}
	if len(feature.Geometry) != 1 {
		t.Errorf("Expected Polygon normalized to single-member MultiPolygon, got %d members", len(feature.Geometry))
	}
}

func TestFetchParcelUnknownIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL, 3))
	_, err := client.FetchParcel("lyon", "missing")
	if !errors.Is(err, ErrParcelUnknown) {
		t.Fatalf("Expected ErrParcelUnknown, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected exactly 1 request for a 404, got %d", got)
	}
}

func TestFetchParcelRetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(parcelFeatureJSON))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL, 3))
	feature, err := client.FetchParcel("lyon", "0850512345")
	if err != nil {
		t.Fatalf("FetchParcel failed after retries: %v", err)
	}
	if feature == nil {
		t.Fatal("Expected a feature")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 requests, got %d", got)
	}
}

func TestFetchParcelExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL, 1))
	_, err := client.FetchParcel("lyon", "0850512345")
	if err == nil {
		t.Fatal("Expected an error after exhausting retries")
	}
	if errors.Is(err, ErrParcelUnknown) {
		t.Error("Transient failure must not be reported as an unknown parcel")
	}
}

func TestFetchParcelRequiresID(t *testing.T) {
	client := NewClient(testConfig("http://localhost:9", 0))
	if _, err := client.FetchParcel("lyon", ""); err == nil {
		t.Error("Expected an error for an empty parcel id")
	}
}
