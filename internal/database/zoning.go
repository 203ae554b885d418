package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ZoningRow is one raw zoning-document row as stored. The raw payload is
// kept byte-for-byte; interpretation belongs to the ruleset resolver.
type ZoningRow struct {
	ID           int64           `json:"id"`
	Jurisdiction string          `json:"jurisdiction"`
	ParcelID     string          `json:"parcel_id"`
	ZoneCode     string          `json:"zone_code"`
	Raw          json.RawMessage `json:"raw"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ZoningStorage handles read-only access to the zoning-document store.
type ZoningStorage struct {
	db *sql.DB
}

// NewZoningStorage creates a new zoning storage instance.
func NewZoningStorage(db *sql.DB) *ZoningStorage {
	return &ZoningStorage{db: db}
}

// GetZoningRow retrieves the newest zoning row for a parcel. Returns
// (nil, nil) when the store has no row for it.
func (s *ZoningStorage) GetZoningRow(jurisdiction, parcelID string) (*ZoningRow, error) {
	if parcelID == "" {
		return nil, fmt.Errorf("parcel id is required")
	}

	query := `
		SELECT id, jurisdiction, parcel_id, zone_code, raw, updated_at
		FROM zoning_documents
		WHERE jurisdiction = $1 AND parcel_id = $2
		ORDER BY updated_at DESC
		LIMIT 1
	`
	row := &ZoningRow{}
	err := s.db.QueryRow(query, jurisdiction, parcelID).Scan(
		&row.ID, &row.Jurisdiction, &row.ParcelID, &row.ZoneCode, &row.Raw, &row.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get zoning row for %s/%s: %w", jurisdiction, parcelID, err)
	}
	return row, nil
}

// GetZoningRowsByParcels retrieves the zoning rows for a batch of parcels
// in one round trip, for multi-parcel feasibility screens.
func (s *ZoningStorage) GetZoningRowsByParcels(jurisdiction string, parcelIDs []string) ([]ZoningRow, error) {
	if len(parcelIDs) == 0 {
		return []ZoningRow{}, nil
	}

	query := `
		SELECT DISTINCT ON (parcel_id)
		       id, jurisdiction, parcel_id, zone_code, raw, updated_at
		FROM zoning_documents
		WHERE jurisdiction = $1 AND parcel_id = ANY($2)
		ORDER BY parcel_id, updated_at DESC
	`
	rows, err := s.db.Query(query, jurisdiction, pq.Array(parcelIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query zoning rows: %w", err)
	}
	defer rows.Close()

	var result []ZoningRow
	for rows.Next() {
		var row ZoningRow
		if err := rows.Scan(&row.ID, &row.Jurisdiction, &row.ParcelID,
			&row.ZoneCode, &row.Raw, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan zoning row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate zoning rows: %w", err)
	}
	return result, nil
}

// ListJurisdictions returns the distinct jurisdictions present in the
// store, for the jurisdiction picker.
func (s *ZoningStorage) ListJurisdictions() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT jurisdiction FROM zoning_documents ORDER BY jurisdiction`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jurisdictions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var j string
		if err := rows.Scan(&j); err != nil {
			return nil, fmt.Errorf("failed to scan jurisdiction: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jurisdictions: %w", err)
	}
	return out, nil
}
