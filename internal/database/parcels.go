package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Parcel is a locally mirrored cadastral parcel. Geometry is stored as
// GeoJSON text; the cadastral source stays authoritative, this mirror
// only avoids refetching on every request.
type Parcel struct {
	ID           string           `json:"id"`
	Jurisdiction string           `json:"jurisdiction"`
	Geometry     orb.MultiPolygon `json:"geometry"`
	Source       string           `json:"source"`
	FetchedAt    time.Time        `json:"fetched_at"`
}

// ParcelStorage handles parcel mirror storage and retrieval.
type ParcelStorage struct {
	db *sql.DB
}

// NewParcelStorage creates a new parcel storage instance.
func NewParcelStorage(db *sql.DB) *ParcelStorage {
	return &ParcelStorage{db: db}
}

// GetParcel retrieves a mirrored parcel by jurisdiction and id. Returns
// (nil, nil) when the parcel is not mirrored yet.
func (s *ParcelStorage) GetParcel(jurisdiction, parcelID string) (*Parcel, error) {
	if parcelID == "" {
		return nil, fmt.Errorf("parcel id is required")
	}

	query := `
		SELECT id, jurisdiction, geometry, source, fetched_at
		FROM parcels
		WHERE jurisdiction = $1 AND id = $2
	`
	var (
		p       Parcel
		geomRaw []byte
	)
	err := s.db.QueryRow(query, jurisdiction, parcelID).Scan(
		&p.ID, &p.Jurisdiction, &geomRaw, &p.Source, &p.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get parcel %s/%s: %w", jurisdiction, parcelID, err)
	}

	geom, err := decodeParcelGeometry(geomRaw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode geometry for parcel %s/%s: %w", jurisdiction, parcelID, err)
	}
	p.Geometry = geom
	return &p, nil
}

// UpsertParcel mirrors a freshly fetched parcel, replacing any previous
// copy for the same jurisdiction and id.
func (s *ParcelStorage) UpsertParcel(p *Parcel) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("parcel with an id is required")
	}
	if len(p.Geometry) == 0 {
		return fmt.Errorf("parcel %s has no geometry", p.ID)
	}

	geomRaw, err := geojson.NewGeometry(p.Geometry).MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode geometry for parcel %s: %w", p.ID, err)
	}

	query := `
		INSERT INTO parcels (id, jurisdiction, geometry, source, fetched_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (jurisdiction, id)
		DO UPDATE SET geometry = EXCLUDED.geometry,
		              source = EXCLUDED.source,
		              fetched_at = EXCLUDED.fetched_at
	`
	fetchedAt := p.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	if _, err := s.db.Exec(query, p.ID, p.Jurisdiction, geomRaw, p.Source, fetchedAt); err != nil {
		return fmt.Errorf("failed to upsert parcel %s/%s: %w", p.Jurisdiction, p.ID, err)
	}
	return nil
}

// CountParcels returns the number of mirrored parcels, for health
// reporting.
func (s *ParcelStorage) CountParcels() (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM parcels`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count parcels: %w", err)
	}
	return count, nil
}

// decodeParcelGeometry accepts Polygon or MultiPolygon GeoJSON and
// normalizes to a MultiPolygon.
func decodeParcelGeometry(raw []byte) (orb.MultiPolygon, error) {
	geom, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, err
	}
	switch g := geom.Geometry().(type) {
	case orb.MultiPolygon:
		return g, nil
	case orb.Polygon:
		return orb.MultiPolygon{g}, nil
	default:
		return nil, fmt.Errorf("unsupported parcel geometry type %s", geom.Type)
	}
}
