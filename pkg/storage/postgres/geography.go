package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/schuttebj/linc-backend/pkg/permissions"
)

// GeographyStore implements permissions.GeographySource: pure lookups from
// region/office identifiers to their owning province.
type GeographyStore struct {
	db *sql.DB
}

// NewGeographyStore creates the resolver over the given database.
func NewGeographyStore(db *sql.DB) *GeographyStore {
	return &GeographyStore{db: db}
}

// ProvinceOfRegion returns the province code a region belongs to.
func (s *GeographyStore) ProvinceOfRegion(ctx context.Context, regionID string) (string, error) {
	var province string
	err := s.db.QueryRowContext(ctx,
		`SELECT province_code FROM regions WHERE id = $1`, regionID,
	).Scan(&province)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("region %q: %w", regionID, permissions.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve province of region %q: %w", regionID, err)
	}
	return province, nil
}

// RegionAndProvinceOfOffice returns the region an office belongs to and that
// region's province code.
func (s *GeographyStore) RegionAndProvinceOfOffice(ctx context.Context, officeID string) (string, string, error) {
	var regionID, province string
	err := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.province_code
		FROM offices o
		JOIN regions r ON o.region_id = r.id
		WHERE o.id = $1
	`, officeID).Scan(&regionID, &province)
	if err == sql.ErrNoRows {
		return "", "", fmt.Errorf("office %q: %w", officeID, permissions.ErrNotFound)
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve region/province of office %q: %w", officeID, err)
	}
	return regionID, province, nil
}
