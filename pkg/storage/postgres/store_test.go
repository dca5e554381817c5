package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// The stores only use SQL both PostgreSQL and SQLite accept, so the tests
// run against an in-memory SQLite database with the real migrations applied.

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, RunMigrations(db))
	return db
}

func seedGeography(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx := context.Background()
	for _, stmt := range []struct {
		query string
		args  []interface{}
	}{
		{`INSERT INTO regions (id, region_name, province_code) VALUES ($1, $2, $3)`,
			[]interface{}{"R1", "Johannesburg Central", "GP"}},
		{`INSERT INTO regions (id, region_name, province_code) VALUES ($1, $2, $3)`,
			[]interface{}{"R2", "Cape Town Metro", "WC"}},
		{`INSERT INTO offices (id, office_name, region_id) VALUES ($1, $2, $3)`,
			[]interface{}{"O1", "Sandton DLTC", "R1"}},
		{`INSERT INTO offices (id, office_name, region_id) VALUES ($1, $2, $3)`,
			[]interface{}{"O2", "Bellville DLTC", "R2"}},
	} {
		_, err := db.ExecContext(ctx, stmt.query, stmt.args...)
		require.NoError(t, err)
	}
}

func seedUser(t *testing.T, db *sql.DB, id, systemType, overridesJSON string, active bool) {
	t.Helper()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO users (id, username, system_type, individual_permissions, is_active)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, "user-"+id, systemType, overridesJSON, active)
	require.NoError(t, err)
}

func seedRegionAssignment(t *testing.T, db *sql.DB, id, userID, regionID, role string, active bool, expiresAt *time.Time) {
	t.Helper()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO user_region_assignments (id, user_id, region_id, region_role, is_active, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, userID, regionID, role, active, expiresAt)
	require.NoError(t, err)
}

func seedOfficeAssignment(t *testing.T, db *sql.DB, id, userID, officeID, role string, active bool, expiresAt *time.Time) {
	t.Helper()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO user_office_assignments (id, user_id, office_id, office_role, is_active, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, userID, officeID, role, active, expiresAt)
	require.NoError(t, err)
}
