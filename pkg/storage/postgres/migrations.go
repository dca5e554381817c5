package postgres

import (
	"database/sql"
	"fmt"
)

// RunMigrations creates the permission-system tables if they do not exist.
// The DDL sticks to types both PostgreSQL and SQLite understand; permission
// lists are stored as JSON text so one query loads a whole role.
func RunMigrations(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS user_types (
			type_code VARCHAR(50) PRIMARY KEY,
			display_name VARCHAR(100) NOT NULL,
			description TEXT,
			permissions TEXT NOT NULL DEFAULT '[]',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMP,
			updated_by VARCHAR(100)
		)`,
		`CREATE TABLE IF NOT EXISTS region_roles (
			role_name VARCHAR(50) PRIMARY KEY,
			display_name VARCHAR(100) NOT NULL,
			description TEXT,
			permissions TEXT NOT NULL DEFAULT '[]',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMP,
			updated_by VARCHAR(100)
		)`,
		`CREATE TABLE IF NOT EXISTS office_roles (
			role_name VARCHAR(50) PRIMARY KEY,
			display_name VARCHAR(100) NOT NULL,
			description TEXT,
			permissions TEXT NOT NULL DEFAULT '[]',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMP,
			updated_by VARCHAR(100)
		)`,
		`CREATE TABLE IF NOT EXISTS regions (
			id VARCHAR(36) PRIMARY KEY,
			region_name VARCHAR(100) NOT NULL,
			province_code VARCHAR(2) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS offices (
			id VARCHAR(36) PRIMARY KEY,
			office_name VARCHAR(100) NOT NULL,
			region_id VARCHAR(36) NOT NULL REFERENCES regions(id),
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			username VARCHAR(100) NOT NULL,
			system_type VARCHAR(50) NOT NULL,
			individual_permissions TEXT NOT NULL DEFAULT '[]',
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS user_region_assignments (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL REFERENCES users(id),
			region_id VARCHAR(36) NOT NULL REFERENCES regions(id),
			region_role VARCHAR(50) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			expires_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS user_office_assignments (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL REFERENCES users(id),
			office_id VARCHAR(36) NOT NULL REFERENCES offices(id),
			office_role VARCHAR(50) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			expires_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_region_assignments_user ON user_region_assignments(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_user_region_assignments_role ON user_region_assignments(region_role)`,
		`CREATE INDEX IF NOT EXISTS idx_user_office_assignments_user ON user_office_assignments(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_user_office_assignments_role ON user_office_assignments(office_role)`,
		`CREATE INDEX IF NOT EXISTS idx_users_system_type ON users(system_type)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
