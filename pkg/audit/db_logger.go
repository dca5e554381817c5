package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DBLogger implements the audit trail on a SQL database. The table mirrors
// the permission_audit_logs schema of the wider system: one row per role
// mutation, with the change detail as a JSON blob.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed trail and ensures its table exists.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	l := &DBLogger{db: db}
	if err := l.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure permission_audit_logs table: %w", err)
	}
	return l, nil
}

func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS permission_audit_logs (
		id VARCHAR(36) PRIMARY KEY,
		role_scope VARCHAR(20) NOT NULL,
		role_name VARCHAR(100) NOT NULL,
		action VARCHAR(50) NOT NULL,
		details TEXT,
		actor VARCHAR(100) NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_permission_audit_logs_role ON permission_audit_logs(role_scope, role_name);
	CREATE INDEX IF NOT EXISTS idx_permission_audit_logs_created_at ON permission_audit_logs(created_at);
	`
	_, err := l.db.Exec(query)
	return err
}

// Append writes one entry.
func (l *DBLogger) Append(ctx context.Context, entry *Entry) error {
	id := entry.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var detailsJSON []byte
	if entry.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
	}

	query := `
		INSERT INTO permission_audit_logs (id, role_scope, role_name, action, details, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := l.db.ExecContext(ctx, query,
		id, entry.RoleScope, entry.RoleName, string(entry.Action),
		nullableString(detailsJSON), entry.Actor, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	entry.ID = id
	entry.CreatedAt = createdAt
	return nil
}

// Search returns matching entries, newest first.
func (l *DBLogger) Search(ctx context.Context, filter Filter) ([]*Entry, error) {
	query := `
		SELECT id, role_scope, role_name, action, details, actor, created_at
		FROM permission_audit_logs
		WHERE 1=1
	`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.RoleScope != "" {
		query += " AND role_scope = " + arg(filter.RoleScope)
	}
	if filter.RoleName != "" {
		query += " AND role_name = " + arg(filter.RoleName)
	}
	if filter.Action != "" {
		query += " AND action = " + arg(string(filter.Action))
	}
	if !filter.Since.IsZero() {
		query += " AND created_at >= " + arg(filter.Since)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var action string
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.RoleScope, &e.RoleName, &action, &details, &e.Actor, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Action = Action(action)
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				// Corrupt detail blobs should not hide the row itself.
				e.Details = map[string]interface{}{"raw": details.String}
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Cleanup deletes entries older than the retention window.
func (l *DBLogger) Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error) {
	if policy.MaxAge <= 0 {
		return 0, nil
	}

	cutoff := time.Now().Add(-policy.MaxAge)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM permission_audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up audit entries: %w", err)
	}
	return res.RowsAffected()
}

func nullableString(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
