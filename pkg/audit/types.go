package audit

import (
	"encoding/json"
	"time"
)

// Action is the kind of role mutation recorded in the trail.
type Action string

const (
	ActionPermissionsUpdated Action = "permissions_updated"
	ActionRoleCreated        Action = "role_created"
	ActionRoleDeactivated    Action = "role_deactivated"
)

// Entry is one immutable record of a role-permission change. Entries are
// append-only; nothing in the engine mutates or deletes them.
type Entry struct {
	ID        string                 `json:"id"`
	RoleScope string                 `json:"role_scope"`
	RoleName  string                 `json:"role_name"`
	Action    Action                 `json:"action"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Actor     string                 `json:"actor"`
	CreatedAt time.Time              `json:"created_at"`
}

// ToJSON serializes the entry.
func (e *Entry) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Filter narrows a trail query. Zero values match everything.
type Filter struct {
	RoleScope string
	RoleName  string
	Action    Action
	Since     time.Time
	Limit     int
}

// RetentionPolicy bounds how long entries are kept by the cleanup job.
type RetentionPolicy struct {
	MaxAge time.Duration
}
