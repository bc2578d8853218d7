package audit

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Entry struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id,omitempty"`
	UserID         string         `json:"user_id"`
	Action         string         `json:"action"`
	ResourceType   string         `json:"resource_type"`
	ResourceID     string         `json:"resource_id"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Logger records administrative mutations (invites, role changes, field
// definition changes) to the audit_logs table. Writes happen off the
// request path; an audit insert failure never fails the request.
type Logger struct {
	db *sql.DB
}

func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db}
}

// Log writes one audit entry asynchronously. orgID may be empty for
// site-level actions.
func (l *Logger) Log(userID, orgID, action, resourceType, resourceID string, metadata map[string]any) {
	entry := &Entry{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		UserID:         userID,
		Action:         action,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}

	go func() {
		metaJSON, _ := json.Marshal(entry.Metadata)
		_, err := l.db.Exec(`
			INSERT INTO audit_logs (id, organization_id, user_id, action, resource_type, resource_id, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, entry.ID, entry.OrganizationID, entry.UserID, entry.Action, entry.ResourceType, entry.ResourceID, string(metaJSON), entry.CreatedAt)
		if err != nil {
			log.Error().Err(err).Str("action", entry.Action).Msg("audit write failed")
		}
	}()
}

// ListByOrg returns recent audit entries for an organization, newest
// first.
func (l *Logger) ListByOrg(orgID string, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := l.db.Query(`
		SELECT id, organization_id, user_id, action, resource_type, resource_id, metadata, created_at
		FROM audit_logs WHERE organization_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		var metaJSON string
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.UserID, &e.Action, &e.ResourceType, &e.ResourceID, &metaJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		if metaJSON != "" && metaJSON != "null" {
			_ = json.Unmarshal([]byte(metaJSON), &e.Metadata)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
