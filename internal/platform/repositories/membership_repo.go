package repositories

import (
	"database/sql"
	"time"

	"redbud/internal/platform/models"
)

type MembershipRepository struct {
	db *sql.DB
}

func NewMembershipRepository(db *sql.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

func (r *MembershipRepository) BeginTx() (*sql.Tx, error) {
	return r.db.Begin()
}

func (r *MembershipRepository) CreateTx(tx *sql.Tx, m *models.OrganizationMembership) error {
	_, err := tx.Exec(`
		INSERT INTO organization_memberships (id, user_id, organization_id, role, joined_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.UserID, m.OrganizationID, string(m.Role), m.JoinedAt)
	return err
}

func (r *MembershipRepository) Create(m *models.OrganizationMembership) error {
	_, err := r.db.Exec(`
		INSERT INTO organization_memberships (id, user_id, organization_id, role, joined_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.UserID, m.OrganizationID, string(m.Role), m.JoinedAt)
	return err
}

// GetActive returns the single active membership for a (user, organization)
// pair, or nil. The schema's partial unique index guarantees at most one.
func (r *MembershipRepository) GetActive(userID, orgID string) (*models.OrganizationMembership, error) {
	row := r.db.QueryRow(`
		SELECT id, user_id, organization_id, role, joined_at, removed_at
		FROM organization_memberships
		WHERE user_id = ? AND organization_id = ? AND removed_at IS NULL
	`, userID, orgID)
	return scanMembership(row)
}

func (r *MembershipRepository) GetActiveTx(tx *sql.Tx, userID, orgID string) (*models.OrganizationMembership, error) {
	row := tx.QueryRow(`
		SELECT id, user_id, organization_id, role, joined_at, removed_at
		FROM organization_memberships
		WHERE user_id = ? AND organization_id = ? AND removed_at IS NULL
	`, userID, orgID)
	return scanMembership(row)
}

func (r *MembershipRepository) GetByID(id string) (*models.OrganizationMembership, error) {
	row := r.db.QueryRow(`
		SELECT id, user_id, organization_id, role, joined_at, removed_at
		FROM organization_memberships WHERE id = ?
	`, id)
	return scanMembership(row)
}

// ListByOrg returns memberships for an organization, active ones only
// unless includeRemoved is set (removal history is preserved for audit).
func (r *MembershipRepository) ListByOrg(orgID string, includeRemoved bool) ([]*models.OrganizationMembership, error) {
	query := `
		SELECT id, user_id, organization_id, role, joined_at, removed_at
		FROM organization_memberships
		WHERE organization_id = ?
	`
	if !includeRemoved {
		query += " AND removed_at IS NULL"
	}
	query += " ORDER BY joined_at DESC"

	rows, err := r.db.Query(query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []*models.OrganizationMembership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

func (r *MembershipRepository) UpdateRole(id string, role models.OrgRole) error {
	_, err := r.db.Exec(`
		UPDATE organization_memberships SET role = ? WHERE id = ? AND removed_at IS NULL
	`, string(role), id)
	return err
}

// Remove soft-deletes the membership by setting its removal timestamp.
func (r *MembershipRepository) Remove(id string, now time.Time) error {
	_, err := r.db.Exec(`
		UPDATE organization_memberships SET removed_at = ? WHERE id = ? AND removed_at IS NULL
	`, now, id)
	return err
}

func scanMembership(s interface {
	Scan(dest ...interface{}) error
}) (*models.OrganizationMembership, error) {
	m := &models.OrganizationMembership{}
	var role string
	var removedAt sql.NullTime

	err := s.Scan(&m.ID, &m.UserID, &m.OrganizationID, &role, &m.JoinedAt, &removedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	m.Role = models.OrgRole(role)
	if removedAt.Valid {
		t := removedAt.Time
		m.RemovedAt = &t
	}
	return m, nil
}
