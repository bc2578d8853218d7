package repositories

import (
	"database/sql"
	"time"

	"redbud/internal/platform/models"
)

type InviteRepository struct {
	db *sql.DB
}

func NewInviteRepository(db *sql.DB) *InviteRepository {
	return &InviteRepository{db: db}
}

func (r *InviteRepository) BeginTx() (*sql.Tx, error) {
	return r.db.Begin()
}

func (r *InviteRepository) Create(invite *models.Invite) error {
	_, err := r.db.Exec(`
		INSERT INTO invites (id, code, invite_type, organization_id, role, created_by, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, invite.ID, invite.Code, string(invite.Type), invite.OrganizationID, invite.Role,
		invite.CreatedBy, invite.CreatedAt, invite.ExpiresAt)
	return err
}

func (r *InviteRepository) GetByCode(code string) (*models.Invite, error) {
	row := r.db.QueryRow(`
		SELECT id, code, invite_type, organization_id, role, created_by, created_at, expires_at, used_by, used_at
		FROM invites WHERE code = ?
	`, code)
	return scanInvite(row)
}

// MarkUsedTx conditionally consumes the invite: the update only matches
// while the invite is unused and unexpired, so two concurrent consumers
// cannot both succeed. Returns whether this call won the row.
func (r *InviteRepository) MarkUsedTx(tx *sql.Tx, code string, usedBy *string, now time.Time) (bool, error) {
	res, err := tx.Exec(`
		UPDATE invites SET used_by = ?, used_at = ?
		WHERE code = ? AND used_at IS NULL AND expires_at > ?
	`, usedBy, now, code, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RevokeTx marks an invite used with no consumer, deactivating it.
// Expired invites may still be revoked; consumed ones may not.
func (r *InviteRepository) RevokeTx(tx *sql.Tx, code string, now time.Time) (bool, error) {
	res, err := tx.Exec(`
		UPDATE invites SET used_by = NULL, used_at = ?
		WHERE code = ? AND used_at IS NULL
	`, now, code)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListActiveByOrg returns unused, unexpired invites for an organization.
func (r *InviteRepository) ListActiveByOrg(orgID string, now time.Time) ([]*models.Invite, error) {
	rows, err := r.db.Query(`
		SELECT id, code, invite_type, organization_id, role, created_by, created_at, expires_at, used_by, used_at
		FROM invites
		WHERE organization_id = ? AND used_at IS NULL AND expires_at > ?
		ORDER BY created_at DESC
	`, orgID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvites(rows)
}

func (r *InviteRepository) ListActiveSiteAdmin(now time.Time) ([]*models.Invite, error) {
	rows, err := r.db.Query(`
		SELECT id, code, invite_type, organization_id, role, created_by, created_at, expires_at, used_by, used_at
		FROM invites
		WHERE invite_type = ? AND used_at IS NULL AND expires_at > ?
		ORDER BY created_at DESC
	`, string(models.InviteTypeSiteAdmin), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvites(rows)
}

func collectInvites(rows *sql.Rows) ([]*models.Invite, error) {
	var invites []*models.Invite
	for rows.Next() {
		invite, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, invite)
	}
	return invites, rows.Err()
}

func scanInvite(s interface {
	Scan(dest ...interface{}) error
}) (*models.Invite, error) {
	invite := &models.Invite{}
	var inviteType string
	var orgID, usedBy sql.NullString
	var usedAt sql.NullTime

	err := s.Scan(
		&invite.ID,
		&invite.Code,
		&inviteType,
		&orgID,
		&invite.Role,
		&invite.CreatedBy,
		&invite.CreatedAt,
		&invite.ExpiresAt,
		&usedBy,
		&usedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	invite.Type = models.InviteType(inviteType)
	if orgID.Valid {
		invite.OrganizationID = &orgID.String
	}
	if usedBy.Valid {
		invite.UsedBy = &usedBy.String
	}
	if usedAt.Valid {
		t := usedAt.Time
		invite.UsedAt = &t
	}
	return invite, nil
}
