package repositories

import (
	"database/sql"
	"time"

	"redbud/internal/platform/models"
)

type OrganizationRepository struct {
	db *sql.DB
}

func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) BeginTx() (*sql.Tx, error) {
	return r.db.Begin()
}

func (r *OrganizationRepository) Create(org *models.Organization) error {
	_, err := r.db.Exec(`
		INSERT INTO organizations (id, name, created_at, created_by)
		VALUES (?, ?, ?, ?)
	`, org.ID, org.Name, org.CreatedAt, org.CreatedBy)
	return err
}

func (r *OrganizationRepository) CreateTx(tx *sql.Tx, org *models.Organization) error {
	_, err := tx.Exec(`
		INSERT INTO organizations (id, name, created_at, created_by)
		VALUES (?, ?, ?, ?)
	`, org.ID, org.Name, org.CreatedAt, org.CreatedBy)
	return err
}

func (r *OrganizationRepository) GetByID(id string) (*models.Organization, error) {
	org := &models.Organization{}
	err := r.db.QueryRow(`
		SELECT id, name, created_at, created_by
		FROM organizations WHERE id = ?
	`, id).Scan(&org.ID, &org.Name, &org.CreatedAt, &org.CreatedBy)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return org, nil
}

func (r *OrganizationRepository) List() ([]*models.Organization, error) {
	rows, err := r.db.Query(`
		SELECT id, name, created_at, created_by
		FROM organizations ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org := &models.Organization{}
		if err := rows.Scan(&org.ID, &org.Name, &org.CreatedAt, &org.CreatedBy); err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// ListByMember returns the organizations where the user holds an active
// membership.
func (r *OrganizationRepository) ListByMember(userID string) ([]*models.Organization, error) {
	rows, err := r.db.Query(`
		SELECT o.id, o.name, o.created_at, o.created_by
		FROM organizations o
		JOIN organization_memberships m ON m.organization_id = o.id
		WHERE m.user_id = ? AND m.removed_at IS NULL
		ORDER BY o.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org := &models.Organization{}
		if err := rows.Scan(&org.ID, &org.Name, &org.CreatedAt, &org.CreatedBy); err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateTx(tx *sql.Tx, user *models.User) error {
	_, err := tx.Exec(`
		INSERT INTO users (id, email, password_hash, is_site_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.PasswordHash, user.IsSiteAdmin, user.CreatedAt, user.UpdatedAt)
	return err
}

func (r *UserRepository) Create(user *models.User) error {
	_, err := r.db.Exec(`
		INSERT INTO users (id, email, password_hash, is_site_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.PasswordHash, user.IsSiteAdmin, user.CreatedAt, user.UpdatedAt)
	return err
}

func (r *UserRepository) GetByID(id string) (*models.User, error) {
	return r.get("id", id)
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	return r.get("email", email)
}

func (r *UserRepository) get(column, value string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRow(`
		SELECT id, email, password_hash, is_site_admin, created_at, updated_at
		FROM users WHERE `+column+` = ?
	`, value).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.IsSiteAdmin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) SetSiteAdminTx(tx *sql.Tx, userID string, isSiteAdmin bool) error {
	_, err := tx.Exec(`
		UPDATE users SET is_site_admin = ?, updated_at = ? WHERE id = ?
	`, isSiteAdmin, time.Now().UTC(), userID)
	return err
}

// UserWithOrgCount backs the site-admin user listing.
type UserWithOrgCount struct {
	models.User
	OrganizationCount int `json:"organization_count"`
}

func (r *UserRepository) ListWithOrgCounts() ([]*UserWithOrgCount, error) {
	rows, err := r.db.Query(`
		SELECT u.id, u.email, u.is_site_admin, u.created_at, u.updated_at,
		       COUNT(m.id)
		FROM users u
		LEFT JOIN organization_memberships m
			ON m.user_id = u.id AND m.removed_at IS NULL
		GROUP BY u.id
		ORDER BY u.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*UserWithOrgCount
	for rows.Next() {
		u := &UserWithOrgCount{}
		err := rows.Scan(&u.ID, &u.Email, &u.IsSiteAdmin, &u.CreatedAt, &u.UpdatedAt, &u.OrganizationCount)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
