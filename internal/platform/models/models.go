package models

import "time"

type OrgRole string

const (
	RoleAdmin  OrgRole = "admin"
	RoleMember OrgRole = "member"
)

func (r OrgRole) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsSiteAdmin  bool      `json:"is_site_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`
}

// OrganizationMembership ties a user to an organization with a role.
// RemovedAt nil means the membership is currently active; at most one
// active row may exist per (user, organization) pair, enforced by a
// partial unique index in the schema.
type OrganizationMembership struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	OrganizationID string     `json:"organization_id"`
	Role           OrgRole    `json:"role"`
	JoinedAt       time.Time  `json:"joined_at"`
	RemovedAt      *time.Time `json:"removed_at,omitempty"`
}

func (m *OrganizationMembership) Active() bool {
	return m.RemovedAt == nil
}

type InviteType string

const (
	InviteTypeOrganization InviteType = "organization"
	InviteTypeSiteAdmin    InviteType = "site_admin"
)

// Invite is a single-use, time-bounded token granting a role in an
// organization (or site-admin access) when consumed at signup.
type Invite struct {
	ID             string     `json:"id"`
	Code           string     `json:"code"`
	Type           InviteType `json:"type"`
	OrganizationID *string    `json:"organization_id,omitempty"`
	Role           string     `json:"role"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	UsedBy         *string    `json:"used_by,omitempty"`
	UsedAt         *time.Time `json:"used_at,omitempty"`
}

// IsValid reports whether the invite can still be consumed. Expiration is
// strict: an invite checked at exactly its expiration instant is expired.
func (i *Invite) IsValid(now time.Time) bool {
	return i.UsedAt == nil && now.Before(i.ExpiresAt)
}

// Revoked invites are marked used without a consumer.
func (i *Invite) Revoked() bool {
	return i.UsedAt != nil && i.UsedBy == nil
}
