package permissions

import (
	"errors"

	"redbud/internal/platform/models"
	"redbud/internal/platform/repositories"
)

// ErrForbidden is the authorization failure surfaced when a caller lacks
// the required role. It carries no information about resource existence.
var ErrForbidden = errors.New("insufficient permissions")

// Evaluator derives effective capabilities for a (user, organization)
// pair from membership state. All predicates are read-only; site admins
// satisfy every organization-level check through the same composed
// predicate rather than per-endpoint special cases.
type Evaluator struct {
	memberships *repositories.MembershipRepository
}

func NewEvaluator(memberships *repositories.MembershipRepository) *Evaluator {
	return &Evaluator{memberships: memberships}
}

func (e *Evaluator) IsSiteAdmin(user *models.User) bool {
	return user != nil && user.IsSiteAdmin
}

func (e *Evaluator) IsOrgMember(user *models.User, orgID string) (bool, error) {
	if user == nil {
		return false, nil
	}
	if e.IsSiteAdmin(user) {
		return true, nil
	}
	m, err := e.memberships.GetActive(user.ID, orgID)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

func (e *Evaluator) IsOrgAdmin(user *models.User, orgID string) (bool, error) {
	if user == nil {
		return false, nil
	}
	if e.IsSiteAdmin(user) {
		return true, nil
	}
	m, err := e.memberships.GetActive(user.ID, orgID)
	if err != nil {
		return false, err
	}
	return m != nil && m.Role == models.RoleAdmin, nil
}

func (e *Evaluator) CanManageOrganization(user *models.User, orgID string) (bool, error) {
	return e.IsOrgAdmin(user, orgID)
}

// RequireMember returns ErrForbidden unless the user may read the
// organization's records.
func (e *Evaluator) RequireMember(user *models.User, orgID string) error {
	ok, err := e.IsOrgMember(user, orgID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// RequireManage returns ErrForbidden unless the user may administer the
// organization.
func (e *Evaluator) RequireManage(user *models.User, orgID string) error {
	ok, err := e.CanManageOrganization(user, orgID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// RequireSiteAdmin returns ErrForbidden unless the user's global admin
// flag is set.
func (e *Evaluator) RequireSiteAdmin(user *models.User) error {
	if !e.IsSiteAdmin(user) {
		return ErrForbidden
	}
	return nil
}
