package auth

import "errors"

// ErrUnauthorized is returned when the actor lacks a capability. It is checked
// before any state is touched.
var ErrUnauthorized = errors.New("unauthorized")

// Authorizer answers capability questions for the core.
type Authorizer interface {
	CanReviewTransfers(actor Actor) bool
	CanViewNotificationsFor(actor Actor, recipientRef string) bool
}

// RoleAuthorizer maps roles to capabilities.
type RoleAuthorizer struct {
	// Reviewers may verify or reject transfers.
	Reviewers map[Role]bool
	// Supervisors may read and mutate any inbox.
	Supervisors map[Role]bool
}

// NewRoleAuthorizer returns the default table: staff, admins and system jobs
// review transfers; only admins and system jobs see other people's inboxes.
func NewRoleAuthorizer() *RoleAuthorizer {
	return &RoleAuthorizer{
		Reviewers:   map[Role]bool{RoleStaff: true, RoleAdmin: true, RoleSystem: true},
		Supervisors: map[Role]bool{RoleAdmin: true, RoleSystem: true},
	}
}

func (a *RoleAuthorizer) CanReviewTransfers(actor Actor) bool {
	return actor.ID != "" && a.Reviewers[actor.Role]
}

func (a *RoleAuthorizer) CanViewNotificationsFor(actor Actor, recipientRef string) bool {
	if actor.ID == "" {
		return false
	}
	return actor.ID == recipientRef || a.Supervisors[actor.Role]
}

// Require turns a capability answer into ErrUnauthorized.
func Require(allowed bool) error {
	if !allowed {
		return ErrUnauthorized
	}
	return nil
}
