/*
Package auth is the boundary to the external identity system.

PURPOSE:
  The core never compares role strings itself. It receives an Actor resolved
  from the session and asks an injected Authorizer whether the actor holds a
  capability. Swapping the identity provider means swapping the Authorizer and
  the token verifier, nothing else.

CAPABILITIES:
  CanReviewTransfers(actor)                 staff review of bank transfers
  CanViewNotificationsFor(actor, recipient) reading or mutating an inbox

SEE ALSO:
  - authorizer.go: RoleAuthorizer, the default capability table
  - token.go:      bearer token verification (HS256 JWT)
*/
package auth

import "context"

// Role is the coarse role carried in the session token.
type Role string

const (
	RoleResident Role = "resident"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system" // schedulers, settlement jobs
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleResident, RoleStaff, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID      string
	Role    Role
	UnitRef string // empty for staff without a unit
}

// System returns the actor used by background jobs.
func System() Actor {
	return Actor{ID: "system", Role: RoleSystem}
}

type actorKey struct{}

// WithActor stores the actor in ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the actor stored by WithActor.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
