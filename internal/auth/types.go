package auth

import "time"

// Status is the lifecycle state of a principal.
type Status string

const (
	StatusEnabled  Status = "enabled"
	StatusDisabled Status = "disabled"
	StatusBlocked  Status = "blocked"
	StatusDeleted  Status = "deleted"

	// StatusPending marks a principal that has not consumed its
	// verification token yet.
	StatusPending Status = "pending"
)

// Principal is an authenticable actor. All six kinds share this shape;
// Kind discriminates and TenantID is populated only for tenant users,
// which are scoped to exactly one tenant at creation time. Hub kinds gain
// tenant access solely through delegation grants, never through fields
// here or claims in their tokens.
type Principal struct {
	ID             string
	Kind           ActorKind
	LoginID        string
	CredentialHash string
	Status         Status
	Authorities    []string
	TenantID       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Eligible reports whether the principal may authenticate. A deleted or
// blocked principal never authenticates regardless of credential validity.
func (p *Principal) Eligible() bool {
	return p != nil && p.Status == StatusEnabled
}

// DelegationGrant authorizes a hub principal to act on one tenant. The
// existence of a grant row is the only source of truth for hub/tenant
// access; hub token claims never encode tenant scope.
type DelegationGrant struct {
	HubID     string
	TenantID  string
	CreatedAt time.Time
}

// TokenPurpose selects a single-use token flow.
type TokenPurpose string

const (
	PurposeVerification  TokenPurpose = "verification"
	PurposePasswordReset TokenPurpose = "password-reset"
)

// SingleUseToken is a random expiring value bound 1:1 to a principal for
// email verification or password reset. At most one live token exists per
// (owner, purpose); regeneration replaces the value on the same row.
type SingleUseToken struct {
	ID        string
	Value     string
	OwnerID   string
	OwnerKind ActorKind
	Purpose   TokenPurpose
	ExpiresAt time.Time
	CreatedAt time.Time
}

// FailureRecord is the per-source-address login failure counter.
type FailureRecord struct {
	Addr        string
	Count       int
	LastFailure time.Time
}
