package auth

import (
	"context"
	"time"
)

// Store aggregates the persistence collaborators the subsystem consumes.
type Store interface {
	Directory() Directory
	Grants() GrantStore
	SingleUseTokens() SingleUseTokenStore
	FailureCounters() FailureCounterStore
}

// Directory resolves login identifiers to principal records.
type Directory interface {
	// FindByLoginID resolves a principal of the given kind by its login
	// identifier. Returns ErrNotFound when no such principal exists.
	FindByLoginID(ctx context.Context, kind ActorKind, loginID string) (*Principal, error)

	// FindByLoginIDAndTenant resolves a tenant-scoped principal. Only
	// meaningful for tenant-scoped kinds.
	FindByLoginIDAndTenant(ctx context.Context, loginID, tenantID string) (*Principal, error)

	// UpdateStatus persists a status transition, e.g. enabling an account
	// when its verification token is consumed.
	UpdateStatus(ctx context.Context, principalID string, status Status) error

	// UpdateCredential replaces the stored credential hash after a
	// completed password-reset flow.
	UpdateCredential(ctx context.Context, principalID, credentialHash string) error

	// FindByID loads a principal by id, used by single-use token flows.
	FindByID(ctx context.Context, principalID string) (*Principal, error)
}

// GrantStore answers delegation queries. Reads must observe committed
// grant changes immediately (read-after-write, not eventual).
type GrantStore interface {
	Exists(ctx context.Context, hubID, tenantID string) (bool, error)
	ListTenants(ctx context.Context, hubID string) ([]string, error)
}

// SingleUseTokenStore persists verification and password-reset tokens.
// Create must enforce the at-most-one-live-token-per-(owner, purpose)
// invariant atomically, e.g. with a uniqueness constraint, not a
// read-then-write check.
type SingleUseTokenStore interface {
	Create(ctx context.Context, tok *SingleUseToken) error
	FindByValue(ctx context.Context, value string) (*SingleUseToken, error)
	FindByOwner(ctx context.Context, ownerID string, purpose TokenPurpose) (*SingleUseToken, error)
	// Replace swaps value and expiry on an existing row, keeping its id so
	// foreign keys pointing at the record survive regeneration.
	Replace(ctx context.Context, id, newValue string, expiresAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// FailureCounterStore holds the login throttle's per-address counters.
// Increment must be atomic per key so concurrent failures never
// under-count.
type FailureCounterStore interface {
	// Increment bumps the counter and stamps the failure time, returning
	// the record after the bump. A record whose last failure is before
	// staleBefore has aged out of the blocking window and restarts at 1.
	Increment(ctx context.Context, addr string, at, staleBefore time.Time) (FailureRecord, error)
	Get(ctx context.Context, addr string) (FailureRecord, error)
	Reset(ctx context.Context, addr string) error
}
