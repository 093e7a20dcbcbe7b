package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"tavolo.org/internal/ids"
)

const (
	defaultVerificationTTL  = 1440 * time.Minute
	defaultPasswordResetTTL = 60 * time.Minute
)

// Outcome is the result of validating a single-use token. The string
// values are user facing: these flows are driven by email links and
// benefit from explicit feedback, unlike bearer-token errors.
type Outcome string

const (
	OutcomeConsumed Outcome = "valid"
	OutcomeExpired  Outcome = "expired"
	OutcomeInvalid  Outcome = "invalidToken"
)

// SingleUseManager drives the ISSUED -> (CONSUMED | EXPIRED | REGENERATED)
// lifecycle of verification and password-reset tokens. Expiry is checked
// lazily at validation time; stale rows wait for the next validation or an
// external cleanup job.
type SingleUseManager struct {
	store           SingleUseTokenStore
	directory       Directory
	verificationTTL time.Duration
	resetTTL        time.Duration
	now             func() time.Time
}

// SingleUseOption configures a SingleUseManager.
type SingleUseOption func(*SingleUseManager)

// WithVerificationTTL sets the verification-token window.
func WithVerificationTTL(ttl time.Duration) SingleUseOption {
	return func(m *SingleUseManager) {
		if ttl > 0 {
			m.verificationTTL = ttl
		}
	}
}

// WithPasswordResetTTL sets the reset-token window.
func WithPasswordResetTTL(ttl time.Duration) SingleUseOption {
	return func(m *SingleUseManager) {
		if ttl > 0 {
			m.resetTTL = ttl
		}
	}
}

// WithSingleUseClock overrides the time source (useful for tests).
func WithSingleUseClock(now func() time.Time) SingleUseOption {
	return func(m *SingleUseManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewSingleUseManager constructs the manager. The directory is needed so
// consuming a verification token can enable the owning principal.
func NewSingleUseManager(store SingleUseTokenStore, directory Directory, opts ...SingleUseOption) *SingleUseManager {
	m := &SingleUseManager{
		store:           store,
		directory:       directory,
		verificationTTL: defaultVerificationTTL,
		resetTTL:        defaultPasswordResetTTL,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue creates a fresh token for the principal and purpose. If a live
// token of the same purpose already exists the call fails with
// ErrTokenExists; callers regenerate instead, so duplicate live tokens
// cannot accumulate. The store's uniqueness constraint backs this up
// against concurrent issue calls.
func (m *SingleUseManager) Issue(ctx context.Context, p *Principal, purpose TokenPurpose) (*SingleUseToken, error) {
	if p == nil || p.ID == "" {
		return nil, ErrNotFound
	}
	if _, err := m.store.FindByOwner(ctx, p.ID, purpose); err == nil {
		return nil, ErrTokenExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	tok := &SingleUseToken{
		ID:        ids.New(),
		Value:     uuid.NewString(),
		OwnerID:   p.ID,
		OwnerKind: p.Kind,
		Purpose:   purpose,
		ExpiresAt: m.now().Add(m.ttlFor(purpose)),
	}
	if err := m.store.Create(ctx, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// Validate resolves a presented value. Unknown values are Invalid. An
// expired token is deleted as a side effect and reported Expired. A live
// token is consumed: the row is deleted (true single use) and, for
// verification tokens, the owner transitions from pending to enabled.
func (m *SingleUseManager) Validate(ctx context.Context, value string) (Outcome, error) {
	tok, err := m.store.FindByValue(ctx, value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return OutcomeInvalid, nil
		}
		return OutcomeInvalid, err
	}
	if m.now().After(tok.ExpiresAt) {
		if err := m.store.Delete(ctx, tok.ID); err != nil {
			return OutcomeExpired, err
		}
		return OutcomeExpired, nil
	}
	if tok.Purpose == PurposeVerification {
		owner, err := m.directory.FindByID(ctx, tok.OwnerID)
		if err != nil {
			return OutcomeInvalid, err
		}
		if owner.Status != StatusPending {
			return OutcomeInvalid, nil
		}
		if err := m.directory.UpdateStatus(ctx, owner.ID, StatusEnabled); err != nil {
			return OutcomeInvalid, err
		}
	}
	if err := m.store.Delete(ctx, tok.ID); err != nil {
		return OutcomeInvalid, err
	}
	return OutcomeConsumed, nil
}

// Regenerate replaces the value and resets the expiry of an existing
// token, keeping the same row identity. Unknown old values fail with
// ErrNotFound.
func (m *SingleUseManager) Regenerate(ctx context.Context, oldValue string) (*SingleUseToken, error) {
	tok, err := m.store.FindByValue(ctx, oldValue)
	if err != nil {
		return nil, err
	}
	tok.Value = uuid.NewString()
	tok.ExpiresAt = m.now().Add(m.ttlFor(tok.Purpose))
	if err := m.store.Replace(ctx, tok.ID, tok.Value, tok.ExpiresAt); err != nil {
		return nil, err
	}
	return tok, nil
}

// Owner resolves the principal a token value belongs to without consuming
// it, used by resend flows to address the email.
func (m *SingleUseManager) Owner(ctx context.Context, value string) (*Principal, error) {
	tok, err := m.store.FindByValue(ctx, value)
	if err != nil {
		return nil, err
	}
	return m.directory.FindByID(ctx, tok.OwnerID)
}

func (m *SingleUseManager) ttlFor(purpose TokenPurpose) time.Duration {
	if purpose == PurposePasswordReset {
		return m.resetTTL
	}
	return m.verificationTTL
}
