package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Service is the authentication facade: it ties the codec, issuer,
// principal directory, login throttle, delegation service and single-use
// token manager together behind the operations the host exposes.
type Service struct {
	codec      *Codec
	issuer     *Issuer
	store      Store
	throttle   *Throttle
	delegation *Delegation
	singleUse  *SingleUseManager

	accessTTL       time.Duration
	refreshTTL      time.Duration
	verificationTTL time.Duration
	resetTTL        time.Duration
	maxFailures     int
	blockWindow     time.Duration
	now             func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime. The refresh window is
// expected to exceed the access window by a wide margin.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithServiceVerificationTTL configures the verification-token window.
func WithServiceVerificationTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.verificationTTL = ttl
		}
	}
}

// WithServiceResetTTL configures the password-reset-token window.
func WithServiceResetTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

// WithFailureThreshold configures the throttle threshold and window.
func WithFailureThreshold(n int, window time.Duration) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxFailures = n
		}
		if window > 0 {
			s.blockWindow = window
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs the facade. The signing key must be at least
// MinKeyBytes long; a shorter key is a fatal configuration error.
func NewService(key []byte, store Store, opts ...ServiceOption) (*Service, error) {
	s := &Service{
		store:           store,
		accessTTL:       defaultAccessTTL,
		refreshTTL:      defaultRefreshTTL,
		verificationTTL: defaultVerificationTTL,
		resetTTL:        defaultPasswordResetTTL,
		maxFailures:     defaultMaxFailures,
		blockWindow:     defaultBlockWindow,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	codec, err := NewCodec(key, WithCodecClock(func() time.Time { return s.now() }))
	if err != nil {
		return nil, err
	}
	s.codec = codec
	s.issuer = NewIssuer(codec, s.accessTTL, s.refreshTTL)
	s.throttle = NewThrottle(store.FailureCounters(),
		WithMaxFailures(s.maxFailures),
		WithBlockWindow(s.blockWindow),
		WithThrottleClock(func() time.Time { return s.now() }),
	)
	s.delegation = NewDelegation(store.Grants())
	s.singleUse = NewSingleUseManager(store.SingleUseTokens(), store.Directory(),
		WithVerificationTTL(s.verificationTTL),
		WithPasswordResetTTL(s.resetTTL),
		WithSingleUseClock(func() time.Time { return s.now() }),
	)
	return s, nil
}

// Codec exposes the token codec, used by the scope filters.
func (s *Service) Codec() *Codec { return s.codec }

// Delegation exposes the delegation permission service.
func (s *Service) Delegation() *Delegation { return s.delegation }

// SingleUse exposes the single-use token lifecycle manager.
func (s *Service) SingleUse() *SingleUseManager { return s.singleUse }

// Throttle exposes the login throttle.
func (s *Service) Throttle() *Throttle { return s.throttle }

// Login authenticates a non-hub principal and issues a token pair.
// The throttle is consulted before any hash comparison; unknown
// principals, wrong credentials and ineligible statuses all fail with the
// same ErrBadCredentials shape so accounts cannot be enumerated.
func (s *Service) Login(ctx context.Context, kind ActorKind, loginID, credential, sourceAddr string) (TokenPair, error) {
	loginID = strings.TrimSpace(strings.ToLower(loginID))
	if loginID == "" || credential == "" {
		return TokenPair{}, ErrBadCredentials
	}
	blocked, err := s.throttle.IsBlocked(ctx, sourceAddr)
	if err != nil {
		return TokenPair{}, err
	}
	if blocked {
		return TokenPair{}, ErrBlockedSource
	}
	p, err := s.store.Directory().FindByLoginID(ctx, kind, loginID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			burnCompare(credential)
			return TokenPair{}, s.failLogin(ctx, sourceAddr)
		}
		return TokenPair{}, err
	}
	if !p.Eligible() {
		burnCompare(credential)
		return TokenPair{}, s.failLogin(ctx, sourceAddr)
	}
	if err := VerifyCredential(p.CredentialHash, credential); err != nil {
		return TokenPair{}, s.failLogin(ctx, sourceAddr)
	}
	if err := s.throttle.RecordSuccess(ctx, sourceAddr); err != nil {
		return TokenPair{}, err
	}
	return s.issuer.IssuePair(p)
}

// LoginHub authenticates a hub principal. A hub delegated to a single
// tenant collapses to an ordinary tenant-scoped login; a hub with several
// delegations receives hub tokens and picks a tenant later via
// SwitchTenant. A hub with no delegations cannot log in, and the failure
// is indistinguishable from a bad credential.
func (s *Service) LoginHub(ctx context.Context, kind ActorKind, loginID, credential, sourceAddr string) (TokenPair, error) {
	if !kind.IsHub() {
		return TokenPair{}, ErrKindMismatch
	}
	loginID = strings.TrimSpace(strings.ToLower(loginID))
	if loginID == "" || credential == "" {
		return TokenPair{}, ErrBadCredentials
	}
	blocked, err := s.throttle.IsBlocked(ctx, sourceAddr)
	if err != nil {
		return TokenPair{}, err
	}
	if blocked {
		return TokenPair{}, ErrBlockedSource
	}
	hub, err := s.store.Directory().FindByLoginID(ctx, kind, loginID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			burnCompare(credential)
			return TokenPair{}, s.failLogin(ctx, sourceAddr)
		}
		return TokenPair{}, err
	}
	if !hub.Eligible() {
		burnCompare(credential)
		return TokenPair{}, s.failLogin(ctx, sourceAddr)
	}
	if err := VerifyCredential(hub.CredentialHash, credential); err != nil {
		return TokenPair{}, s.failLogin(ctx, sourceAddr)
	}
	tenants, err := s.delegation.ListTenantsForHub(ctx, hub.ID)
	if err != nil {
		return TokenPair{}, err
	}
	if len(tenants) == 0 {
		// The credential was correct, only the delegation set is empty.
		// Same opaque error as a bad password, but not a brute-force
		// signal, so the source counter is left alone.
		return TokenPair{}, ErrBadCredentials
	}
	if err := s.throttle.RecordSuccess(ctx, sourceAddr); err != nil {
		return TokenPair{}, err
	}
	if len(tenants) == 1 {
		member, err := s.store.Directory().FindByLoginIDAndTenant(ctx, loginID, tenants[0])
		if err == nil && member.Eligible() {
			return s.issuer.IssuePair(member)
		}
		// No usable per-tenant membership; hub tokens still let the user
		// reach the whitelist endpoints.
	}
	return s.issuer.IssuePair(hub)
}

// Refresh validates a refresh token and rotates a fresh pair. The
// principal is re-resolved so current status and authorities apply; a
// principal blocked since the token was minted cannot refresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	if s.codec.Expired(claims) {
		return TokenPair{}, ErrExpiredToken
	}
	actor := Classify(claims)
	if actor.Unauthenticated() {
		return TokenPair{}, ErrInvalidToken
	}
	if actor.Class != ClassRefresh {
		return TokenPair{}, ErrWrongTokenClass
	}
	p, err := s.resolveClaims(ctx, actor.Kind, claims)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	if !p.Eligible() {
		return TokenPair{}, ErrInvalidToken
	}
	return s.issuer.IssuePair(p)
}

// SwitchTenant exchanges a hub access token for a tenant-scoped pair. The
// delegation grant is the only source of truth for the hub/tenant
// relation; the hub token's claims carry no tenant scope to check.
func (s *Service) SwitchTenant(ctx context.Context, hubContext AuthContext, tenantID string) (TokenPair, error) {
	if !hubContext.Kind.IsHub() {
		return TokenPair{}, ErrKindMismatch
	}
	hub, err := s.store.Directory().FindByLoginID(ctx, hubContext.Kind, hubContext.LoginID)
	if err != nil {
		return TokenPair{}, ErrBadCredentials
	}
	ok, err := s.delegation.HasPermissionForTenant(ctx, hub.ID, tenantID)
	if err != nil {
		return TokenPair{}, err
	}
	if !ok {
		return TokenPair{}, ErrBadCredentials
	}
	member, err := s.store.Directory().FindByLoginIDAndTenant(ctx, hub.LoginID, tenantID)
	if err != nil {
		return TokenPair{}, ErrBadCredentials
	}
	if !member.Eligible() {
		return TokenPair{}, ErrBadCredentials
	}
	return s.issuer.IssuePair(member)
}

// TenantsForHub lists the tenants a hub context may switch to.
func (s *Service) TenantsForHub(ctx context.Context, hubContext AuthContext) ([]string, error) {
	if !hubContext.Kind.IsHub() {
		return nil, ErrKindMismatch
	}
	hub, err := s.store.Directory().FindByLoginID(ctx, hubContext.Kind, hubContext.LoginID)
	if err != nil {
		return nil, err
	}
	return s.delegation.ListTenantsForHub(ctx, hub.ID)
}

// Authenticate verifies a presented token and builds the request-scoped
// authentication context. Non-hub principals are re-loaded from the
// directory so a status change invalidates access immediately, even while
// the token itself is still cryptographically valid; their authorities
// come from the current record, not the stale claims. Hub contexts are
// synthesized entirely from claims: there is no credential-backed record
// to consult, only an identity and the fixed hub authority set.
func (s *Service) Authenticate(ctx context.Context, token string) (AuthContext, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		return AuthContext{}, ErrInvalidToken
	}
	if s.codec.Expired(claims) {
		return AuthContext{}, ErrExpiredToken
	}
	actor := Classify(claims)
	if actor.Unauthenticated() {
		return AuthContext{}, ErrInvalidToken
	}
	if actor.Kind.IsHub() {
		return AuthContext{
			LoginID:     claims.Email(),
			Kind:        actor.Kind,
			Class:       actor.Class,
			Authorities: claims.Authorities,
		}, nil
	}
	p, err := s.resolveClaims(ctx, actor.Kind, claims)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthContext{}, ErrInvalidToken
		}
		return AuthContext{}, err
	}
	if !p.Eligible() {
		return AuthContext{}, ErrNotEligible
	}
	authorities := p.Authorities
	if actor.Class == ClassRefresh {
		authorities = []string{AuthorityRefreshOnly}
	}
	return AuthContext{
		PrincipalID: p.ID,
		LoginID:     p.LoginID,
		Kind:        actor.Kind,
		Class:       actor.Class,
		Authorities: authorities,
		TenantID:    p.TenantID,
	}, nil
}

// ConfirmRegistration consumes a verification token; a consumed token
// flips the pending owner to enabled.
func (s *Service) ConfirmRegistration(ctx context.Context, value string) (Outcome, error) {
	return s.singleUse.Validate(ctx, value)
}

// ResendVerification rotates the value of a still-pending verification
// token so a fresh link can be mailed. The old value stops working.
func (s *Service) ResendVerification(ctx context.Context, oldValue string) (*SingleUseToken, error) {
	owner, err := s.singleUse.Owner(ctx, oldValue)
	if err != nil {
		return nil, err
	}
	if owner.Status != StatusPending {
		return nil, ErrNotEligible
	}
	return s.singleUse.Regenerate(ctx, oldValue)
}

// BeginPasswordReset issues a reset token for the named principal. An
// outstanding reset token is rotated instead of duplicated. Whether the
// principal exists is not revealed to the caller beyond the error shape
// the handler flattens.
func (s *Service) BeginPasswordReset(ctx context.Context, kind ActorKind, loginID string) (*SingleUseToken, error) {
	loginID = strings.TrimSpace(strings.ToLower(loginID))
	p, err := s.store.Directory().FindByLoginID(ctx, kind, loginID)
	if err != nil {
		return nil, err
	}
	if !p.Eligible() {
		return nil, ErrNotEligible
	}
	tok, err := s.singleUse.Issue(ctx, p, PurposePasswordReset)
	if errors.Is(err, ErrTokenExists) {
		existing, ferr := s.store.SingleUseTokens().FindByOwner(ctx, p.ID, PurposePasswordReset)
		if ferr != nil {
			return nil, ferr
		}
		return s.singleUse.Regenerate(ctx, existing.Value)
	}
	return tok, err
}

// CompletePasswordReset consumes a reset token and, when it is live,
// installs the new credential on the owner.
func (s *Service) CompletePasswordReset(ctx context.Context, value, newCredential string) (Outcome, error) {
	owner, err := s.singleUse.Owner(ctx, value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return OutcomeInvalid, nil
		}
		return OutcomeInvalid, err
	}
	outcome, err := s.singleUse.Validate(ctx, value)
	if err != nil || outcome != OutcomeConsumed {
		return outcome, err
	}
	hash, err := HashCredential(newCredential)
	if err != nil {
		return OutcomeInvalid, err
	}
	if err := s.store.Directory().UpdateCredential(ctx, owner.ID, hash); err != nil {
		return OutcomeInvalid, err
	}
	return OutcomeConsumed, nil
}

// resolveClaims re-loads the principal named by a token's subject.
func (s *Service) resolveClaims(ctx context.Context, kind ActorKind, claims Claims) (*Principal, error) {
	if tenantID := claims.TenantID(); tenantID != "" {
		return s.store.Directory().FindByLoginIDAndTenant(ctx, claims.Email(), tenantID)
	}
	return s.store.Directory().FindByLoginID(ctx, kind, claims.Email())
}

// failLogin records the failure and returns the uniform credential error.
func (s *Service) failLogin(ctx context.Context, sourceAddr string) error {
	if err := s.throttle.RecordFailure(ctx, sourceAddr); err != nil {
		return err
	}
	return ErrBadCredentials
}
