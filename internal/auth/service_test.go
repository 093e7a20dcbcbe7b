package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

const testPassword = "correct horse battery staple"

func serviceFixture(t *testing.T, opts ...ServiceOption) (*Service, *MemStore) {
	t.Helper()
	store := NewMemStore()
	svc, err := NewService(testKey, store, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func addEnabled(t *testing.T, store *MemStore, id string, kind ActorKind, loginID string) *Principal {
	t.Helper()
	hash, err := HashCredential(testPassword)
	if err != nil {
		t.Fatalf("HashCredential: %v", err)
	}
	p := &Principal{
		ID:             id,
		Kind:           kind,
		LoginID:        loginID,
		CredentialHash: hash,
		Status:         StatusEnabled,
		Authorities:    []string{"USER"},
	}
	store.AddPrincipal(p)
	return p
}

func TestServiceRejectsShortKey(t *testing.T) {
	if _, err := NewService([]byte("short"), NewMemStore()); !errors.Is(err, ErrKeyTooShort) {
		t.Fatalf("expected ErrKeyTooShort, got %v", err)
	}
}

func TestServiceLogin(t *testing.T) {
	ctx := context.Background()
	svc, store := serviceFixture(t)
	addEnabled(t, store, "c-1", KindCustomer, "diner@example.com")

	pair, err := svc.Login(ctx, KindCustomer, "Diner@Example.com", testPassword, "10.0.0.1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	claims, err := svc.Codec().Verify(pair.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "diner@example.com" {
		t.Fatalf("subject = %q", claims.Subject)
	}
	actor := Classify(claims)
	if actor.Kind != KindCustomer || actor.Class != ClassAccess {
		t.Fatalf("classified as %+v", actor)
	}
}

// Unknown account, wrong password and ineligible status must produce one
// indistinguishable failure; none of them may leak which case occurred.
func TestServiceLoginFailuresAreUniform(t *testing.T) {
	ctx := context.Background()
	svc, store := serviceFixture(t)
	addEnabled(t, store, "c-1", KindCustomer, "diner@example.com")

	hash, _ := HashCredential(testPassword)
	store.AddPrincipal(&Principal{
		ID: "c-2", Kind: KindCustomer, LoginID: "blocked@example.com",
		CredentialHash: hash, Status: StatusBlocked,
	})

	cases := []struct {
		name     string
		loginID  string
		password string
	}{
		{"unknown account", "ghost@example.com", testPassword},
		{"wrong password", "diner@example.com", "wrong"},
		{"blocked account right password", "blocked@example.com", testPassword},
		{"wrong kind", "diner@example.com", testPassword},
	}
	for _, tc := range cases {
		kind := KindCustomer
		if tc.name == "wrong kind" {
			kind = KindAdmin
		}
		_, err := svc.Login(ctx, kind, tc.loginID, tc.password, "10.0.0.1")
		if !errors.Is(err, ErrBadCredentials) {
			t.Fatalf("%s: error = %v, want ErrBadCredentials", tc.name, err)
		}
	}
}

func TestServiceLoginBlocksAfterRepeatedFailures(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, store := serviceFixture(t,
		WithFailureThreshold(3, 10*time.Minute),
		WithClock(func() time.Time { return now }),
	)
	addEnabled(t, store, "c-1", KindCustomer, "diner@example.com")

	for i := 0; i < 3; i++ {
		if _, err := svc.Login(ctx, KindCustomer, "diner@example.com", "wrong", "10.0.0.9"); !errors.Is(err, ErrBadCredentials) {
			t.Fatalf("failure %d: %v", i+1, err)
		}
	}

	// Even the correct password is refused while the source is blocked.
	if _, err := svc.Login(ctx, KindCustomer, "diner@example.com", testPassword, "10.0.0.9"); !errors.Is(err, ErrBlockedSource) {
		t.Fatalf("expected ErrBlockedSource, got %v", err)
	}

	// A different source is unaffected.
	if _, err := svc.Login(ctx, KindCustomer, "diner@example.com", testPassword, "10.0.0.10"); err != nil {
		t.Fatalf("clean source: %v", err)
	}

	// The block lapses once the window passes without further failures.
	now = now.Add(11 * time.Minute)
	if _, err := svc.Login(ctx, KindCustomer, "diner@example.com", testPassword, "10.0.0.9"); err != nil {
		t.Fatalf("after window: %v", err)
	}
}

// A hub with exactly one delegation collapses to an ordinary tenant login
// when a per-tenant membership exists.
func TestServiceLoginHubSingleGrantCollapses(t *testing.T) {
	ctx := context.Background()
	svc, store := serviceFixture(t)
	hub := addEnabled(t, store, "h-1", KindTenantHub, "host@trattoria.it")
	store.AddGrant(hub.ID, "t-42")

	hash, _ := HashCredential(testPassword)
	store.AddPrincipal(&Principal{
		ID: "m-1", Kind: KindTenantUser, LoginID: "host@trattoria.it",
		CredentialHash: hash, Status: StatusEnabled, TenantID: "t-42",
		Authorities: []string{"MANAGER"},
	})

	pair, err := svc.LoginHub(ctx, KindTenantHub, "host@trattoria.it", testPassword, "10.0.0.1")
	if err != nil {
		t.Fatalf("LoginHub: %v", err)
	}
	claims, err := svc.Codec().Verify(pair.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "host@trattoria.it:t-42" {
		t.Fatalf("subject = %q, want tenant-scoped", claims.Subject)
	}
	if Classify(claims).Kind != KindTenantUser {
		t.Fatalf("kind = %q, want collapse to tenant-user", claims.ActorKind)
	}
}

func TestServiceLoginHubMultipleGrantsStaysHub(t *testing.T) {
	ctx := context.Background()
	svc, store := serviceFixture(t)
	hub := addEnabled(t, store, "h-1", KindTenantHub, "host@trattoria.it")
	store.AddGrant(hub.ID, "t-1")
	store.AddGrant(hub.ID, "t-2")

	pair, err := svc.LoginHub(ctx, KindTenantHub, "host@trattoria.it", testPassword, "10.0.0.1")
	if err != nil {
		t.Fatalf("LoginHub: %v", err)
	}
	claims, err := svc.Codec().Verify(pair.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if Classify(claims).Kind != KindTenantHub {
		t.Fatalf("kind = %q, want hub", claims.ActorKind)
	}
	if !claims.HasAuthority(AuthorityHub) {
		t.Fatalf("authorities = %v", claims.Authorities)
	}
	if claims.TenantID() != "" {
		t.Fatalf("hub token leaked tenant %q", claims.TenantID())
	}
}

// A hub with zero delegations cannot log in, and the refusal looks
// exactly like a bad credential. The credential itself was correct, so
// the attempt must not count toward the source's brute-force tally.
func TestServiceLoginHubWithoutGrants(t *testing.T) {
	ctx := context.Background()
	svc, store := serviceFixture(t, WithFailureThreshold(2, 10*time.Minute))
	hub := addEnabled(t, store, "h-1", KindTenantHub, "host@trattoria.it")

	for i := 0; i < 3; i++ {
		if _, err := svc.LoginHub(ctx, KindTenantHub, "host@trattoria.it", testPassword, "10.0.0.1"); !errors.Is(err, ErrBadCredentials) {
			t.Fatalf("attempt %d: expected ErrBadCredentials, got %v", i+1, err)
		}
	}

	if _, err := store.FailureCounters().Get(ctx, "10.0.0.1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected untouched counter, got %v", err)
	}

	// Granting a delegation makes the same source log in immediately.
	store.AddGrant(hub.ID, "t-1")
	if _, err := svc.LoginHub(ctx, KindTenantHub, "host@trattoria.it", testPassword, "10.0.0.1"); err != nil {
		t.Fatalf("LoginHub after grant: %v", err)
	}
}

func TestServiceLoginHubRejectsNonHubKind(t *testing.T) {
	ctx := context.Background()
	svc, _ := serviceFixture(t)
	if _, err := svc.LoginHub(ctx, KindCustomer, "x", "y", "10.0.0.1"); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch, got %v", err)
	}
}

func TestServiceRefresh(t *testing.T) {
	ctx := context.Background()
	svc, store := serviceFixture(t)
	addEnabled(t, store, "c-1", KindCustomer, "diner@example.com")

	pair, err := svc.Login(ctx, KindCustomer, "diner@example.com", testPassword, "10.0.0.1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rotated.AccessToken == "" || rotated.RefreshToken == "" {
		t.Fatal("incomplete rotated pair")
	}

	// An access token is never accepted by the refresh flow.
	if _, err := svc.Refresh(ctx, pair.AccessToken); !errors.Is(err, ErrWrongTokenClass) {
		t.Fatalf("access token refresh: expected ErrWrongTokenClass, got %v", err)
	}
}

// A refresh token outlives a status change only cryptographically: the
// directory re-check refuses the rotation.
func TestServiceRefreshRejectsBlockedPrincipal(t *testing.T) {
	ctx := context.Background()
	svc, store := serviceFixture(t)
	p := addEnabled(t, store, "c-1", KindCustomer, "diner@example.com")

	pair, err := svc.Login(ctx, KindCustomer, "diner@example.com", testPassword, "10.0.0.1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := store.Directory().UpdateStatus(ctx, p.ID, StatusBlocked); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

// A valid unexpired access token stops working the moment the principal
// is blocked: current status wins over claims.
func TestServiceAuthenticateRechecksStatus(t *testing.T) {
	ctx := context.Background()
	svc, store := serviceFixture(t)
	p := addEnabled(t, store, "c-1", KindCustomer, "diner@example.com")

	pair, err := svc.Login(ctx, KindCustomer, "diner@example.com", testPassword, "10.0.0.1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	ac, err := svc.Authenticate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if ac.PrincipalID != p.ID || ac.Kind != KindCustomer || ac.Class != ClassAccess {
		t.Fatalf("context = %+v", ac)
	}

	if err := store.Directory().UpdateStatus(ctx, p.ID, StatusBlocked); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if _, err := svc.Authenticate(ctx, pair.AccessToken); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
}

// Authorities reconcile from the current directory record, not the stale
// claims baked into the token.
func TestServiceAuthenticateUsesCurrentAuthorities(t *testing.T) {
	ctx := context.Background()
	svc, store := serviceFixture(t)
	p := addEnabled(t, store, "a-1", KindAdmin, "ops@tavolo.local")

	pair, err := svc.Login(ctx, KindAdmin, "ops@tavolo.local", testPassword, "10.0.0.1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// The record's authorities change after issuance.
	p.Authorities = []string{"USER", "REPORTS"}
	store.AddPrincipal(p)

	ac, err := svc.Authenticate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !ac.HasAuthority("REPORTS") {
		t.Fatalf("authorities = %v, want reconciled set", ac.Authorities)
	}
}

func TestServiceAuthenticateRefreshTokenIsRefreshOnly(t *testing.T) {
	ctx := context.Background()
	svc, store := serviceFixture(t)
	addEnabled(t, store, "c-1", KindCustomer, "diner@example.com")

	pair, err := svc.Login(ctx, KindCustomer, "diner@example.com", testPassword, "10.0.0.1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	ac, err := svc.Authenticate(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if ac.Class != ClassRefresh {
		t.Fatalf("class = %q", ac.Class)
	}
	if len(ac.Authorities) != 1 || ac.Authorities[0] != AuthorityRefreshOnly {
		t.Fatalf("authorities = %v", ac.Authorities)
	}
}

func TestServiceSwitchTenant(t *testing.T) {
	ctx := context.Background()
	svc, store := serviceFixture(t)
	hub := addEnabled(t, store, "h-1", KindTenantHub, "host@trattoria.it")
	store.AddGrant(hub.ID, "t-1")
	store.AddGrant(hub.ID, "t-2")

	hash, _ := HashCredential(testPassword)
	store.AddPrincipal(&Principal{
		ID: "m-1", Kind: KindTenantUser, LoginID: "host@trattoria.it",
		CredentialHash: hash, Status: StatusEnabled, TenantID: "t-2",
	})

	hubCtx := AuthContext{LoginID: "host@trattoria.it", Kind: KindTenantHub, Class: ClassAccess}

	pair, err := svc.SwitchTenant(ctx, hubCtx, "t-2")
	if err != nil {
		t.Fatalf("SwitchTenant: %v", err)
	}
	claims, err := svc.Codec().Verify(pair.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "host@trattoria.it:t-2" {
		t.Fatalf("subject = %q", claims.Subject)
	}

	// No grant, no switch, even though t-9 may exist.
	if _, err := svc.SwitchTenant(ctx, hubCtx, "t-9"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("ungranted switch: expected ErrBadCredentials, got %v", err)
	}

	// Non-hub contexts cannot switch at all.
	userCtx := AuthContext{LoginID: "host@trattoria.it", Kind: KindTenantUser, Class: ClassAccess}
	if _, err := svc.SwitchTenant(ctx, userCtx, "t-2"); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("non-hub switch: expected ErrKindMismatch, got %v", err)
	}
}

func TestServiceTenantsForHub(t *testing.T) {
	ctx := context.Background()
	svc, store := serviceFixture(t)
	hub := addEnabled(t, store, "h-1", KindTenantHub, "host@trattoria.it")
	store.AddGrant(hub.ID, "t-1")
	store.AddGrant(hub.ID, "t-2")

	hubCtx := AuthContext{LoginID: "host@trattoria.it", Kind: KindTenantHub, Class: ClassAccess}
	tenants, err := svc.TenantsForHub(ctx, hubCtx)
	if err != nil {
		t.Fatalf("TenantsForHub: %v", err)
	}
	if len(tenants) != 2 {
		t.Fatalf("tenants = %v", tenants)
	}
}

func TestServicePasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	svc, store := serviceFixture(t)
	addEnabled(t, store, "c-1", KindCustomer, "diner@example.com")

	tok, err := svc.BeginPasswordReset(ctx, KindCustomer, "diner@example.com")
	if err != nil {
		t.Fatalf("BeginPasswordReset: %v", err)
	}

	// A second request rotates the existing token instead of failing.
	rotated, err := svc.BeginPasswordReset(ctx, KindCustomer, "diner@example.com")
	if err != nil {
		t.Fatalf("second BeginPasswordReset: %v", err)
	}
	if rotated.ID != tok.ID {
		t.Fatalf("second token id %q, want rotation of %q", rotated.ID, tok.ID)
	}
	if rotated.Value == tok.Value {
		t.Fatal("value not rotated")
	}

	outcome, err := svc.CompletePasswordReset(ctx, rotated.Value, "new password 123")
	if err != nil {
		t.Fatalf("CompletePasswordReset: %v", err)
	}
	if outcome != OutcomeConsumed {
		t.Fatalf("outcome = %q", outcome)
	}

	// Old credential is out, new credential is in.
	if _, err := svc.Login(ctx, KindCustomer, "diner@example.com", testPassword, "10.0.0.1"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("old credential still accepted: %v", err)
	}
	if _, err := svc.Login(ctx, KindCustomer, "diner@example.com", "new password 123", "10.0.0.2"); err != nil {
		t.Fatalf("new credential: %v", err)
	}

	// The consumed value is dead.
	outcome, err = svc.CompletePasswordReset(ctx, rotated.Value, "another")
	if err != nil {
		t.Fatalf("replay CompletePasswordReset: %v", err)
	}
	if outcome != OutcomeInvalid {
		t.Fatalf("replay outcome = %q", outcome)
	}
}

func TestServiceConfirmRegistration(t *testing.T) {
	ctx := context.Background()
	svc, store := serviceFixture(t)
	p := &Principal{
		ID: "c-1", Kind: KindCustomer, LoginID: "diner@example.com",
		Status: StatusPending,
	}
	store.AddPrincipal(p)

	tok, err := svc.SingleUse().Issue(ctx, p, PurposeVerification)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	outcome, err := svc.ConfirmRegistration(ctx, tok.Value)
	if err != nil {
		t.Fatalf("ConfirmRegistration: %v", err)
	}
	if outcome != OutcomeConsumed {
		t.Fatalf("outcome = %q", outcome)
	}
	owner, err := store.Directory().FindByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if owner.Status != StatusEnabled {
		t.Fatalf("status = %q", owner.Status)
	}
}

func TestServiceResendVerification(t *testing.T) {
	ctx := context.Background()
	svc, store := serviceFixture(t)
	p := &Principal{
		ID: "c-1", Kind: KindCustomer, LoginID: "diner@example.com",
		Status: StatusPending,
	}
	store.AddPrincipal(p)

	tok, err := svc.SingleUse().Issue(ctx, p, PurposeVerification)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	fresh, err := svc.ResendVerification(ctx, tok.Value)
	if err != nil {
		t.Fatalf("ResendVerification: %v", err)
	}
	if fresh.Value == tok.Value {
		t.Fatal("value not rotated")
	}

	// An already-enabled owner gets no resend.
	if err := store.Directory().UpdateStatus(ctx, p.ID, StatusEnabled); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if _, err := svc.ResendVerification(ctx, fresh.Value); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
}
