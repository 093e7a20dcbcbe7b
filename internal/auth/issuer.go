package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Fixed authority markers. RefreshOnly is the sole authority on every
// refresh token so a stolen refresh token can never perform privileged
// actions directly. Hub access tokens carry the synthetic hub set; the
// real per-tenant restriction is applied later by the delegation service.
const (
	AuthorityRefreshOnly    = "REFRESH_ONLY"
	AuthorityHub            = "HUB"
	AuthorityChangePassword = "CHANGE_PASSWORD"
)

const (
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Issuer builds access and refresh tokens for authenticated principals.
type Issuer struct {
	codec      *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewIssuer constructs an Issuer over the codec. The refresh window is
// expected to be much longer than the access window.
func NewIssuer(codec *Codec, accessTTL, refreshTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	return &Issuer{codec: codec, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// TokenPair carries freshly issued tokens and their expirations.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// IssueAccessToken signs an access token carrying the principal's full
// authority set. The kind marker comes from the principal record; an
// unrecognized kind is an error, never a permissive default.
func (i *Issuer) IssueAccessToken(p *Principal) (string, time.Time, error) {
	if p == nil || !p.Kind.Valid() {
		return "", time.Time{}, fmt.Errorf("issue access token: unrecognized principal kind %q", kindString(p))
	}
	if p.Kind.IsHub() {
		return i.IssueHubAccessToken(p)
	}
	return i.sign(subjectFor(p), p.Kind, ClassAccess, p.Authorities, i.accessTTL)
}

// IssueRefreshToken signs a refresh token whose authorities are exactly
// {REFRESH_ONLY}, regardless of the principal's real authority set.
func (i *Issuer) IssueRefreshToken(p *Principal) (string, time.Time, error) {
	if p == nil || !p.Kind.Valid() {
		return "", time.Time{}, fmt.Errorf("issue refresh token: unrecognized principal kind %q", kindString(p))
	}
	if p.Kind.IsHub() {
		return i.IssueHubRefreshToken(p)
	}
	return i.sign(subjectFor(p), p.Kind, ClassRefresh, []string{AuthorityRefreshOnly}, i.refreshTTL)
}

// IssueHubAccessToken signs an access token for a hub principal. The
// subject is the hub's email only: no tenant id is ever embedded, hub
// privileges are resolved per request via delegation grants.
func (i *Issuer) IssueHubAccessToken(hub *Principal) (string, time.Time, error) {
	if hub == nil || !hub.Kind.IsHub() {
		return "", time.Time{}, fmt.Errorf("issue hub access token: principal kind %q is not a hub", kindString(hub))
	}
	authorities := []string{AuthorityHub, AuthorityChangePassword}
	return i.sign(hub.LoginID, hub.Kind, ClassAccess, authorities, i.accessTTL)
}

// IssueHubRefreshToken signs a refresh token for a hub principal.
func (i *Issuer) IssueHubRefreshToken(hub *Principal) (string, time.Time, error) {
	if hub == nil || !hub.Kind.IsHub() {
		return "", time.Time{}, fmt.Errorf("issue hub refresh token: principal kind %q is not a hub", kindString(hub))
	}
	return i.sign(hub.LoginID, hub.Kind, ClassRefresh, []string{AuthorityRefreshOnly}, i.refreshTTL)
}

// IssuePair issues the access/refresh pair handed out by login and
// refresh flows.
func (i *Issuer) IssuePair(p *Principal) (TokenPair, error) {
	access, accessExp, err := i.IssueAccessToken(p)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := i.IssueRefreshToken(p)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (i *Issuer) sign(subject string, kind ActorKind, class TokenClass, authorities []string, ttl time.Duration) (string, time.Time, error) {
	now := i.codec.Now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Authorities: authorities,
		ActorKind:   string(kind),
		TokenClass:  string(class),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token, err := i.codec.Sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// subjectFor builds the token subject: tenant-scoped users are encoded
// as "email:tenantID", everything else is the bare login identifier. Hub
// subjects never carry a tenant id.
func subjectFor(p *Principal) string {
	if (p.Kind == KindTenantUser || p.Kind == KindAgencyUser) && p.TenantID != "" {
		return p.LoginID + ":" + p.TenantID
	}
	return p.LoginID
}

func kindString(p *Principal) string {
	if p == nil {
		return "<nil>"
	}
	return string(p.Kind)
}
