package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultIssuer = "tavolo"

	// MinKeyBytes is the minimum HMAC key length. Shorter keys are a fatal
	// configuration error, refused at construction time.
	MinKeyBytes = 32
)

// Claims is the claim set carried by every bearer token.
type Claims struct {
	Authorities []string `json:"authorities,omitempty"`
	ActorKind   string   `json:"actor_kind,omitempty"`
	TokenClass  string   `json:"token_class,omitempty"`
	jwt.RegisteredClaims
}

// Email returns the login identifier part of the subject. Tenant-user
// subjects have the form "email:tenantID"; every other kind carries the
// bare email.
func (c Claims) Email() string {
	if i := strings.IndexByte(c.Subject, ':'); i >= 0 {
		return c.Subject[:i]
	}
	return c.Subject
}

// TenantID returns the tenant scope embedded in a tenant-user subject, or
// "" when the subject carries none. Hub tokens never embed a tenant id.
func (c Claims) TenantID() string {
	if i := strings.IndexByte(c.Subject, ':'); i >= 0 {
		return c.Subject[i+1:]
	}
	return ""
}

// HasAuthority reports whether the claim set carries the authority.
func (c Claims) HasAuthority(a string) bool {
	for _, have := range c.Authorities {
		if have == a {
			return true
		}
	}
	return false
}

// Codec signs and verifies compact bearer tokens with HS256. It is a pure
// function of the key and the injected clock, safe for unlimited parallel
// use.
type Codec struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithCodecIssuer overrides the issuer claim stamped on signed tokens.
func WithCodecIssuer(issuer string) CodecOption {
	return func(c *Codec) {
		if s := strings.TrimSpace(issuer); s != "" {
			c.issuer = s
		}
	}
}

// WithCodecClock overrides the time source (useful for tests).
func WithCodecClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec constructs a Codec. Keys shorter than MinKeyBytes are refused;
// callers are expected to treat that as fatal at startup.
func NewCodec(key []byte, opts ...CodecOption) (*Codec, error) {
	if len(key) < MinKeyBytes {
		return nil, ErrKeyTooShort
	}
	c := &Codec{
		key:    key,
		issuer: defaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Sign produces a compact signed token for the claim set. The issuer and
// issued-at claims are stamped here; the caller supplies subject, expiry,
// kind and class.
func (c *Codec) Sign(claims Claims) (string, error) {
	claims.Issuer = c.issuer
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(c.now().UTC())
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", ErrInvalidToken
	}
	return signed, nil
}

// Verify checks signature, structure and algorithm and returns the claim
// set. Expiry is deliberately NOT enforced here: expired-but-well-formed
// tokens must remain inspectable so callers can classify and log them.
// Callers enforce expiry via ExtractExpiration or Claims.ExpiresAt.
func (c *Codec) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return c.key, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Issuer != c.issuer {
		return Claims{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, ErrInvalidToken
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return Claims{}, ErrInvalidToken
	}
	return *claims, nil
}

// ExtractExpiration returns the expiry of a signature-valid token.
func (c *Codec) ExtractExpiration(token string) (time.Time, error) {
	claims, err := c.Verify(token)
	if err != nil {
		return time.Time{}, err
	}
	return claims.ExpiresAt.Time, nil
}

// Expired reports whether the claim set has expired against the codec
// clock.
func (c *Codec) Expired(claims Claims) bool {
	if claims.ExpiresAt == nil {
		return true
	}
	return c.now().After(claims.ExpiresAt.Time)
}

// Now exposes the codec clock so collaborators share one time source.
func (c *Codec) Now() time.Time {
	return c.now()
}
