package auth

import (
	"errors"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the validity window used when none is configured.
const DefaultTokenTTL = 7 * 24 * time.Hour

var (
	// ErrMissingSecret means the signing secret was not configured.
	ErrMissingSecret = errors.New("token signing secret is required")
	// ErrTokenMalformed covers unparsable, unsigned or wrongly signed tokens.
	ErrTokenMalformed = errors.New("token is malformed or has an invalid signature")
	// ErrTokenExpired means the token was well formed but is past its expiry.
	ErrTokenExpired = errors.New("token has expired")
)

// Identity is the caller resolved from a verified token.
type Identity struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// TokenConfig configures a TokenManager.
type TokenConfig struct {
	Secret string
	TTL    time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TokenManager{secret: []byte(cfg.Secret), ttl: ttl, now: now}, nil
}

// Claims describes JWT payload. The registered subject carries the user id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Identity converts verified claims into the caller identity.
func (c *Claims) Identity() (Identity, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return Identity{}, ErrTokenMalformed
	}
	return Identity{ID: id, Email: c.Email}, nil
}

// Issue builds and signs a JWT for the identity.
func (tm *TokenManager) Issue(identity Identity) (string, time.Time, error) {
	issuedAt := tm.now()
	expiresAt := issuedAt.Add(tm.ttl)
	claims := &Claims{
		Email: identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(identity.ID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Verify validates the signature and expiry and returns the claims.
func (tm *TokenManager) Verify(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if _, err := claims.Identity(); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyIdentity verifies the token and returns the identity it carries.
func (tm *TokenManager) VerifyIdentity(tokenStr string) (Identity, error) {
	claims, err := tm.Verify(tokenStr)
	if err != nil {
		return Identity{}, err
	}
	return claims.Identity()
}

// TTL returns the configured validity window.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}
