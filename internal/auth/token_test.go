package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenManager(t *testing.T, now func() time.Time) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager(TokenConfig{Secret: "test-secret", Now: now})
	require.NoError(t, err)
	return tm
}

func TestNewTokenManager_RequiresSecret(t *testing.T) {
	_, err := NewTokenManager(TokenConfig{})
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestNewTokenManager_DefaultTTL(t *testing.T) {
	tm := newTestTokenManager(t, nil)
	assert.Equal(t, DefaultTokenTTL, tm.TTL())
}

func TestTokenManager_IssueAndVerify(t *testing.T) {
	tm := newTestTokenManager(t, nil)

	token, expiresAt, err := tm.Issue(Identity{ID: 42, Email: "alice@example.com"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(DefaultTokenTTL), expiresAt, 5*time.Second)

	claims, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.NotEmpty(t, claims.ID)
	require.NotNil(t, claims.IssuedAt)
	require.NotNil(t, claims.ExpiresAt)

	identity, err := claims.Identity()
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: 42, Email: "alice@example.com"}, identity)
}

func TestTokenManager_UniqueTokenIDs(t *testing.T) {
	tm := newTestTokenManager(t, nil)

	first, _, err := tm.Issue(Identity{ID: 1, Email: "a@example.com"})
	require.NoError(t, err)
	second, _, err := tm.Issue(Identity{ID: 1, Email: "a@example.com"})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	past := func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }
	issuer := newTestTokenManager(t, past)
	verifier := newTestTokenManager(t, nil)

	token, expiresAt, err := issuer.Issue(Identity{ID: 7, Email: "old@example.com"})
	require.NoError(t, err)
	assert.True(t, expiresAt.Before(time.Now()))

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenManager_RejectsInvalid(t *testing.T) {
	tm := newTestTokenManager(t, nil)
	other, err := NewTokenManager(TokenConfig{Secret: "another-secret"})
	require.NoError(t, err)

	foreign, _, err := other.Issue(Identity{ID: 1, Email: "a@example.com"})
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Email: "a@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Email:            "a@example.com",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1"},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Email: "a@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "not-a-number",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "notavalidjwt"},
		{"three segments of garbage", "invalid.token.here"},
		{"wrong secret", foreign},
		{"alg none", unsigned},
		{"missing expiry", noExpiry},
		{"non numeric subject", badSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tm.Verify(tt.token)
			assert.ErrorIs(t, err, ErrTokenMalformed)
		})
	}
}

func TestTokenManager_VerifyIdentity(t *testing.T) {
	tm := newTestTokenManager(t, nil)

	token, _, err := tm.Issue(Identity{ID: 9, Email: "nine@example.com"})
	require.NoError(t, err)

	identity, err := tm.VerifyIdentity(token)
	require.NoError(t, err)
	assert.Equal(t, int64(9), identity.ID)
	assert.Equal(t, "nine@example.com", identity.Email)
}
