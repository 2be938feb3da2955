package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chess-arena/internal/game"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	token, err := svc.IssueToken("u1", "alice")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := NewService("test-secret", -time.Minute)

	token, err := svc.IssueToken("u1", "alice")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestWrongSecretRejected(t *testing.T) {
	token, err := NewService("secret-a", time.Hour).IssueToken("u1", "alice")
	require.NoError(t, err)

	_, err = NewService("secret-b", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMalformedTokenRejected(t *testing.T) {
	_, err := NewService("test-secret", time.Hour).ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIdentityFromBearerHeader(t *testing.T) {
	svc := NewService("test-secret", time.Hour)
	token, err := svc.IssueToken("u1", "alice")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	assert.Equal(t, game.Member("u1", "alice"), svc.IdentityFromRequest(r))
}

func TestIdentityUsernameSanitized(t *testing.T) {
	svc := NewService("test-secret", time.Hour)
	token, err := svc.IssueToken("u3", "  spaced\tout\x00name  ")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	assert.Equal(t, game.Member("u3", "spaced outname"), svc.IdentityFromRequest(r))
}

func TestIdentityFromJWTCookie(t *testing.T) {
	svc := NewService("test-secret", time.Hour)
	token, err := svc.IssueToken("u2", "bob")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.AddCookie(&http.Cookie{Name: JWTCookie, Value: token})

	assert.Equal(t, game.Member("u2", "bob"), svc.IdentityFromRequest(r))
}

func TestIdentityFromBrowserCookie(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.AddCookie(&http.Cookie{Name: BrowserIDCookie, Value: "b-123"})

	assert.Equal(t, game.Guest("b-123"), svc.IdentityFromRequest(r))
}

func TestIdentityZeroWithoutCredentials(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, svc.IdentityFromRequest(r).Zero())
}

func TestBadTokenFallsBackToBrowserCookie(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer bogus")
	r.AddCookie(&http.Cookie{Name: BrowserIDCookie, Value: "b-9"})

	assert.Equal(t, game.Guest("b-9"), svc.IdentityFromRequest(r))
}
