package auth

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"chess-arena/internal/game"
	"chess-arena/internal/utils"
)

// Cookie names shared with the web client.
const (
	JWTCookie       = "jwt"
	BrowserIDCookie = "browser-id"
)

// IdentityFromRequest resolves who is making the request. A valid session
// token, from the Authorization header or the jwt cookie, yields a member.
// Failing that, the browser-id cookie yields a guest. Anything else is the
// zero identity, which can watch but never hold a seat.
func (s *Service) IdentityFromRequest(r *http.Request) game.PlayerIdentity {
	if token := bearerToken(r); token != "" {
		if claims, err := s.ValidateToken(token); err == nil {
			return game.Member(claims.UserID, utils.SanitizeDisplayName(claims.Username))
		}
	}
	if c, err := r.Cookie(JWTCookie); err == nil && c.Value != "" {
		if claims, err := s.ValidateToken(c.Value); err == nil {
			return game.Member(claims.UserID, utils.SanitizeDisplayName(claims.Username))
		}
	}
	if c, err := r.Cookie(BrowserIDCookie); err == nil && c.Value != "" {
		return game.Guest(c.Value)
	}
	return game.PlayerIdentity{}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// NewBrowserID mints the identifier stored in a guest's browser-id cookie.
func NewBrowserID() string {
	return uuid.NewString()
}
