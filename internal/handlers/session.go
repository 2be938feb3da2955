package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"chess-arena/internal/auth"
)

const browserIDLifetime = 365 * 24 * time.Hour

// SessionHandler mints guest identities: a browser-id cookie that keys the
// guest's seats across reconnects.
type SessionHandler struct {
	secureCookies bool
	log           *zap.Logger
}

func NewSessionHandler(secureCookies bool, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{secureCookies: secureCookies, log: logger}
}

// CreateGuestSession hands out a browser id.
// POST /api/session/guest
func (h *SessionHandler) CreateGuestSession(w http.ResponseWriter, r *http.Request) {
	// A browser that already has an id keeps it: regenerating would orphan a
	// live game seat keyed on the old one.
	if c, err := r.Cookie(auth.BrowserIDCookie); err == nil && c.Value != "" {
		respondWithJSON(w, http.StatusOK, map[string]string{"browserId": c.Value})
		return
	}

	id := auth.NewBrowserID()
	http.SetCookie(w, &http.Cookie{
		Name:     auth.BrowserIDCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(browserIDLifetime.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	h.log.Debug("guest session minted", zap.String("browserID", id))
	respondWithJSON(w, http.StatusCreated, map[string]string{"browserId": id})
}
