package match

import (
	"chess-arena/internal/game"
)

// MinPliesBetweenDrawOffers throttles repeat offers by the same color. The
// client enforces the same constant; a violation reaching the server is
// tampering or a stale client.
const MinPliesBetweenDrawOffers = 2

// drawOfferOpen reports whether any offer is on the table.
func (m *Match) drawOfferOpen() bool {
	return m.DrawOfferBy != ""
}

// drawOfferOpenBy reports whether color has the open offer.
func (m *Match) drawOfferOpenBy(color game.Color) bool {
	return m.DrawOfferBy == color
}

// drawOfferTooFast is true when color's previous offer is fewer than
// MinPliesBetweenDrawOffers plies behind the current move list.
func (m *Match) drawOfferTooFast(color game.Color) bool {
	last := m.Players[color].LastOfferPly
	if last == nil {
		return false
	}
	return m.Base.MoveCount()-*last < MinPliesBetweenDrawOffers
}

// openDrawOffer records color's offer at the current ply. Callers have
// already verified the game is running, resignable, offer-free, and not
// throttled.
func (m *Match) openDrawOffer(color game.Color) {
	ply := m.Base.MoveCount()
	m.Players[color].LastOfferPly = &ply
	m.DrawOfferBy = color
}

// closeDrawOffer clears the table; the last-offer ply stays as the throttle
// anchor.
func (m *Match) closeDrawOffer() {
	m.DrawOfferBy = ""
}
