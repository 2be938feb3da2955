package match

import (
	"chess-arena/internal/game"
)

// Conn is the transport handle the coordinator holds for a participant. The
// game side owns the strong reference (PlayerData.Conn); the socket keeps only
// the {gameId, color} back-reference behind SubscribeGame, never the game
// itself.
//
// Sends are best-effort and must not block the caller: a dead socket is
// noticed later as a closure, not as a send error.
type Conn interface {
	// ID identifies the connection in logs.
	ID() string
	// Identity is the authenticated player behind the socket.
	Identity() game.PlayerIdentity
	// SendGame emits a message on the "game" route.
	SendGame(action string, value any)
	// SendGeneral emits a message on the "general" route.
	SendGeneral(action string, value any)
	// SubscribeGame attaches the {gameId, color} back-reference.
	SubscribeGame(gameID int64, color game.Color)
	// UnsubscribeGame clears the back-reference.
	UnsubscribeGame()
	// GameSub reads the back-reference.
	GameSub() (gameID int64, color game.Color, ok bool)
}

// Seat is one side of a game at creation time. Conn may be nil when the
// player's socket dropped between invite acceptance and game start; the
// coordinator then opens the game with a disconnect timer already running.
type Seat struct {
	Identity game.PlayerIdentity
	Conn     Conn
}
