package match

import (
	"sync"

	"chess-arena/internal/game"
)

// Publicity says who may observe and report a game.
type Publicity string

const (
	PublicityPublic  Publicity = "public"
	PublicityPrivate Publicity = "private"
)

// Match is one live served game: the board-facing BaseGame plus everything
// the coordinator tracks around it. All fields are guarded by mu; handlers
// and timer callbacks serialize on it, so a given game never sees two
// mutations at once.
type Match struct {
	mu sync.Mutex

	ID          int64
	Base        *game.BaseGame
	TimeCreated int64
	TimeEnded   *int64
	Publicity   Publicity
	Rated       bool
	Players     map[game.Color]*PlayerData

	// Open draw offer, empty when none.
	DrawOfferBy game.Color

	// Pending timers. autoTimeLoss is rescheduled on every push in timed
	// games; afkResign exists only for untimed ones.
	autoTimeLoss  Timer
	afkResign     Timer
	AFKResignTime *int64
	deleteTimer   Timer

	// A pasted position makes the game unverifiable, so it must never reach
	// the persistent store. One-way flag.
	PositionPasted bool

	deleted bool
}

// colorOf finds which seat an identity occupies, or empty.
func (m *Match) colorOf(id game.PlayerIdentity) game.Color {
	for color, pd := range m.Players {
		if pd.Identity.Equal(id) {
			return color
		}
	}
	return ""
}

// opponentConn is the live socket of color's opponent, or nil.
func (m *Match) opponentConn(color game.Color) Conn {
	opp := m.Players[color.Invert()]
	if opp == nil {
		return nil
	}
	return opp.Conn
}

// eachConn visits every attached socket.
func (m *Match) eachConn(fn func(color game.Color, conn Conn)) {
	for color, pd := range m.Players {
		if pd.Conn != nil {
			fn(color, pd.Conn)
		}
	}
}

func (m *Match) cancelAutoTimeLoss() {
	stopTimer(&m.autoTimeLoss)
}

func (m *Match) cancelDeleteTimer() {
	stopTimer(&m.deleteTimer)
}

// IsPrivate reports whether the game is hidden from public listings and
// exempt from cheat reports.
func (m *Match) IsPrivate() bool {
	return m.Publicity == PublicityPrivate
}
