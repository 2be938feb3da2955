package match

import (
	"sync"

	"chess-arena/internal/game"
)

// ActivePlayersIndex maps identities to the game currently binding them. A
// member is gated by the member map alone even if the same browser also shows
// up in the guest map. Entries outlive the game's conclusion until the player
// acknowledges it, which is what keeps reconnect-into-your-game working.
type ActivePlayersIndex struct {
	mu            sync.RWMutex
	memberInGame  map[string]int64
	browserInGame map[string]int64
}

func NewActivePlayersIndex() *ActivePlayersIndex {
	return &ActivePlayersIndex{
		memberInGame:  make(map[string]int64),
		browserInGame: make(map[string]int64),
	}
}

// Add binds the identity to the game.
func (i *ActivePlayersIndex) Add(id game.PlayerIdentity, gameID int64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if id.IsMember() {
		i.memberInGame[id.UserID] = gameID
	} else {
		i.browserInGame[id.BrowserID] = gameID
	}
}

// Remove unbinds the identity, but only from the given game: a speedy rejoin
// that already bound the identity to a newer game must not be clobbered by a
// late removal from the old one.
func (i *ActivePlayersIndex) Remove(id game.PlayerIdentity, gameID int64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if id.IsMember() {
		if i.memberInGame[id.UserID] == gameID {
			delete(i.memberInGame, id.UserID)
		}
		return
	}
	if i.browserInGame[id.BrowserID] == gameID {
		delete(i.browserInGame, id.BrowserID)
	}
}

// IsBusy reports whether the identity is bound to any game.
func (i *ActivePlayersIndex) IsBusy(id game.PlayerIdentity) bool {
	_, ok := i.lookup(id)
	return ok
}

// GameIDOf returns the game binding the identity.
func (i *ActivePlayersIndex) GameIDOf(id game.PlayerIdentity) (int64, bool) {
	return i.lookup(id)
}

func (i *ActivePlayersIndex) lookup(id game.PlayerIdentity) (int64, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if id.IsMember() {
		gameID, ok := i.memberInGame[id.UserID]
		return gameID, ok
	}
	gameID, ok := i.browserInGame[id.BrowserID]
	return gameID, ok
}
