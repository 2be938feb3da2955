package match

import (
	"sync"
)

// CountListener observes the active-game counter. The invite manager hangs
// its "gamecount" broadcast here.
type CountListener func(count int)

// Registry owns every live Match plus the active-game counter. The counter is
// deliberately separate from the map size: it drops at conclusion, while the
// map entry lives on through the post-game cushion until deletion.
type Registry struct {
	mu          sync.RWMutex
	games       map[int64]*Match
	activeGames int
	listeners   []CountListener
}

func NewRegistry() *Registry {
	return &Registry{games: make(map[int64]*Match)}
}

// Add registers a live game.
func (r *Registry) Add(m *Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[m.ID] = m
}

// Remove drops the game. Idempotent.
func (r *Registry) Remove(gameID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.games, gameID)
}

// Get fetches a live game.
func (r *Registry) Get(gameID int64) (*Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.games[gameID]
	return m, ok
}

// Has reports id liveness, used when minting fresh ids.
func (r *Registry) Has(gameID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.games[gameID]
	return ok
}

// All snapshots the live games for iteration outside the registry lock.
func (r *Registry) All() []*Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*Match, 0, len(r.games))
	for _, m := range r.games {
		all = append(all, m)
	}
	return all
}

// OnCountChange registers a listener for active-game count drops. Must be
// wired before games start; not safe to call concurrently with games running.
func (r *Registry) OnCountChange(fn CountListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// IncrementCount raises the counter without broadcasting: game creation is
// announced by the invite manager itself when the invite is consumed.
func (r *Registry) IncrementCount() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeGames++
}

// DecrementCount lowers the counter and fans the new value out to listeners.
func (r *Registry) DecrementCount() {
	r.mu.Lock()
	r.activeGames--
	count := r.activeGames
	listeners := r.listeners
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(count)
	}
}

// Count reads the active-game counter.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeGames
}
