package match

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chess-arena/internal/game"
)

// fakeTimer is a pending callback on the virtual clock.
type fakeTimer struct {
	deadline int64
	fn       func()
	stopped  bool
	fired    bool
}

func (t *fakeTimer) Stop() { t.stopped = true }

// fakeScheduler is a hand-stepped clock. advance moves time forward and fires
// due callbacks in deadline order, including ones scheduled by the callbacks
// themselves.
type fakeScheduler struct {
	now    int64
	timers []*fakeTimer
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{now: 1_000_000}
}

func (s *fakeScheduler) Schedule(delay time.Duration, fn func()) Timer {
	t := &fakeTimer{deadline: s.now + delay.Milliseconds(), fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) Now() int64 { return s.now }

func (s *fakeScheduler) advance(d time.Duration) {
	target := s.now + d.Milliseconds()
	for {
		next := s.nextDue(target)
		if next == nil {
			break
		}
		s.now = next.deadline
		next.fired = true
		next.fn()
	}
	s.now = target
}

func (s *fakeScheduler) nextDue(limit int64) *fakeTimer {
	var best *fakeTimer
	for _, t := range s.timers {
		if t.stopped || t.fired || t.deadline > limit {
			continue
		}
		if best == nil || t.deadline < best.deadline {
			best = t
		}
	}
	return best
}

// pending counts armed timers, to assert nothing is left ticking.
func (s *fakeScheduler) pending() int {
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type sentMsg struct {
	route  string
	action string
	value  any
}

// fakeConn records every send and mimics the transport's subscription slot.
type fakeConn struct {
	id       string
	identity game.PlayerIdentity
	sent     []sentMsg

	subID    int64
	subColor game.Color
	subOK    bool
}

func newFakeConn(id string, identity game.PlayerIdentity) *fakeConn {
	return &fakeConn{id: id, identity: identity}
}

func (c *fakeConn) ID() string                    { return c.id }
func (c *fakeConn) Identity() game.PlayerIdentity { return c.identity }

func (c *fakeConn) SendGame(action string, value any) {
	c.sent = append(c.sent, sentMsg{route: "game", action: action, value: value})
}

func (c *fakeConn) SendGeneral(action string, value any) {
	c.sent = append(c.sent, sentMsg{route: "general", action: action, value: value})
}

func (c *fakeConn) SubscribeGame(gameID int64, color game.Color) {
	c.subID, c.subColor, c.subOK = gameID, color, true
}

func (c *fakeConn) UnsubscribeGame() { c.subOK = false }

func (c *fakeConn) GameSub() (int64, game.Color, bool) {
	return c.subID, c.subColor, c.subOK
}

func (c *fakeConn) clear() { c.sent = nil }

// last returns the most recent message with the given action.
func (c *fakeConn) last(action string) (sentMsg, bool) {
	for i := len(c.sent) - 1; i >= 0; i-- {
		if c.sent[i].action == action {
			return c.sent[i], true
		}
	}
	return sentMsg{}, false
}

func (c *fakeConn) count(action string) int {
	n := 0
	for _, msg := range c.sent {
		if msg.action == action {
			n++
		}
	}
	return n
}

// indexOf is the position of the first message with the action, or -1.
func (c *fakeConn) indexOf(action string) int {
	for i, msg := range c.sent {
		if msg.action == action {
			return i
		}
	}
	return -1
}

type unloggedEntry struct {
	m     *Match
	cause error
}

// fakeStore is an in-memory Storage.
type fakeStore struct {
	nextID     int64
	changes    map[game.Color]RatingChange
	logErr     error
	logged     []*Match
	unlogged   []unloggedEntry
	loggedInfo map[int64]any
	ratings    map[string]RatingState
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:     1000,
		loggedInfo: make(map[int64]any),
		ratings:    make(map[string]RatingState),
	}
}

func (s *fakeStore) MintGameID(_ context.Context, live func(int64) bool) (int64, error) {
	for {
		s.nextID++
		if !live(s.nextID) {
			return s.nextID, nil
		}
	}
}

func (s *fakeStore) LogGame(_ context.Context, m *Match) (map[game.Color]RatingChange, error) {
	if s.logErr != nil {
		return nil, s.logErr
	}
	s.logged = append(s.logged, m)
	return s.changes, nil
}

func (s *fakeStore) SaveUnlogged(_ context.Context, m *Match, cause error) {
	s.unlogged = append(s.unlogged, unloggedEntry{m: m, cause: cause})
}

func (s *fakeStore) LoggedGameInfo(_ context.Context, gameID int64) (any, bool) {
	info, ok := s.loggedInfo[gameID]
	return info, ok
}

func (s *fakeStore) LeaderboardRating(_ context.Context, userID, _ string) RatingState {
	if r, ok := s.ratings[userID]; ok {
		return r
	}
	return RatingState{Value: 1500, Confident: false}
}

type fakeAbuse struct {
	calls []map[game.Color]RatingChange
}

func (a *fakeAbuse) GameLogged(_ *Match, changes map[game.Color]RatingChange) {
	a.calls = append(a.calls, changes)
}

type tamperRecord struct {
	identity game.PlayerIdentity
	gameID   int64
	action   string
	detail   string
}

type fakeAudit struct {
	records []tamperRecord
}

func (a *fakeAudit) Tamper(id game.PlayerIdentity, gameID int64, action, detail, _ string) {
	a.records = append(a.records, tamperRecord{identity: id, gameID: gameID, action: action, detail: detail})
}

// fixture wires a coordinator against fakes, with two member players.
type fixture struct {
	t        *testing.T
	sched    *fakeScheduler
	store    *fakeStore
	abuse    *fakeAbuse
	audit    *fakeAudit
	registry *Registry
	index    *ActivePlayersIndex
	coord    *Coordinator
	router   *Router
	white    *fakeConn
	black    *fakeConn
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		sched:    newFakeScheduler(),
		store:    newFakeStore(),
		abuse:    &fakeAbuse{},
		audit:    &fakeAudit{},
		registry: NewRegistry(),
		index:    NewActivePlayersIndex(),
		white:    newFakeConn("conn-w", game.Member("u-alice", "alice")),
		black:    newFakeConn("conn-b", game.Member("u-bob", "bob")),
	}
	f.coord = NewCoordinator(f.registry, f.index, f.sched, f.store, f.abuse, f.audit, zap.NewNop())
	f.router = NewRouter(f.coord)
	return f
}

type gameOpts struct {
	control   string
	rated     bool
	publicity Publicity
	noBlack   bool // black seat starts without a socket
}

func (f *fixture) createGame(opts gameOpts) *Match {
	f.t.Helper()
	if opts.control == "" {
		opts.control = "600+5"
	}
	if opts.publicity == "" {
		opts.publicity = PublicityPublic
	}
	tc, err := game.ParseTimeControl(opts.control)
	require.NoError(f.t, err)

	seats := map[game.Color]Seat{
		game.White: {Identity: f.white.identity, Conn: f.white},
		game.Black: {Identity: f.black.identity, Conn: f.black},
	}
	if opts.noBlack {
		seats[game.Black] = Seat{Identity: f.black.identity}
	}

	m, err := f.coord.CreateGame(context.Background(), GameParams{
		Variant:     "Classical",
		TimeControl: tc,
		Rated:       opts.rated,
		Publicity:   opts.publicity,
		Seats:       seats,
	})
	require.NoError(f.t, err)
	f.white.clear()
	f.black.clear()
	return m
}

func (f *fixture) handle(conn *fakeConn, action string, value any) {
	f.t.Helper()
	var raw json.RawMessage
	if value != nil {
		data, err := json.Marshal(value)
		require.NoError(f.t, err)
		raw = data
	}
	f.router.Handle(context.Background(), conn, action, raw)
}

func (f *fixture) submit(conn *fakeConn, moveNumber int, move string) {
	f.t.Helper()
	f.handle(conn, ActionSubmitMove, SubmitMovePayload{Move: move, MoveNumber: moveNumber})
}

// playPlies appends n alternating plies from wherever the game stands, using
// short moves that stay under every distance cap, then clears the recorded
// traffic so tests only see what they trigger themselves.
func (f *fixture) playPlies(m *Match, n int) {
	f.t.Helper()
	moves := []string{"4,2>4,4", "4,7>4,5", "3,1>4,3", "2,8>3,6", "5,2>5,3", "3,8>6,5"}
	start := m.Base.MoveCount()
	for i := start; i < start+n; i++ {
		conn := f.white
		if i%2 == 1 {
			conn = f.black
		}
		f.submit(conn, i+1, moves[i%len(moves)])
	}
	require.Equal(f.t, start+n, m.Base.MoveCount(), "fixture plies must all be accepted")
	f.white.clear()
	f.black.clear()
}
