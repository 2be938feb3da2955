package match

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chess-arena/internal/game"
)

func TestCreateGameDeliversJoinPayloads(t *testing.T) {
	f := newFixture(t)
	tc, err := game.ParseTimeControl("600+5")
	require.NoError(t, err)

	m, err := f.coord.CreateGame(context.Background(), GameParams{
		Variant:     "Classical",
		TimeControl: tc,
		Rated:       true,
		Publicity:   PublicityPublic,
		Seats: map[game.Color]Seat{
			game.White: {Identity: f.white.identity, Conn: f.white},
			game.Black: {Identity: f.black.identity, Conn: f.black},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.registry.Count())
	assert.True(t, f.registry.Has(m.ID))
	assert.True(t, f.index.IsBusy(f.white.identity))
	assert.True(t, f.index.IsBusy(f.black.identity))

	msg, ok := f.white.last(MsgJoinGame)
	require.True(t, ok)
	payload := msg.value.(JoinGamePayload)
	assert.Equal(t, game.White, payload.YouAreColor)
	assert.Equal(t, m.ID, payload.GameInfo.ID)
	assert.True(t, payload.GameInfo.Rated)
	assert.Equal(t, "alice", payload.GameInfo.Players[game.White].Username)
	assert.Equal(t, "Rated Classical game", payload.Metadata.Event)
	assert.Equal(t, "600+5", payload.Metadata.TimeControl)
	assert.Equal(t, "1500?", payload.Metadata.WhiteElo, "provisional ratings carry the question mark")
	require.NotNil(t, payload.ClockValues)
	assert.Empty(t, payload.Moves)

	msg, ok = f.black.last(MsgJoinGame)
	require.True(t, ok)
	assert.Equal(t, game.Black, msg.value.(JoinGamePayload).YouAreColor)

	gameID, color, subbed := f.white.GameSub()
	require.True(t, subbed)
	assert.Equal(t, m.ID, gameID)
	assert.Equal(t, game.White, color)
}

func TestCreateGameCasualSkipsRatingLookup(t *testing.T) {
	f := newFixture(t)
	m := f.createGame(gameOpts{rated: false})
	assert.Empty(t, m.Base.Metadata.WhiteElo)
	assert.Empty(t, m.Base.Metadata.BlackElo)
	assert.Equal(t, "Casual Classical game", m.Base.Metadata.Event)
}

func TestCreateGameAbsentSeatStartsCountdown(t *testing.T) {
	f := newFixture(t)

	tc, err := game.ParseTimeControl("600+5")
	require.NoError(t, err)
	m, err := f.coord.CreateGame(context.Background(), GameParams{
		Variant:     "Classical",
		TimeControl: tc,
		Publicity:   PublicityPublic,
		Seats: map[game.Color]Seat{
			game.White: {Identity: f.white.identity, Conn: f.white},
			game.Black: {Identity: f.black.identity}, // socket lost before start
		},
	})
	require.NoError(t, err)

	msg, ok := f.white.last(MsgOpponentDisconnect)
	require.True(t, ok, "white must see black's countdown from the start")
	info := msg.value.(DisconnectInfo)
	assert.Equal(t, AutoResignByChoice.Milliseconds(), info.MillisUntilAutoDisconnectResign)
	assert.True(t, info.WasByChoice)

	f.sched.advance(AutoResignByChoice)
	require.True(t, m.Base.IsOver())
	assert.Equal(t, game.ConditionAborted, m.Base.Conclusion.Condition,
		"no moves were played, so the expiry aborts instead of resigning")
}

func TestConclusionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	m := f.createGame(gameOpts{})
	f.playPlies(m, 3)

	f.handle(f.white, ActionResign, nil)
	require.True(t, m.Base.IsOver())
	assert.Equal(t, game.ConditionResignation, m.Base.Conclusion.Condition)
	assert.Equal(t, 0, f.registry.Count())

	// A second terminal action must neither change the verdict nor
	// double-decrement the counter.
	f.handle(f.black, ActionResign, nil)
	assert.Equal(t, game.ConditionResignation, m.Base.Conclusion.Condition)
	assert.Equal(t, game.Black, m.Base.Conclusion.Victor)
	assert.Equal(t, 0, f.registry.Count())
}

func TestConcludedGameFlushesAfterCushion(t *testing.T) {
	f := newFixture(t)
	m := f.createGame(gameOpts{})
	f.playPlies(m, 3)
	f.handle(f.white, ActionResign, nil)

	assert.True(t, f.registry.Has(m.ID), "the game lingers through the cushion")
	f.sched.advance(GameDeletionCushion)

	assert.False(t, f.registry.Has(m.ID))
	require.Len(t, f.store.logged, 1)
	assert.Same(t, m, f.store.logged[0])
	assert.False(t, f.index.IsBusy(f.white.identity))
	assert.False(t, f.index.IsBusy(f.black.identity))

	_, ok := f.white.last(MsgUnsub)
	assert.True(t, ok)
	_, _, subbed := f.white.GameSub()
	assert.False(t, subbed)
	assert.Len(t, f.abuse.calls, 1)
}

func TestRemovalByBothSkipsTheCushion(t *testing.T) {
	f := newFixture(t)
	m := f.createGame(gameOpts{})
	f.playPlies(m, 3)
	f.handle(f.black, ActionResign, nil)

	f.handle(f.white, ActionRemoveFromActive, nil)
	_, ok := f.white.last(MsgLeaveGame)
	assert.True(t, ok)
	assert.False(t, f.index.IsBusy(f.white.identity))
	assert.True(t, f.registry.Has(m.ID), "one acknowledgement is not enough")

	f.handle(f.black, ActionRemoveFromActive, nil)
	assert.False(t, f.registry.Has(m.ID), "both acknowledged, no reason to wait")
	require.Len(t, f.store.logged, 1)

	// The cushion timer firing later must not log a second time.
	f.sched.advance(GameDeletionCushion)
	assert.Len(t, f.store.logged, 1)
}

func TestRemovalBeforeConclusionRejected(t *testing.T) {
	f := newFixture(t)
	m := f.createGame(gameOpts{})
	f.playPlies(m, 2)

	f.handle(f.white, ActionRemoveFromActive, nil)
	_, ok := f.white.last(MsgPrintError)
	assert.True(t, ok)
	assert.True(t, f.index.IsBusy(f.white.identity))
}

func TestPastedGameIsNeverPersisted(t *testing.T) {
	f := newFixture(t)
	m := f.createGame(gameOpts{control: "-", publicity: PublicityPrivate})
	f.playPlies(m, 2)

	f.handle(f.white, ActionPaste, nil)
	require.True(t, m.PositionPasted)

	f.handle(f.white, ActionResign, nil)
	f.sched.advance(GameDeletionCushion)

	assert.Empty(t, f.store.logged)
	assert.Empty(t, f.store.unlogged)
	assert.Empty(t, f.abuse.calls, "unverifiable games are not rating evidence")
	assert.False(t, f.registry.Has(m.ID), "the game is still torn down normally")
	assert.False(t, f.index.IsBusy(f.white.identity))
}

func TestRolledBackLogIsParkedForRetry(t *testing.T) {
	f := newFixture(t)
	cause := errors.New("transaction aborted")
	f.store.logErr = cause

	m := f.createGame(gameOpts{})
	f.playPlies(m, 3)
	f.handle(f.white, ActionResign, nil)
	f.sched.advance(GameDeletionCushion)

	assert.Empty(t, f.store.logged)
	require.Len(t, f.store.unlogged, 1)
	assert.Same(t, m, f.store.unlogged[0].m)
	assert.ErrorIs(t, f.store.unlogged[0].cause, cause)

	// Resources are released even when persistence failed.
	assert.False(t, f.registry.Has(m.ID))
	assert.False(t, f.index.IsBusy(f.white.identity))
	_, ok := f.white.last(MsgUnsub)
	assert.True(t, ok)
}

func TestRatingChangesReachBothSeatsBeforeUnsub(t *testing.T) {
	f := newFixture(t)
	f.store.changes = map[game.Color]RatingChange{
		game.White: {NewRating: RatingState{Value: 1512.3, Confident: true}, Change: 12.3},
		game.Black: {NewRating: RatingState{Value: 1489.1, Confident: true}, Change: -10.9},
	}

	m := f.createGame(gameOpts{rated: true})
	f.playPlies(m, 3)
	f.handle(f.white, ActionResign, nil)
	f.sched.advance(GameDeletionCushion)

	for _, conn := range []*fakeConn{f.white, f.black} {
		msg, ok := conn.last(MsgGameRatingChange)
		require.True(t, ok)
		change := msg.value.(*RatingChangeMessage)
		assert.Equal(t, m.ID, change.GameID)
		assert.InDelta(t, 12.3, change.PerColor[game.White].Change, 1e-9)
		assert.InDelta(t, -10.9, change.PerColor[game.Black].Change, 1e-9)

		ratingIdx := conn.indexOf(MsgGameRatingChange)
		unsubIdx := conn.indexOf(MsgUnsub)
		assert.Less(t, ratingIdx, unsubIdx, "rating change must land while still subscribed")
	}

	require.Len(t, f.abuse.calls, 1)
	assert.Equal(t, f.store.changes, f.abuse.calls[0])
}

func TestLogAllGamesAbortsWhatIsStillRunning(t *testing.T) {
	f := newFixture(t)
	running := f.createGame(gameOpts{})
	f.playPlies(running, 2)

	whiteTwo := newFakeConn("conn-w2", game.Member("u-carol", "carol"))
	blackTwo := newFakeConn("conn-b2", game.Member("u-dave", "dave"))
	tc, err := game.ParseTimeControl("600+5")
	require.NoError(t, err)
	finished, err := f.coord.CreateGame(context.Background(), GameParams{
		Variant:     "Classical",
		TimeControl: tc,
		Publicity:   PublicityPublic,
		Seats: map[game.Color]Seat{
			game.White: {Identity: whiteTwo.identity, Conn: whiteTwo},
			game.Black: {Identity: blackTwo.identity, Conn: blackTwo},
		},
	})
	require.NoError(t, err)
	f.handle(whiteTwo, ActionAbort, nil)
	require.True(t, finished.Base.IsOver())

	f.coord.LogAllGames(context.Background())

	assert.Len(t, f.store.logged, 2)
	assert.True(t, running.Base.IsOver())
	assert.Equal(t, game.ConditionAborted, running.Base.Conclusion.Condition)
	assert.Equal(t, game.ConditionAborted, finished.Base.Conclusion.Condition)
	assert.Empty(t, f.registry.All())
	assert.Equal(t, 0, f.registry.Count())

	msg, ok := f.white.last(MsgGameUpdate)
	require.True(t, ok, "players of the running game hear the forced conclusion")
	update := msg.value.(GameUpdatePayload)
	require.NotNil(t, update.GameConclusion)
	assert.Equal(t, game.ConditionAborted, update.GameConclusion.Condition)
}

func TestRestartAnnouncementReachesGamesAndLatePayloads(t *testing.T) {
	f := newFixture(t)
	f.createGame(gameOpts{})

	restartAt := f.sched.Now() + 30_000
	f.coord.BroadcastGameRestarting(restartAt)

	for _, conn := range []*fakeConn{f.white, f.black} {
		msg, ok := conn.last(MsgServerRestart)
		require.True(t, ok)
		assert.Equal(t, restartAt, msg.value.(ServerRestartPayload).TimeToRestart)
	}

	// A reconnect after the announcement still learns about it.
	fresh := newFakeConn("conn-w-next", f.white.identity)
	f.handle(fresh, ActionJoinGame, nil)
	msg, ok := fresh.last(MsgJoinGame)
	require.True(t, ok)
	payload := msg.value.(JoinGamePayload)
	require.NotNil(t, payload.ServerRestartingAt)
	assert.Equal(t, restartAt, *payload.ServerRestartingAt)
}

func TestMintedIDsSkipLiveGames(t *testing.T) {
	f := newFixture(t)
	first := f.createGame(gameOpts{})

	// Force the fake store to hand out the live id again.
	f.store.nextID = first.ID - 1

	whiteTwo := newFakeConn("conn-w2", game.Member("u-carol", "carol"))
	blackTwo := newFakeConn("conn-b2", game.Member("u-dave", "dave"))
	tc, err := game.ParseTimeControl("600+5")
	require.NoError(t, err)
	second, err := f.coord.CreateGame(context.Background(), GameParams{
		Variant:     "Classical",
		TimeControl: tc,
		Publicity:   PublicityPublic,
		Seats: map[game.Color]Seat{
			game.White: {Identity: whiteTwo.identity, Conn: whiteTwo},
			game.Black: {Identity: blackTwo.identity, Conn: blackTwo},
		},
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}
