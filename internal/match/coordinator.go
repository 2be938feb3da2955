package match

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"chess-arena/internal/game"
	"chess-arena/internal/utils"
)

// GameDeletionCushion is how long a concluded game lingers in memory so both
// players can request removal, resync, or see the rating change before the
// record is flushed to storage.
const GameDeletionCushion = 8 * time.Second

// Storage is the persistence boundary of the coordinator. The production
// implementation lives in services.GameLogger; tests substitute a fake.
type Storage interface {
	// MintGameID returns an id unused by both storage and the live set.
	MintGameID(ctx context.Context, live func(int64) bool) (int64, error)
	// LogGame writes the finished game atomically. For rated games between
	// members it returns the per-color rating changes it applied.
	LogGame(ctx context.Context, m *Match) (map[game.Color]RatingChange, error)
	// SaveUnlogged stashes a game whose LogGame transaction rolled back, so a
	// background sweep can retry it.
	SaveUnlogged(ctx context.Context, m *Match, cause error)
	// LoggedGameInfo fetches the stored record of an already flushed game.
	LoggedGameInfo(ctx context.Context, gameID int64) (any, bool)
	// LeaderboardRating reads a member's current rating on a variant board.
	LeaderboardRating(ctx context.Context, userID, variant string) RatingState
}

// AbuseMonitor inspects finished rated games for rating manipulation.
type AbuseMonitor interface {
	GameLogged(m *Match, changes map[game.Color]RatingChange)
}

// Auditor persists evidence of tampered or forged client messages.
type Auditor interface {
	Tamper(id game.PlayerIdentity, gameID int64, action, detail, raw string)
}

// Coordinator owns every live match: creation, message handling, penalty
// timers, conclusion and the final flush to storage. All per-match state is
// serialized by the match's own mutex; the coordinator itself only guards the
// server-restart announcement.
type Coordinator struct {
	registry *Registry
	index    *ActivePlayersIndex
	sched    Scheduler
	store    Storage
	abuse    AbuseMonitor
	audit    Auditor
	log      *zap.Logger
	hack     *zap.Logger

	restartMu sync.Mutex
	restartAt *int64
}

func NewCoordinator(registry *Registry, index *ActivePlayersIndex, sched Scheduler, store Storage, abuse AbuseMonitor, audit Auditor, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		registry: registry,
		index:    index,
		sched:    sched,
		store:    store,
		abuse:    abuse,
		audit:    audit,
		log:      logger,
		hack:     logger.Named("hack"),
	}
}

// Registry exposes the live set, for transports that report the game count.
func (c *Coordinator) Registry() *Registry { return c.registry }

// GameParams describes a match to create. Seats must hold exactly the two
// playing colors; a seat with a nil Conn belongs to a player whose socket is
// not attached yet and starts under a disconnect countdown.
type GameParams struct {
	Variant     string
	TimeControl game.TimeControl
	Rated       bool
	Publicity   Publicity
	Seats       map[game.Color]Seat
}

// CreateGame mints an id, builds the match, registers both players as busy
// and delivers the opening joingame payload to every attached socket.
func (c *Coordinator) CreateGame(ctx context.Context, p GameParams) (*Match, error) {
	id, err := c.store.MintGameID(ctx, c.registry.Has)
	if err != nil {
		return nil, fmt.Errorf("mint game id: %w", err)
	}

	now := c.sched.Now()
	m := &Match{
		ID:          id,
		Base:        game.NewBaseGame(p.Variant, game.DefaultGameRules(), p.TimeControl, c.buildMetadata(ctx, p, now)),
		TimeCreated: now,
		Publicity:   p.Publicity,
		Rated:       p.Rated,
		Players:     make(map[game.Color]*PlayerData, len(p.Seats)),
	}
	for color, seat := range p.Seats {
		m.Players[color] = &PlayerData{Identity: seat.Identity}
	}

	c.registry.Add(m)
	for _, seat := range p.Seats {
		c.index.Add(seat.Identity, id)
	}
	c.registry.IncrementCount()

	// Attach the present sockets before arming countdowns for the absent
	// seats, so the announcement reaches the opponent that is already there.
	m.mu.Lock()
	for color, seat := range p.Seats {
		if seat.Conn != nil {
			c.subscribeLocked(m, color, seat.Conn)
		}
	}
	for color, seat := range p.Seats {
		if seat.Conn == nil {
			c.startDisconnectTimerLocked(m, color, false)
		}
	}
	m.mu.Unlock()

	c.log.Info("game created",
		zap.Int64("game_id", id),
		zap.String("variant", p.Variant),
		zap.String("time_control", p.TimeControl.String()),
		zap.Bool("rated", p.Rated),
		zap.String("publicity", string(p.Publicity)))
	return m, nil
}

func (c *Coordinator) buildMetadata(ctx context.Context, p GameParams, now int64) game.Metadata {
	kind := "Casual"
	if p.Rated {
		kind = "Rated"
	}
	created := time.UnixMilli(now).UTC()
	meta := game.Metadata{
		Event:       fmt.Sprintf("%s %s game", kind, p.Variant),
		Site:        metadataSite,
		Variant:     p.Variant,
		UTCDate:     created.Format("2006.01.02"),
		UTCTime:     created.Format("15:04:05"),
		TimeControl: p.TimeControl.String(),
	}
	for color, seat := range p.Seats {
		name := seat.Identity.DisplayName()
		elo := ""
		if p.Rated && seat.Identity.IsMember() {
			r := c.store.LeaderboardRating(ctx, seat.Identity.UserID, p.Variant)
			elo = utils.EloString(r.Value, r.Confident)
		}
		switch color {
		case game.White:
			meta.White, meta.WhiteID, meta.WhiteElo = name, seat.Identity.UserID, elo
		case game.Black:
			meta.Black, meta.BlackID, meta.BlackElo = name, seat.Identity.UserID, elo
		}
	}
	return meta
}

const metadataSite = "Chess Arena"

// subscribeLocked binds conn to its seat and sends it the full opening
// payload. A previous socket on the same seat is kicked first.
func (c *Coordinator) subscribeLocked(m *Match, color game.Color, conn Conn) {
	pd := m.Players[color]
	if old := pd.Conn; old != nil && old != conn {
		old.SendGame(MsgUnsub, nil)
		old.UnsubscribeGame()
	}
	pd.Conn = conn
	conn.SubscribeGame(m.ID, color)
	conn.SendGame(MsgJoinGame, c.joinPayloadLocked(m, color))
}

// setConclusionLocked records the outcome and runs the one-shot teardown:
// stop clocks, cancel every timer, close the draw offer and schedule the
// deletion cushion. Safe to call when a conclusion already stands; the active
// count is only decremented on the transition.
func (c *Coordinator) setConclusionLocked(m *Match, conclusion game.Conclusion) {
	alreadyOver := m.Base.IsOver()
	m.Base.SetConclusion(conclusion)

	if !alreadyOver {
		c.registry.DecrementCount()
	}

	now := c.sched.Now()
	m.Base.StopClocks(now)
	m.cancelAutoTimeLoss()
	c.cancelAFKTimerLocked(m, false, m.Base.WhosTurn)
	c.cancelDisconnectTimersLocked(m)
	m.closeDrawOffer()
	if m.TimeEnded == nil {
		ended := now
		m.TimeEnded = &ended
	}
	if m.deleteTimer == nil {
		m.deleteTimer = c.sched.Schedule(GameDeletionCushion, func() {
			c.deleteGame(context.Background(), m)
		})
	}
}

// broadcastUpdateLocked pushes the current full state to both seats.
func (c *Coordinator) broadcastUpdateLocked(m *Match) {
	payload := c.updatePayloadLocked(m)
	m.eachConn(func(_ game.Color, conn Conn) {
		conn.SendGame(MsgGameUpdate, payload)
	})
}

// deleteGame flushes a concluded match to storage and releases every
// resource bound to it. It runs at most once per match; the registry entry
// goes first so no handler can reach the match while persistence is in
// flight, and the match mutex is not held across storage I/O.
func (c *Coordinator) deleteGame(ctx context.Context, m *Match) {
	m.mu.Lock()
	if m.deleted {
		m.mu.Unlock()
		return
	}
	m.deleted = true
	m.cancelDeleteTimer()
	pasted := m.PositionPasted
	m.mu.Unlock()

	c.registry.Remove(m.ID)

	var changes map[game.Color]RatingChange
	if pasted {
		c.log.Info("pasted game discarded without logging", zap.Int64("game_id", m.ID))
	} else {
		var err error
		changes, err = c.store.LogGame(ctx, m)
		if err != nil {
			c.log.Error("game log transaction rolled back, parking for retry",
				zap.Int64("game_id", m.ID), zap.Error(err))
			c.store.SaveUnlogged(ctx, m, err)
			changes = nil
		}
	}

	m.mu.Lock()
	var ratingMsg *RatingChangeMessage
	if len(changes) > 0 {
		ratingMsg = &RatingChangeMessage{GameID: m.ID, PerColor: changes}
	}
	for _, pd := range m.Players {
		c.index.Remove(pd.Identity, m.ID)
		if pd.Conn == nil {
			continue
		}
		if ratingMsg != nil {
			pd.Conn.SendGame(MsgGameRatingChange, ratingMsg)
		}
		pd.Conn.SendGame(MsgUnsub, nil)
		pd.Conn.UnsubscribeGame()
		pd.Conn = nil
	}
	m.mu.Unlock()

	c.log.Info("game deleted", zap.Int64("game_id", m.ID), zap.Bool("logged", !pasted))

	if !pasted {
		c.abuse.GameLogged(m, changes)
	}
}

// hasSeenConclusionLocked reports whether color no longer counts m as its
// active game, meaning that player has acknowledged the conclusion.
func (c *Coordinator) hasSeenConclusionLocked(m *Match, color game.Color) bool {
	pd := m.Players[color]
	if pd == nil {
		return true
	}
	id, ok := c.index.GameIDOf(pd.Identity)
	return !ok || id != m.ID
}

// LogAllGames concludes and flushes every live match, serially. Called on
// shutdown after the restart broadcast; running games end aborted.
func (c *Coordinator) LogAllGames(ctx context.Context) {
	matches := c.registry.All()
	c.log.Info("flushing all live games", zap.Int("count", len(matches)))
	for _, m := range matches {
		m.mu.Lock()
		if !m.Base.IsOver() {
			c.setConclusionLocked(m, game.Conclusion{Condition: game.ConditionAborted})
			c.broadcastUpdateLocked(m)
		}
		m.mu.Unlock()
		c.deleteGame(ctx, m)
	}
}

// BroadcastGameRestarting announces the shutdown deadline to every socket in
// every live game and remembers it so later join and update payloads carry it.
func (c *Coordinator) BroadcastGameRestarting(restartAt int64) {
	c.restartMu.Lock()
	at := restartAt
	c.restartAt = &at
	c.restartMu.Unlock()

	payload := ServerRestartPayload{TimeToRestart: restartAt}
	for _, m := range c.registry.All() {
		m.mu.Lock()
		m.eachConn(func(_ game.Color, conn Conn) {
			conn.SendGame(MsgServerRestart, payload)
		})
		m.mu.Unlock()
	}
}

func (c *Coordinator) serverRestartingAt() *int64 {
	c.restartMu.Lock()
	defer c.restartMu.Unlock()
	if c.restartAt == nil {
		return nil
	}
	at := *c.restartAt
	return &at
}

// tamper records evidence of a forged or malformed client message, both in
// the hack log and in the audit trail.
func (c *Coordinator) tamper(conn Conn, gameID int64, action, detail, raw string) {
	c.hack.Warn("tampered message",
		zap.String("conn_id", conn.ID()),
		zap.String("player", conn.Identity().Key()),
		zap.Int64("game_id", gameID),
		zap.String("action", action),
		zap.String("detail", detail),
		zap.String("raw", raw))
	c.audit.Tamper(conn.Identity(), gameID, action, detail, raw)
}
