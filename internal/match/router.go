package match

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"go.uber.org/zap"

	"chess-arena/internal/game"
)

// Router dispatches inbound "game"-route messages. Dispatch runs on the
// sender's read goroutine; per-game serialization happens on the match mutex
// inside each handler, never here.
type Router struct {
	coord *Coordinator
}

func NewRouter(coord *Coordinator) *Router {
	return &Router{coord: coord}
}

func (r *Router) Handle(ctx context.Context, conn Conn, action string, value json.RawMessage) {
	c := r.coord
	switch action {
	case ActionSubmitMove:
		c.handleSubmitMove(conn, value)
	case ActionJoinGame:
		c.handleJoinGame(conn)
	case ActionRemoveFromActive:
		c.handleRemoval(ctx, conn)
	case ActionResync:
		c.handleResync(ctx, conn, value)
	case ActionAbort:
		c.handleAbort(conn)
	case ActionResign:
		c.handleResign(conn)
	case ActionOfferDraw:
		c.handleOfferDraw(conn)
	case ActionAcceptDraw:
		c.handleAcceptDraw(conn)
	case ActionDeclineDraw:
		c.handleDeclineDraw(conn)
	case ActionAFK:
		c.handleAFK(conn)
	case ActionAFKReturn:
		c.handleAFKReturn(conn)
	case ActionReport:
		c.handleReport(conn, value)
	case ActionPaste:
		c.handlePaste(conn)
	default:
		c.tamper(conn, 0, action, "unknown game action", string(value))
		conn.SendGeneral(MsgPrintError, PrintErrorPayload{Text: fmt.Sprintf("Unknown game action %q.", action)})
	}
}

// DistanceCapDigits is the anti-teleport ceiling on end-coordinate digit
// counts, matching the client: floor(1 + 4.5*elapsedSeconds).
func DistanceCapDigits(elapsedSeconds float64) int {
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}
	return int(math.Floor(1 + 4.5*elapsedSeconds))
}

// subscribedMatch resolves the sender's game subscription to a live match.
// Both failure modes answer with a printerror so the client can recover.
func (c *Coordinator) subscribedMatch(conn Conn) (*Match, game.Color, bool) {
	gameID, color, ok := conn.GameSub()
	if !ok {
		conn.SendGeneral(MsgPrintError, PrintErrorPayload{Text: "You are not subscribed to a game."})
		return nil, "", false
	}
	m, found := c.registry.Get(gameID)
	if !found {
		conn.SendGeneral(MsgPrintError, PrintErrorPayload{Text: "That game is no longer on the server."})
		return nil, "", false
	}
	return m, color, true
}

func (c *Coordinator) handleSubmitMove(conn Conn, raw json.RawMessage) {
	m, color, ok := c.subscribedMatch(conn)
	if !ok {
		return
	}

	var payload SubmitMovePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.tamper(conn, m.ID, ActionSubmitMove, "malformed payload", string(raw))
		conn.SendGeneral(MsgPrintError, PrintErrorPayload{Text: "Malformed move message."})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleted || m.Base.IsOver() {
		// The move crossed a conclusion in flight; the sender already has or
		// will get the final state.
		return
	}

	moveNumber := m.Base.MoveCount() + 1
	if payload.MoveNumber != moveNumber {
		c.log.Debug("move number desync, resyncing",
			zap.Int64("game_id", m.ID),
			zap.Int("got", payload.MoveNumber),
			zap.Int("want", moveNumber))
		conn.SendGame(MsgGameUpdate, c.updatePayloadLocked(m))
		return
	}

	if m.Base.WhosTurn != color {
		c.tamper(conn, m.ID, ActionSubmitMove, "move out of turn", string(raw))
		conn.SendGeneral(MsgPrintError, PrintErrorPayload{Text: "It is not your turn."})
		return
	}

	move, err := game.ParseCompact(payload.Move)
	if err != nil {
		c.tamper(conn, m.ID, ActionSubmitMove, err.Error(), string(raw))
		conn.SendGeneral(MsgPrintError, PrintErrorPayload{Text: "Invalid move."})
		return
	}

	now := c.sched.Now()
	elapsedSeconds := float64(now-m.TimeCreated) / 1000
	if digits := move.MaxEndDigits(); digits > DistanceCapDigits(elapsedSeconds) {
		c.tamper(conn, m.ID, ActionSubmitMove,
			fmt.Sprintf("distance cap exceeded: %d digits at %.0fs", digits, elapsedSeconds), string(raw))
		conn.SendGeneral(MsgNotifyError, NotifyPayload{Key: KeyMoveOutOfRange})
		return
	}

	var claimed *game.Conclusion
	if payload.GameConclusion != nil {
		conclusion, reason := claimedConclusion(payload.GameConclusion, color)
		if reason != "" {
			c.tamper(conn, m.ID, ActionSubmitMove, reason, string(raw))
			conn.SendGeneral(MsgPrintError, PrintErrorPayload{Text: "Invalid game conclusion claim."})
			return
		}
		claimed = conclusion
	}

	m.Base.Moves = append(m.Base.Moves, move)
	c.cancelAFKTimerLocked(m, true, color)
	stamp := m.Base.PushClock(now)
	if stamp != nil {
		m.Base.Moves[len(m.Base.Moves)-1].ClockStamp = stamp
	}

	if claimed != nil {
		c.setConclusionLocked(m, *claimed)
	} else {
		if m.drawOfferOpen() {
			// Moving declines (or withdraws) whatever offer is on the table.
			m.closeDrawOffer()
			if opp := m.opponentConn(color); opp != nil {
				opp.SendGame(MsgDeclineDraw, nil)
			}
		}
		c.armTimeLossLocked(m)
	}

	clocks := m.Base.ClockSnapshot(now)
	if m.Base.IsOver() {
		conn.SendGame(MsgGameUpdate, c.updatePayloadLocked(m))
	} else if clocks != nil {
		conn.SendGame(MsgClock, clocks)
	}
	if opp := m.opponentConn(color); opp != nil {
		opp.SendGame(MsgMove, MoveMessage{
			Move:           MoveWire{Compact: move.Compact, ClockStamp: stamp},
			GameConclusion: m.Base.Conclusion,
			MoveNumber:     moveNumber,
			ClockValues:    clocks,
		})
	}
}

// claimedConclusion validates a client-asserted conclusion. An empty reason
// means the claim is acceptable; anything else describes the forgery.
func claimedConclusion(claim *ConclusionClaim, mover game.Color) (*game.Conclusion, string) {
	condition := game.Condition(claim.Condition)
	if !condition.Known() {
		return nil, fmt.Sprintf("unknown conclusion condition %q", claim.Condition)
	}
	if !condition.ClientClaimable() {
		return nil, fmt.Sprintf("conclusion %q is never client-claimable", claim.Condition)
	}
	victor := game.Color("")
	if claim.Victor != "" {
		parsed, ok := game.ParseColor(claim.Victor)
		if !ok {
			return nil, fmt.Sprintf("unknown victor %q", claim.Victor)
		}
		victor = parsed
	}
	if victor == mover.Invert() {
		return nil, "claimed a win for the opponent"
	}
	return &game.Conclusion{Victor: victor, Condition: condition}, ""
}

func (c *Coordinator) handleJoinGame(conn Conn) {
	id := conn.Identity()
	if id.Zero() {
		conn.SendGame(MsgLogin, nil)
		return
	}
	gameID, ok := c.index.GameIDOf(id)
	if !ok {
		conn.SendGame(MsgNoGame, nil)
		return
	}
	m, found := c.registry.Get(gameID)
	if !found {
		conn.SendGame(MsgNoGame, nil)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleted {
		conn.SendGame(MsgNoGame, nil)
		return
	}
	color := m.colorOf(id)
	if color == "" {
		conn.SendGame(MsgNoGame, nil)
		return
	}

	c.cancelDisconnectTimerLocked(m, color, false)
	if !m.Base.IsOver() && m.Base.WhosTurn == color {
		c.cancelAFKTimerLocked(m, true, color)
	}
	c.subscribeLocked(m, color, conn)
}

func (c *Coordinator) handleRemoval(ctx context.Context, conn Conn) {
	m, color, ok := c.subscribedMatch(conn)
	if !ok {
		return
	}

	m.mu.Lock()
	if m.deleted {
		m.mu.Unlock()
		return
	}
	if !m.Base.IsOver() {
		m.mu.Unlock()
		conn.SendGeneral(MsgPrintError, PrintErrorPayload{Text: "The game is still in progress."})
		return
	}
	c.index.Remove(m.Players[color].Identity, m.ID)
	conn.SendGame(MsgLeaveGame, nil)
	opponentDone := c.hasSeenConclusionLocked(m, color.Invert())
	m.mu.Unlock()

	// Both players acknowledged; no reason to sit out the deletion cushion.
	if opponentDone {
		c.deleteGame(ctx, m)
	}
}

func (c *Coordinator) handleResync(ctx context.Context, conn Conn, raw json.RawMessage) {
	var gameID int64
	if err := json.Unmarshal(raw, &gameID); err != nil {
		c.tamper(conn, 0, ActionResync, "malformed game id", string(raw))
		return
	}

	m, found := c.registry.Get(gameID)
	if !found {
		if info, ok := c.store.LoggedGameInfo(ctx, gameID); ok {
			conn.SendGame(MsgLoggedGameInfo, info)
		} else {
			conn.SendGame(MsgNoGame, nil)
		}
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleted {
		conn.SendGame(MsgNoGame, nil)
		return
	}
	color := m.colorOf(conn.Identity())
	if color == "" {
		c.tamper(conn, gameID, ActionResync, "resync for a game the sender is not seated in", string(raw))
		conn.SendGame(MsgNoGame, nil)
		return
	}
	c.cancelDisconnectTimerLocked(m, color, false)
	conn.SendGame(MsgGameUpdate, c.updatePayloadLocked(m))
}

func (c *Coordinator) handleAbort(conn Conn) {
	m, color, ok := c.subscribedMatch(conn)
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleted || m.Base.IsOver() {
		return
	}
	if !m.Base.IsAbortable() {
		if !m.Base.IsBorderlineResignable() {
			conn.SendGeneral(MsgPrintError, PrintErrorPayload{Text: "The game can no longer be aborted."})
			return
		}
		// The abort raced the opponent's second move; tolerated.
		c.log.Info("borderline abort allowed",
			zap.Int64("game_id", m.ID), zap.String("color", string(color)))
	}
	c.setConclusionLocked(m, game.Conclusion{Condition: game.ConditionAborted})
	c.broadcastUpdateLocked(m)
}

func (c *Coordinator) handleResign(conn Conn) {
	m, color, ok := c.subscribedMatch(conn)
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleted || m.Base.IsOver() {
		return
	}
	if !m.Base.IsResignable() {
		conn.SendGeneral(MsgPrintError, PrintErrorPayload{Text: "Too few moves to resign; abort instead."})
		return
	}
	c.setConclusionLocked(m, game.Conclusion{
		Victor:    color.Invert(),
		Condition: game.ConditionResignation,
	})
	c.broadcastUpdateLocked(m)
}

func (c *Coordinator) handleOfferDraw(conn Conn) {
	m, color, ok := c.subscribedMatch(conn)
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleted || m.Base.IsOver() {
		return
	}
	if !m.Base.IsResignable() || m.drawOfferOpen() || m.drawOfferTooFast(color) {
		conn.SendGeneral(MsgNotifyError, NotifyPayload{Key: KeyDrawUnavailable})
		return
	}
	m.openDrawOffer(color)
	if opp := m.opponentConn(color); opp != nil {
		opp.SendGame(MsgDrawOffer, nil)
	}
}

func (c *Coordinator) handleAcceptDraw(conn Conn) {
	m, color, ok := c.subscribedMatch(conn)
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleted || m.Base.IsOver() {
		return
	}
	if !m.drawOfferOpenBy(color.Invert()) {
		// Possibly a race against a withdrawal; not worth an audit entry.
		conn.SendGeneral(MsgPrintError, PrintErrorPayload{Text: "There is no draw offer to accept."})
		return
	}
	m.closeDrawOffer()
	c.setConclusionLocked(m, game.Conclusion{
		Victor:    game.Neutral,
		Condition: game.ConditionAgreement,
	})
	c.broadcastUpdateLocked(m)
}

func (c *Coordinator) handleDeclineDraw(conn Conn) {
	m, color, ok := c.subscribedMatch(conn)
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleted || m.Base.IsOver() {
		return
	}
	if !m.drawOfferOpenBy(color.Invert()) {
		return
	}
	m.closeDrawOffer()
	if opp := m.opponentConn(color); opp != nil {
		opp.SendGame(MsgDeclineDraw, nil)
	}
}

func (c *Coordinator) handleAFK(conn Conn) {
	m, color, ok := c.subscribedMatch(conn)
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleted || m.Base.IsOver() {
		return
	}
	// Only the mover of a running untimed game can go AFK, and a pending
	// disconnect penalty takes precedence.
	if !m.Base.Untimed || !m.Base.IsResignable() || m.Base.WhosTurn != color {
		return
	}
	if m.Players[color].Disconnect.armed() {
		return
	}
	c.startAFKTimerLocked(m, color)
}

func (c *Coordinator) handleAFKReturn(conn Conn) {
	m, color, ok := c.subscribedMatch(conn)
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleted || m.Base.IsOver() {
		return
	}
	if m.Base.WhosTurn != color {
		return
	}
	c.cancelAFKTimerLocked(m, true, color)
}

func (c *Coordinator) handleReport(conn Conn, raw json.RawMessage) {
	m, color, ok := c.subscribedMatch(conn)
	if !ok {
		return
	}

	var payload ReportPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.tamper(conn, m.ID, ActionReport, "malformed payload", string(raw))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleted || m.Base.IsOver() {
		return
	}
	if m.IsPrivate() {
		conn.SendGeneral(MsgNotifyError, NotifyPayload{Key: KeyReportRejected})
		return
	}
	count := m.Base.MoveCount()
	if payload.OpponentsMoveNumber != count {
		// The reporter is behind or ahead; let them catch up first.
		conn.SendGame(MsgGameUpdate, c.updatePayloadLocked(m))
		return
	}
	if count == 0 || m.Base.TurnAt(count-1) != color.Invert() {
		c.tamper(conn, m.ID, ActionReport, "reported own move", string(raw))
		conn.SendGeneral(MsgNotifyError, NotifyPayload{Key: KeyReportRejected})
		return
	}

	reported := m.Players[color.Invert()].Identity
	perpetrating := m.Base.Moves[count-1].Compact
	c.hack.Warn("illegal move reported",
		zap.Int64("game_id", m.ID),
		zap.String("reporter", conn.Identity().Key()),
		zap.String("reported", reported.Key()),
		zap.String("reason", payload.Reason),
		zap.String("move", perpetrating))
	c.audit.Tamper(reported, m.ID, ActionReport, "reported: "+payload.Reason, perpetrating)

	// Strike the perpetrating move, then abort.
	m.Base.Moves = m.Base.Moves[:count-1]
	m.Base.WhosTurn = m.Base.TurnAt(count - 1)
	m.eachConn(func(_ game.Color, cn Conn) {
		cn.SendGeneral(MsgNotify, NotifyPayload{Key: KeyAbortedByReport})
	})
	c.setConclusionLocked(m, game.Conclusion{Condition: game.ConditionAborted})
	c.broadcastUpdateLocked(m)
}

func (c *Coordinator) handlePaste(conn Conn) {
	m, _, ok := c.subscribedMatch(conn)
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleted {
		return
	}
	if !m.IsPrivate() || m.Rated {
		conn.SendGeneral(MsgNotifyError, NotifyPayload{Key: KeyPasteRejected})
		return
	}
	if m.PositionPasted {
		return
	}
	m.PositionPasted = true
	c.log.Info("position pasted, game will never be logged", zap.Int64("game_id", m.ID))
}
