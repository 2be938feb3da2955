package match

import (
	"time"

	"go.uber.org/zap"

	"chess-arena/internal/game"
)

// Penalty timer durations. These are protocol constants: the client renders
// countdowns from the same values, so changing one side desyncs the UI.
const (
	// DisconnectForgiveness is the grace window after a socket drops (not by
	// choice) before the auto-resign countdown starts.
	DisconnectForgiveness = 5 * time.Second
	// AutoResignByChoice runs when the player deliberately closed the page.
	AutoResignByChoice = 20 * time.Second
	// AutoResignNotByChoice runs after a dropped link in a resignable game.
	AutoResignNotByChoice = 60 * time.Second
	// AFKAutoResign runs when the mover of an untimed game reports idle.
	AFKAutoResign = 20 * time.Second
)

// HandleSocketClosure is the transport's entry point when a subscribed socket
// closes. byChoice distinguishes a deliberate departure (normal close) from a
// dropped link; the latter earns the forgiveness cushion before the penalty
// countdown starts.
func (c *Coordinator) HandleSocketClosure(conn Conn, byChoice bool) {
	gameID, color, ok := conn.GameSub()
	if !ok {
		return
	}
	conn.UnsubscribeGame()

	m, found := c.registry.Get(gameID)
	if !found {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pd := m.Players[color]
	if pd == nil || pd.Conn != conn {
		// A stale socket for a seat that already rebound to a newer one.
		return
	}
	pd.Conn = nil

	if m.deleted || m.Base.IsOver() {
		return
	}

	if byChoice {
		c.startDisconnectTimerLocked(m, color, false)
		return
	}

	c.log.Debug("socket dropped, starting forgiveness cushion",
		zap.Int64("game_id", m.ID), zap.String("color", string(color)))
	pd.Disconnect.cushion = c.sched.Schedule(DisconnectForgiveness, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		d := &m.Players[color].Disconnect
		d.cushion = nil
		if m.deleted || m.Base.IsOver() || m.Players[color].Conn != nil {
			return
		}
		c.startDisconnectTimerLocked(m, color, true)
	})
}

// startDisconnectTimerLocked arms the auto-resign countdown for color. When
// the disconnecting seat is the mover and an AFK countdown is already
// running, the disconnect inherits that deadline: the opponent was promised
// it, so it never moves later.
func (c *Coordinator) startDisconnectTimerLocked(m *Match, color game.Color, notByChoice bool) {
	pd := m.Players[color]
	d := &pd.Disconnect
	if d.autoResign != nil {
		return
	}

	now := c.sched.Now()
	duration := AutoResignByChoice
	if notByChoice && m.Base.IsResignable() {
		duration = AutoResignNotByChoice
	}
	deadline := now + duration.Milliseconds()

	if m.Base.WhosTurn == color && m.afkResign != nil && m.AFKResignTime != nil {
		if *m.AFKResignTime > deadline {
			c.log.Error("afk deadline beyond disconnect deadline, keeping the earlier one",
				zap.Int64("game_id", m.ID),
				zap.Int64("afk_deadline", *m.AFKResignTime),
				zap.Int64("disconnect_deadline", deadline))
		} else {
			deadline = *m.AFKResignTime
		}
		c.cancelAFKTimerLocked(m, false, color)
	}

	wasByChoice := !notByChoice
	d.TimeToAutoLoss = &deadline
	d.WasByChoice = &wasByChoice
	d.autoResign = c.sched.Schedule(time.Duration(deadline-now)*time.Millisecond, func() {
		c.onDisconnectExpired(m, color)
	})

	if opp := m.opponentConn(color); opp != nil {
		opp.SendGame(MsgOpponentDisconnect, DisconnectInfo{
			MillisUntilAutoDisconnectResign: deadline - now,
			WasByChoice:                     wasByChoice,
		})
	}
}

// onDisconnectExpired resigns the vanished player, or aborts the game when it
// never became resignable.
func (c *Coordinator) onDisconnectExpired(m *Match, color game.Color) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := &m.Players[color].Disconnect
	d.autoResign = nil
	if m.deleted || m.Base.IsOver() || d.TimeToAutoLoss == nil {
		return
	}
	d.TimeToAutoLoss = nil
	d.WasByChoice = nil

	conclusion := game.Conclusion{Victor: color.Invert(), Condition: game.ConditionDisconnect}
	if !m.Base.IsResignable() {
		conclusion = game.Conclusion{Condition: game.ConditionAborted}
	}
	c.log.Info("disconnect timer expired",
		zap.Int64("game_id", m.ID),
		zap.String("color", string(color)),
		zap.String("condition", string(conclusion.Condition)))

	c.setConclusionLocked(m, conclusion)
	c.broadcastUpdateLocked(m)
}

// cancelDisconnectTimerLocked clears both stages of color's pending penalty.
// The opponent hears "opponentdisconnectreturn" only if the countdown had
// actually started (the silent cushion produces no return message either).
func (c *Coordinator) cancelDisconnectTimerLocked(m *Match, color game.Color, dontNotifyOpponent bool) {
	pd := m.Players[color]
	started := pd.Disconnect.TimeToAutoLoss != nil
	pd.Disconnect.reset()

	if started && !dontNotifyOpponent {
		if opp := m.opponentConn(color); opp != nil {
			opp.SendGame(MsgOpponentDisconnectReturn, nil)
		}
	}
}

func (c *Coordinator) cancelDisconnectTimersLocked(m *Match) {
	for color := range m.Players {
		c.cancelDisconnectTimerLocked(m, color, true)
	}
}

// startAFKTimerLocked arms the abandonment countdown. Callers have verified
// the preconditions: untimed, resignable, running, it is color's turn, and no
// disconnect penalty is pending for that color.
func (c *Coordinator) startAFKTimerLocked(m *Match, color game.Color) {
	if m.afkResign != nil {
		return
	}
	now := c.sched.Now()
	deadline := now + AFKAutoResign.Milliseconds()
	m.AFKResignTime = &deadline
	m.afkResign = c.sched.Schedule(AFKAutoResign, func() {
		c.onAFKExpired(m, color)
	})

	if opp := m.opponentConn(color); opp != nil {
		opp.SendGame(MsgOpponentAFK, OpponentAFKPayload{
			MillisUntilAutoAFKResign: deadline - now,
		})
	}
}

func (c *Coordinator) onAFKExpired(m *Match, color game.Color) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.afkResign = nil
	if m.deleted || m.Base.IsOver() || m.AFKResignTime == nil {
		return
	}
	m.AFKResignTime = nil

	c.log.Info("afk timer expired",
		zap.Int64("game_id", m.ID), zap.String("color", string(color)))
	c.setConclusionLocked(m, game.Conclusion{
		Victor:    color.Invert(),
		Condition: game.ConditionDisconnect,
	})
	c.broadcastUpdateLocked(m)
}

// cancelAFKTimerLocked clears the abandonment countdown. afkColor is the seat
// that was idle (always the mover at arming time); it is passed explicitly
// because some callers cancel after the turn has already advanced.
func (c *Coordinator) cancelAFKTimerLocked(m *Match, alertOpponent bool, afkColor game.Color) {
	wasSet := m.afkResign != nil || m.AFKResignTime != nil
	stopTimer(&m.afkResign)
	m.AFKResignTime = nil

	if wasSet && alertOpponent {
		if opp := m.opponentConn(afkColor); opp != nil {
			opp.SendGame(MsgOpponentAFKReturn, nil)
		}
	}
}

// armTimeLossLocked (re)schedules the loss-on-time callback for the current
// mover of a timed game. Called after every clock push; the previous timer is
// always discarded first.
func (c *Coordinator) armTimeLossLocked(m *Match) {
	m.cancelAutoTimeLoss()
	if m.Base.Untimed || m.Base.IsOver() || !m.Base.IsResignable() {
		return
	}
	remain, ok := m.Base.MoverTimeRemaining()
	if !ok {
		return
	}
	mover := m.Base.WhosTurn
	m.autoTimeLoss = c.sched.Schedule(time.Duration(remain)*time.Millisecond, func() {
		c.onTimeLossExpired(m, mover)
	})
}

func (c *Coordinator) onTimeLossExpired(m *Match, mover game.Color) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.autoTimeLoss = nil
	if m.deleted || m.Base.IsOver() || m.Base.WhosTurn != mover {
		return
	}

	c.log.Info("flag fell",
		zap.Int64("game_id", m.ID), zap.String("color", string(mover)))
	c.setConclusionLocked(m, game.Conclusion{
		Victor:    mover.Invert(),
		Condition: game.ConditionTime,
	})
	c.broadcastUpdateLocked(m)
}
