package match

import (
	"chess-arena/internal/game"
)

func movesWire(moves []game.Move) []MoveWire {
	wire := make([]MoveWire, len(moves))
	for i, mv := range moves {
		wire[i] = MoveWire{Compact: mv.Compact, ClockStamp: mv.ClockStamp}
	}
	return wire
}

func (m *Match) gameInfoLocked() GameInfo {
	players := make(map[game.Color]SeatInfo, len(m.Players))
	for color, pd := range m.Players {
		info := SeatInfo{Member: pd.Identity.IsMember()}
		if info.Member {
			info.Username = pd.Identity.Username
		}
		players[color] = info
	}
	return GameInfo{
		ID:        m.ID,
		Publicity: m.Publicity,
		Rated:     m.Rated,
		Players:   players,
	}
}

// participantStateLocked snapshots the room state: open draw offer, running
// AFK countdown and per-color disconnect countdowns, all as remaining millis
// so a reconnecting client can resume the numbers mid-flight.
func (c *Coordinator) participantStateLocked(m *Match, now int64) ParticipantState {
	state := ParticipantState{DrawOfferBy: m.DrawOfferBy}

	if m.AFKResignTime != nil {
		left := *m.AFKResignTime - now
		if left < 0 {
			left = 0
		}
		state.MillisUntilAutoAFKResign = &left
	}

	for color, pd := range m.Players {
		d := pd.Disconnect
		if d.TimeToAutoLoss == nil || d.WasByChoice == nil {
			continue
		}
		left := *d.TimeToAutoLoss - now
		if left < 0 {
			left = 0
		}
		if state.Disconnects == nil {
			state.Disconnects = make(map[game.Color]DisconnectInfo, 1)
		}
		state.Disconnects[color] = DisconnectInfo{
			MillisUntilAutoDisconnectResign: left,
			WasByChoice:                     *d.WasByChoice,
		}
	}
	return state
}

func (c *Coordinator) joinPayloadLocked(m *Match, color game.Color) JoinGamePayload {
	now := c.sched.Now()
	return JoinGamePayload{
		GameInfo:           m.gameInfoLocked(),
		Metadata:           m.Base.Metadata,
		YouAreColor:        color,
		GameConclusion:     m.Base.Conclusion,
		Moves:              movesWire(m.Base.Moves),
		ParticipantState:   c.participantStateLocked(m, now),
		ClockValues:        m.Base.ClockSnapshot(now),
		ServerRestartingAt: c.serverRestartingAt(),
	}
}

func (c *Coordinator) updatePayloadLocked(m *Match) GameUpdatePayload {
	now := c.sched.Now()
	return GameUpdatePayload{
		GameConclusion:     m.Base.Conclusion,
		Moves:              movesWire(m.Base.Moves),
		ParticipantState:   c.participantStateLocked(m, now),
		ClockValues:        m.Base.ClockSnapshot(now),
		ServerRestartingAt: c.serverRestartingAt(),
	}
}
