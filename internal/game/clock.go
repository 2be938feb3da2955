package game

// Clocks is the countdown state of a timed game. All values are milliseconds;
// wall-clock stamps are unix milliseconds from the caller's time source, so the
// arithmetic itself stays pure and testable.
//
// TimeAtTurnStart and TimeRemainAtTurnStart are armed together once the game is
// resignable and cleared together when the clocks stop. Between those points
// the mover's live remaining time is always
// TimeRemainAtTurnStart - (now - TimeAtTurnStart).
type Clocks struct {
	StartTimeMillis       int64
	IncrementMillis       int64
	CurrentTime           map[Color]int64
	TimeAtTurnStart       *int64
	TimeRemainAtTurnStart *int64
}

// NewClocks allocates both countdowns at the control's base time.
func NewClocks(tc TimeControl) *Clocks {
	return &Clocks{
		StartTimeMillis: tc.BaseMillis,
		IncrementMillis: tc.IncrementMillis,
		CurrentTime: map[Color]int64{
			White: tc.BaseMillis,
			Black: tc.BaseMillis,
		},
	}
}

// ClockValues is the reportable snapshot sent to clients.
type ClockValues struct {
	Clocks       map[Color]int64 `json:"clocks"`
	ColorTicking *Color          `json:"colorTicking,omitempty"`
}

// PushClock advances the turn after a move has been appended and settles the
// mover's countdown. Returns the mover's remaining time (their clock stamp),
// or nil for untimed games.
//
// The first two plies are free: no time is deducted and no increment granted,
// but the turn stamps are armed on the second ply so the third is the first
// one measured.
func (g *BaseGame) PushClock(now int64) *int64 {
	prev := g.WhosTurn
	next := g.TurnAt(len(g.Moves))
	g.WhosTurn = next

	if g.Untimed {
		return nil
	}
	c := g.Clocks

	if len(g.Moves) < 2 {
		stamp := c.CurrentTime[prev]
		return &stamp
	}

	if len(g.Moves) >= 3 {
		spent := now - *c.TimeAtTurnStart
		remain := *c.TimeRemainAtTurnStart - spent + c.IncrementMillis
		if remain < 0 {
			remain = 0
		}
		c.CurrentTime[prev] = remain
	}

	turnStart := now
	c.TimeAtTurnStart = &turnStart
	remainNext := c.CurrentTime[next]
	c.TimeRemainAtTurnStart = &remainNext

	stamp := c.CurrentTime[prev]
	return &stamp
}

// StopClocks finalizes the running countdown when a game concludes. Untimed
// games and games whose turn is already cleared are untouched.
func (g *BaseGame) StopClocks(now int64) {
	if g.Untimed || g.WhosTurn == "" {
		return
	}
	c := g.Clocks
	if c.TimeAtTurnStart != nil && c.TimeRemainAtTurnStart != nil {
		remain := *c.TimeRemainAtTurnStart - (now - *c.TimeAtTurnStart)
		if remain < 0 {
			remain = 0
		}
		c.CurrentTime[g.WhosTurn] = remain
	}
	g.WhosTurn = ""
	c.TimeAtTurnStart = nil
	c.TimeRemainAtTurnStart = nil
}

// ClockSnapshot reports both countdowns, settling the ticking side first so
// the value on the wire is current. Nil for untimed games.
func (g *BaseGame) ClockSnapshot(now int64) *ClockValues {
	if g.Untimed {
		return nil
	}
	c := g.Clocks

	ticking := !g.IsOver() && g.IsResignable() && c.TimeAtTurnStart != nil
	if ticking {
		remain := *c.TimeRemainAtTurnStart - (now - *c.TimeAtTurnStart)
		if remain < 0 {
			remain = 0
		}
		c.CurrentTime[g.WhosTurn] = remain
	}

	values := &ClockValues{
		Clocks: map[Color]int64{
			White: c.CurrentTime[White],
			Black: c.CurrentTime[Black],
		},
	}
	if ticking {
		mover := g.WhosTurn
		values.ColorTicking = &mover
	}
	return values
}

// MoverTimeRemaining is the armed countdown of the color to move, used to
// schedule the loss-on-time timer. Zero when clamped; ok is false when the
// clocks are not running.
func (g *BaseGame) MoverTimeRemaining() (int64, bool) {
	if g.Untimed || g.Clocks == nil || g.Clocks.TimeRemainAtTurnStart == nil {
		return 0, false
	}
	remain := *g.Clocks.TimeRemainAtTurnStart
	if remain < 0 {
		remain = 0
	}
	return remain, true
}
