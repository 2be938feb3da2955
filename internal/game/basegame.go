package game

// GameRules is the subset of variant rules the coordinator needs: who moves in
// what order, and the optional move-rule ply budget (metadata only; the rules
// engine enforces it client-side and claims the conclusion).
type GameRules struct {
	TurnOrder []Color `json:"turnOrder"`
	MoveRule  *int    `json:"moveRule,omitempty"`
}

// DefaultGameRules is standard alternation, White first, hundred-ply move rule.
func DefaultGameRules() GameRules {
	moveRule := 100
	return GameRules{
		TurnOrder: []Color{White, Black},
		MoveRule:  &moveRule,
	}
}

// BaseGame is the board-facing half of a served game: variant, metadata, the
// move list, whose turn it is, the conclusion once decided, and the clocks.
type BaseGame struct {
	Variant    string
	Metadata   Metadata
	Rules      GameRules
	Moves      []Move
	WhosTurn   Color
	Conclusion *Conclusion
	Untimed    bool
	Clocks     *Clocks
}

// NewBaseGame builds a fresh game. The first color in the turn order moves
// first; clocks are allocated only for timed controls.
func NewBaseGame(variant string, rules GameRules, tc TimeControl, meta Metadata) *BaseGame {
	bg := &BaseGame{
		Variant:  variant,
		Metadata: meta,
		Rules:    rules,
		Moves:    make([]Move, 0, 16),
		WhosTurn: rules.TurnOrder[0],
		Untimed:  tc.Untimed(),
	}
	if !bg.Untimed {
		bg.Clocks = NewClocks(tc)
	}
	return bg
}

// TurnAt returns the color to move when the move list has the given length.
func (g *BaseGame) TurnAt(moveCount int) Color {
	return g.Rules.TurnOrder[moveCount%len(g.Rules.TurnOrder)]
}

// MoveCount is the number of appended plies.
func (g *BaseGame) MoveCount() int {
	return len(g.Moves)
}

// IsOver reports whether a conclusion has been set.
func (g *BaseGame) IsOver() bool {
	return g.Conclusion != nil
}

// IsResignable: resignation (and clock starts, draw offers, timed penalties)
// require both players to have moved.
func (g *BaseGame) IsResignable() bool {
	return len(g.Moves) >= 2
}

// IsAbortable: with at most one ply played, termination by either player is an
// abort rather than a loss.
func (g *BaseGame) IsAbortable() bool {
	return len(g.Moves) <= 1
}

// IsBorderlineResignable is the two-ply edge where aborts are still tolerated.
func (g *BaseGame) IsBorderlineResignable() bool {
	return len(g.Moves) == 2
}

// SetConclusion stamps the verdict and the derived Result/Termination tags.
// Callers guarantee idempotence at the match layer.
func (g *BaseGame) SetConclusion(c Conclusion) {
	conclusion := c
	g.Conclusion = &conclusion
	g.Metadata.Result = c.Result()
	g.Metadata.Termination = string(c.Condition)
}
