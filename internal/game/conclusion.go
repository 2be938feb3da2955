package game

// Condition says how a game ended.
type Condition string

const (
	ConditionAborted            Condition = "aborted"
	ConditionCheckmate          Condition = "checkmate"
	ConditionStalemate          Condition = "stalemate"
	ConditionRepetition         Condition = "repetition"
	ConditionMoveRule           Condition = "moverule"
	ConditionInsuffMat          Condition = "insuffmat"
	ConditionRoyalCapture       Condition = "royalcapture"
	ConditionAllRoyalsCaptured  Condition = "allroyalscaptured"
	ConditionAllPiecesCaptured  Condition = "allpiecescaptured"
	ConditionKOTH               Condition = "koth"
	ConditionResignation        Condition = "resignation"
	ConditionAgreement          Condition = "agreement"
	ConditionTime               Condition = "time"
	ConditionDisconnect         Condition = "disconnect"
)

// clientClaimable are the decisive conditions a mover may assert alongside a
// submitted move. Lifecycle outcomes (resignation, agreement, time, disconnect,
// aborted) are always server-decided.
var clientClaimable = map[Condition]bool{
	ConditionCheckmate:         true,
	ConditionStalemate:         true,
	ConditionRepetition:        true,
	ConditionMoveRule:          true,
	ConditionInsuffMat:         true,
	ConditionRoyalCapture:      true,
	ConditionAllRoyalsCaptured: true,
	ConditionAllPiecesCaptured: true,
	ConditionKOTH:              true,
}

var allConditions = map[Condition]bool{
	ConditionAborted:           true,
	ConditionCheckmate:         true,
	ConditionStalemate:         true,
	ConditionRepetition:        true,
	ConditionMoveRule:          true,
	ConditionInsuffMat:         true,
	ConditionRoyalCapture:      true,
	ConditionAllRoyalsCaptured: true,
	ConditionAllPiecesCaptured: true,
	ConditionKOTH:              true,
	ConditionResignation:       true,
	ConditionAgreement:         true,
	ConditionTime:              true,
	ConditionDisconnect:        true,
}

// ClientClaimable reports whether a mover may claim this condition themselves.
func (c Condition) ClientClaimable() bool {
	return clientClaimable[c]
}

// Known reports whether the condition is part of the protocol at all.
func (c Condition) Known() bool {
	return allConditions[c]
}

// Conclusion is the terminal verdict of a game. Victor is empty for aborted
// games and Neutral for draws.
type Conclusion struct {
	Victor    Color     `json:"victor,omitempty"`
	Condition Condition `json:"condition"`
}

// Valid checks shape only: a known condition and a victor that is a seated
// color, Neutral, or absent.
func (c Conclusion) Valid() bool {
	if !c.Condition.Known() {
		return false
	}
	switch c.Victor {
	case White, Black, Neutral, "":
		return true
	default:
		return false
	}
}

// Result renders the conventional score string for game records.
func (c Conclusion) Result() string {
	switch c.Victor {
	case White:
		return "1-0"
	case Black:
		return "0-1"
	case Neutral:
		return "1/2-1/2"
	default:
		return "*"
	}
}
