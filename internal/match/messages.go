package match

import (
	"chess-arena/internal/game"
)

// Inbound actions on the "game" route.
const (
	ActionSubmitMove       = "submitmove"
	ActionJoinGame         = "joingame"
	ActionRemoveFromActive = "removefromplayersinactivegames"
	ActionResync           = "resync"
	ActionAbort            = "abort"
	ActionResign           = "resign"
	ActionOfferDraw        = "offerdraw"
	ActionAcceptDraw       = "acceptdraw"
	ActionDeclineDraw      = "declinedraw"
	ActionAFK              = "AFK"
	ActionAFKReturn        = "AFK-Return"
	ActionReport           = "report"
	ActionPaste            = "paste"
)

// Outbound actions on the "game" route.
const (
	MsgJoinGame                  = "joingame"
	MsgGameUpdate                = "gameupdate"
	MsgMove                      = "move"
	MsgClock                     = "clock"
	MsgOpponentAFK               = "opponentafk"
	MsgOpponentAFKReturn         = "opponentafkreturn"
	MsgOpponentDisconnect        = "opponentdisconnect"
	MsgOpponentDisconnectReturn  = "opponentdisconnectreturn"
	MsgDrawOffer                 = "drawoffer"
	MsgDeclineDraw               = "declinedraw"
	MsgGameRatingChange          = "gameratingchange"
	MsgUnsub                     = "unsub"
	MsgLeaveGame                 = "leavegame"
	MsgServerRestart             = "serverrestart"
	MsgNoGame                    = "nogame"
	MsgLogin                     = "login"
	MsgLoggedGameInfo            = "logged-game-info"
)

// Outbound actions on the "general" route.
const (
	MsgNotify      = "notify"
	MsgNotifyError = "notifyerror"
	MsgPrintError  = "printerror"
)

// Notification keys shared with the client's translation table.
const (
	KeyMoveOutOfRange  = "game.move_out_of_range"
	KeyPasteRejected   = "game.paste_rejected"
	KeyReportRejected  = "game.report_rejected"
	KeyAbortedByReport = "game.aborted_by_report"
	KeyDrawUnavailable = "game.draw_offer_unavailable"
)

// SubmitMovePayload is the inbound submitmove value.
type SubmitMovePayload struct {
	Move           string           `json:"move"`
	MoveNumber     int              `json:"moveNumber"`
	GameConclusion *ConclusionClaim `json:"gameConclusion,omitempty"`
}

// ConclusionClaim is a client-asserted game end riding on a move.
type ConclusionClaim struct {
	Condition string `json:"condition"`
	Victor    string `json:"victor,omitempty"`
}

// ReportPayload is the inbound report value.
type ReportPayload struct {
	Reason              string `json:"reason"`
	OpponentsMoveNumber int    `json:"opponentsMoveNumber"`
}

// MoveWire is a ply as sent to clients.
type MoveWire struct {
	Compact    string `json:"compact"`
	ClockStamp *int64 `json:"clockStamp,omitempty"`
}

// MoveMessage tells the opponent a move was played, possibly ending the game.
type MoveMessage struct {
	Move           MoveWire          `json:"move"`
	GameConclusion *game.Conclusion  `json:"gameConclusion,omitempty"`
	MoveNumber     int               `json:"moveNumber"`
	ClockValues    *game.ClockValues `json:"clockValues,omitempty"`
}

// SeatInfo is the public description of one seat.
type SeatInfo struct {
	Member   bool   `json:"member"`
	Username string `json:"username,omitempty"`
}

// GameInfo is the immutable header of a game as clients see it.
type GameInfo struct {
	ID        int64                       `json:"id"`
	Publicity Publicity                   `json:"publicity"`
	Rated     bool                        `json:"rated"`
	Players   map[game.Color]SeatInfo     `json:"players"`
}

// DisconnectInfo reports a pending auto-resign countdown for one color.
type DisconnectInfo struct {
	MillisUntilAutoDisconnectResign int64 `json:"millisUntilAutoDisconnectResign"`
	WasByChoice                     bool  `json:"wasByChoice"`
}

// ParticipantState is the non-board slice of game state a client needs to
// render the room: draw offer on the table, AFK countdown, opponents'
// disconnect countdowns.
type ParticipantState struct {
	DrawOfferBy              game.Color                       `json:"drawOfferBy,omitempty"`
	MillisUntilAutoAFKResign *int64                           `json:"millisUntilAutoAFKResign,omitempty"`
	Disconnects              map[game.Color]DisconnectInfo    `json:"disconnects,omitempty"`
}

// JoinGamePayload is the full state handed to a socket entering a game.
type JoinGamePayload struct {
	GameInfo           GameInfo          `json:"gameInfo"`
	Metadata           game.Metadata     `json:"metadata"`
	YouAreColor        game.Color        `json:"youAreColor"`
	GameConclusion     *game.Conclusion  `json:"gameConclusion,omitempty"`
	Moves              []MoveWire        `json:"moves"`
	ParticipantState   ParticipantState  `json:"participantState"`
	ClockValues        *game.ClockValues `json:"clockValues,omitempty"`
	ServerRestartingAt *int64            `json:"serverRestartingAt,omitempty"`
}

// GameUpdatePayload is the resync body: everything mutable about the game.
type GameUpdatePayload struct {
	GameConclusion     *game.Conclusion  `json:"gameConclusion,omitempty"`
	Moves              []MoveWire        `json:"moves"`
	ParticipantState   ParticipantState  `json:"participantState"`
	ClockValues        *game.ClockValues `json:"clockValues,omitempty"`
	ServerRestartingAt *int64            `json:"serverRestartingAt,omitempty"`
}

// OpponentAFKPayload carries the abandonment countdown.
type OpponentAFKPayload struct {
	MillisUntilAutoAFKResign int64 `json:"millisUntilAutoAFKResign"`
}

// RatingState is one side's rating after a rated game.
type RatingState struct {
	Value     float64 `json:"value"`
	Confident bool    `json:"confident"`
}

// RatingChange pairs the new rating with the delta that produced it.
type RatingChange struct {
	NewRating RatingState `json:"newRating"`
	Change    float64     `json:"change"`
}

// RatingChangeMessage is broadcast to both seats after a rated game logs.
type RatingChangeMessage struct {
	GameID   int64                       `json:"gameId"`
	PerColor map[game.Color]RatingChange `json:"perColor"`
}

// NotifyPayload wraps a translation key for notify/notifyerror.
type NotifyPayload struct {
	Key string `json:"key"`
}

// PrintErrorPayload wraps a human-readable diagnostic.
type PrintErrorPayload struct {
	Text string `json:"text"`
}

// ServerRestartPayload announces a pending restart.
type ServerRestartPayload struct {
	TimeToRestart int64 `json:"timeToRestart"`
}
