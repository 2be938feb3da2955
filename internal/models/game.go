package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chess-arena/internal/game"
)

// PlayerRef is a seat in a persisted game: members carry userId and username,
// guests only a browser id.
type PlayerRef struct {
	UserID    string `json:"userId,omitempty" bson:"userId,omitempty"`
	Username  string `json:"username,omitempty" bson:"username,omitempty"`
	BrowserID string `json:"browserId,omitempty" bson:"browserId,omitempty"`
}

// RefFromIdentity converts a live identity into its persisted form.
func RefFromIdentity(p game.PlayerIdentity) PlayerRef {
	if p.IsMember() {
		return PlayerRef{UserID: p.UserID, Username: p.Username}
	}
	return PlayerRef{BrowserID: p.BrowserID}
}

// MoveRecord is one persisted ply.
type MoveRecord struct {
	Compact    string `json:"compact" bson:"compact"`
	ClockStamp *int64 `json:"clockStamp,omitempty" bson:"clockStamp,omitempty"`
}

// RatingOutcome is one player's rating after a rated game.
type RatingOutcome struct {
	RatingAfter    float64 `json:"ratingAfter" bson:"ratingAfter"`
	DeviationAfter float64 `json:"deviationAfter" bson:"deviationAfter"`
	Change         float64 `json:"change" bson:"change"`
	Confident      bool    `json:"confident" bson:"confident"`
}

// GameRatingData stores both rating outcomes on the game document.
type GameRatingData struct {
	White RatingOutcome `json:"white" bson:"white"`
	Black RatingOutcome `json:"black" bson:"black"`
}

// GameRecord is the terminal form of a game, written once on deletion.
type GameRecord struct {
	ID          primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	GameID      int64              `json:"gameId" bson:"gameId"`
	Variant     string             `json:"variant" bson:"variant"`
	TimeControl string             `json:"timeControl" bson:"timeControl"`
	Rated       bool               `json:"rated" bson:"rated"`
	Private     bool               `json:"private" bson:"private"`
	White       PlayerRef          `json:"white" bson:"white"`
	Black       PlayerRef          `json:"black" bson:"black"`
	Moves       []MoveRecord       `json:"moves" bson:"moves"`
	Result      string             `json:"result" bson:"result"`
	Termination string             `json:"termination" bson:"termination"`
	UTCDate     string             `json:"utcDate" bson:"utcDate"`
	UTCTime     string             `json:"utcTime" bson:"utcTime"`
	TimeCreated int64              `json:"timeCreated" bson:"timeCreated"` // unix milliseconds
	TimeEnded   int64              `json:"timeEnded" bson:"timeEnded"`
	RatingData  *GameRatingData    `json:"ratingData,omitempty" bson:"ratingData,omitempty"`
}

// PlayerGame is a member's history row, one per seat per logged game.
type PlayerGame struct {
	ID       primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	UserID   string             `json:"userId" bson:"userId"`
	GameID   int64              `json:"gameId" bson:"gameId"`
	Color    game.Color         `json:"color" bson:"color"`
	Score    float64            `json:"score" bson:"score"` // 1 win, 0.5 draw, 0 loss
	Rated    bool               `json:"rated" bson:"rated"`
	LoggedAt int64              `json:"loggedAt" bson:"loggedAt"`
}

// PlayerStats is the per-member aggregate document, updated with $inc inside
// the log transaction.
type PlayerStats struct {
	ID           primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	UserID       string             `json:"userId" bson:"userId"`
	GamesPlayed  int                `json:"gamesPlayed" bson:"gamesPlayed"`
	Wins         int                `json:"wins" bson:"wins"`
	Losses       int                `json:"losses" bson:"losses"`
	Draws        int                `json:"draws" bson:"draws"`
	Aborted      int                `json:"aborted" bson:"aborted"`
	LastPlayedAt int64              `json:"lastPlayedAt" bson:"lastPlayedAt"`
}

// LeaderboardEntry is one member's rating on one leaderboard. Leaderboards are
// keyed by variant.
type LeaderboardEntry struct {
	ID              primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	LeaderboardID   string             `json:"leaderboardId" bson:"leaderboardId"`
	UserID          string             `json:"userId" bson:"userId"`
	Username        string             `json:"username" bson:"username"`
	RatingValue     float64            `json:"ratingValue" bson:"ratingValue"`
	RatingDeviation float64            `json:"ratingDeviation" bson:"ratingDeviation"`
	GamesPlayed     int                `json:"gamesPlayed" bson:"gamesPlayed"`
	LastRatedAt     int64              `json:"lastRatedAt" bson:"lastRatedAt"`
}

// RatingAbuseReport flags a rated result for review; written outside the log
// transaction by the abuse monitor.
type RatingAbuseReport struct {
	ID            primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	GameID        int64              `json:"gameId" bson:"gameId"`
	UserID        string             `json:"userId" bson:"userId"`
	LeaderboardID string             `json:"leaderboardId" bson:"leaderboardId"`
	Change        float64            `json:"change" bson:"change"`
	Note          string             `json:"note" bson:"note"`
	CreatedAt     int64              `json:"createdAt" bson:"createdAt"`
}

// UnloggedGame is the rollback sink: the full record plus the failure cause,
// retried later by the sweeper.
type UnloggedGame struct {
	ID            primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	Game          GameRecord         `json:"game" bson:"game"`
	Cause         string             `json:"cause" bson:"cause"`
	Retries       int                `json:"retries" bson:"retries"`
	CreatedAt     int64              `json:"createdAt" bson:"createdAt"`
	LastAttemptAt int64              `json:"lastAttemptAt" bson:"lastAttemptAt"`
}

// HackReport is one tampered or out-of-contract client message. The
// collection carries a TTL index so reports age out on their own.
type HackReport struct {
	ID        primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	UserID    string             `json:"userId,omitempty" bson:"userId,omitempty"`
	BrowserID string             `json:"browserId,omitempty" bson:"browserId,omitempty"`
	GameID    int64              `json:"gameId,omitempty" bson:"gameId,omitempty"`
	Action    string             `json:"action" bson:"action"`
	Detail    string             `json:"detail" bson:"detail"`
	Raw       string             `json:"raw,omitempty" bson:"raw,omitempty"`
	CreatedAt int64              `json:"createdAt" bson:"createdAt"` // unix milliseconds; TTL keyed on createdAtDate
	// CreatedAtDate duplicates CreatedAt as a BSON date because TTL indexes
	// only apply to date fields.
	CreatedAtDate primitive.DateTime `json:"-" bson:"createdAtDate"`
}

// SweeperLock is the distributed lock document used by the unlogged-games
// retry sweeper so only one instance processes the backlog.
type SweeperLock struct {
	Name      string             `json:"name" bson:"_id"`
	Holder    string             `json:"holder" bson:"holder"`
	ExpiresAt primitive.DateTime `json:"expiresAt" bson:"expiresAt"`
}
