package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"chess-arena/internal/db"
	"chess-arena/internal/game"
	"chess-arena/internal/match"
	"chess-arena/internal/models"
)

const (
	// A decisive rated game this short looks dumped.
	shortGamePlies = 12
	// Rating gain that makes a short game worth flagging.
	suspiciousGain = 25.0

	// Repeat pairings inside this window suggest farming.
	repeatPairWindow    = 24 * time.Hour
	repeatPairThreshold = 5
)

// RatingAbuseMonitor watches logged rated games for farming patterns and
// files reports for review. It runs after the log transaction commits and
// never blocks or fails the game flush.
type RatingAbuseMonitor struct {
	db  *db.MongoDB
	log *zap.Logger
}

func NewRatingAbuseMonitor(database *db.MongoDB, logger *zap.Logger) *RatingAbuseMonitor {
	return &RatingAbuseMonitor{db: database, log: logger.Named("abuse")}
}

// GameLogged inspects one flushed game. changes is nil for casual games,
// aborted games, and games whose rating update did not apply.
func (mon *RatingAbuseMonitor) GameLogged(m *match.Match, changes map[game.Color]match.RatingChange) {
	if len(changes) == 0 {
		return
	}

	gameID := m.ID
	variant := m.Base.Variant
	plies := m.Base.MoveCount()
	whiteID := m.Players[game.White].Identity.UserID
	blackID := m.Players[game.Black].Identity.UserID

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		for color, change := range changes {
			if change.Change < suspiciousGain {
				continue
			}
			gainer := whiteID
			if color == game.Black {
				gainer = blackID
			}
			if plies < shortGamePlies {
				mon.report(ctx, gameID, gainer, variant, change.Change, "large gain from short game")
			}
			if n := mon.recentPairings(ctx, whiteID, blackID); n >= repeatPairThreshold {
				mon.report(ctx, gameID, gainer, variant, change.Change, "repeat pairing inside window")
			}
		}
	}()
}

// recentPairings counts rated games between the same two members inside the
// farming window, regardless of who held which color.
func (mon *RatingAbuseMonitor) recentPairings(ctx context.Context, a, b string) int {
	since := time.Now().Add(-repeatPairWindow).UnixMilli()
	filter := bson.M{
		"rated":     true,
		"timeEnded": bson.M{"$gte": since},
		"$or": bson.A{
			bson.M{"white.userId": a, "black.userId": b},
			bson.M{"white.userId": b, "black.userId": a},
		},
	}
	n, err := mon.db.Games().CountDocuments(ctx, filter)
	if err != nil {
		mon.log.Warn("pairing count failed", zap.Error(err))
		return 0
	}
	return int(n)
}

func (mon *RatingAbuseMonitor) report(ctx context.Context, gameID int64, userID, variant string, change float64, note string) {
	rep := models.RatingAbuseReport{
		GameID:        gameID,
		UserID:        userID,
		LeaderboardID: variant,
		Change:        change,
		Note:          note,
		CreatedAt:     time.Now().UnixMilli(),
	}
	if _, err := mon.db.RatingAbuse().InsertOne(ctx, rep); err != nil {
		mon.log.Warn("abuse report write failed", zap.Int64("gameID", gameID), zap.Error(err))
		return
	}
	mon.log.Info("rating abuse flagged",
		zap.Int64("gameID", gameID),
		zap.String("userID", userID),
		zap.String("note", note))
}
