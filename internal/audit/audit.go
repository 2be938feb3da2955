package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"chess-arena/internal/db"
	"chess-arena/internal/game"
	"chess-arena/internal/models"
)

// Recorder persists tamper reports: client messages that violate the protocol
// in ways an unmodified client cannot produce. Writes are fire-and-forget so
// the game path never blocks on the database.
type Recorder struct {
	db  *db.MongoDB
	log *zap.Logger
}

func NewRecorder(database *db.MongoDB, logger *zap.Logger) *Recorder {
	return &Recorder{db: database, log: logger.Named("audit")}
}

// Tamper files a hack report for the given identity. gameID may be zero when
// the message was rejected before any game was resolved.
func (r *Recorder) Tamper(id game.PlayerIdentity, gameID int64, action, detail, raw string) {
	now := time.Now()
	report := models.HackReport{
		UserID:        id.UserID,
		BrowserID:     id.BrowserID,
		GameID:        gameID,
		Action:        action,
		Detail:        detail,
		Raw:           raw,
		CreatedAt:     now.UnixMilli(),
		CreatedAtDate: primitive.NewDateTimeFromTime(now),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := r.db.HackReports().InsertOne(ctx, report); err != nil {
			r.log.Warn("hack report write failed",
				zap.String("action", action),
				zap.Int64("gameID", gameID),
				zap.Error(err))
		}
	}()
}
