package services

import (
	"context"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"chess-arena/internal/db"
	"chess-arena/internal/models"
)

const (
	sweepInterval   = time.Minute
	sweepBatchLimit = 20
	sweepLockName   = "unlogged_retry"
	sweepLockTTL    = 5 * time.Minute

	// Records that keep failing stay parked for manual inspection.
	sweepMaxRetries = 10
)

// UnloggedRetrySweeper drains the unlogged backlog: game records whose log
// transaction rolled back when the game was flushed. A lock document in
// MongoDB keeps concurrent server instances from replaying the same records.
type UnloggedRetrySweeper struct {
	db      *db.MongoDB
	gameLog *GameLogger
	log     *zap.Logger
	stopCh  chan struct{}
}

func NewUnloggedRetrySweeper(database *db.MongoDB, gameLog *GameLogger, logger *zap.Logger) *UnloggedRetrySweeper {
	return &UnloggedRetrySweeper{
		db:      database,
		gameLog: gameLog,
		log:     logger.Named("sweeper"),
		stopCh:  make(chan struct{}),
	}
}

// Start begins the periodic sweep loop in a background goroutine.
func (s *UnloggedRetrySweeper) Start() {
	go s.run()
	s.log.Info("unlogged retry sweeper started", zap.Duration("interval", sweepInterval))
}

// Stop signals the sweep loop to exit.
func (s *UnloggedRetrySweeper) Stop() {
	close(s.stopCh)
	s.log.Info("unlogged retry sweeper stopped")
}

func (s *UnloggedRetrySweeper) run() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *UnloggedRetrySweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if !s.tryAcquireLock(ctx) {
		return
	}
	defer s.releaseLock(ctx)

	entries, err := s.backlog(ctx)
	if err != nil {
		s.log.Error("backlog query failed", zap.Error(err))
		return
	}
	if len(entries) == 0 {
		return
	}

	s.log.Info("retrying unlogged games", zap.Int("count", len(entries)))
	for i := range entries {
		s.retry(ctx, &entries[i])
	}
}

func (s *UnloggedRetrySweeper) backlog(ctx context.Context) ([]models.UnloggedGame, error) {
	opts := options.Find().
		SetSort(bson.M{"createdAt": 1}).
		SetLimit(sweepBatchLimit)
	cursor, err := s.db.UnloggedGames().Find(ctx, bson.M{"retries": bson.M{"$lt": sweepMaxRetries}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []models.UnloggedGame
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *UnloggedRetrySweeper) retry(ctx context.Context, entry *models.UnloggedGame) {
	_, err := s.gameLog.logRecord(ctx, &entry.Game)
	switch {
	case err == nil:
	case mongo.IsDuplicateKeyError(err):
		// A previous attempt committed after all. The record is in place, so
		// the backlog entry is just stale.
		s.log.Warn("unlogged game was already stored", zap.Int64("gameID", entry.Game.GameID))
	default:
		s.log.Warn("retry failed",
			zap.Int64("gameID", entry.Game.GameID),
			zap.Int("retries", entry.Retries+1),
			zap.Error(err))
		_, uerr := s.db.UnloggedGames().UpdateOne(ctx,
			bson.M{"_id": entry.ID},
			bson.M{
				"$inc": bson.M{"retries": 1},
				"$set": bson.M{"lastAttemptAt": time.Now().UnixMilli()},
			},
		)
		if uerr != nil {
			s.log.Error("failed to bump retry count", zap.Int64("gameID", entry.Game.GameID), zap.Error(uerr))
		}
		return
	}

	if _, err := s.db.UnloggedGames().DeleteOne(ctx, bson.M{"_id": entry.ID}); err != nil {
		s.log.Error("failed to clear backlog entry", zap.Int64("gameID", entry.Game.GameID), zap.Error(err))
	}
}

func (s *UnloggedRetrySweeper) tryAcquireLock(ctx context.Context) bool {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	now := time.Now()
	filter := bson.M{
		"_id": sweepLockName,
		"$or": []bson.M{
			{"expiresAt": bson.M{"$exists": false}},
			{"expiresAt": bson.M{"$lt": now}},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"holder":    hostname,
			"expiresAt": now.Add(sweepLockTTL),
		},
	}

	// Contention surfaces as a duplicate key error: the filter misses the held
	// lock and the upsert collides with its _id.
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	return s.db.SweeperLocks().FindOneAndUpdate(ctx, filter, update, opts).Err() == nil
}

func (s *UnloggedRetrySweeper) releaseLock(ctx context.Context) {
	_, err := s.db.SweeperLocks().UpdateOne(ctx,
		bson.M{"_id": sweepLockName},
		bson.M{"$set": bson.M{"expiresAt": time.Now()}},
	)
	if err != nil {
		s.log.Warn("failed to release lock", zap.Error(err))
	}
}
