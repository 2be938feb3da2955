package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// hackReportTTL bounds how long tamper evidence is retained.
const hackReportTTL = 30 * 24 * 3600 // seconds

type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
	log      *zap.Logger
}

func NewMongoDB(uri, database string, logger *zap.Logger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(500).
		SetMinPoolSize(10).
		SetMaxConnIdleTime(5 * time.Minute)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := &MongoDB{
		Client:   client,
		Database: client.Database(database),
		log:      logger,
	}

	// Create indexes in the background (non-blocking).
	go db.ensureIndexes()

	return db, nil
}

// ensureIndexes creates all required indexes. Called once on startup.
func (m *MongoDB) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	indexes := []struct {
		collection string
		models     []mongo.IndexModel
	}{
		{
			"games",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "gameId", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "timeEnded", Value: -1}}},
			},
		},
		{
			"player_games",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "loggedAt", Value: -1}}},
				{Keys: bson.D{{Key: "gameId", Value: 1}}},
			},
		},
		{
			"player_stats",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
			},
		},
		{
			"leaderboards",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "leaderboardId", Value: 1}, {Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "leaderboardId", Value: 1}, {Key: "ratingValue", Value: -1}}},
			},
		},
		{
			"rating_abuse",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
				{Keys: bson.D{{Key: "gameId", Value: 1}}},
			},
		},
		{
			"unlogged_games",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "createdAt", Value: 1}}},
				{Keys: bson.D{{Key: "retries", Value: 1}}},
			},
		},
		{
			"hack_reports",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "createdAtDate", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(hackReportTTL)},
				{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
			},
		},
	}

	for _, idx := range indexes {
		coll := m.Database.Collection(idx.collection)
		if _, err := coll.Indexes().CreateMany(ctx, idx.models); err != nil {
			m.log.Warn("failed to create indexes",
				zap.String("collection", idx.collection), zap.Error(err))
		}
	}

	m.log.Info("database indexes ensured")
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

func (m *MongoDB) Games() *mongo.Collection {
	return m.Database.Collection("games")
}

func (m *MongoDB) PlayerGames() *mongo.Collection {
	return m.Database.Collection("player_games")
}

func (m *MongoDB) PlayerStats() *mongo.Collection {
	return m.Database.Collection("player_stats")
}

func (m *MongoDB) Leaderboards() *mongo.Collection {
	return m.Database.Collection("leaderboards")
}

func (m *MongoDB) RatingAbuse() *mongo.Collection {
	return m.Database.Collection("rating_abuse")
}

func (m *MongoDB) UnloggedGames() *mongo.Collection {
	return m.Database.Collection("unlogged_games")
}

func (m *MongoDB) HackReports() *mongo.Collection {
	return m.Database.Collection("hack_reports")
}

func (m *MongoDB) SweeperLocks() *mongo.Collection {
	return m.Database.Collection("sweeper_locks")
}
