package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"chess-arena/internal/config"
	"chess-arena/internal/db"
)

// Wipes every collection the server writes. Dev convenience only.
func main() {
	cfg, err := config.Load("dev")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	mongodb, err := db.NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database, zap.NewNop())
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mongodb.Close(ctx)
	}()

	ctx := context.Background()

	collections := []struct {
		name string
		coll *mongo.Collection
	}{
		{"games", mongodb.Games()},
		{"player_games", mongodb.PlayerGames()},
		{"player_stats", mongodb.PlayerStats()},
		{"leaderboards", mongodb.Leaderboards()},
		{"rating_abuse", mongodb.RatingAbuse()},
		{"unlogged_games", mongodb.UnloggedGames()},
		{"hack_reports", mongodb.HackReports()},
		{"sweeper_locks", mongodb.SweeperLocks()},
	}

	for _, c := range collections {
		result, err := c.coll.DeleteMany(ctx, bson.M{})
		if err != nil {
			log.Fatalf("Failed to clear %s: %v", c.name, err)
		}
		fmt.Printf("Deleted %d documents from %s\n", result.DeletedCount, c.name)
	}

	fmt.Println("Database cleared successfully")
}
