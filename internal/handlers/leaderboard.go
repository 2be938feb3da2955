package handlers

import (
	"context"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"chess-arena/internal/db"
	"chess-arena/internal/models"
	"chess-arena/internal/rating"
	"chess-arena/internal/utils"
)

const leaderboardSize = 50

type LeaderboardHandler struct {
	db             *db.MongoDB
	defaultVariant string
	log            *zap.Logger
}

func NewLeaderboardHandler(database *db.MongoDB, defaultVariant string, logger *zap.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{db: database, defaultVariant: defaultVariant, log: logger}
}

// LeaderboardRow is one ranked member. Elo is the display form, with the
// provisional marker when the deviation is still high.
type LeaderboardRow struct {
	Rank        int     `json:"rank"`
	Username    string  `json:"username"`
	Elo         string  `json:"elo"`
	RatingValue float64 `json:"ratingValue"`
	GamesPlayed int     `json:"gamesPlayed"`
}

// GetLeaderboard returns the top rated members on one variant board.
// GET /api/leaderboard?variant=Classical
func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	variant := r.URL.Query().Get("variant")
	if variant == "" {
		variant = h.defaultVariant
	}

	opts := options.Find().
		SetSort(bson.M{"ratingValue": -1}).
		SetLimit(leaderboardSize).
		SetProjection(bson.M{
			"username":        1,
			"ratingValue":     1,
			"ratingDeviation": 1,
			"gamesPlayed":     1,
		})

	cursor, err := h.db.Leaderboards().Find(ctx, bson.M{"leaderboardId": variant}, opts)
	if err != nil {
		h.log.Warn("leaderboard query failed", zap.String("variant", variant), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to load leaderboard")
		return
	}
	defer cursor.Close(ctx)

	var entries []models.LeaderboardEntry
	if err := cursor.All(ctx, &entries); err != nil {
		h.log.Warn("leaderboard decode failed", zap.String("variant", variant), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to load leaderboard")
		return
	}

	rows := make([]LeaderboardRow, len(entries))
	for i, e := range entries {
		r := rating.Rating{Value: e.RatingValue, Deviation: e.RatingDeviation}
		rows[i] = LeaderboardRow{
			Rank:        i + 1,
			Username:    e.Username,
			Elo:         utils.EloString(e.RatingValue, r.Confident()),
			RatingValue: e.RatingValue,
			GamesPlayed: e.GamesPlayed,
		}
	}
	respondWithJSON(w, http.StatusOK, rows)
}
