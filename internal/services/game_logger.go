package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"chess-arena/internal/db"
	"chess-arena/internal/game"
	"chess-arena/internal/match"
	"chess-arena/internal/models"
	"chess-arena/internal/rating"
)

// gameIDSpace bounds minted game ids to nine digits.
const gameIDSpace = 1_000_000_000

const millisPerDay = 24 * 60 * 60 * 1000

// ErrIDSpaceExhausted is returned when minting cannot find a free id. With a
// nine-digit space this only happens if storage probes keep failing.
var ErrIDSpaceExhausted = errors.New("services: could not mint an unused game id")

// GameLogger is the persistence side of the coordinator: it mints game ids
// and flushes finished games to MongoDB. A rated game between two members is
// written together with its rating updates in one multi-document transaction,
// so the game record and the leaderboards never disagree.
type GameLogger struct {
	db   *db.MongoDB
	calc *rating.Calculator
	log  *zap.Logger
}

func NewGameLogger(database *db.MongoDB, logger *zap.Logger) *GameLogger {
	return &GameLogger{
		db:   database,
		calc: rating.NewCalculator(),
		log:  logger.Named("gamelog"),
	}
}

// MintGameID draws random ids until one is free in the live set, the games
// collection, and the unlogged backlog.
func (s *GameLogger) MintGameID(ctx context.Context, live func(int64) bool) (int64, error) {
	for attempt := 0; attempt < 64; attempt++ {
		n, err := rand.Int(rand.Reader, big.NewInt(gameIDSpace-1))
		if err != nil {
			return 0, fmt.Errorf("mint game id: %w", err)
		}
		id := n.Int64() + 1
		if live(id) {
			continue
		}
		taken, err := s.idTaken(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("mint game id: %w", err)
		}
		if taken {
			continue
		}
		return id, nil
	}
	return 0, ErrIDSpaceExhausted
}

func (s *GameLogger) idTaken(ctx context.Context, id int64) (bool, error) {
	limit := options.Count().SetLimit(1)
	n, err := s.db.Games().CountDocuments(ctx, bson.M{"gameId": id}, limit)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	n, err = s.db.UnloggedGames().CountDocuments(ctx, bson.M{"game.gameId": id}, limit)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LogGame writes the finished game and, for rated games between members, the
// rating updates, atomically. Returns the per-color changes applied.
func (s *GameLogger) LogGame(ctx context.Context, m *match.Match) (map[game.Color]match.RatingChange, error) {
	return s.logRecord(ctx, buildRecord(m))
}

// logRecord runs the write transaction for one game record. It is shared with
// the retry sweeper, which replays records parked in the unlogged backlog.
func (s *GameLogger) logRecord(ctx context.Context, rec *models.GameRecord) (map[game.Color]match.RatingChange, error) {
	session, err := s.db.Client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("log game %d: start session: %w", rec.GameID, err)
	}
	defer session.EndSession(ctx)

	var changes map[game.Color]match.RatingChange
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		// The callback may be retried on transient errors, so it rebuilds its
		// outputs from scratch every time.
		changes = nil
		rec.RatingData = nil
		now := time.Now().UnixMilli()

		if rec.Rated && rec.White.UserID != "" && rec.Black.UserID != "" {
			ch, err := s.applyRatings(sc, rec, now)
			if err != nil {
				return nil, err
			}
			changes = ch
		}

		if _, err := s.db.Games().InsertOne(sc, rec); err != nil {
			return nil, fmt.Errorf("insert game: %w", err)
		}

		for _, side := range []struct {
			color game.Color
			ref   models.PlayerRef
		}{
			{game.White, rec.White},
			{game.Black, rec.Black},
		} {
			if side.ref.UserID == "" {
				continue
			}
			if err := s.writePlayerRows(sc, rec, side.color, side.ref.UserID, now); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("game logged",
		zap.Int64("gameID", rec.GameID),
		zap.String("result", rec.Result),
		zap.Bool("rated", rec.Rated && rec.RatingData != nil))
	return changes, nil
}

// writePlayerRows adds one member's history row and bumps their aggregates.
func (s *GameLogger) writePlayerRows(ctx context.Context, rec *models.GameRecord, color game.Color, userID string, now int64) error {
	score, bucket := scoreForColor(rec.Result, color)
	row := models.PlayerGame{
		UserID:   userID,
		GameID:   rec.GameID,
		Color:    color,
		Score:    score,
		Rated:    rec.Rated,
		LoggedAt: now,
	}
	if _, err := s.db.PlayerGames().InsertOne(ctx, row); err != nil {
		return fmt.Errorf("insert player game: %w", err)
	}

	update := bson.M{
		"$inc": bson.M{"gamesPlayed": 1, bucket: 1},
		"$set": bson.M{"lastPlayedAt": now},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := s.db.PlayerStats().UpdateOne(ctx, bson.M{"userId": userID}, update, opts); err != nil {
		return fmt.Errorf("update player stats: %w", err)
	}
	return nil
}

// applyRatings recomputes both members' Glicko ratings, upserts the
// leaderboard entries, and stamps the outcomes onto the record. Aborted games
// leave ratings untouched.
func (s *GameLogger) applyRatings(ctx mongo.SessionContext, rec *models.GameRecord, now int64) (map[game.Color]match.RatingChange, error) {
	whiteScore, blackScore, decisive := scoresFromResult(rec.Result)
	if !decisive {
		return nil, nil
	}

	white, err := s.boardRating(ctx, rec.Variant, rec.White.UserID, now)
	if err != nil {
		return nil, err
	}
	black, err := s.boardRating(ctx, rec.Variant, rec.Black.UserID, now)
	if err != nil {
		return nil, err
	}

	newWhite := s.calc.Update(white, black, whiteScore)
	newBlack := s.calc.Update(black, white, blackScore)

	if err := s.upsertBoardEntry(ctx, rec.Variant, rec.White, newWhite, now); err != nil {
		return nil, err
	}
	if err := s.upsertBoardEntry(ctx, rec.Variant, rec.Black, newBlack, now); err != nil {
		return nil, err
	}

	rec.RatingData = &models.GameRatingData{
		White: outcome(white, newWhite),
		Black: outcome(black, newBlack),
	}
	return map[game.Color]match.RatingChange{
		game.White: ratingChange(white, newWhite),
		game.Black: ratingChange(black, newBlack),
	}, nil
}

// boardRating loads a member's current rating on a variant board, inflated
// for idle time. Members without an entry start provisional.
func (s *GameLogger) boardRating(ctx context.Context, variant, userID string, now int64) (rating.Rating, error) {
	var entry models.LeaderboardEntry
	err := s.db.Leaderboards().FindOne(ctx, bson.M{"leaderboardId": variant, "userId": userID}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return rating.NewRating(), nil
	}
	if err != nil {
		return rating.Rating{}, fmt.Errorf("load leaderboard entry: %w", err)
	}
	r := rating.Rating{Value: entry.RatingValue, Deviation: entry.RatingDeviation}
	if entry.LastRatedAt > 0 && now > entry.LastRatedAt {
		r = s.calc.Inflate(r, float64(now-entry.LastRatedAt)/millisPerDay)
	}
	return r, nil
}

func (s *GameLogger) upsertBoardEntry(ctx context.Context, variant string, ref models.PlayerRef, r rating.Rating, now int64) error {
	filter := bson.M{"leaderboardId": variant, "userId": ref.UserID}
	update := bson.M{
		"$set": bson.M{
			"username":        ref.Username,
			"ratingValue":     r.Value,
			"ratingDeviation": r.Deviation,
			"lastRatedAt":     now,
		},
		"$inc": bson.M{"gamesPlayed": 1},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := s.db.Leaderboards().UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("upsert leaderboard entry: %w", err)
	}
	return nil
}

// SaveUnlogged parks a game whose log transaction rolled back so the sweeper
// can retry it. Failing to park is only logged: the game is already gone from
// memory and there is nobody left to tell.
func (s *GameLogger) SaveUnlogged(ctx context.Context, m *match.Match, cause error) {
	now := time.Now().UnixMilli()
	entry := models.UnloggedGame{
		Game:          *buildRecord(m),
		Cause:         cause.Error(),
		CreatedAt:     now,
		LastAttemptAt: now,
	}
	if _, err := s.db.UnloggedGames().InsertOne(ctx, entry); err != nil {
		s.log.Error("failed to park unlogged game",
			zap.Int64("gameID", m.ID),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return
	}
	s.log.Warn("game parked for retry",
		zap.Int64("gameID", m.ID),
		zap.NamedError("cause", cause))
}

// LoggedGameInfo fetches the stored record of a flushed game, for clients
// that ask about a game id no longer live.
func (s *GameLogger) LoggedGameInfo(ctx context.Context, gameID int64) (any, bool) {
	var rec models.GameRecord
	err := s.db.Games().FindOne(ctx, bson.M{"gameId": gameID}).Decode(&rec)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			s.log.Warn("logged game lookup failed", zap.Int64("gameID", gameID), zap.Error(err))
		}
		return nil, false
	}
	return &rec, true
}

// LeaderboardRating reads a member's rating on a variant board for display.
// Unknown members get the provisional default.
func (s *GameLogger) LeaderboardRating(ctx context.Context, userID, variant string) match.RatingState {
	var entry models.LeaderboardEntry
	err := s.db.Leaderboards().FindOne(ctx, bson.M{"leaderboardId": variant, "userId": userID}).Decode(&entry)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			s.log.Warn("leaderboard lookup failed", zap.String("userID", userID), zap.Error(err))
		}
		return match.RatingState{Value: rating.DefaultRating, Confident: false}
	}
	r := rating.Rating{Value: entry.RatingValue, Deviation: entry.RatingDeviation}
	return match.RatingState{Value: r.Value, Confident: r.Confident()}
}

// buildRecord converts a concluded match into its terminal persisted form.
// The caller has already removed the match from the registry, so the fields
// are stable.
func buildRecord(m *match.Match) *models.GameRecord {
	moves := make([]models.MoveRecord, len(m.Base.Moves))
	for i, mv := range m.Base.Moves {
		moves[i] = models.MoveRecord{Compact: mv.Compact, ClockStamp: mv.ClockStamp}
	}
	ended := time.Now().UnixMilli()
	if m.TimeEnded != nil {
		ended = *m.TimeEnded
	}
	return &models.GameRecord{
		GameID:      m.ID,
		Variant:     m.Base.Variant,
		TimeControl: m.Base.Metadata.TimeControl,
		Rated:       m.Rated,
		Private:     m.IsPrivate(),
		White:       models.RefFromIdentity(m.Players[game.White].Identity),
		Black:       models.RefFromIdentity(m.Players[game.Black].Identity),
		Moves:       moves,
		Result:      m.Base.Metadata.Result,
		Termination: m.Base.Metadata.Termination,
		UTCDate:     m.Base.Metadata.UTCDate,
		UTCTime:     m.Base.Metadata.UTCTime,
		TimeCreated: m.TimeCreated,
		TimeEnded:   ended,
	}
}

// scoresFromResult maps a result tag to per-color scores. decisive is false
// for aborted games, which carry no score at all.
func scoresFromResult(result string) (white, black rating.Score, decisive bool) {
	switch result {
	case "1-0":
		return rating.Win, rating.Loss, true
	case "0-1":
		return rating.Loss, rating.Win, true
	case "1/2-1/2":
		return rating.Draw, rating.Draw, true
	default:
		return 0, 0, false
	}
}

// scoreForColor is one color's score plus the player_stats bucket it lands in.
func scoreForColor(result string, color game.Color) (float64, string) {
	white, black, decisive := scoresFromResult(result)
	if !decisive {
		return 0, "aborted"
	}
	score := white
	if color == game.Black {
		score = black
	}
	switch score {
	case rating.Win:
		return 1, "wins"
	case rating.Draw:
		return 0.5, "draws"
	default:
		return 0, "losses"
	}
}

func outcome(before, after rating.Rating) models.RatingOutcome {
	return models.RatingOutcome{
		RatingAfter:    after.Value,
		DeviationAfter: after.Deviation,
		Change:         after.Value - before.Value,
		Confident:      after.Confident(),
	}
}

func ratingChange(before, after rating.Rating) match.RatingChange {
	return match.RatingChange{
		NewRating: match.RatingState{Value: after.Value, Confident: after.Confident()},
		Change:    after.Value - before.Value,
	}
}
