package rating

import (
	"math"
)

// Score is the game outcome from one player's perspective.
type Score float64

const (
	Loss Score = 0
	Draw Score = 0.5
	Win  Score = 1
)

const (
	// Defaults for players without a leaderboard entry
	DefaultRating    = 1500.0
	DefaultDeviation = 350.0

	// Deviation bounds. The floor keeps established ratings responsive; the
	// ceiling is the provisional maximum.
	MinDeviation = 30.0
	MaxDeviation = 350.0

	// ConfidentDeviation is the threshold at or below which a rating is
	// presented to players as established rather than provisional.
	ConfidentDeviation = 110.0

	// deviationDrift is the Glicko c constant with one-day rating periods:
	// an idle rating drifts back to the provisional ceiling in about a year.
	deviationDrift = 18.0

	q = math.Ln10 / 400
)

// Rating is a Glicko-1 rating: a value plus the deviation measuring how
// uncertain that value is.
type Rating struct {
	Value     float64 `json:"value"`
	Deviation float64 `json:"deviation"`
}

// NewRating is the provisional starting rating.
func NewRating() Rating {
	return Rating{Value: DefaultRating, Deviation: DefaultDeviation}
}

// Confident reports whether the rating is established enough to display
// without a provisional marker.
func (r Rating) Confident() bool {
	return r.Deviation <= ConfidentDeviation
}

type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Inflate applies pre-game deviation growth for idle time:
// RD = min(sqrt(RD0^2 + c^2 * t), MaxDeviation) with t in days.
func (c *Calculator) Inflate(r Rating, daysIdle float64) Rating {
	if daysIdle <= 0 {
		return r
	}
	rd := math.Sqrt(r.Deviation*r.Deviation + deviationDrift*deviationDrift*daysIdle)
	if rd > MaxDeviation {
		rd = MaxDeviation
	}
	return Rating{Value: r.Value, Deviation: rd}
}

// Update computes the player's post-game rating against one opponent.
// player, opponent: pre-game ratings (already inflated for idle time)
// score: the player's result (Win=1, Draw=0.5, Loss=0)
func (c *Calculator) Update(player, opponent Rating, score Score) Rating {
	g := impact(opponent.Deviation)
	e := c.ExpectedScore(player, opponent)

	dSquared := 1 / (q * q * g * g * e * (1 - e))
	denom := 1/(player.Deviation*player.Deviation) + 1/dSquared

	value := player.Value + (q/denom)*g*(float64(score)-e)
	deviation := math.Sqrt(1 / denom)
	if deviation < MinDeviation {
		deviation = MinDeviation
	}
	if deviation > MaxDeviation {
		deviation = MaxDeviation
	}

	return Rating{Value: value, Deviation: deviation}
}

// ExpectedScore is the Glicko win expectancy of player against opponent:
// E = 1 / (1 + 10^(-g(RD_opp) * (r - r_opp) / 400))
func (c *Calculator) ExpectedScore(player, opponent Rating) float64 {
	g := impact(opponent.Deviation)
	exponent := -g * (player.Value - opponent.Value) / 400
	return 1 / (1 + math.Pow(10, exponent))
}

// impact is the g(RD) attenuation: results against uncertain opponents move a
// rating less.
func impact(deviation float64) float64 {
	return 1 / math.Sqrt(1+3*q*q*deviation*deviation/(math.Pi*math.Pi))
}

// ScoresFromVictor converts a victor color to the per-player scores.
// Returns (whiteScore, blackScore); anything but "white"/"black" is a draw.
func ScoresFromVictor(victor string) (Score, Score) {
	switch victor {
	case "white":
		return Win, Loss
	case "black":
		return Loss, Win
	default:
		return Draw, Draw
	}
}
