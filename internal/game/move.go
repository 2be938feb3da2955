package game

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Coords is a square on the unbounded board. Coordinates are signed and may
// grow arbitrarily large as a game progresses.
type Coords struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}

// Move is one appended ply. Compact is the canonical wire serialization in the
// form "x,y>x,y[=P]". ClockStamp is the mover's remaining milliseconds recorded
// right after the move was applied; only set for timed games.
type Move struct {
	Compact    string `json:"compact"`
	Start      Coords `json:"startCoords"`
	End        Coords `json:"endCoords"`
	Promotion  string `json:"promotion,omitempty"`
	ClockStamp *int64 `json:"clockStamp,omitempty"`
}

var (
	ErrMoveFormat    = errors.New("malformed move notation")
	ErrMoveCoords    = errors.New("move coordinate overflows")
	ErrMovePromotion = errors.New("invalid promotion code")
)

// promotionCodes are the piece codes a compact move may promote to.
var promotionCodes = map[string]bool{
	"Q": true,
	"R": true,
	"B": true,
	"N": true,
}

// ParseCompact parses the canonical "x,y>x,y[=P]" form. Coordinates that do not
// fit a signed 64-bit integer are rejected rather than saturated.
func ParseCompact(compact string) (Move, error) {
	body := compact
	promotion := ""
	if i := strings.IndexByte(body, '='); i >= 0 {
		promotion = body[i+1:]
		body = body[:i]
		if !promotionCodes[promotion] {
			return Move{}, fmt.Errorf("%w: %q", ErrMovePromotion, promotion)
		}
	}

	parts := strings.Split(body, ">")
	if len(parts) != 2 {
		return Move{}, fmt.Errorf("%w: %q", ErrMoveFormat, compact)
	}
	start, err := parseCoords(parts[0])
	if err != nil {
		return Move{}, err
	}
	end, err := parseCoords(parts[1])
	if err != nil {
		return Move{}, err
	}
	if start == end {
		return Move{}, fmt.Errorf("%w: null move %q", ErrMoveFormat, compact)
	}

	return Move{Compact: compact, Start: start, End: end, Promotion: promotion}, nil
}

func parseCoords(s string) (Coords, error) {
	x, y, ok := strings.Cut(s, ",")
	if !ok {
		return Coords{}, fmt.Errorf("%w: square %q", ErrMoveFormat, s)
	}
	cx, err := parseCoord(x)
	if err != nil {
		return Coords{}, err
	}
	cy, err := parseCoord(y)
	if err != nil {
		return Coords{}, err
	}
	return Coords{X: cx, Y: cy}, nil
}

func parseCoord(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("%w: %q", ErrMoveCoords, s)
		}
		return 0, fmt.Errorf("%w: coordinate %q", ErrMoveFormat, s)
	}
	return n, nil
}

// MaxEndDigits returns the decimal digit count of the larger end coordinate,
// sign excluded. The anti-abuse distance cap is expressed in these digits.
func (m Move) MaxEndDigits() int {
	dx := digitCount(m.End.X)
	dy := digitCount(m.End.Y)
	if dx > dy {
		return dx
	}
	return dy
}

func digitCount(n int64) int {
	if n > 0 {
		n = -n
	}
	if n == 0 {
		return 1
	}
	count := 0
	for n != 0 {
		n /= 10
		count++
	}
	return count
}
