package game

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// TimeControl is the clock configuration of a game. A zero base means untimed.
type TimeControl struct {
	BaseMillis      int64 `json:"baseMillis"`
	IncrementMillis int64 `json:"incrementMillis"`
}

const (
	maxBaseSeconds      = 7 * 24 * 60 * 60 // one week per side
	maxIncrementSeconds = 600
)

var ErrTimeControl = errors.New("invalid time control")

// Untimed reports whether the game plays without clocks.
func (tc TimeControl) Untimed() bool {
	return tc.BaseMillis == 0
}

// String renders the canonical "base+increment" form in seconds, "-" when
// untimed. This is the value stored in metadata and must round-trip through
// ParseTimeControl.
func (tc TimeControl) String() string {
	if tc.Untimed() {
		return "-"
	}
	return fmt.Sprintf("%d+%d", tc.BaseMillis/1000, tc.IncrementMillis/1000)
}

// ParseTimeControl parses "base+increment" (seconds) or "-" for untimed.
func ParseTimeControl(s string) (TimeControl, error) {
	if s == "-" {
		return TimeControl{}, nil
	}
	baseStr, incStr, ok := strings.Cut(s, "+")
	if !ok {
		return TimeControl{}, fmt.Errorf("%w: %q", ErrTimeControl, s)
	}
	base, err := strconv.ParseInt(baseStr, 10, 64)
	if err != nil {
		return TimeControl{}, fmt.Errorf("%w: %q", ErrTimeControl, s)
	}
	inc, err := strconv.ParseInt(incStr, 10, 64)
	if err != nil {
		return TimeControl{}, fmt.Errorf("%w: %q", ErrTimeControl, s)
	}
	if base <= 0 || base > maxBaseSeconds || inc < 0 || inc > maxIncrementSeconds {
		return TimeControl{}, fmt.Errorf("%w: %q", ErrTimeControl, s)
	}
	return TimeControl{BaseMillis: base * 1000, IncrementMillis: inc * 1000}, nil
}
