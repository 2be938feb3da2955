package utils

import (
	"math"
	"strconv"
)

// EloString renders a rating for game metadata, with the conventional "?"
// suffix while the rating is still provisional.
func EloString(value float64, confident bool) string {
	s := strconv.Itoa(int(math.Round(value)))
	if !confident {
		return s + "?"
	}
	return s
}
