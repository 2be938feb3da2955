package game

// Color identifies a side in a match. Neutral is the draw sentinel used as the
// victor of drawn conclusions.
type Color string

const (
	White   Color = "white"
	Black   Color = "black"
	Neutral Color = "neutral"
)

// Invert swaps White and Black. Neutral and unknown values map to empty.
func (c Color) Invert() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	default:
		return ""
	}
}

// IsPlayer reports whether the color is one of the two seated sides.
func (c Color) IsPlayer() bool {
	return c == White || c == Black
}

// ParseColor validates a wire color string.
func ParseColor(s string) (Color, bool) {
	switch Color(s) {
	case White, Black, Neutral:
		return Color(s), true
	default:
		return "", false
	}
}
