package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxDisplayNameLen = 40

// SanitizeDisplayName normalizes a player name before it reaches metadata,
// listings or logs: inner whitespace is collapsed to single spaces, control
// characters are dropped, and the result is trimmed and length-capped.
func SanitizeDisplayName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastSpace := true
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			if lastSpace {
				continue
			}
			b.WriteByte(' ')
			lastSpace = true
		case unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	out := strings.TrimSpace(b.String())
	if len(out) > maxDisplayNameLen {
		cut := maxDisplayNameLen
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = strings.TrimSpace(out[:cut])
	}
	return out
}
