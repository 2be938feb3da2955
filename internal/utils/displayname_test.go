package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeDisplayName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"alice", "alice"},
		{"  alice  ", "alice"},
		{"al\tice", "al ice"},
		{"a   b\n\nc", "a b c"},
		{"al\x00ice\x1b", "alice"},
		{"", ""},
		{" \t\n ", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SanitizeDisplayName(tc.in), "input %q", tc.in)
	}
}

func TestSanitizeDisplayNameCapsLength(t *testing.T) {
	got := SanitizeDisplayName(strings.Repeat("x", 100))
	assert.Equal(t, strings.Repeat("x", maxDisplayNameLen), got)
}

func TestSanitizeDisplayNameCapKeepsValidUTF8(t *testing.T) {
	// A multibyte rune straddling the cap must not be split.
	got := SanitizeDisplayName(strings.Repeat("x", maxDisplayNameLen-1) + "éé")
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), maxDisplayNameLen)
}

func TestEloString(t *testing.T) {
	assert.Equal(t, "1500?", EloString(1499.6, false))
	assert.Equal(t, "1500", EloString(1500.4, true))
	assert.Equal(t, "1337", EloString(1337, true))
}
