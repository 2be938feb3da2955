package game

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCompact(t *testing.T) {
	tests := []struct {
		name    string
		compact string
		want    Move
	}{
		{
			name:    "plain move",
			compact: "4,2>4,4",
			want:    Move{Compact: "4,2>4,4", Start: Coords{4, 2}, End: Coords{4, 4}},
		},
		{
			name:    "negative coordinates",
			compact: "-5,-10>20,30",
			want:    Move{Compact: "-5,-10>20,30", Start: Coords{-5, -10}, End: Coords{20, 30}},
		},
		{
			name:    "promotion",
			compact: "4,8>4,9=Q",
			want:    Move{Compact: "4,8>4,9=Q", Start: Coords{4, 8}, End: Coords{4, 9}, Promotion: "Q"},
		},
		{
			name:    "far move",
			compact: "0,0>1000000,-4500000",
			want:    Move{Compact: "0,0>1000000,-4500000", Start: Coords{0, 0}, End: Coords{1000000, -4500000}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCompact(tt.compact)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCompactRejects(t *testing.T) {
	tests := []struct {
		name    string
		compact string
		wantErr error
	}{
		{"empty", "", ErrMoveFormat},
		{"no arrow", "4,2-4,4", ErrMoveFormat},
		{"two arrows", "1,1>2,2>3,3", ErrMoveFormat},
		{"missing comma", "42>4,4", ErrMoveFormat},
		{"non numeric", "a,b>c,d", ErrMoveFormat},
		{"float coordinate", "1.5,2>3,4", ErrMoveFormat},
		{"null move", "3,3>3,3", ErrMoveFormat},
		{"overflow x", "99999999999999999999,1>2,2", ErrMoveCoords},
		{"overflow end y", "1,1>2,-99999999999999999999", ErrMoveCoords},
		{"unknown promotion", "4,8>4,9=Z", ErrMovePromotion},
		{"lowercase promotion", "4,8>4,9=q", ErrMovePromotion},
		{"empty promotion", "4,8>4,9=", ErrMovePromotion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCompact(tt.compact)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseCompactBoundary(t *testing.T) {
	// Exactly int64 range parses; one digit more overflows.
	max := "9223372036854775807"
	move, err := ParseCompact("0,0>" + max + ",1")
	require.NoError(t, err)
	assert.Equal(t, int64(9223372036854775807), move.End.X)

	_, err = ParseCompact("0,0>" + max + "0,1")
	assert.ErrorIs(t, err, ErrMoveCoords)

	min := "-9223372036854775808"
	move, err = ParseCompact(min + ",1>0,0")
	require.NoError(t, err)
	assert.Equal(t, int64(-9223372036854775808), move.Start.X)
}

func TestMaxEndDigits(t *testing.T) {
	tests := []struct {
		compact string
		want    int
	}{
		{"0,0>1,1", 1},
		{"0,0>9,-10", 2},
		{"0,0>1000,-999999", 6},
		{"5,5>0,12", 2},
		{"1,1>-9223372036854775808,2", 19},
	}
	for _, tt := range tests {
		move, err := ParseCompact(tt.compact)
		require.NoError(t, err)
		assert.Equalf(t, tt.want, move.MaxEndDigits(), "compact %s", tt.compact)
	}
}

func TestParseTimeControl(t *testing.T) {
	tc, err := ParseTimeControl("600+5")
	require.NoError(t, err)
	assert.Equal(t, int64(600_000), tc.BaseMillis)
	assert.Equal(t, int64(5_000), tc.IncrementMillis)
	assert.False(t, tc.Untimed())
	assert.Equal(t, "600+5", tc.String())

	tc, err = ParseTimeControl("-")
	require.NoError(t, err)
	assert.True(t, tc.Untimed())
	assert.Equal(t, "-", tc.String())

	for _, bad := range []string{"", "600", "0+5", "-10+5", "600+-1", "600+9999", "week+1", strings.Repeat("9", 30) + "+0"} {
		_, err := ParseTimeControl(bad)
		assert.Errorf(t, err, "control %q", bad)
	}
}
