package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnParity(t *testing.T) {
	g := newTimedGame(t, "600+0")
	moves := []string{"4,2>4,4", "4,7>4,5", "7,1>6,3", "2,8>3,6", "6,1>3,4"}

	assert.Equal(t, White, g.WhosTurn)
	for i, compact := range moves {
		appendAndPush(g, compact, int64(i)*1000)
		assert.Equal(t, g.TurnAt(len(g.Moves)), g.WhosTurn)
		assert.Equal(t, g.Rules.TurnOrder[len(g.Moves)%2], g.WhosTurn)
	}
}

func TestResignabilityThresholds(t *testing.T) {
	g := newTimedGame(t, "600+0")

	assert.True(t, g.IsAbortable())
	assert.False(t, g.IsResignable())

	appendAndPush(g, "4,2>4,4", 0)
	assert.True(t, g.IsAbortable())
	assert.False(t, g.IsResignable())
	assert.False(t, g.IsBorderlineResignable())

	appendAndPush(g, "4,7>4,5", 0)
	assert.False(t, g.IsAbortable())
	assert.True(t, g.IsResignable())
	assert.True(t, g.IsBorderlineResignable())

	appendAndPush(g, "7,1>6,3", 0)
	assert.True(t, g.IsResignable())
	assert.False(t, g.IsBorderlineResignable())
}

func TestSetConclusionStampsMetadata(t *testing.T) {
	g := newTimedGame(t, "600+0")
	g.SetConclusion(Conclusion{Victor: Black, Condition: ConditionCheckmate})

	require.NotNil(t, g.Conclusion)
	assert.Equal(t, "0-1", g.Metadata.Result)
	assert.Equal(t, "checkmate", g.Metadata.Termination)
	assert.True(t, g.IsOver())
}

func TestConclusionResults(t *testing.T) {
	assert.Equal(t, "1-0", Conclusion{Victor: White, Condition: ConditionTime}.Result())
	assert.Equal(t, "0-1", Conclusion{Victor: Black, Condition: ConditionResignation}.Result())
	assert.Equal(t, "1/2-1/2", Conclusion{Victor: Neutral, Condition: ConditionAgreement}.Result())
	assert.Equal(t, "*", Conclusion{Condition: ConditionAborted}.Result())
}

func TestConclusionValidation(t *testing.T) {
	assert.True(t, Conclusion{Victor: White, Condition: ConditionKOTH}.Valid())
	assert.True(t, Conclusion{Condition: ConditionAborted}.Valid())
	assert.False(t, Conclusion{Victor: White, Condition: Condition("rage")}.Valid())
	assert.False(t, Conclusion{Victor: Color("purple"), Condition: ConditionCheckmate}.Valid())
}

func TestClientClaimableConditions(t *testing.T) {
	for _, c := range []Condition{
		ConditionCheckmate, ConditionStalemate, ConditionRepetition, ConditionMoveRule,
		ConditionInsuffMat, ConditionRoyalCapture, ConditionAllRoyalsCaptured,
		ConditionAllPiecesCaptured, ConditionKOTH,
	} {
		assert.Truef(t, c.ClientClaimable(), "condition %s", c)
	}
	for _, c := range []Condition{
		ConditionAborted, ConditionResignation, ConditionAgreement,
		ConditionTime, ConditionDisconnect,
	} {
		assert.Falsef(t, c.ClientClaimable(), "condition %s", c)
	}
}

func TestColorInvert(t *testing.T) {
	assert.Equal(t, Black, White.Invert())
	assert.Equal(t, White, Black.Invert())
	assert.Equal(t, Color(""), Neutral.Invert())
}

func TestIdentityEquality(t *testing.T) {
	alice := Member("64f1c7", "alice")
	aliceRenamed := Member("64f1c7", "alice2")
	bob := Member("a0b1c2", "bob")
	guest := Guest("3d02fc9a")

	assert.True(t, alice.Equal(aliceRenamed), "usernames are display data")
	assert.False(t, alice.Equal(bob))
	assert.False(t, alice.Equal(guest))
	assert.True(t, guest.Equal(Guest("3d02fc9a")))
	assert.False(t, guest.Equal(Guest("other")))
	assert.False(t, PlayerIdentity{}.Equal(PlayerIdentity{}), "zero identities never match")
}
