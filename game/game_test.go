package game

import (
	"testing"

	"github.com/notnil/chess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveMove(t *testing.T) {
	g := New()
	m, err := ResolveMove(g, "e2e4")
	require.NoError(t, err)
	assert.Equal(t, "e2e4", m.String())

	_, err = ResolveMove(g, "zz99")
	assert.Error(t, err)
}

func TestFromFEN(t *testing.T) {
	g, err := FromFEN("k7/8/8/3Q4/8/8/8/7K w - - 0 1")
	require.NoError(t, err)
	assert.Equal(t, chess.White, g.Position().Turn())

	_, err = FromFEN("not a fen")
	assert.Error(t, err)
}

func TestCanDeclareDrawByRepetition(t *testing.T) {
	g := New()
	shuffle := []string{"g1f3", "g8f6", "f3g1", "f6g8"}
	for rep := 0; rep < 2; rep++ {
		for _, m := range shuffle {
			require.NoError(t, g.MoveStr(m))
		}
	}
	// the starting position has now occurred three times
	assert.True(t, CanDeclareDraw(g))
}

func TestAllowsDraw(t *testing.T) {
	g := New()
	moves := []string{"g1f3", "g8f6", "f3g1", "f6g8", "g1f3", "g8f6", "f3g1"}
	for _, m := range moves {
		require.NoError(t, g.MoveStr(m))
	}

	back, err := ResolveMove(g, "f6g8")
	require.NoError(t, err)
	assert.True(t, AllowsDraw(g, back), "returning completes the third repetition")

	fresh := New()
	e4, err := ResolveMove(fresh, "e2e4")
	require.NoError(t, err)
	assert.False(t, AllowsDraw(fresh, e4))
}

func TestQueenPromotion(t *testing.T) {
	g, err := FromFEN("k7/4P3/8/8/8/8/8/7K w - - 0 1")
	require.NoError(t, err)

	knight, err := ResolveMove(g, "e7e8n")
	require.NoError(t, err)
	queened := QueenPromotion(g, knight)
	assert.Equal(t, chess.Queen, queened.Promo())
	assert.Equal(t, knight.S1(), queened.S1())
	assert.Equal(t, knight.S2(), queened.S2())

	plain, err := ResolveMove(g, "h1h2")
	require.NoError(t, err)
	assert.Same(t, plain, QueenPromotion(g, plain))
}
