package cache

import (
	"testing"

	"github.com/notnil/chess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divinenn/mcts"
)

type countingEvaluator struct {
	calls     int
	positions int
}

func (c *countingEvaluator) EvaluateBatch(positions []*chess.Position) ([]mcts.Evaluation, error) {
	c.calls++
	c.positions += len(positions)
	evals := make([]mcts.Evaluation, len(positions))
	for i, pos := range positions {
		moves := pos.ValidMoves()
		priors := make([]mcts.Prior, len(moves))
		for j, m := range moves {
			priors[j] = mcts.Prior{Move: m, P: 1 / float32(len(moves))}
		}
		evals[i] = mcts.Evaluation{Priors: priors, Value: 0.5}
	}
	return evals, nil
}

func TestEvaluatorCachesResults(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	inner := &countingEvaluator{}
	eval := NewEvaluator(inner, store)

	pos := chess.NewGame().Position()
	first, err := eval.EvaluateBatch([]*chess.Position{pos})
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)

	second, err := eval.EvaluateBatch([]*chess.Position{pos})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls, "second lookup served from the cache")

	require.Len(t, second, 1)
	assert.InDelta(t, first[0].Value, second[0].Value, 1e-6)
	require.Len(t, second[0].Priors, len(first[0].Priors))
	for i := range second[0].Priors {
		assert.Equal(t, first[0].Priors[i].Move.String(), second[0].Priors[i].Move.String())
		assert.InDelta(t, first[0].Priors[i].P, second[0].Priors[i].P, 1e-6)
	}
}

func TestEvaluatorMixedBatch(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	inner := &countingEvaluator{}
	eval := NewEvaluator(inner, store)

	start := chess.NewGame().Position()
	_, err = eval.EvaluateBatch([]*chess.Position{start})
	require.NoError(t, err)

	after := start.Update(start.ValidMoves()[0])
	evals, err := eval.EvaluateBatch([]*chess.Position{start, after})
	require.NoError(t, err)
	require.Len(t, evals, 2)

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 2, inner.positions, "only the uncached position reached the network")
	assert.Len(t, evals[1].Priors, len(after.ValidMoves()))
}
