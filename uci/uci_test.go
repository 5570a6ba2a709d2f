package uci

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/notnil/chess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divinenn/game"
	"github.com/divinenn/mcts"
)

// syncBuffer serializes writes from the reader and the search worker.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type uniformEvaluator struct{}

func (uniformEvaluator) EvaluateBatch(positions []*chess.Position) ([]mcts.Evaluation, error) {
	evals := make([]mcts.Evaluation, len(positions))
	for i, pos := range positions {
		moves := pos.ValidMoves()
		priors := make([]mcts.Prior, len(moves))
		for j, m := range moves {
			priors[j] = mcts.Prior{Move: m, P: 1}
		}
		evals[i] = mcts.Evaluation{Priors: priors}
	}
	return evals, nil
}

func runScript(t *testing.T, script string) string {
	t.Helper()
	out := &syncBuffer{}
	e := New(uniformEvaluator{}, out)
	require.NoError(t, e.Run(strings.NewReader(script)))
	return out.String()
}

func bestmoveOf(t *testing.T, output string) string {
	t.Helper()
	var move string
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, "bestmove ") {
			move = strings.TrimPrefix(line, "bestmove ")
		}
	}
	require.NotEmpty(t, move)
	return move
}

func TestHandshake(t *testing.T) {
	out := runScript(t, "uci\nisready\nquit\n")
	assert.Contains(t, out, "id name DivineNN")
	assert.Contains(t, out, "uciok")
	assert.Contains(t, out, "readyok")
}

func TestGoFromStartposEmitsLegalBestmove(t *testing.T) {
	out := runScript(t, "position startpos moves e2e4\ngo movetime 60\nquit\n")

	assert.True(t, strings.Count(out, "info ") >= 1)
	require.Equal(t, 1, strings.Count(out, "bestmove "))

	played := bestmoveOf(t, out)
	g := game.New()
	require.NoError(t, g.MoveStr("e2e4"))
	legal := false
	for _, m := range g.ValidMoves() {
		if m.String() == played {
			legal = true
		}
	}
	assert.True(t, legal, "bestmove %s must be legal after 1.e4", played)
}

func TestGoFromFEN(t *testing.T) {
	out := runScript(t, "position fen 8/8/8/8/8/1k6/4q3/1K6 b - - 0 1\ngo movetime 60\nquit\n")

	played := bestmoveOf(t, out)
	g, err := game.FromFEN("8/8/8/8/8/1k6/4q3/1K6 b - - 0 1")
	require.NoError(t, err)
	legal := false
	for _, m := range g.ValidMoves() {
		if m.String() == played {
			legal = true
		}
	}
	assert.True(t, legal, "bestmove %s must be legal", played)
}

func TestMalformedLinesIgnored(t *testing.T) {
	out := runScript(t, "banana\nposition fen not a fen at all\nposition\nisready\nquit\n")
	assert.Contains(t, out, "readyok")
	assert.NotContains(t, out, "bestmove")
}

func TestUcinewgameResets(t *testing.T) {
	out := &syncBuffer{}
	e := New(uniformEvaluator{}, out)
	require.NoError(t, e.Run(strings.NewReader("position startpos moves e2e4\nucinewgame\nquit\n")))
	assert.Equal(t, chess.White, e.game.Position().Turn())
}

func TestTreeDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.dot")
	out := &syncBuffer{}
	e := New(uniformEvaluator{}, out, WithTreeDump(path))
	require.NoError(t, e.Run(strings.NewReader("position startpos\ngo movetime 40\nquit\n")))

	dot, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(dot), "digraph mcts")
	assert.Contains(t, string(dot), "->")
}

func TestParseLimits(t *testing.T) {
	l := parseLimits(strings.Fields("movetime 250"))
	assert.True(t, l.HasMoveTime)
	assert.Equal(t, int64(250), l.MoveTime.Milliseconds())

	l = parseLimits(strings.Fields("wtime 60000 btime 30000 winc 1000 binc 2000"))
	assert.True(t, l.HasClock)
	assert.False(t, l.HasMoveTime)
	assert.Equal(t, int64(60000), l.WhiteTime.Milliseconds())
	assert.Equal(t, int64(30000), l.BlackTime.Milliseconds())
	assert.Equal(t, int64(1000), l.WhiteInc.Milliseconds())
	assert.Equal(t, int64(2000), l.BlackInc.Milliseconds())

	l = parseLimits(strings.Fields("infinite"))
	assert.False(t, l.HasMoveTime)
	assert.False(t, l.HasClock)
}
