package mcts

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chewxy/math32"
	"github.com/notnil/chess"

	"github.com/divinenn/game"
)

const defaultBudget = 60 * time.Second

// Limits is the time control of one search request.
type Limits struct {
	MoveTime    time.Duration
	HasMoveTime bool

	WhiteTime, BlackTime time.Duration
	WhiteInc, BlackInc   time.Duration
	HasClock             bool
}

// Budget converts the limits into a wall-clock budget for the given side:
// the exact movetime when present, otherwise a fortieth of the remaining
// clock capped at a minute plus the increment, otherwise a minute.
func (l Limits) Budget(turn chess.Color) time.Duration {
	switch {
	case l.HasMoveTime:
		return l.MoveTime
	case l.HasClock:
		left, inc := l.WhiteTime, l.WhiteInc
		if turn == chess.Black {
			left, inc = l.BlackTime, l.BlackInc
		}
		budget := left / 40
		if budget > defaultBudget {
			budget = defaultBudget
		}
		return budget + inc
	}
	return defaultBudget
}

// Config configures the search driver.
type Config struct {
	// RolloutBatch is the number of virtual descents per batched
	// network call.
	RolloutBatch int

	// DirichletFrac mixes Dirichlet(DirichletAlpha) noise into the root
	// priors when positive. Off by default.
	DirichletAlpha float64
	DirichletFrac  float32
	NoiseSeed      uint64
}

// DefaultConfig returns the driver configuration used in play.
func DefaultConfig() Config {
	return Config{RolloutBatch: 8}
}

// IsValid reports whether the configuration can drive a search.
func (c Config) IsValid() bool { return c.RolloutBatch > 0 }

// Result carries the outcome of one search. BestMove is nil when the root
// position is terminal. Tree is the search tree the move was taken from,
// kept around for post-mortem dumps.
type Result struct {
	BestMove *chess.Move
	PV       []*chess.Move
	Tree     *Root

	Rollouts  int
	Depth     int
	SamePaths int
	Elapsed   time.Duration
}

// Searcher runs searches against a fixed evaluator. Stop is shared with
// the UCI front-end and observed between rollout batches only, so every
// in-flight batch completes its backup before the search winds down.
type Searcher struct {
	Eval Evaluator
	Ext  ValueSource
	Conf Config

	Stop *atomic.Bool
	Out  io.Writer
}

// Search runs MCTS on the game's current position until the time budget
// is exhausted or the stop flag is raised, emitting an info line per batch
// and a final info plus bestmove line.
func (s *Searcher) Search(g *chess.Game, limits Limits) (*Result, error) {
	start := time.Now()
	pos := g.Position()

	root, err := NewRoot(pos, s.Eval)
	if err != nil {
		return nil, err
	}
	if s.Conf.DirichletFrac > 0 {
		root.AddExplorationNoise(s.Conf.DirichletAlpha, s.Conf.DirichletFrac, s.Conf.NoiseSeed)
	}

	res := &Result{Tree: root}
	if root.node.IsTerminal() {
		// mated or stalemated root: nothing to search, nothing to play
		fmt.Fprintf(s.Out, "info depth 0 nodes 0 time %d\n", time.Since(start).Milliseconds())
		fmt.Fprintf(s.Out, "bestmove (none)\n")
		res.Elapsed = time.Since(start)
		return res, nil
	}

	budget := limits.Budget(pos.Turn())
	for time.Since(start) < budget {
		if err := root.ParallelRollouts(pos, s.Eval, s.Conf.RolloutBatch, s.Ext); err != nil {
			return nil, err
		}
		res.Rollouts += s.Conf.RolloutBatch

		if s.Stop != nil && s.Stop.Load() {
			s.Stop.Store(false)
			break
		}

		elapsed := time.Since(start)
		pv := root.PrincipalVariation(g)
		fmt.Fprintf(s.Out, "info currmove %s depth %d score cp %d nodes %d nps %d time %d pv %s\n",
			root.node.MaxNSelect(g, true).Move,
			root.Depth,
			scoreCentipawns(root.node.Q()),
			res.Rollouts,
			int64(res.Rollouts)/maxSeconds(elapsed),
			elapsed.Milliseconds(),
			formatPV(pv))
	}

	res.PV = root.PrincipalVariation(g)
	res.BestMove = res.PV[0]
	res.Depth = root.Depth
	res.SamePaths = root.SamePaths
	res.Elapsed = time.Since(start)

	fmt.Fprintf(s.Out, "info currmove %s depth %d nodes %d time %d pv %s\n",
		res.BestMove, res.Depth, res.Rollouts, res.Elapsed.Milliseconds(), formatPV(res.PV))
	fmt.Fprintf(s.Out, "bestmove %s\n", res.BestMove)

	return res, nil
}

// PrincipalVariation walks the most-visited line from the root, replaying
// it on a copy of the game. Promotions are rewritten to queen promotions
// because the policy space does not distinguish promotion pieces.
func (r *Root) PrincipalVariation(g *chess.Game) []*chess.Move {
	var pv []*chess.Move
	node := r.node
	pvGame := g.Clone()
	for {
		e := node.MaxNSelect(pvGame, true)
		if e == nil {
			break
		}
		m := game.QueenPromotion(pvGame, e.Move)
		if err := pvGame.Move(m); err != nil {
			break
		}
		pv = append(pv, m)
		if e.Child == nil {
			break
		}
		node = e.Child
	}
	return pv
}

// scoreCentipawns maps the root's q in [0, 1] onto a centipawn scale with
// a logarithmic stretch, so near-certain positions read as large scores.
func scoreCentipawns(q float32) int {
	qs := 2*q - 1
	if qs > 0.9999 {
		qs = 0.9999
	} else if qs < -0.9999 {
		qs = -0.9999
	}
	score := -(sign(qs) * math32.Log(1-math32.Abs(qs)) / math32.Log(1.2)) * 100
	return int(math32.Round(score))
}

func sign(v float32) float32 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func maxSeconds(d time.Duration) int64 {
	s := int64(d.Seconds())
	if s < 1 {
		return 1
	}
	return s
}

func formatPV(pv []*chess.Move) string {
	parts := make([]string, len(pv))
	for i, m := range pv {
		parts[i] = m.String()
	}
	return strings.Join(parts, " ")
}
