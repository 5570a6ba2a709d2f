package mcts

import (
	"github.com/notnil/chess"
	"github.com/pkg/errors"
	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distmv"
)

// Root owns the tree of one search request. Depth tracks the deepest
// selection path reached and SamePaths counts expansion collisions where
// two selections of a batch reached the same unexpanded edge.
type Root struct {
	node *Node

	Depth     int
	SamePaths int
}

// NewRoot evaluates the position once and builds the root node around it.
func NewRoot(pos *chess.Position, eval Evaluator) (*Root, error) {
	evals, err := eval.EvaluateBatch([]*chess.Position{pos})
	if err != nil {
		return nil, errors.WithMessage(err, "root evaluation")
	}
	q := evals[0].Value/2 + 0.5
	return &Root{node: NewNode(q, evals[0].Priors)}, nil
}

// Node returns the root node.
func (r *Root) Node() *Node { return r.node }

// AddExplorationNoise mixes a Dirichlet(alpha) sample into the root priors
// with weight frac. Selection does not depend on prior order, so the edges
// keep their creation order.
func (r *Root) AddExplorationNoise(alpha float64, frac float32, seed uint64) {
	edges := r.node.edges
	if len(edges) == 0 || frac <= 0 {
		return
	}
	alphas := make([]float64, len(edges))
	for i := range alphas {
		alphas[i] = alpha
	}
	dist := distmv.NewDirichlet(alphas, exprand.NewSource(seed))
	sample := dist.Rand(nil)
	for i, e := range edges {
		e.P = (1-frac)*e.P + frac*float32(sample[i])
	}
}

// job is one selection path of a rollout batch. The edge path is parallel
// to the node path; its last entry is nil when descent stopped at a
// terminal node rather than an unexpanded edge.
type job struct {
	pos      *chess.Position
	nodePath []*Node
	edgePath []*Edge
}

// selectTask descends from the root, adding a virtual loss to every chosen
// edge, until it reaches a terminal node or an unexpanded edge.
func selectTask(root *Node, j *job) {
	node := root
	isRoot := true
	for {
		j.nodePath = append(j.nodePath, node)
		e := node.UCTSelect(isRoot)
		j.edgePath = append(j.edgePath, e)

		if e == nil {
			// terminal node, nothing to descend into
			return
		}

		e.addVirtualLoss()
		j.pos = j.pos.Update(e.Move)

		if !e.HasChild() {
			return
		}
		node = e.Child
		isRoot = false
	}
}

// ParallelRollouts performs count independent selections from the root,
// evaluates the reached leaves in one batched network call, then expands
// and backs up each path. Virtual losses raised during selection are
// cleared after every backup, whether or not the expansion was fresh.
// When ext is non-nil it replaces the network value on ongoing leaves.
func (r *Root) ParallelRollouts(pos *chess.Position, eval Evaluator, count int, ext ValueSource) error {
	jobs := make([]*job, count)
	boards := make([]*chess.Position, count)
	for i := 0; i < count; i++ {
		j := &job{pos: pos}
		selectTask(r.node, j)
		jobs[i] = j
		boards[i] = j.pos
	}

	evals, err := eval.EvaluateBatch(boards)
	if err != nil {
		return errors.WithMessage(err, "batch evaluation")
	}

	for i, j := range jobs {
		leafEdge := j.edgePath[len(j.edgePath)-1]

		var newQ float32
		if leafEdge != nil {
			value, err := r.leafValue(j.pos, evals[i].Value, ext)
			if err != nil {
				return err
			}
			newQ = value/2 + 0.5
			if !leafEdge.Expand(newQ, evals[i].Priors) {
				r.SamePaths++
			}
			// the parent of the expanded edge scores from its own side
			newQ = 1 - newQ
		} else {
			newQ = terminalQ(j.pos)
		}

		if d := len(j.nodePath); d > r.Depth {
			r.Depth = d
		}

		last := len(j.nodePath) - 1
		for k := last; k >= 0; k-- {
			node := j.nodePath[k]
			node.n++
			if (last-k)%2 == 0 {
				node.sumQ += newQ
			} else {
				node.sumQ += 1 - newQ
			}
		}

		for _, e := range j.edgePath {
			if e != nil {
				e.clearVirtualLoss()
			}
		}
	}

	return nil
}

// leafValue scores a freshly reached leaf from its side to move: -1 when
// mated, 0 in stalemate, otherwise the network value or, when an external
// source is wired in, its value.
func (r *Root) leafValue(pos *chess.Position, networkValue float32, ext ValueSource) (float32, error) {
	switch pos.Status() {
	case chess.Checkmate:
		return -1, nil
	case chess.Stalemate:
		return 0, nil
	}
	if ext != nil {
		v, err := ext.Value(pos)
		if err != nil {
			return 0, errors.WithMessage(err, "external evaluation")
		}
		return v, nil
	}
	return networkValue, nil
}

// terminalQ scores a terminal node reached by selection: a terminal node's
// side to move is mated (q 0) or stalemated (q 0.5).
func terminalQ(pos *chess.Position) float32 {
	switch pos.Status() {
	case chess.Checkmate:
		return 0
	case chess.Stalemate:
		return 0.5
	}
	panic("mcts: ongoing position at a terminal node")
}
