// Package mcts implements the search tree: nodes and edges, PUCT selection,
// batched rollouts with virtual losses, and the search driver that turns a
// position and a time budget into a best move.
package mcts

import (
	"sort"

	"github.com/chewxy/math32"
	"github.com/notnil/chess"
	"gorgonia.org/vecf32"

	"github.com/divinenn/game"
)

// cPUCT is the exploration coefficient of the selection formula.
const cPUCT = 1.5

// Prior is a legal move together with its network prior.
type Prior struct {
	Move *chess.Move
	P    float32
}

// Evaluation is the network output for one position: a prior per legal
// move and a value in [-1, 1] from the side to move's perspective.
type Evaluation struct {
	Priors []Prior
	Value  float32
}

// Evaluator evaluates a batch of positions in one call.
type Evaluator interface {
	EvaluateBatch(positions []*chess.Position) ([]Evaluation, error)
}

// ValueSource supplies leaf values for ongoing positions from somewhere
// other than the network, such as an external engine.
type ValueSource interface {
	Value(pos *chess.Position) (float32, error)
}

// Node is a position in the tree. n counts visits (starting at 1, the
// creation visit whose value is pre-accumulated in sumQ) and edges holds
// one outgoing edge per legal move, sorted by descending prior. A node
// with no edges is terminal.
type Node struct {
	n    float32
	sumQ float32

	edges []*Edge
}

// NewNode builds a node from a value q in [0, 1] (own perspective) and the
// move priors of the position. Priors are normalized over the legal moves;
// when their sum vanishes they fall back to uniform.
func NewNode(q float32, priors []Prior) *Node {
	edges := make([]*Edge, len(priors))
	ps := make([]float32, len(priors))
	for i, p := range priors {
		ps[i] = p.P
	}

	if total := vecf32.Sum(ps); total > math32.SmallestNonzeroFloat32 {
		vecf32.Scale(ps, 1/total)
	} else if len(ps) > 0 {
		uniform := 1 / float32(len(ps))
		for i := range ps {
			ps[i] = uniform
		}
	}

	for i, p := range priors {
		edges[i] = &Edge{Move: p.Move, P: ps[i]}
	}
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].P > edges[j].P })

	return &Node{n: 1, sumQ: q, edges: edges}
}

// Q returns the node's mean value from its own perspective.
func (n *Node) Q() float32 { return n.sumQ / n.n }

// N returns the node's visit count.
func (n *Node) N() float32 { return n.n }

// IsTerminal reports whether the node has no outgoing edges.
func (n *Node) IsTerminal() bool { return len(n.edges) == 0 }

// Edges returns the node's outgoing edges.
func (n *Node) Edges() []*Edge { return n.edges }

// UCTSelect returns the edge maximizing q + p * cPUCT * sqrt(n) / (1 + n_e),
// or nil for a terminal node. Ties break on the first maximum. The root
// flag is part of the contract but does not currently alter the
// coefficient, which is constant at cPUCT.
func (n *Node) UCTSelect(root bool) *Edge {
	_ = root

	var best *Edge
	max := float32(-1000)
	numerator := cPUCT * math32.Sqrt(n.n)
	for _, e := range n.edges {
		uct := e.Q() + e.P*numerator/(1+e.N())
		if max < uct {
			max = uct
			best = e
		}
	}
	return best
}

// MaxNSelect returns the most-visited edge, or nil for a terminal node.
// When detectDraw is set and the node does not consider itself losing,
// moves that let the opponent claim a draw (immediately or after any
// reply) are filtered out; if the filter removes every candidate the
// selection retries without it.
func (n *Node) MaxNSelect(g *chess.Game, detectDraw bool) *Edge {
	var best *Edge
	max := float32(-1)
	score := int((n.Q() - 0.5) * 15 * 100)

	for _, e := range n.edges {
		if score >= 0 && detectDraw && game.AllowsDraw(g, e.Move) {
			continue
		}
		if v := e.N(); max < v {
			max = v
			best = e
		}
	}

	if best == nil && detectDraw {
		best = n.MaxNSelect(g, false)
	}
	return best
}

// Edge links a node to the position reached by Move. The child is owned
// exclusively by its edge and absent until first expansion. virtualLosses
// is raised during in-flight selection and cleared after backup.
type Edge struct {
	Move *chess.Move
	P    float32

	Child *Node

	virtualLosses float32
}

// HasChild reports whether the edge has been expanded.
func (e *Edge) HasChild() bool { return e.Child != nil }

// N returns the edge's apparent visit count, including virtual losses.
func (e *Edge) N() float32 {
	if e.Child != nil {
		return e.Child.n + e.virtualLosses
	}
	return e.virtualLosses
}

// Q returns the edge's apparent mean value from the parent's perspective.
// Virtual losses count as losses, pushing in-flight edges away from
// further selection within a batch.
func (e *Edge) Q() float32 {
	if e.Child == nil {
		return 0
	}
	return 1 - (e.Child.sumQ+e.virtualLosses)/(e.Child.n+e.virtualLosses)
}

// Expand installs a child node if the edge has none and reports whether a
// fresh expansion took place. A false return is a same-path collision
// within a batch; the tree is left unchanged.
func (e *Edge) Expand(q float32, priors []Prior) bool {
	if e.Child != nil {
		return false
	}
	e.Child = NewNode(q, priors)
	return true
}

func (e *Edge) addVirtualLoss()   { e.virtualLosses++ }
func (e *Edge) clearVirtualLoss() { e.virtualLosses = 0 }
