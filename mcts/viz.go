package mcts

import (
	"fmt"

	"github.com/awalterschulze/gographviz"
	"github.com/pkg/errors"
)

// DOT renders the expanded part of the tree as a graphviz digraph for
// post-mortem inspection. Edges are labelled with their move and visit
// count, nodes with their visit count and mean value.
func (r *Root) DOT() (string, error) {
	g := gographviz.NewGraph()
	if err := g.SetName("mcts"); err != nil {
		return "", errors.WithStack(err)
	}
	if err := g.SetDir(true); err != nil {
		return "", errors.WithStack(err)
	}

	var id int
	if err := addNode(g, r.node, &id); err != nil {
		return "", err
	}
	return g.String(), nil
}

func addNode(g *gographviz.Graph, n *Node, id *int) error {
	name := fmt.Sprintf("n%d", *id)
	*id++
	attrs := map[string]string{
		"label": fmt.Sprintf("\"n=%.0f q=%.3f\"", n.n, n.Q()),
	}
	if err := g.AddNode("mcts", name, attrs); err != nil {
		return errors.WithStack(err)
	}

	for _, e := range n.edges {
		if e.Child == nil {
			continue
		}
		childName := fmt.Sprintf("n%d", *id)
		if err := addNode(g, e.Child, id); err != nil {
			return err
		}
		edgeAttrs := map[string]string{
			"label": fmt.Sprintf("\"%s (%.0f)\"", e.Move, e.N()),
		}
		if err := g.AddEdge(name, childName, true, edgeAttrs); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
