package nn

import (
	"github.com/chewxy/math32"
	"github.com/notnil/chess"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/divinenn/encoding"
	"github.com/divinenn/mcts"
)

// Forwarder is the raw network: encoded positions and legal-move masks in,
// a value column and a flat policy tensor out. *Net implements it; tests
// substitute their own.
type Forwarder interface {
	Forward(positions, masks *tensor.Dense) (value, policy *tensor.Dense, err error)
}

// Adapter turns a Forwarder into the search's Evaluator: it encodes the
// positions, invokes the network once per batch and associates every legal
// move with its predicted prior.
type Adapter struct {
	fwd Forwarder
}

// NewAdapter wraps a network for use by the search.
func NewAdapter(f Forwarder) *Adapter {
	return &Adapter{fwd: f}
}

// EvaluateBatch implements mcts.Evaluator. NaN policy entries are replaced
// with 0 before priors are read.
func (a *Adapter) EvaluateBatch(positions []*chess.Position) ([]mcts.Evaluation, error) {
	enc := encoding.EncodePositions(positions)
	masks := encoding.LegalMoveMasks(positions)

	value, policy, err := a.fwd.Forward(enc, masks)
	if err != nil {
		return nil, err
	}

	values, ok := value.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("value tensor has dtype %v, want float32", value.Dtype())
	}
	flat, ok := policy.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("policy tensor has dtype %v, want float32", policy.Dtype())
	}
	if len(values) < len(positions) || len(flat) < len(positions)*encoding.ActionSpace {
		return nil, errors.Errorf("network output too small: %d values, %d policy entries for %d positions",
			len(values), len(flat), len(positions))
	}

	for i, v := range flat {
		if math32.IsNaN(v) {
			flat[i] = 0
		}
	}

	evals := make([]mcts.Evaluation, len(positions))
	for i, pos := range positions {
		flip := pos.Turn() == chess.Black
		moves := pos.ValidMoves()
		priors := make([]mcts.Prior, len(moves))
		for j, m := range moves {
			plane, rank, file := encoding.MoveToIndex(m, flip)
			idx := encoding.FlatIndex(plane, rank, file)
			priors[j] = mcts.Prior{Move: m, P: flat[i*encoding.ActionSpace+idx]}
		}
		evals[i] = mcts.Evaluation{Priors: priors, Value: values[i]}
	}
	return evals, nil
}
