package nn

import (
	"fmt"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Weights holds every parameter tensor of the network. The struct is what
// gets gob-encoded into a checkpoint.
type Weights struct {
	ConvW []*tensor.Dense // trunk kernels, first [K, Features, 3, 3], rest [K, K, 3, 3]

	PolicyW *tensor.Dense // [K*H*W, ActionSpace]
	PolicyB *tensor.Dense // [ActionSpace]

	ValueW1 *tensor.Dense // [K*H*W, FC]
	ValueB1 *tensor.Dense // [FC]
	ValueW2 *tensor.Dense // [FC, 1]
	ValueB2 *tensor.Dense // [1]
}

// Net is the network runtime. Forward graphs are compiled lazily per batch
// size and reused across calls; the weights are immutable after load, so a
// Net is safe to share between the loading thread and the search worker.
type Net struct {
	conf    Config
	weights *Weights
	graphs  map[int]*fwdGraph
}

// New builds a network with freshly initialized weights.
func New(conf Config) (*Net, error) {
	if !conf.IsValid() {
		return nil, errors.Errorf("invalid network config %+v", conf)
	}

	w := &Weights{}
	in := conf.Features
	for i := 0; i < conf.SharedLayers; i++ {
		w.ConvW = append(w.ConvW, gaussianTensor(conf.K, in, 3, 3))
		in = conf.K
	}
	flat := conf.K * conf.Height * conf.Width
	w.PolicyW = gaussianTensor(flat, conf.ActionSpace())
	w.PolicyB = zeroTensor(conf.ActionSpace())
	w.ValueW1 = gaussianTensor(flat, conf.FC)
	w.ValueB1 = zeroTensor(conf.FC)
	w.ValueW2 = gaussianTensor(conf.FC, 1)
	w.ValueB2 = zeroTensor(1)

	return &Net{conf: conf, weights: w, graphs: make(map[int]*fwdGraph)}, nil
}

// Config returns the network configuration.
func (n *Net) Config() Config { return n.conf }

// fwdGraph is a compiled forward pass for one batch size.
type fwdGraph struct {
	g         *G.ExprGraph
	vm        G.VM
	positions *G.Node
	masks     *G.Node

	value  G.Value
	policy G.Value
}

// Forward runs the network on an encoded position tensor [N, F, H, W] and
// an int32 mask tensor [N, 72, H, W], returning the value [N, 1] and the
// flattened masked policy [N, 72*H*W].
func (n *Net) Forward(positions, masks *tensor.Dense) (value, policy *tensor.Dense, err error) {
	batch := positions.Shape()[0]
	f, ok := n.graphs[batch]
	if !ok {
		if f, err = n.build(batch); err != nil {
			return nil, nil, err
		}
		n.graphs[batch] = f
	}

	maskF, err := maskToFloat(masks, batch, n.conf.ActionSpace())
	if err != nil {
		return nil, nil, err
	}

	if err = G.Let(f.positions, positions); err != nil {
		return nil, nil, errors.WithStack(err)
	}
	if err = G.Let(f.masks, maskF); err != nil {
		return nil, nil, errors.WithStack(err)
	}
	if err = f.vm.RunAll(); err != nil {
		return nil, nil, errors.WithMessage(err, "network forward pass")
	}
	defer f.vm.Reset()

	value = tensor.New(tensor.WithShape(batch, 1),
		tensor.WithBacking(append([]float32(nil), f.value.Data().([]float32)...)))
	policy = tensor.New(tensor.WithShape(batch, n.conf.ActionSpace()),
		tensor.WithBacking(append([]float32(nil), f.policy.Data().([]float32)...)))
	return value, policy, nil
}

func (n *Net) build(batch int) (*fwdGraph, error) {
	conf := n.conf
	g := G.NewGraph()

	x := G.NewTensor(g, tensor.Float32, 4,
		G.WithShape(batch, conf.Features, conf.Height, conf.Width), G.WithName("positions"))
	mask := G.NewMatrix(g, tensor.Float32,
		G.WithShape(batch, conf.ActionSpace()), G.WithName("masks"))

	out := x
	for i, w := range n.weights.ConvW {
		wn := G.NodeFromAny(g, w, G.WithName(fmt.Sprintf("conv%d", i)))
		conv, err := G.Conv2d(out, wn, tensor.Shape{3, 3}, []int{1, 1}, []int{1, 1}, []int{1, 1})
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if out, err = G.Rectify(conv); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	flatSize := conf.K * conf.Height * conf.Width
	flat, err := G.Reshape(out, tensor.Shape{batch, flatSize})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	logits, err := fullyConnected(g, flat, n.weights.PolicyW, n.weights.PolicyB, "policy")
	if err != nil {
		return nil, err
	}
	soft, err := G.SoftMax(logits)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	maskedPolicy, err := G.HadamardProd(soft, mask)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	vh, err := fullyConnected(g, flat, n.weights.ValueW1, n.weights.ValueB1, "value1")
	if err != nil {
		return nil, err
	}
	if vh, err = G.Rectify(vh); err != nil {
		return nil, errors.WithStack(err)
	}
	if vh, err = fullyConnected(g, vh, n.weights.ValueW2, n.weights.ValueB2, "value2"); err != nil {
		return nil, err
	}
	valueOut, err := G.Tanh(vh)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	f := &fwdGraph{g: g, positions: x, masks: mask}
	G.Read(valueOut, &f.value)
	G.Read(maskedPolicy, &f.policy)
	f.vm = G.NewTapeMachine(g)
	return f, nil
}

func fullyConnected(g *G.ExprGraph, in *G.Node, w, b *tensor.Dense, name string) (*G.Node, error) {
	wn := G.NodeFromAny(g, w, G.WithName(name+"_w"))
	bn := G.NodeFromAny(g, b, G.WithName(name+"_b"))
	xw, err := G.Mul(in, wn)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	out, err := G.BroadcastAdd(xw, bn, nil, []byte{0})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return out, nil
}

func maskToFloat(masks *tensor.Dense, batch, actionSpace int) (*tensor.Dense, error) {
	data, ok := masks.Data().([]int32)
	if !ok {
		return nil, errors.Errorf("mask tensor has dtype %v, want int32", masks.Dtype())
	}
	backing := make([]float32, len(data))
	for i, v := range data {
		backing[i] = float32(v)
	}
	return tensor.New(tensor.WithShape(batch, actionSpace), tensor.WithBacking(backing)), nil
}

func gaussianTensor(shape ...int) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...),
		tensor.WithBacking(G.Gaussian32(0, 0.05, shape...)))
}

func zeroTensor(shape ...int) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.Of(tensor.Float32))
}
