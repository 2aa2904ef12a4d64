// Package togomlx implements an onnx.Backend that builds GoMLX computation graphs.
//
// Tensor handles are *graph.Node. Use Translate to convert an ONNX graph into a GoMLX graph from within
// a GoMLX graph function:
//
//	exec := graph.MustNewExec(backend, func(x *graph.Node) *graph.Node {
//		return togomlx.Translate(x.Graph(), model, map[string]*graph.Node{"x": x})[0]
//	})
package togomlx

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/onnx-lower/onnx"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Backend creates the ONNX operations as nodes of a GoMLX graph.
type Backend struct {
	g *Graph

	// prioritizeFloat16 makes OpPromote convert Float16+Float32 to Float16.
	prioritizeFloat16 bool
}

// Assert Backend implements onnx.Backend.
var _ onnx.Backend = (*Backend)(nil)

// New creates a Backend that adds the nodes to g.
func New(g *Graph) *Backend {
	return &Backend{g: g}
}

// PrioritizeFloat16 prefers Float16 over Float32 when promoting operands of mixed dtypes (only used if the
// Translator was configured with WithDTypePromotion). It returns itself, to allow cascading configuration.
func (b *Backend) PrioritizeFloat16(enabled bool) *Backend {
	b.prioritizeFloat16 = enabled
	return b
}

// Graph where the nodes are created.
func (b *Backend) Graph() *Graph { return b.g }

// Name implements onnx.Backend.
func (b *Backend) Name() string { return "gomlx" }

// construction is the signature of the functions that build each operation kind.
type construction func(b *Backend, inputs []*Node, params onnx.Params) []*Node

var constructions = map[onnx.OpKind]construction{
	onnx.OpAddN:             constructAddN,
	onnx.OpAdd:              binaryOp(Add),
	onnx.OpSub:              binaryOp(Sub),
	onnx.OpMul:              binaryOp(Mul),
	onnx.OpDiv:              binaryOp(Div),
	onnx.OpMax:              binaryOp(Max),
	onnx.OpMin:              binaryOp(Min),
	onnx.OpBroadcast:        constructBroadcast,
	onnx.OpAlignAxis:        constructAlignAxis,
	onnx.OpPromote:          constructPromote,
	onnx.OpConstant:         constructConstant,
	onnx.OpScalarLike:       constructScalarLike,
	onnx.OpIdentity:         constructIdentity,
	onnx.OpConvertDType:     constructConvertDType,
	onnx.OpNormalizeIndices: constructNormalizeIndices,
	onnx.OpGatherElements:   constructGatherElements,
	onnx.OpScatterElements:  constructScatterElements,
	onnx.OpSplit:            constructSplit,
}

// Construct implements onnx.Backend.
//
// GoMLX reports invalid operations (e.g., shape mismatches) by panicking: those are returned as errors.
func (b *Backend) Construct(kind onnx.OpKind, inputs []onnx.Tensor, params onnx.Params) ([]onnx.Tensor, error) {
	fn, found := constructions[kind]
	if !found {
		return nil, errors.Errorf("operation %s not supported by the GoMLX backend", kind)
	}
	nodes := make([]*Node, len(inputs))
	for ii, input := range inputs {
		if input == nil {
			continue
		}
		node, ok := input.(*Node)
		if !ok {
			return nil, errors.Errorf("%s input #%d is a %T, GoMLX backend requires *graph.Node", kind, ii, input)
		}
		if node.Graph() != b.g {
			return nil, errors.Errorf("%s input #%d belongs to a different graph", kind, ii)
		}
		nodes[ii] = node
	}
	var outputs []*Node
	err := exceptions.TryCatch[error](func() { outputs = fn(b, nodes, params) })
	if err != nil {
		return nil, errors.WithMessagef(err, "building GoMLX %s", kind)
	}
	if klog.V(3).Enabled() {
		klog.Infof("togomlx: %s(%d inputs) -> %d outputs", kind, len(nodes), len(outputs))
	}
	return sliceMap(outputs, func(n *Node) onnx.Tensor { return n }), nil
}

// Translate the model into g, feeding it with inputs, and returns the nodes of model.Outputs, in order.
//
// It uses onnx.DefaultRegistry: import package handlers (or register your own handlers) before calling it.
// Like other GoMLX graph building functions, it panics with an error if the translation fails.
func Translate(g *Graph, model *onnx.Graph, inputs map[string]*Node) []*Node {
	tensorInputs := make(map[string]onnx.Tensor, len(inputs))
	for name, input := range inputs {
		tensorInputs[name] = input
	}
	outputs, err := onnx.Translate(New(g), model, tensorInputs)
	if err != nil {
		panic(errors.WithMessagef(err, "togomlx.Translate(%q)", model.Name))
	}
	return sliceMap(outputs, func(t onnx.Tensor) *Node { return t.(*Node) })
}

// sliceMap executes the given function sequentially for every element on in, and returns a mapped slice.
func sliceMap[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// requireInputs panics if inputs doesn't have exactly n non-nil nodes.
func requireInputs(kind onnx.OpKind, inputs []*Node, n int) {
	if len(inputs) != n {
		exceptions.Panicf("%s requires %d inputs, got %d", kind, n, len(inputs))
	}
	for ii, input := range inputs {
		if input == nil {
			exceptions.Panicf("%s input #%d is nil", kind, ii)
		}
	}
}

// intParam returns the int parameter name, or defaultValue if not set.
func intParam(params onnx.Params, name string, defaultValue int) int {
	value, found := params[name]
	if !found {
		return defaultValue
	}
	v, ok := value.(int)
	if !ok {
		exceptions.Panicf("parameter %q must be an int, got %T", name, value)
	}
	return v
}
