// Package tracer implements a symbolic onnx.Backend: it doesn't compute anything, it records the operations
// constructed, so tests can check what a translation produced without a compiled backend.
//
// Each tensor prints as the expression that created it, e.g.: "Add(Broadcast[0](x, y), Broadcast[1](x, y))".
package tracer

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/onnx-lower/onnx"
	"github.com/pkg/errors"
)

// Tensor is the handle created by the Backend.
type Tensor struct {
	// ID of the operation that created the tensor, in order of construction. Graph inputs have ID -1.
	ID int

	// Op that created the tensor, or "Input" for graph inputs.
	Op onnx.OpKind

	// Name of a graph input.
	Name string

	Inputs []*Tensor
	Params onnx.Params

	// Output index, for operations with multiple outputs.
	Output     int
	NumOutputs int
}

// String returns the expression that created the tensor.
func (t *Tensor) String() string {
	if t == nil {
		return "<nil>"
	}
	if t.Op == "Input" {
		return t.Name
	}
	var sb strings.Builder
	sb.WriteString(string(t.Op))
	if t.NumOutputs > 1 {
		fmt.Fprintf(&sb, "[%d]", t.Output)
	}
	if len(t.Params) > 0 {
		parts := make([]string, 0, len(t.Params))
		for _, key := range slices.Sorted(maps.Keys(t.Params)) {
			parts = append(parts, fmt.Sprintf("%s=%s", key, paramString(t.Params[key])))
		}
		fmt.Fprintf(&sb, "{%s}", strings.Join(parts, ", "))
	}
	sb.WriteString("(")
	for ii, input := range t.Inputs {
		if ii > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(input.String())
	}
	sb.WriteString(")")
	return sb.String()
}

func paramString(value any) string {
	switch v := value.(type) {
	case *tensors.Tensor:
		return v.Shape().String()
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Backend records the operations constructed. It is safe for concurrent use.
type Backend struct {
	mu          sync.Mutex
	ops         []*Tensor
	unsupported map[onnx.OpKind]bool
}

// Assert Backend implements onnx.Backend.
var _ onnx.Backend = (*Backend)(nil)

// New creates a tracer Backend.
func New() *Backend {
	return &Backend{unsupported: make(map[onnx.OpKind]bool)}
}

// Unsupported makes Construct fail for the given kinds. It returns itself, so calls can be chained.
func (b *Backend) Unsupported(kinds ...onnx.OpKind) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, kind := range kinds {
		b.unsupported[kind] = true
	}
	return b
}

// Name implements onnx.Backend.
func (b *Backend) Name() string { return "tracer" }

// Input creates a graph input tensor.
func Input(name string) *Tensor {
	return &Tensor{ID: -1, Op: "Input", Name: name, NumOutputs: 1}
}

// Inputs creates a map of graph inputs, one per name, as expected by onnx.Translator.Run.
func Inputs(names ...string) map[string]onnx.Tensor {
	inputs := make(map[string]onnx.Tensor, len(names))
	for _, name := range names {
		inputs[name] = Input(name)
	}
	return inputs
}

// Construct implements onnx.Backend.
func (b *Backend) Construct(kind onnx.OpKind, inputs []onnx.Tensor, params onnx.Params) ([]onnx.Tensor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unsupported[kind] {
		return nil, errors.Errorf("operation %s not supported by tracer", kind)
	}
	tensorInputs := make([]*Tensor, 0, len(inputs))
	for ii, input := range inputs {
		if input == nil {
			continue
		}
		t, ok := input.(*Tensor)
		if !ok {
			return nil, errors.Errorf("%s input #%d is a %T, tracer requires *tracer.Tensor", kind, ii, input)
		}
		tensorInputs = append(tensorInputs, t)
	}
	numOutputs, err := numOutputsOf(kind, len(tensorInputs), params)
	if err != nil {
		return nil, err
	}
	id := len(b.ops)
	outputs := make([]onnx.Tensor, numOutputs)
	for ii := range outputs {
		t := &Tensor{ID: id, Op: kind, Inputs: tensorInputs, Params: params, Output: ii, NumOutputs: numOutputs}
		b.ops = append(b.ops, t)
		outputs[ii] = t
	}
	return outputs, nil
}

// numOutputsOf returns the number of outputs of the operation kind.
func numOutputsOf(kind onnx.OpKind, numInputs int, params onnx.Params) (int, error) {
	switch kind {
	case onnx.OpBroadcast, onnx.OpPromote:
		return numInputs, nil
	case onnx.OpSplit:
		if sizes, ok := params["split"].([]int); ok && len(sizes) > 0 {
			return len(sizes), nil
		}
		if n, ok := params["num_outputs"].(int); ok && n > 0 {
			return n, nil
		}
		return 0, errors.Errorf("%s requires \"split\" or \"num_outputs\" params, got %v", kind, params)
	default:
		return 1, nil
	}
}

// Ops returns the kinds of the operations constructed so far, in order. Operations with multiple outputs are
// listed once.
func (b *Backend) Ops() []onnx.OpKind {
	b.mu.Lock()
	defer b.mu.Unlock()
	var kinds []onnx.OpKind
	for _, t := range b.ops {
		if t.Output == 0 {
			kinds = append(kinds, t.Op)
		}
	}
	return kinds
}

// Reset discards the operations recorded.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = nil
}
