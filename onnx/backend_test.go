package onnx

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// fakeTensor is the handle created by fakeBackend.
type fakeTensor struct {
	id     int
	kind   OpKind
	inputs []Tensor
	index  int
}

func (t *fakeTensor) String() string {
	return fmt.Sprintf("%s#%d.%d", t.kind, t.id, t.index)
}

// fakeBackend records the operations constructed. Params "outputs" sets the number of outputs (default 1),
// and Params "fail" makes Construct fail.
type fakeBackend struct {
	mu  sync.Mutex
	ops []OpKind
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Construct(kind OpKind, inputs []Tensor, params Params) ([]Tensor, error) {
	if msg, found := params["fail"]; found {
		return nil, errors.Errorf("fake failure: %v", msg)
	}
	numOutputs := 1
	if n, found := params["outputs"]; found {
		numOutputs = n.(int)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, kind)
	outputs := make([]Tensor, numOutputs)
	for ii := range outputs {
		outputs[ii] = &fakeTensor{id: len(b.ops), kind: kind, inputs: inputs, index: ii}
	}
	return outputs, nil
}

// input creates a fake input tensor.
func (b *fakeBackend) input(name string) Tensor {
	return &fakeTensor{id: -1, kind: OpKind("Input:" + name)}
}

// constructRule returns a rule that constructs kind over all the node inputs, with one output per node output.
func constructRule(kind OpKind) Rule {
	return func(node *Node, ctx *Context) ([]Tensor, error) {
		return ctx.Construct(kind, ctx.Inputs(), Params{"outputs": len(node.Outputs)})
	}
}
