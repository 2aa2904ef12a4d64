package onnx

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Rule translates one node, for the opset versions it was registered for.
//
// It must return one tensor per node output (nil is accepted for optional outputs with an empty name).
// It can either return an error or panic with one (see exceptions.Panicf): both are reported by the
// Translator as ErrNodeTranslation, with the node identity.
type Rule func(node *Node, ctx *Context) ([]Tensor, error)

// Handler defines the translation of one operator: one Rule per opset version that changed the operator.
//
// A Rule registered at version v applies to graphs with opset v and later, up to the next registered version.
type Handler struct {
	// Op is the operator name (Node.OpType) handled.
	Op string

	// Versions maps the opset version to the rule used since that version. Use the Versions function to
	// register a rule shared by several versions.
	Versions map[int]Rule

	// Mixins whose helpers are made available to the rules with Context.Helper.
	Mixins []*Mixin

	// DefaultOp is the backend operation created by Context.MakeTensor. Optional.
	DefaultOp OpKind
}

// Versions returns a version map with the same rule registered for each of the given versions.
//
// It is used when an operator changed in a newer opset (e.g., accepting new data types) in a way that
// doesn't affect the translation: each version stays explicit, and can be overridden individually later.
func Versions(rule Rule, versions ...int) map[int]Rule {
	m := make(map[int]Rule, len(versions))
	for _, v := range versions {
		m[v] = rule
	}
	return m
}

// Context is given to a Rule with everything it needs to translate the node. It is created for each node.
type Context struct {
	// Index of the node in the graph.
	Index int

	// Opset is the version declared by the graph, Version the version of the rule being executed.
	Opset, Version int

	// AllowDTypePromotion is set if the Translator was configured to accept operands of different dtypes.
	AllowDTypePromotion bool

	node    *Node
	inputs  []Tensor
	env     *Environment
	static  map[string]*tensors.Tensor
	backend Backend
	entry   *Entry

	staticOutputs map[int]*tensors.Tensor
}

// Node being translated.
func (ctx *Context) Node() *Node { return ctx.node }

// Backend where the tensors are created.
func (ctx *Context) Backend() Backend { return ctx.backend }

// Inputs returns the tensors of the node inputs, in order. Optional inputs not given are nil.
func (ctx *Context) Inputs() []Tensor { return ctx.inputs }

// Input returns the i-th input of the node, or nil if it was not given.
func (ctx *Context) Input(i int) Tensor {
	if i < 0 || i >= len(ctx.inputs) {
		return nil
	}
	return ctx.inputs[i]
}

// HasInput returns whether the i-th input of the node was given.
func (ctx *Context) HasInput(i int) bool {
	return ctx.Input(i) != nil
}

// Lookup returns the tensor bound to name so far, if any.
func (ctx *Context) Lookup(name string) (Tensor, bool) {
	return ctx.env.Get(name)
}

// StaticInput returns the value of the i-th input if it is known at translation time: if it is an initializer
// (not overridden by a graph input) or an output marked with SetStaticOutput, like the ones of Constant nodes.
//
// Some backends (like GoMLX) take shapes, axes or split sizes only as static values, while ONNX gives them
// as inputs.
func (ctx *Context) StaticInput(i int) (*tensors.Tensor, bool) {
	if i < 0 || i >= len(ctx.node.Inputs) || ctx.node.Inputs[i] == "" {
		return nil, false
	}
	value, found := ctx.static[ctx.node.Inputs[i]]
	return value, found
}

// SetStaticOutput records the value of the i-th output as known at translation time. It takes effect only if
// the node translation succeeds.
func (ctx *Context) SetStaticOutput(i int, value *tensors.Tensor) {
	if ctx.staticOutputs == nil {
		ctx.staticOutputs = make(map[int]*tensors.Tensor)
	}
	ctx.staticOutputs[i] = value
}

// Construct creates a backend operation.
func (ctx *Context) Construct(kind OpKind, inputs []Tensor, params Params) ([]Tensor, error) {
	outputs, err := ctx.backend.Construct(kind, inputs, params)
	if err != nil {
		return nil, errors.WithMessagef(err, "backend %s failed to construct %s", ctx.backend.Name(), kind)
	}
	return outputs, nil
}

// Construct1 creates a backend operation with exactly one output.
func (ctx *Context) Construct1(kind OpKind, inputs []Tensor, params Params) (Tensor, error) {
	outputs, err := ctx.Construct(kind, inputs, params)
	if err != nil {
		return nil, err
	}
	if len(outputs) != 1 {
		return nil, errors.Errorf("backend %s returned %d outputs for %s, expected 1", ctx.backend.Name(), len(outputs), kind)
	}
	return outputs[0], nil
}

// MakeTensor creates the handler DefaultOp over the inputs.
func (ctx *Context) MakeTensor(inputs []Tensor, params Params) ([]Tensor, error) {
	if ctx.entry.defaultOp == "" {
		return nil, errors.Errorf("handler for %q has no default backend operation", ctx.entry.op)
	}
	return ctx.Construct(ctx.entry.defaultOp, inputs, params)
}

// Helper calls the named helper contributed by one of the handler mixins.
func (ctx *Context) Helper(name string, inputs []Tensor) ([]Tensor, error) {
	helper, found := ctx.entry.helpers[name]
	if !found {
		return nil, errors.Errorf("handler for %q has no helper %q (mixins: %q)", ctx.entry.op, name, ctx.entry.mixins)
	}
	return helper(ctx, inputs)
}
