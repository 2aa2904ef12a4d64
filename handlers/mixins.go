// Package handlers implements the translation of ONNX operators, registering them in onnx.DefaultRegistry.
//
// Import it for its side effects:
//
//	import _ "github.com/gomlx/onnx-lower/handlers"
//
// Each operator is an onnx.Handler with one rule per opset version where the operator changed in a way that
// matters for the translation. Rules that didn't change are shared across versions with onnx.Versions.
package handlers

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/onnx-lower/onnx"
)

// Arithmetic is the mixin for element-wise arithmetic operators.
//
// Helpers:
//   - "broadcast": ONNX multidirectional broadcasting of all inputs (opset >= 7).
//   - "limitedBroadcast": (lhs, rhs) with the legacy opset < 7 rules, controlled by the node attributes
//     "broadcast" and "axis".
//   - "promote": converts all inputs to a common dtype.
var Arithmetic = &onnx.Mixin{
	Name: "Arithmetic",
	Helpers: map[string]onnx.Helper{
		"broadcast":        broadcast,
		"limitedBroadcast": limitedBroadcast,
		"promote":          promote,
	},
}

// Indexing is the mixin for operators taking indices into one axis of a data tensor.
//
// Helpers:
//   - "normalizeIndices": (data, indices) returns the indices with negative values counted from the end of
//     the axis given by the node attribute "axis".
var Indexing = &onnx.Mixin{
	Name: "Indexing",
	Helpers: map[string]onnx.Helper{
		"normalizeIndices": normalizeIndices,
	},
}

func broadcast(ctx *onnx.Context, inputs []onnx.Tensor) ([]onnx.Tensor, error) {
	if len(inputs) <= 1 {
		return inputs, nil
	}
	return ctx.Construct(onnx.OpBroadcast, inputs, nil)
}

func limitedBroadcast(ctx *onnx.Context, inputs []onnx.Tensor) ([]onnx.Tensor, error) {
	if len(inputs) != 2 {
		exceptions.Panicf("limitedBroadcast requires 2 operands, got %d in %s", len(inputs), ctx.Node())
	}
	node := ctx.Node()
	if !node.GetBoolAttrOr("broadcast", false) {
		// Shapes must match exactly.
		return inputs, nil
	}
	axis := node.Attr("axis")
	if axis == nil {
		// Without axis, rhs is aligned to the trailing axes of lhs: that's the same as the multidirectional
		// broadcasting when rhs has lower rank.
		return ctx.Construct(onnx.OpBroadcast, inputs, nil)
	}
	rhs, err := ctx.Construct1(onnx.OpAlignAxis, inputs, onnx.Params{"axis": node.MustGetIntAttr("axis")})
	if err != nil {
		return nil, err
	}
	return []onnx.Tensor{inputs[0], rhs}, nil
}

func promote(ctx *onnx.Context, inputs []onnx.Tensor) ([]onnx.Tensor, error) {
	if len(inputs) <= 1 {
		return inputs, nil
	}
	return ctx.Construct(onnx.OpPromote, inputs, nil)
}

func normalizeIndices(ctx *onnx.Context, inputs []onnx.Tensor) ([]onnx.Tensor, error) {
	if len(inputs) != 2 {
		exceptions.Panicf("normalizeIndices requires (data, indices), got %d inputs in %s", len(inputs), ctx.Node())
	}
	axis := ctx.Node().GetIntAttrOr("axis", 0)
	return ctx.Construct(onnx.OpNormalizeIndices, inputs, onnx.Params{"axis": axis})
}

// requireInputs panics if the node has less than n inputs given.
func requireInputs(ctx *onnx.Context, n int) {
	for ii := range n {
		if !ctx.HasInput(ii) {
			exceptions.Panicf("ONNX %s requires input #%d", ctx.Node(), ii)
		}
	}
}

