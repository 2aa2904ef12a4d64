package handlers

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/onnx-lower/onnx"
)

func init() {
	onnx.MustRegister(scatterElementsHandler)
	onnx.MustRegister(scatterHandler)
	onnx.MustRegister(gatherElementsHandler)
}

// ScatterElements writes updates into a copy of data, at the positions given by indices along one axis.
//
// See ONNX documentation in:
// https://onnx.ai/onnx/operators/onnx__ScatterElements.html
//
// Opset 16 added the "reduction" attribute ("none", "add" or "mul"), and opset 18 added "max" and "min".
var scatterElementsHandler = &onnx.Handler{
	Op: "ScatterElements",
	Versions: map[int]onnx.Rule{
		11: scatterElementsV11,
		13: scatterElementsV11,
		16: scatterElementsWithReduction("none", "add", "mul"),
		18: scatterElementsWithReduction("none", "add", "mul", "max", "min"),
	},
	Mixins:    []*onnx.Mixin{Indexing},
	DefaultOp: onnx.OpScatterElements,
}

// Scatter was deprecated in opset 11 in favor of ScatterElements, which has the same semantics.
//
// See ONNX documentation in:
// https://onnx.ai/onnx/operators/onnx__Scatter.html
var scatterHandler = &onnx.Handler{
	Op: "Scatter",
	Versions: map[int]onnx.Rule{
		// Scatter-9 is ScatterElements-11 without negative indices support, which normalizeIndices
		// leaves untouched.
		9: scatterElementsV11,
		// Scatter-11 is the deprecated alias of ScatterElements-11.
		11: scatterElementsV11,
	},
	Mixins:    []*onnx.Mixin{Indexing},
	DefaultOp: onnx.OpScatterElements,
}

func scatterElementsV11(node *onnx.Node, ctx *onnx.Context) ([]onnx.Tensor, error) {
	return scatterElements(node, ctx, "none")
}

func scatterElementsWithReduction(supported ...string) onnx.Rule {
	return func(node *onnx.Node, ctx *onnx.Context) ([]onnx.Tensor, error) {
		reduction := node.GetStringAttrOr("reduction", "none")
		if !slices.Contains(supported, reduction) {
			exceptions.Panicf("ONNX %s: reduction %q not supported in opset %d, valid values are %q",
				node, reduction, ctx.Opset, supported)
		}
		return scatterElements(node, ctx, reduction)
	}
}

func scatterElements(node *onnx.Node, ctx *onnx.Context, reduction string) ([]onnx.Tensor, error) {
	requireInputs(ctx, 3)
	data, updates := ctx.Input(0), ctx.Input(2)
	indices, err := ctx.Helper("normalizeIndices", []onnx.Tensor{data, ctx.Input(1)})
	if err != nil {
		return nil, err
	}
	return ctx.MakeTensor([]onnx.Tensor{data, indices[0], updates}, onnx.Params{
		"axis":      node.GetIntAttrOr("axis", 0),
		"reduction": reduction,
	})
}

// GatherElements takes the elements of data at the positions given by indices along one axis.
//
// See ONNX documentation in:
// https://onnx.ai/onnx/operators/onnx__GatherElements.html
var gatherElementsHandler = &onnx.Handler{
	Op:        "GatherElements",
	Versions:  onnx.Versions(gatherElements, 11, 13),
	Mixins:    []*onnx.Mixin{Indexing},
	DefaultOp: onnx.OpGatherElements,
}

func gatherElements(node *onnx.Node, ctx *onnx.Context) ([]onnx.Tensor, error) {
	requireInputs(ctx, 2)
	data := ctx.Input(0)
	indices, err := ctx.Helper("normalizeIndices", []onnx.Tensor{data, ctx.Input(1)})
	if err != nil {
		return nil, err
	}
	return ctx.MakeTensor([]onnx.Tensor{data, indices[0]}, onnx.Params{"axis": node.GetIntAttrOr("axis", 0)})
}
