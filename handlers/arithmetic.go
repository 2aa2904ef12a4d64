package handlers

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/onnx-lower/onnx"
)

func init() {
	onnx.MustRegister(sumHandler)
	for _, op := range []struct {
		name string
		kind onnx.OpKind
	}{
		{"Add", onnx.OpAdd},
		{"Sub", onnx.OpSub},
		{"Mul", onnx.OpMul},
		{"Div", onnx.OpDiv},
	} {
		onnx.MustRegister(binaryHandler(op.name, op.kind))
	}
}

// Sum of a variadic number of tensors.
//
// See ONNX documentation in:
// https://onnx.ai/onnx/operators/onnx__Sum.html
//
// Up to opset 6 all inputs have the same shape, from opset 8 on they are broadcast.
var sumHandler = &onnx.Handler{
	Op: "Sum",
	Versions: map[int]onnx.Rule{
		1:  sumCommon,
		6:  sumCommon,
		8:  sumBroadcast,
		13: sumBroadcast,
	},
	Mixins:    []*onnx.Mixin{Arithmetic},
	DefaultOp: onnx.OpAddN,
}

func sumCommon(node *onnx.Node, ctx *onnx.Context) ([]onnx.Tensor, error) {
	inputs := ctx.Inputs()
	if len(inputs) == 0 {
		exceptions.Panicf("ONNX %s requires at least one input", node)
	}
	requireInputs(ctx, len(inputs))
	if len(inputs) == 1 {
		return ctx.Construct(onnx.OpIdentity, inputs, nil)
	}
	return ctx.MakeTensor(inputs, nil)
}

func sumBroadcast(node *onnx.Node, ctx *onnx.Context) ([]onnx.Tensor, error) {
	requireInputs(ctx, len(ctx.Inputs()))
	inputs, err := ctx.Helper("broadcast", ctx.Inputs())
	if err != nil {
		return nil, err
	}
	if ctx.AllowDTypePromotion {
		inputs, err = ctx.Helper("promote", inputs)
		if err != nil {
			return nil, err
		}
	}
	if len(inputs) <= 1 {
		return sumCommon(node, ctx)
	}
	return ctx.MakeTensor(inputs, nil)
}

// binaryHandler creates the handler of an element-wise binary arithmetic operator.
//
// See ONNX documentation in:
// https://onnx.ai/onnx/operators/onnx__Add.html
//
// Up to opset 6 it uses the legacy broadcasting, controlled by the "broadcast" and "axis" attributes.
// From opset 7 on it uses multidirectional broadcasting. Opsets 13 and 14 only added data types.
func binaryHandler(op string, kind onnx.OpKind) *onnx.Handler {
	legacy := func(node *onnx.Node, ctx *onnx.Context) ([]onnx.Tensor, error) {
		requireInputs(ctx, 2)
		operands, err := ctx.Helper("limitedBroadcast", ctx.Inputs()[:2])
		if err != nil {
			return nil, err
		}
		return ctx.Construct(kind, operands, nil)
	}
	multidirectional := func(node *onnx.Node, ctx *onnx.Context) ([]onnx.Tensor, error) {
		requireInputs(ctx, 2)
		operands, err := ctx.Helper("broadcast", ctx.Inputs()[:2])
		if err != nil {
			return nil, err
		}
		if ctx.AllowDTypePromotion {
			operands, err = ctx.Helper("promote", operands)
			if err != nil {
				return nil, err
			}
		}
		return ctx.Construct(kind, operands, nil)
	}
	versions := onnx.Versions(legacy, 1, 6)
	for _, v := range []int{7, 13, 14} {
		versions[v] = multidirectional
	}
	return &onnx.Handler{
		Op:        op,
		Versions:  versions,
		Mixins:    []*onnx.Mixin{Arithmetic},
		DefaultOp: kind,
	}
}
