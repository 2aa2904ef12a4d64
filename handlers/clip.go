package handlers

import (
	"github.com/chewxy/math32"
	"github.com/gomlx/onnx-lower/onnx"
)

func init() {
	onnx.MustRegister(clipHandler)
}

// Clip limits the values of the input to [min, max]. It is decomposed into Max and Min operations.
//
// See ONNX documentation in:
// https://onnx.ai/onnx/operators/onnx__Clip.html
//
// Up to opset 6 min and max are float attributes. From opset 11 they are optional inputs.
var clipHandler = &onnx.Handler{
	Op: "Clip",
	Versions: map[int]onnx.Rule{
		1:  clipWithAttributes,
		6:  clipWithAttributes,
		11: clipWithInputs,
		12: clipWithInputs,
		13: clipWithInputs,
	},
}

func clipWithAttributes(node *onnx.Node, ctx *onnx.Context) ([]onnx.Tensor, error) {
	requireInputs(ctx, 1)
	operand := ctx.Input(0)
	var err error
	clipped := false
	if minValue := node.GetFloatAttrOr("min", math32.Inf(-1)); !math32.IsInf(minValue, -1) {
		operand, err = clipBound(ctx, onnx.OpMax, operand, minValue)
		if err != nil {
			return nil, err
		}
		clipped = true
	}
	if maxValue := node.GetFloatAttrOr("max", math32.Inf(1)); !math32.IsInf(maxValue, 1) {
		operand, err = clipBound(ctx, onnx.OpMin, operand, maxValue)
		if err != nil {
			return nil, err
		}
		clipped = true
	}
	if !clipped {
		return ctx.Construct(onnx.OpIdentity, []onnx.Tensor{operand}, nil)
	}
	return []onnx.Tensor{operand}, nil
}

// clipBound applies kind (OpMax or OpMin) between operand and a scalar of the same dtype.
func clipBound(ctx *onnx.Context, kind onnx.OpKind, operand onnx.Tensor, value float32) (onnx.Tensor, error) {
	bound, err := ctx.Construct1(onnx.OpScalarLike, []onnx.Tensor{operand}, onnx.Params{"value": float64(value)})
	if err != nil {
		return nil, err
	}
	return ctx.Construct1(kind, []onnx.Tensor{operand, bound}, nil)
}

// clipWithInputs handles min (input #1) and max (input #2), both optional.
func clipWithInputs(node *onnx.Node, ctx *onnx.Context) ([]onnx.Tensor, error) {
	requireInputs(ctx, 1)
	operand := ctx.Input(0)
	var err error
	if ctx.HasInput(1) {
		operand, err = ctx.Construct1(onnx.OpMax, []onnx.Tensor{operand, ctx.Input(1)}, nil)
		if err != nil {
			return nil, err
		}
	}
	if ctx.HasInput(2) {
		operand, err = ctx.Construct1(onnx.OpMin, []onnx.Tensor{operand, ctx.Input(2)}, nil)
		if err != nil {
			return nil, err
		}
	}
	if !ctx.HasInput(1) && !ctx.HasInput(2) {
		return ctx.Construct(onnx.OpIdentity, []onnx.Tensor{operand}, nil)
	}
	return []onnx.Tensor{operand}, nil
}
