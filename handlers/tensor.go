package handlers

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/onnx-lower/onnx"
	"github.com/pkg/errors"
)

func init() {
	onnx.MustRegister(identityHandler)
	onnx.MustRegister(constantHandler)
	onnx.MustRegister(castHandler)
	onnx.MustRegister(splitHandler)
}

// Identity only changed its supported types across opsets.
//
// See ONNX documentation in:
// https://onnx.ai/onnx/operators/onnx__Identity.html
var identityHandler = &onnx.Handler{
	Op:        "Identity",
	Versions:  onnx.Versions(identity, 1, 13, 14, 16, 19),
	DefaultOp: onnx.OpIdentity,
}

func identity(_ *onnx.Node, ctx *onnx.Context) ([]onnx.Tensor, error) {
	requireInputs(ctx, 1)
	if value, found := ctx.StaticInput(0); found {
		ctx.SetStaticOutput(0, value)
	}
	return ctx.MakeTensor(ctx.Inputs()[:1], nil)
}

// Constant creates a tensor from its attribute.
//
// See ONNX documentation in:
// https://onnx.ai/onnx/operators/onnx__Constant.html
//
// Opset 11 added the "sparse_value" attribute (not supported), and opset 12 the "value_*" attributes.
var constantHandler = &onnx.Handler{
	Op: "Constant",
	Versions: map[int]onnx.Rule{
		1:  constantFromValue,
		9:  constantFromValue,
		11: constantV11,
		12: constantV12,
		13: constantV12,
	},
	DefaultOp: onnx.OpConstant,
}

func constantFromValue(node *onnx.Node, ctx *onnx.Context) ([]onnx.Tensor, error) {
	return makeConstant(ctx, node.MustGetTensorAttr("value"))
}

func constantV11(node *onnx.Node, ctx *onnx.Context) ([]onnx.Tensor, error) {
	if node.Attr("sparse_value") != nil {
		exceptions.Panicf("ONNX %s: sparse tensors are not supported", node)
	}
	return constantFromValue(node, ctx)
}

func constantV12(node *onnx.Node, ctx *onnx.Context) ([]onnx.Tensor, error) {
	if len(node.Attributes) != 1 {
		exceptions.Panicf("ONNX %s must have exactly one attribute, got %d", node, len(node.Attributes))
	}
	attr := node.Attributes[0]
	var value *tensors.Tensor
	switch attr.Name {
	case "value":
		return constantFromValue(node, ctx)
	case "sparse_value":
		return constantV11(node, ctx)
	case "value_float":
		value = tensors.FromAnyValue(node.GetFloatAttrOr(attr.Name, 0))
	case "value_floats":
		if attr.Type != onnx.AttrFloats {
			exceptions.Panicf("ONNX %s: attribute %q has type %s", node, attr.Name, attr.Type)
		}
		value = tensors.FromAnyValue(attr.Floats)
	case "value_int":
		if attr.Type != onnx.AttrInt {
			exceptions.Panicf("ONNX %s: attribute %q has type %s", node, attr.Name, attr.Type)
		}
		value = tensors.FromAnyValue(attr.I)
	case "value_ints":
		if attr.Type != onnx.AttrInts {
			exceptions.Panicf("ONNX %s: attribute %q has type %s", node, attr.Name, attr.Type)
		}
		value = tensors.FromAnyValue(attr.Ints)
	case "value_string", "value_strings":
		exceptions.Panicf("ONNX %s: string tensors are not supported", node)
	default:
		exceptions.Panicf("ONNX %s: unknown attribute %q", node, attr.Name)
	}
	return makeConstant(ctx, value)
}

func makeConstant(ctx *onnx.Context, value *tensors.Tensor) ([]onnx.Tensor, error) {
	ctx.SetStaticOutput(0, value)
	return ctx.MakeTensor(nil, onnx.Params{"value": value})
}

// Cast converts the input to the data type given by the "to" attribute.
//
// See ONNX documentation in:
// https://onnx.ai/onnx/operators/onnx__Cast.html
//
// In opset 1 "to" is the data type name, from opset 6 on it is the data type enum value. Opset 19 added the
// "saturate" attribute, only relevant for float8 types, which are not supported.
var castHandler = &onnx.Handler{
	Op: "Cast",
	Versions: map[int]onnx.Rule{
		1:  castByName,
		6:  castByEnum,
		9:  castByEnum,
		13: castByEnum,
		19: castByEnum,
	},
	DefaultOp: onnx.OpConvertDType,
}

func castByName(node *onnx.Node, ctx *onnx.Context) ([]onnx.Tensor, error) {
	name := node.GetStringAttrOr("to", "")
	dataType, err := onnx.DataTypeByName(name)
	if err != nil {
		return nil, errors.WithMessagef(err, "while converting 'to' attribute for node %s", node)
	}
	return cast(node, ctx, dataType)
}

func castByEnum(node *onnx.Node, ctx *onnx.Context) ([]onnx.Tensor, error) {
	return cast(node, ctx, onnx.DataType(node.MustGetIntAttr("to")))
}

func cast(node *onnx.Node, ctx *onnx.Context, dataType onnx.DataType) ([]onnx.Tensor, error) {
	requireInputs(ctx, 1)
	dtype, err := onnx.DTypeForONNX(dataType)
	if err != nil {
		return nil, errors.WithMessagef(err, "while converting 'to' attribute for node %s", node)
	}
	return ctx.MakeTensor(ctx.Inputs()[:1], onnx.Params{"dtype": dtype})
}

// Split divides the input along an axis into one output per node output.
//
// See ONNX documentation in:
// https://onnx.ai/onnx/operators/onnx__Split.html
//
// Up to opset 11 the sizes are given by the "split" attribute, from opset 13 on by the optional "split"
// input, which must be static (an initializer or a Constant). Opset 18 added "num_outputs".
var splitHandler = &onnx.Handler{
	Op: "Split",
	Versions: map[int]onnx.Rule{
		1:  splitWithAttribute,
		2:  splitWithAttribute,
		11: splitWithAttribute,
		13: splitWithInput,
		18: splitWithInput,
	},
	DefaultOp: onnx.OpSplit,
}

func splitWithAttribute(node *onnx.Node, ctx *onnx.Context) ([]onnx.Tensor, error) {
	requireInputs(ctx, 1)
	if ctx.HasInput(1) {
		exceptions.Panicf("ONNX %s: Split-%d takes a single input, split sizes given as input are not supported",
			node, ctx.Version)
	}
	return split(node, ctx, node.GetIntsAttrOr("split", nil))
}

func splitWithInput(node *onnx.Node, ctx *onnx.Context) ([]onnx.Tensor, error) {
	requireInputs(ctx, 1)
	var sizes []int
	if ctx.HasInput(1) {
		value, found := ctx.StaticInput(1)
		if !found {
			exceptions.Panicf("ONNX %s: split sizes (input #1) must be static, an initializer or a Constant", node)
		}
		sizes = tensorToInts(node, value)
	}
	return split(node, ctx, sizes)
}

func split(node *onnx.Node, ctx *onnx.Context, sizes []int) ([]onnx.Tensor, error) {
	params := onnx.Params{"axis": node.GetIntAttrOr("axis", 0)}
	if len(sizes) > 0 {
		if len(sizes) != len(node.Outputs) {
			exceptions.Panicf("ONNX %s: %d split sizes given for %d outputs", node, len(sizes), len(node.Outputs))
		}
		params["split"] = sizes
	} else {
		numOutputs := node.GetIntAttrOr("num_outputs", len(node.Outputs))
		if numOutputs != len(node.Outputs) {
			exceptions.Panicf("ONNX %s: num_outputs=%d but node has %d outputs", node, numOutputs, len(node.Outputs))
		}
		params["num_outputs"] = numOutputs
	}
	return ctx.MakeTensor(ctx.Inputs()[:1], params)
}

// tensorToInts converts a static integer tensor with rank <= 1 to a slice of ints.
func tensorToInts(node *onnx.Node, t *tensors.Tensor) []int {
	switch values := t.Value().(type) {
	case []int64:
		return sliceMap(values, func(v int64) int { return int(v) })
	case []int32:
		return sliceMap(values, func(v int32) int { return int(v) })
	case int64:
		return []int{int(values)}
	case int32:
		return []int{int(values)}
	default:
		exceptions.Panicf("ONNX %s: expected a static integer list, got %s", node, t.Shape())
		panic(nil) // for lint benefit.
	}
}

// sliceMap executes the given function sequentially for every element on in, and returns a mapped slice.
func sliceMap[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}
