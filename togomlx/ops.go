package togomlx

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/onnx-lower/onnx"
)

// This file implements the backend operations that don't have a direct corresponding GoMLX operator.

// gomlxBinaryOp is a GoMLX binary op. Used by binaryOp.
type gomlxBinaryOp func(lhs, rhs *Node) *Node

// binaryOp returns the construction of a binary op. The operands must already be broadcast to the same rank
// (see OpBroadcast): GoMLX then broadcasts axes of dimension 1 and scalars.
func binaryOp(fn gomlxBinaryOp) construction {
	return func(_ *Backend, inputs []*Node, _ onnx.Params) []*Node {
		if len(inputs) != 2 || inputs[0] == nil || inputs[1] == nil {
			exceptions.Panicf("binary operation requires 2 operands, got %d", len(inputs))
		}
		return []*Node{fn(inputs[0], inputs[1])}
	}
}

func constructAddN(_ *Backend, inputs []*Node, _ onnx.Params) []*Node {
	if len(inputs) == 0 {
		exceptions.Panicf("%s requires at least one input", onnx.OpAddN)
	}
	requireInputs(onnx.OpAddN, inputs, len(inputs))
	sum := inputs[0]
	for _, input := range inputs[1:] {
		sum = Add(sum, input)
	}
	return []*Node{sum}
}

// onnxImplicitBroadcast expands operands to the largest rank, expanding to the left.
// This is part of ONNX implicit broadcasting rule.
// Scalars are left untouched, because generally, XLA will broadcast them.
//
// Returns the list of broadcast operands.
func onnxImplicitBroadcast(operands []*Node) []*Node {
	ranks := sliceMap(operands, func(n *Node) int { return n.Rank() })
	maxRank := slices.Max(ranks)
	return sliceMap(operands, func(n *Node) *Node {
		if n.IsScalar() || n.Rank() == maxRank {
			return n
		}
		return ExpandLeftToRank(n, maxRank)
	})
}

// onnxBroadcast implements the ONNX multidirectional broadcasting: operands are expanded to the same rank, and
// then broadcast to the largest dimension of each axis. Scalars are left untouched.
func onnxBroadcast(operands []*Node) []*Node {
	operands = onnxImplicitBroadcast(operands)
	maxRank := slices.Max(sliceMap(operands, func(n *Node) int { return n.Rank() }))
	maxDims := make([]int, maxRank)
	for axis := range maxRank {
		allDims := sliceMap(operands, func(n *Node) int {
			if n.IsScalar() {
				return 1
			}
			return n.Shape().Dim(axis)
		})
		maxDims[axis] = slices.Max(allDims)
		for ii, dim := range allDims {
			if dim != 1 && dim != maxDims[axis] {
				exceptions.Panicf("operand #%d shaped %s can't be broadcast on axis %d to dimension %d",
					ii, operands[ii].Shape(), axis, maxDims[axis])
			}
		}
	}
	for ii, operand := range operands {
		if !operand.IsScalar() && !slices.Equal(operand.Shape().Dimensions, maxDims) {
			operands[ii] = BroadcastToDims(operand, maxDims...)
		}
	}
	return operands
}

func constructBroadcast(_ *Backend, inputs []*Node, _ onnx.Params) []*Node {
	requireInputs(onnx.OpBroadcast, inputs, len(inputs))
	if len(inputs) == 0 {
		return nil
	}
	return onnxBroadcast(slices.Clone(inputs))
}

// constructAlignAxis implements the legacy (opset < 7) broadcasting with an explicit axis: rhs dimensions are
// aligned to lhs starting at the given axis, and it is reshaped to lhs rank with the other axes of dimension 1.
func constructAlignAxis(_ *Backend, inputs []*Node, params onnx.Params) []*Node {
	requireInputs(onnx.OpAlignAxis, inputs, 2)
	lhs, rhs := inputs[0], inputs[1]
	axis := intParam(params, "axis", 0)
	if axis < 0 {
		axis += lhs.Rank()
	}
	if axis < 0 || axis+rhs.Rank() > lhs.Rank() {
		exceptions.Panicf("can't align rhs shaped %s to lhs shaped %s starting at axis %d",
			rhs.Shape(), lhs.Shape(), intParam(params, "axis", 0))
	}
	dims := make([]int, lhs.Rank())
	for ii := range dims {
		dims[ii] = 1
	}
	copy(dims[axis:], rhs.Shape().Dimensions)
	return []*Node{Reshape(rhs, dims...)}
}

func constructPromote(b *Backend, inputs []*Node, _ onnx.Params) []*Node {
	requireInputs(onnx.OpPromote, inputs, len(inputs))
	return promoteToCommonDType(inputs, b.prioritizeFloat16)
}

func constructConstant(b *Backend, inputs []*Node, params onnx.Params) []*Node {
	if len(inputs) != 0 {
		exceptions.Panicf("%s takes no inputs, got %d", onnx.OpConstant, len(inputs))
	}
	value, ok := params["value"].(*tensors.Tensor)
	if !ok || value == nil {
		exceptions.Panicf("%s requires parameter \"value\" with a *tensors.Tensor, got %T", onnx.OpConstant, params["value"])
	}
	return []*Node{Const(b.g, value)}
}

func constructScalarLike(_ *Backend, inputs []*Node, params onnx.Params) []*Node {
	requireInputs(onnx.OpScalarLike, inputs, 1)
	value, ok := params["value"].(float64)
	if !ok {
		exceptions.Panicf("%s requires parameter \"value\" with a float64, got %T", onnx.OpScalarLike, params["value"])
	}
	operand := inputs[0]
	return []*Node{Scalar(operand.Graph(), operand.DType(), value)}
}

func constructIdentity(_ *Backend, inputs []*Node, _ onnx.Params) []*Node {
	requireInputs(onnx.OpIdentity, inputs, 1)
	return []*Node{Identity(inputs[0])}
}

func constructConvertDType(_ *Backend, inputs []*Node, params onnx.Params) []*Node {
	requireInputs(onnx.OpConvertDType, inputs, 1)
	dtype, ok := params["dtype"].(dtypes.DType)
	if !ok {
		exceptions.Panicf("%s requires parameter \"dtype\" with a dtypes.DType, got %T", onnx.OpConvertDType, params["dtype"])
	}
	if inputs[0].DType() == dtype {
		return []*Node{Identity(inputs[0])}
	}
	return []*Node{ConvertDType(inputs[0], dtype)}
}

// dataAxis returns the axis parameter adjusted to the rank of data, and checks it is valid.
func dataAxis(kind onnx.OpKind, data *Node, params onnx.Params) int {
	axis := intParam(params, "axis", 0)
	adjusted := axis
	if adjusted < 0 {
		adjusted += data.Rank()
	}
	if adjusted < 0 || adjusted >= data.Rank() {
		exceptions.Panicf("%s(data=%s, axis=%d): axis out of range", kind, data.Shape(), axis)
	}
	return adjusted
}

// constructNormalizeIndices converts negative indices (counted from the end of the axis) to positive ones.
func constructNormalizeIndices(_ *Backend, inputs []*Node, params onnx.Params) []*Node {
	requireInputs(onnx.OpNormalizeIndices, inputs, 2)
	data, indices := inputs[0], inputs[1]
	axis := dataAxis(onnx.OpNormalizeIndices, data, params)
	if !indices.DType().IsInt() {
		exceptions.Panicf("%s: indices must be integers, got %s", onnx.OpNormalizeIndices, indices.DType())
	}
	g := indices.Graph()
	dim := Scalar(g, indices.DType(), data.Shape().Dim(axis))
	isNegative := LessThan(indices, ScalarZero(g, indices.DType()))
	return []*Node{Where(isNegative, Add(indices, dim), indices)}
}

func constructGatherElements(_ *Backend, inputs []*Node, params onnx.Params) []*Node {
	requireInputs(onnx.OpGatherElements, inputs, 2)
	data, indices := inputs[0], inputs[1]
	gatherAxis := dataAxis(onnx.OpGatherElements, data, params)
	return []*Node{onnxGatherElements(data, indices, gatherAxis)}
}

// elementsIndices returns the full indices into data for each element of indices, shaped
// [indices.Size(), data.Rank()]. On axis the index is the one given by indices, on the other axes it is the
// position of the element itself.
func elementsIndices(data *Node, indices *Node, axis int) *Node {
	if data.Rank() != indices.Rank() {
		exceptions.Panicf("data=%s and indices=%s must have the same rank", data.Shape(), indices.Shape())
	}
	indicesDims := indices.Shape().Dimensions
	indicesSize := indices.Shape().Size()
	for ii, dim := range indicesDims {
		if ii != axis && dim > data.Shape().Dim(ii) {
			exceptions.Panicf("data=%s and indices=%s (axis=%d): indices dimension on axis #%d is larger than data's",
				data.Shape(), indices.Shape(), axis, ii)
		}
	}

	// fullIndicesParts is a slice with one value per axis of the data.
	// Each part will be shaped [indicesSize, 1], and it will eventually be concatenated
	// to shape [indicesSize, <data.Rank()>].
	fullIndicesParts := make([]*Node, 0, data.Rank())
	iotaShape := indices.Shape().Clone()
	iotaShape.Dimensions = append(iotaShape.Dimensions, 1)
	g := data.Graph()
	for ii := range data.Rank() {
		var part *Node
		if ii == axis {
			// On the axis, the index is the one given by the caller.
			part = Reshape(indices, indicesSize, 1)
		} else {
			// On all other axes the indices are the same in indices and data.
			part = Iota(g, iotaShape, ii)
			part = Reshape(part, indicesSize, 1)
		}
		fullIndicesParts = append(fullIndicesParts, part)
	}
	return Concatenate(fullIndicesParts, -1)
}

func onnxGatherElements(data *Node, indices *Node, gatherAxis int) *Node {
	fullIndices := elementsIndices(data, indices, gatherAxis)
	return Reshape(Gather(data, fullIndices), indices.Shape().Dimensions...)
}

func constructScatterElements(_ *Backend, inputs []*Node, params onnx.Params) []*Node {
	requireInputs(onnx.OpScatterElements, inputs, 3)
	data, indices, updates := inputs[0], inputs[1], inputs[2]
	scatterAxis := dataAxis(onnx.OpScatterElements, data, params)
	reduction, _ := params["reduction"].(string)
	if reduction == "" {
		reduction = "none"
	}
	return []*Node{onnxScatterElements(data, indices, updates, scatterAxis, reduction)}
}

func onnxScatterElements(data, indices, updates *Node, scatterAxis int, reduction string) *Node {
	if !slices.Equal(indices.Shape().Dimensions, updates.Shape().Dimensions) {
		exceptions.Panicf("ScatterElements(indices=%s, updates=%s): indices and updates must have the same shape",
			indices.Shape(), updates.Shape())
	}
	if data.DType() != updates.DType() {
		exceptions.Panicf("ScatterElements(data=%s, updates=%s): data and updates must have the same dtype",
			data.Shape(), updates.Shape())
	}
	fullIndices := elementsIndices(data, indices, scatterAxis)
	size := indices.Shape().Size()
	flatUpdates := Reshape(updates, size)
	switch reduction {
	case "none":
		// Positions not updated keep the data values. Repeated indices are undefined behavior in ONNX: here
		// they are summed.
		g := data.Graph()
		counts := ScatterSum(Zeros(g, shapes.Make(dtypes.Int32, data.Shape().Dimensions...)),
			fullIndices, Ones(g, shapes.Make(dtypes.Int32, size)), false, false)
		scattered := ScatterSum(ZerosLike(data), fullIndices, flatUpdates, false, false)
		return Where(GreaterThan(counts, ScalarZero(g, dtypes.Int32)), scattered, data)
	case "add":
		return ScatterSum(data, fullIndices, flatUpdates, false, false)
	case "max":
		return ScatterMax(data, fullIndices, flatUpdates, false, false)
	case "min":
		return ScatterMin(data, fullIndices, flatUpdates, false, false)
	default:
		exceptions.Panicf("ScatterElements: reduction %q not supported by GoMLX", reduction)
		panic(nil) // for lint benefit.
	}
}

// constructSplit slices the operand along the axis, either into the given sizes or into "num_outputs" parts.
//
// Following ONNX, with "num_outputs" the parts have size ceil(dim/num_outputs), except the last one that
// takes the remainder.
func constructSplit(_ *Backend, inputs []*Node, params onnx.Params) []*Node {
	requireInputs(onnx.OpSplit, inputs, 1)
	operand := inputs[0]
	axis := dataAxis(onnx.OpSplit, operand, params)
	dim := operand.Shape().Dim(axis)
	sizes, _ := params["split"].([]int)
	if len(sizes) == 0 {
		sizes = splitSizes(dim, intParam(params, "num_outputs", 0))
	}
	total := 0
	for _, size := range sizes {
		if size < 0 {
			exceptions.Panicf("Split(%s, axis=%d): invalid split sizes %v", operand.Shape(), axis, sizes)
		}
		total += size
	}
	if total != dim {
		exceptions.Panicf("Split(%s, axis=%d): split sizes %v don't add up to %d", operand.Shape(), axis, sizes, dim)
	}
	outputs := make([]*Node, len(sizes))
	start := 0
	for ii, size := range sizes {
		specs := make([]SliceAxisSpec, operand.Rank())
		for jj := range specs {
			specs[jj] = AxisRange() // Full range.
		}
		specs[axis] = AxisRange(start, start+size)
		outputs[ii] = Slice(operand, specs...)
		start += size
	}
	return outputs
}

// splitSizes returns the sizes of splitting dim into numOutputs parts: all of size ceil(dim/numOutputs), except
// the last one.
func splitSizes(dim, numOutputs int) []int {
	if numOutputs <= 0 {
		exceptions.Panicf("Split requires a positive number of outputs, got %d", numOutputs)
	}
	chunk := (dim + numOutputs - 1) / numOutputs
	sizes := make([]int, numOutputs)
	remaining := dim
	for ii := range sizes {
		sizes[ii] = min(chunk, remaining)
		remaining -= sizes[ii]
	}
	if sizes[numOutputs-1] <= 0 {
		exceptions.Panicf("Split of dimension %d into %d outputs leaves empty outputs", dim, numOutputs)
	}
	return sizes
}
