package onnx

// Tensor is an opaque handle to a tensor created by a Backend.
//
// For the GoMLX backend it is a *graph.Node. The translator never inspects it, it only passes it around.
type Tensor any

// OpKind identifies an operation the Backend knows how to construct.
type OpKind string

// Params holds the static parameters of a backend operation (axes, data types, constant values, ...).
type Params map[string]any

// Backend is the target of the translation: it materializes backend operations over already created tensors.
//
// Construct returns one handle per output of the operation. Most operations have exactly one output; the
// exceptions are documented in the OpKind constants.
type Backend interface {
	// Name of the backend, used in logs and error messages.
	Name() string

	// Construct creates the operation kind over the inputs. Inputs may contain nil for optional inputs not given.
	Construct(kind OpKind, inputs []Tensor, params Params) ([]Tensor, error)
}

// Operations a Backend must support to be used with the built-in handlers.
const (
	// OpAddN sums all its inputs, which must have the same shape.
	OpAddN OpKind = "AddN"

	// Element-wise binary operations: their operands must have the same rank, and dimensions either equal or 1.
	OpAdd OpKind = "Add"
	OpSub OpKind = "Sub"
	OpMul OpKind = "Mul"
	OpDiv OpKind = "Div"
	OpMax OpKind = "Max"
	OpMin OpKind = "Min"

	// OpBroadcast applies ONNX multidirectional broadcasting to its inputs: it returns one output per input,
	// all with the same shape. Backends that broadcast scalars implicitly may return those unchanged.
	OpBroadcast OpKind = "Broadcast"

	// OpAlignAxis takes (lhs, rhs) and returns rhs reshaped to lhs rank, with its dimensions starting at
	// Params "axis" -- the legacy (opset < 7) ONNX broadcasting.
	OpAlignAxis OpKind = "AlignAxis"

	// OpPromote converts all its inputs to a common data type: it returns one output per input.
	OpPromote OpKind = "Promote"

	// OpConstant creates a constant from Params "value" (a *tensors.Tensor). It takes no inputs.
	OpConstant OpKind = "Constant"

	// OpScalarLike creates a scalar with Params "value" (a float64), with the same dtype as its only input.
	OpScalarLike OpKind = "ScalarLike"

	// OpIdentity returns its input.
	OpIdentity OpKind = "Identity"

	// OpConvertDType converts its input to Params "dtype" (a dtypes.DType).
	OpConvertDType OpKind = "ConvertDType"

	// OpNormalizeIndices takes (data, indices) and makes negative indices on Params "axis" of data positive.
	OpNormalizeIndices OpKind = "NormalizeIndices"

	// OpGatherElements takes (data, indices), with Params "axis".
	OpGatherElements OpKind = "GatherElements"

	// OpScatterElements takes (data, indices, updates), with Params "axis" and "reduction"
	// (one of "none", "add", "mul", "max" or "min").
	OpScatterElements OpKind = "ScatterElements"

	// OpSplit splits its input along Params "axis" into the sizes given by Params "split" ([]int), or into
	// Params "num_outputs" (int) parts as even as possible. It returns one output per part.
	OpSplit OpKind = "Split"
)
