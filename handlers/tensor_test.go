package handlers

import (
	"testing"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/onnx-lower/internal/tracer"
	"github.com/gomlx/onnx-lower/onnx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity(t *testing.T) {
	for _, opset := range []int{1, 13, 14, 16, 19, 21} {
		assert.Equal(t, "Identity(x)", expr(t, opset, onnx.NewNode("Identity", []string{"x"}, []string{"y"}), "x"))
	}
	_, err := tryTranslateNode(13, onnx.NewNode("Identity", []string{""}, []string{"y"}), "x")
	require.ErrorIs(t, err, onnx.ErrNodeTranslation)
}

func TestConstant(t *testing.T) {
	value := tensors.FromValue([][]float32{{1, 2}, {3, 4}})
	for _, opset := range []int{1, 9, 11, 12, 13} {
		node := onnx.NewNode("Constant", nil, []string{"c"}, onnx.TensorAttr("value", value))
		outputs := translateNode(t, opset, node)
		assert.Equal(t, onnx.OpConstant, outputs[0].Op)
		assert.Empty(t, outputs[0].Inputs)
		assert.Same(t, value, outputs[0].Params["value"])
	}

	// Sparse values are not supported.
	sparse := onnx.NewNode("Constant", nil, []string{"c"}, onnx.TensorAttr("sparse_value", value))
	for _, opset := range []int{11, 13} {
		_, err := tryTranslateNode(opset, sparse)
		require.ErrorIsf(t, err, onnx.ErrNodeTranslation, "opset %d", opset)
	}

	// "value_*" attributes were added in opset 12.
	valueInts := onnx.NewNode("Constant", nil, []string{"c"}, onnx.IntsAttr("value_ints", 3, 5))
	_, err := tryTranslateNode(11, valueInts)
	require.ErrorIs(t, err, onnx.ErrNodeTranslation)
	for _, opset := range []int{12, 13} {
		c := translateNode(t, opset, valueInts)[0].Params["value"].(*tensors.Tensor)
		assert.Equal(t, []int64{3, 5}, c.Value())

		c = translateNode(t, opset, onnx.NewNode("Constant", nil, []string{"c"}, onnx.FloatAttr("value_float", 0.5)))[0].
			Params["value"].(*tensors.Tensor)
		assert.Equal(t, float32(0.5), c.Value())

		c = translateNode(t, opset, onnx.NewNode("Constant", nil, []string{"c"}, onnx.IntAttr("value_int", 7)))[0].
			Params["value"].(*tensors.Tensor)
		assert.Equal(t, int64(7), c.Value())

		_, err = tryTranslateNode(opset, onnx.NewNode("Constant", nil, []string{"c"}, onnx.StringAttr("value_string", "x")))
		require.ErrorIs(t, err, onnx.ErrNodeTranslation)

		_, err = tryTranslateNode(opset, onnx.NewNode("Constant", nil, []string{"c"},
			onnx.IntAttr("value_int", 7), onnx.FloatAttr("value_float", 1)))
		require.ErrorIs(t, err, onnx.ErrNodeTranslation)
	}
}

func TestCast(t *testing.T) {
	castDType := func(t *testing.T, opset int, to *onnx.Attribute) dtypes.DType {
		outputs := translateNode(t, opset, onnx.NewNode("Cast", []string{"x"}, []string{"y"}, to), "x")
		assert.Equal(t, onnx.OpConvertDType, outputs[0].Op)
		assert.Equal(t, "x", outputs[0].Inputs[0].String())
		return outputs[0].Params["dtype"].(dtypes.DType)
	}

	// Opset 1: "to" is the type name.
	assert.Equal(t, dtypes.Float32, castDType(t, 1, onnx.StringAttr("to", "FLOAT")))
	assert.Equal(t, dtypes.Int64, castDType(t, 5, onnx.StringAttr("to", "int64")))
	_, err := tryTranslateNode(1, onnx.NewNode("Cast", []string{"x"}, []string{"y"}, onnx.StringAttr("to", "FLOAT128")), "x")
	require.ErrorIs(t, err, onnx.ErrNodeTranslation)
	_, err = tryTranslateNode(1, onnx.NewNode("Cast", []string{"x"}, []string{"y"}, onnx.IntAttr("to", 1)), "x")
	require.ErrorIs(t, err, onnx.ErrNodeTranslation)

	// From opset 6: "to" is the data type enum value.
	for _, opset := range []int{6, 9, 13, 19, 21} {
		assert.Equal(t, dtypes.Float32, castDType(t, opset, onnx.IntAttr("to", int64(onnx.DataTypeFloat))))
		assert.Equal(t, dtypes.Int64, castDType(t, opset, onnx.IntAttr("to", int64(onnx.DataTypeInt64))))
		assert.Equal(t, dtypes.Bool, castDType(t, opset, onnx.IntAttr("to", int64(onnx.DataTypeBool))))
		assert.Equal(t, dtypes.BFloat16, castDType(t, opset, onnx.IntAttr("to", int64(onnx.DataTypeBFloat16))))

		_, err = tryTranslateNode(opset, onnx.NewNode("Cast", []string{"x"}, []string{"y"},
			onnx.IntAttr("to", int64(onnx.DataTypeString))), "x")
		require.ErrorIs(t, err, onnx.ErrNodeTranslation)
		_, err = tryTranslateNode(opset, onnx.NewNode("Cast", []string{"x"}, []string{"y"},
			onnx.StringAttr("to", "FLOAT")), "x")
		require.ErrorIs(t, err, onnx.ErrNodeTranslation)
	}
}

func TestSplit(t *testing.T) {
	outputs := []string{"y0", "y1"}

	t.Run("attribute", func(t *testing.T) {
		for _, opset := range []int{1, 2, 11, 12} {
			node := onnx.NewNode("Split", []string{"x"}, outputs, onnx.IntAttr("axis", 1), onnx.IntsAttr("split", 2, 3))
			got := translateNode(t, opset, node, "x")
			assert.Equal(t, "Split[0]{axis=1, split=[2 3]}(x)", got[0].String())
			assert.Equal(t, "Split[1]{axis=1, split=[2 3]}(x)", got[1].String())

			node = onnx.NewNode("Split", []string{"x"}, outputs)
			assert.Equal(t, "Split[1]{axis=0, num_outputs=2}(x)", translateNode(t, opset, node, "x")[1].String())

			node = onnx.NewNode("Split", []string{"x"}, outputs, onnx.IntsAttr("split", 1, 2, 3))
			_, err := tryTranslateNode(opset, node, "x")
			require.ErrorIs(t, err, onnx.ErrNodeTranslation)
		}

		// Split sizes as an input: optional in opset 1 (not supported), not part of opsets 2 and 11.
		node := onnx.NewNode("Split", []string{"x", "sizes"}, outputs)
		for _, opset := range []int{1, 2, 11, 12} {
			_, err := tryTranslateNode(opset, node, "x", "sizes")
			require.ErrorIsf(t, err, onnx.ErrNodeTranslation, "opset %d", opset)
		}
	})

	t.Run("static input", func(t *testing.T) {
		for _, opset := range []int{13, 18} {
			// Sizes given by an initializer.
			g := onnx.NewGraph("split", opset, onnx.NewNode("Split", []string{"x", "sizes"}, outputs)).
				WithInputs("x").WithOutputs(outputs...).
				WithInitializer("sizes", tensors.FromValue([]int64{4, 1}))
			got, err := tryTranslate(g, "x")
			require.NoError(t, err)
			assert.Equal(t, "Split[1]{axis=0, split=[4 1]}(x)", got[1].String())

			// Sizes given by a Constant node, passed through an Identity.
			g = onnx.NewGraph("split", opset,
				onnx.NewNode("Constant", nil, []string{"c"}, onnx.TensorAttr("value", tensors.FromValue([]int32{1, 4}))),
				onnx.NewNode("Identity", []string{"c"}, []string{"sizes"}),
				onnx.NewNode("Split", []string{"x", "sizes"}, outputs, onnx.IntAttr("axis", -1)),
			).WithInputs("x").WithOutputs(outputs...)
			got, err = tryTranslate(g, "x")
			require.NoError(t, err)
			assert.Equal(t, "Split[0]{axis=-1, split=[1 4]}(x)", got[0].String())

			// No sizes: equal split.
			node := onnx.NewNode("Split", []string{"x"}, outputs)
			assert.Equal(t, "Split[0]{axis=0, num_outputs=2}(x)", translateNode(t, opset, node, "x")[0].String())

			// Sizes given by a graph input are not static.
			node = onnx.NewNode("Split", []string{"x", "sizes"}, outputs)
			_, err = tryTranslateNode(opset, node, "x", "sizes")
			require.ErrorIs(t, err, onnx.ErrNodeTranslation)
			assert.Contains(t, err.Error(), "must be static")

			// Initializer overridden by an input is not static either.
			g = onnx.NewGraph("split", opset, onnx.NewNode("Split", []string{"x", "sizes"}, outputs)).
				WithInputs("x", "sizes").WithOutputs(outputs...).
				WithInitializer("sizes", tensors.FromValue([]int64{4, 1}))
			_, err = onnx.Translate(tracer.New(), g, tracer.Inputs("x", "sizes"))
			require.ErrorIs(t, err, onnx.ErrNodeTranslation)
		}
	})

	t.Run("num_outputs", func(t *testing.T) {
		three := []string{"y0", "y1", "y2"}
		node := onnx.NewNode("Split", []string{"x"}, three, onnx.IntAttr("num_outputs", 3))
		assert.Equal(t, "Split[2]{axis=0, num_outputs=3}(x)", translateNode(t, 18, node, "x")[2].String())

		// num_outputs must match the node outputs.
		node = onnx.NewNode("Split", []string{"x"}, outputs, onnx.IntAttr("num_outputs", 3))
		_, err := tryTranslateNode(18, node, "x")
		require.ErrorIs(t, err, onnx.ErrNodeTranslation)
	})
}
