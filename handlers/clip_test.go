package handlers

import (
	"testing"

	"github.com/gomlx/onnx-lower/onnx"
	"github.com/stretchr/testify/assert"
)

func TestClip(t *testing.T) {
	// Opsets 1 and 6: bounds are attributes.
	for _, opset := range []int{1, 6, 10} {
		clip := func(attrs ...*onnx.Attribute) *onnx.Node {
			return onnx.NewNode("Clip", []string{"x"}, []string{"y"}, attrs...)
		}
		assert.Equal(t, "Identity(x)", expr(t, opset, clip(), "x"))
		assert.Equal(t, "Max(x, ScalarLike{value=0}(x))", expr(t, opset, clip(onnx.FloatAttr("min", 0)), "x"))
		assert.Equal(t, "Min(x, ScalarLike{value=6}(x))", expr(t, opset, clip(onnx.FloatAttr("max", 6)), "x"))
		lower := "Max(x, ScalarLike{value=-1.5}(x))"
		assert.Equal(t, "Min("+lower+", ScalarLike{value=1.5}("+lower+"))",
			expr(t, opset, clip(onnx.FloatAttr("min", -1.5), onnx.FloatAttr("max", 1.5)), "x"))
	}

	// From opset 11: optional inputs.
	for _, opset := range []int{11, 12, 13, 20} {
		assert.Equal(t, "Identity(x)", expr(t, opset, onnx.NewNode("Clip", []string{"x"}, []string{"y"}), "x"))
		assert.Equal(t, "Max(x, lo)", expr(t, opset, onnx.NewNode("Clip", []string{"x", "lo"}, []string{"y"}), "x", "lo"))
		assert.Equal(t, "Min(x, hi)", expr(t, opset, onnx.NewNode("Clip", []string{"x", "", "hi"}, []string{"y"}), "x", "hi"))
		assert.Equal(t, "Min(Max(x, lo), hi)",
			expr(t, opset, onnx.NewNode("Clip", []string{"x", "lo", "hi"}, []string{"y"}), "x", "lo", "hi"))

		// Attributes are not used anymore.
		node := onnx.NewNode("Clip", []string{"x"}, []string{"y"}, onnx.FloatAttr("min", 0))
		assert.Equal(t, "Identity(x)", expr(t, opset, node, "x"))
	}
}
