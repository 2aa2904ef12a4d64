package onnx

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Attribute getters used by the handlers.
//
// The Must* and *Or getters panic (with exceptions.Panicf) if the attribute has the wrong type, or if it
// is required and missing. Rules run under the Translator, which converts these panics into errors
// matching ErrNodeTranslation.

// Attr returns the node attribute with the given name, or nil if not present.
func (n *Node) Attr(name string) *Attribute {
	for _, attr := range n.Attributes {
		if attr.Name == name {
			return attr
		}
	}
	return nil
}

// MustGetAttr returns the node attribute, or panics with a message about the missing attribute.
func (n *Node) MustGetAttr(name string) *Attribute {
	attr := n.Attr(name)
	if attr == nil {
		exceptions.Panicf("ONNX %s is missing required attribute %q", n, name)
	}
	return attr
}

func (n *Node) assertAttrType(attr *Attribute, attributeType AttributeType) {
	if attr.Type != attributeType {
		exceptions.Panicf("unsupported ONNX attribute %q of type %s (wanted %s) in %s", attr.Name, attr.Type, attributeType, n)
	}
}

// MustGetIntAttr gets the attribute as an integer.
func (n *Node) MustGetIntAttr(name string) int {
	attr := n.MustGetAttr(name)
	n.assertAttrType(attr, AttrInt)
	return int(attr.I)
}

// GetIntAttrOr gets an integer attribute if present or returns the given defaultValue.
func (n *Node) GetIntAttrOr(name string, defaultValue int) int {
	attr := n.Attr(name)
	if attr == nil {
		return defaultValue
	}
	n.assertAttrType(attr, AttrInt)
	return int(attr.I)
}

// GetBoolAttrOr gets a boolean attribute (ONNX uses an int value of 0 or 1) if present or returns the
// given defaultValue.
func (n *Node) GetBoolAttrOr(name string, defaultValue bool) bool {
	defaultInt := 0
	if defaultValue {
		defaultInt = 1
	}
	return n.GetIntAttrOr(name, defaultInt) != 0
}

// GetFloatAttrOr gets a float attribute if present or returns the given defaultValue.
func (n *Node) GetFloatAttrOr(name string, defaultValue float32) float32 {
	attr := n.Attr(name)
	if attr == nil {
		return defaultValue
	}
	n.assertAttrType(attr, AttrFloat)
	return attr.F
}

// GetIntsAttrOr gets an integer list attribute if present or returns the given defaultValues.
// A single integer attribute is accepted as a list of one element.
func (n *Node) GetIntsAttrOr(name string, defaultValues []int) []int {
	attr := n.Attr(name)
	if attr == nil {
		return defaultValues
	}
	if attr.Type == AttrInt {
		return []int{int(attr.I)}
	}
	n.assertAttrType(attr, AttrInts)
	return sliceMap(attr.Ints, func(i int64) int { return int(i) })
}

// GetStringAttrOr gets a string attribute if present or returns the given defaultValue.
func (n *Node) GetStringAttrOr(name string, defaultValue string) string {
	attr := n.Attr(name)
	if attr == nil {
		return defaultValue
	}
	n.assertAttrType(attr, AttrString)
	return attr.S
}

// MustGetTensorAttr gets a tensor attribute.
func (n *Node) MustGetTensorAttr(name string) *tensors.Tensor {
	attr := n.MustGetAttr(name)
	n.assertAttrType(attr, AttrTensor)
	if attr.T == nil {
		exceptions.Panicf("ONNX %s has a nil tensor for attribute %q", n, name)
	}
	return attr.T
}

// sliceMap executes the given function sequentially for every element on in, and returns a mapped slice.
func sliceMap[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}
