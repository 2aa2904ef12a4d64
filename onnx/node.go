package onnx

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Node is one instruction of the graph: an operator applied to named inputs, producing named outputs.
//
// An empty input name is an optional input not given, an empty output name an optional output not used.
// Nodes are owned by the Graph and are never modified by the translation.
type Node struct {
	// Name is optional, it is only used in error messages.
	Name string

	// OpType is the operator name, the key used to look up the Registry.
	OpType string

	Inputs, Outputs []string

	Attributes []*Attribute
}

// NewNode creates a Node with the given operator, inputs, outputs and attributes.
func NewNode(opType string, inputs, outputs []string, attributes ...*Attribute) *Node {
	return &Node{OpType: opType, Inputs: inputs, Outputs: outputs, Attributes: attributes}
}

// WithName sets the node name and returns the node itself, so it can be chained with NewNode.
func (n *Node) WithName(name string) *Node {
	n.Name = name
	return n
}

// AttributeType of an Attribute, with the same values used by ONNX AttributeProto.
type AttributeType int

const (
	AttrUndefined AttributeType = 0
	AttrFloat     AttributeType = 1
	AttrInt       AttributeType = 2
	AttrString    AttributeType = 3
	AttrTensor    AttributeType = 4
	AttrFloats    AttributeType = 6
	AttrInts      AttributeType = 7
	AttrStrings   AttributeType = 8
)

var attributeTypeNames = map[AttributeType]string{
	AttrUndefined: "UNDEFINED",
	AttrFloat:     "FLOAT",
	AttrInt:       "INT",
	AttrString:    "STRING",
	AttrTensor:    "TENSOR",
	AttrFloats:    "FLOATS",
	AttrInts:      "INTS",
	AttrStrings:   "STRINGS",
}

// String implements fmt.Stringer.
func (t AttributeType) String() string {
	if name, found := attributeTypeNames[t]; found {
		return name
	}
	return "UNKNOWN"
}

// Attribute is a named static value attached to a Node. Only the field matching Type is set.
type Attribute struct {
	Name string
	Type AttributeType

	F       float32
	I       int64
	S       string
	T       *tensors.Tensor
	Floats  []float32
	Ints    []int64
	Strings []string
}

// IntAttr creates an integer attribute.
func IntAttr(name string, value int64) *Attribute {
	return &Attribute{Name: name, Type: AttrInt, I: value}
}

// IntsAttr creates an integer list attribute.
func IntsAttr(name string, values ...int64) *Attribute {
	return &Attribute{Name: name, Type: AttrInts, Ints: values}
}

// FloatAttr creates a float attribute.
func FloatAttr(name string, value float32) *Attribute {
	return &Attribute{Name: name, Type: AttrFloat, F: value}
}

// FloatsAttr creates a float list attribute.
func FloatsAttr(name string, values ...float32) *Attribute {
	return &Attribute{Name: name, Type: AttrFloats, Floats: values}
}

// StringAttr creates a string attribute.
func StringAttr(name, value string) *Attribute {
	return &Attribute{Name: name, Type: AttrString, S: value}
}

// TensorAttr creates a tensor attribute.
func TensorAttr(name string, value *tensors.Tensor) *Attribute {
	return &Attribute{Name: name, Type: AttrTensor, T: value}
}
