package onnx

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Graph is the input of a translation: the nodes in execution order and the opset they were written for.
//
// It is created by an external parser (or by hand, see NewNode) and it is not modified by the translation.
type Graph struct {
	Name string

	// Opset is the version of the default ONNX operator set the graph was written for.
	Opset int

	// Nodes in execution order: the inputs of a node must be produced by a previous node, or be graph
	// inputs or initializers.
	Nodes []*Node

	// Inputs and Outputs are the names of the graph inputs and outputs.
	// If Inputs is empty, any inputs given to Translator.Run are accepted.
	Inputs, Outputs []string

	// Initializers are constant values (usually the model weights). An initializer with the same name
	// as an input is the default value of that input.
	Initializers map[string]*tensors.Tensor
}

// NewGraph creates a graph for the given opset, with the given nodes.
func NewGraph(name string, opset int, nodes ...*Node) *Graph {
	return &Graph{Name: name, Opset: opset, Nodes: nodes}
}

// WithInputs sets the names of the graph inputs. It returns the graph itself, so calls can be chained.
func (g *Graph) WithInputs(names ...string) *Graph {
	g.Inputs = names
	return g
}

// WithOutputs sets the names of the graph outputs. It returns the graph itself, so calls can be chained.
func (g *Graph) WithOutputs(names ...string) *Graph {
	g.Outputs = names
	return g
}

// WithInitializer adds an initializer to the graph. It returns the graph itself, so calls can be chained.
func (g *Graph) WithInitializer(name string, value *tensors.Tensor) *Graph {
	if g.Initializers == nil {
		g.Initializers = make(map[string]*tensors.Tensor)
	}
	g.Initializers[name] = value
	return g
}

// Validate checks the static structure of the graph: a non-negative opset, operator names set, and no
// node without outputs. It doesn't check the order of the nodes: that is done during the translation.
func (g *Graph) Validate() error {
	if g.Opset < 0 {
		return errors.Errorf("graph %q has invalid opset %d", g.Name, g.Opset)
	}
	for ii, node := range g.Nodes {
		if node == nil {
			return errors.Errorf("graph %q node #%d is nil", g.Name, ii)
		}
		if node.OpType == "" {
			return errors.Errorf("graph %q node #%d %s has no operator type", g.Name, ii, node)
		}
		if len(node.Outputs) == 0 {
			return errors.Errorf("graph %q node #%d %s has no outputs", g.Name, ii, node)
		}
	}
	for name, value := range g.Initializers {
		if value == nil {
			return errors.Errorf("graph %q initializer %q is nil", g.Name, name)
		}
	}
	return nil
}
