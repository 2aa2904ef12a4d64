// Package onnx lowers graphs of ONNX operators, declared at a single opset version, into operators of a
// target tensor backend.
//
//   - Graph: the nodes to translate, in execution order, plus the opset version they were written for.
//   - Registry: maps an operator name to a Handler, a family of rules keyed by the opset version that
//     introduced them. Handlers are registered once (usually from init functions) and the registry is frozen
//     on first use.
//   - Resolve: picks, for an operator and a graph opset, the rule with the largest version not newer than
//     the graph.
//   - Translator: walks the graph nodes in order, invoking the resolved rules and binding their outputs into
//     an Environment, which maps tensor names to backend tensor handles.
//
// The package doesn't implement any kernel: rules call Backend.Construct to create the backend operations.
// See package togomlx for a backend that builds GoMLX graphs, and package handlers for the built-in
// operator families.
package onnx

import (
	"github.com/pkg/errors"
)

// Translate runs a fresh Translator over g using the DefaultRegistry and returns the handles of
// g.Outputs, in order.
//
// For more control (a different registry, inspecting the environment on failure) use NewTranslator.
func Translate(backend Backend, g *Graph, inputs map[string]Tensor) ([]Tensor, error) {
	t := NewTranslator(backend)
	if _, err := t.Run(g, inputs); err != nil {
		return nil, err
	}
	outputs, err := t.Outputs()
	if err != nil {
		return nil, errors.WithMessagef(err, "onnx.Translate(%q)", g.Name)
	}
	return outputs, nil
}
