package onnx

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Errors returned by the registry and the translator. Test for them with errors.Is: the returned errors
// wrap them with the context of the failure (operator, node, versions).
var (
	// ErrUnknownOperator is returned when no handler is registered for an operator.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrNoApplicableVersion is returned when all rules of an operator were introduced after the graph opset.
	ErrNoApplicableVersion = errors.New("no applicable opset version")

	// ErrOutputArityMismatch is returned when a rule produces a number of tensors different from the
	// number of node outputs.
	ErrOutputArityMismatch = errors.New("output arity mismatch")

	// ErrRebind is returned when a tensor name is bound twice in the same translation.
	ErrRebind = errors.New("tensor name already bound")

	// ErrNodeTranslation wraps any error raised (or thrown) by a rule.
	ErrNodeTranslation = errors.New("node translation failed")

	// ErrUnboundInput is returned when a node input names a tensor not produced yet.
	ErrUnboundInput = errors.New("input not bound")

	// ErrDuplicateRegistration is returned when registering a second handler for an operator.
	ErrDuplicateRegistration = errors.New("duplicate handler registration")

	// ErrMixinConflict is returned when two mixins of a handler define the same helper differently.
	ErrMixinConflict = errors.New("mixin conflict")

	// ErrRegistryFrozen is returned when registering a handler after translations started using the registry.
	ErrRegistryFrozen = errors.New("registry is frozen")

	// ErrTranslatorReused is returned when Translator.Run is called more than once.
	ErrTranslatorReused = errors.New("translator already used")

	// ErrInvalidInputs is returned when the inputs given to Translator.Run don't match the graph inputs.
	ErrInvalidInputs = errors.New("invalid graph inputs")
)

// NodeError is the error returned by Translator.Run for failures at a given node.
//
// It matches (errors.Is) its Kind, one of ErrUnknownOperator, ErrNoApplicableVersion, ErrOutputArityMismatch,
// ErrRebind or ErrNodeTranslation, and its Cause, if any.
type NodeError struct {
	Kind error

	// Index of the node in Graph.Nodes.
	Index int
	Node  *Node

	// Opset declared by the graph, and Version of the rule selected for the node, or -1 if not resolved.
	Opset, Version int

	Cause error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%v: node #%d %s", e.Kind, e.Index, e.Node)
	if e.Version >= 0 {
		fmt.Fprintf(&sb, " (rule v%d, opset %d)", e.Version, e.Opset)
	} else {
		fmt.Fprintf(&sb, " (opset %d)", e.Opset)
	}
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}
	return sb.String()
}

// Unwrap returns the Kind and the Cause of the error.
func (e *NodeError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}
