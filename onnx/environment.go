package onnx

import (
	"slices"

	"github.com/pkg/errors"
)

// Environment maps tensor names to the backend tensors produced so far in a translation.
//
// Names are bound only once. An Environment belongs to one translation and is not safe for concurrent use.
type Environment struct {
	bindings map[string]Tensor
	order    []string
}

// NewEnvironment creates an empty environment.
func NewEnvironment() *Environment {
	return &Environment{bindings: make(map[string]Tensor)}
}

// Get returns the tensor bound to name. The empty name (an optional input not given) and names not bound
// yet are reported as absent.
func (e *Environment) Get(name string) (Tensor, bool) {
	if name == "" {
		return nil, false
	}
	t, found := e.bindings[name]
	return t, found
}

// Has returns whether name is bound.
func (e *Environment) Has(name string) bool {
	_, found := e.Get(name)
	return found
}

// Bind binds name to the tensor. It fails with ErrRebind if name is already bound, even to the same tensor.
func (e *Environment) Bind(name string, t Tensor) error {
	if name == "" {
		return errors.New("cannot bind a tensor to an empty name")
	}
	if t == nil {
		return errors.Errorf("cannot bind %q to a nil tensor", name)
	}
	if _, found := e.bindings[name]; found {
		return errors.Wrapf(ErrRebind, "tensor %q", name)
	}
	e.bindings[name] = t
	e.order = append(e.order, name)
	return nil
}

// Len returns the number of bound names.
func (e *Environment) Len() int { return len(e.bindings) }

// Names returns the bound names, in the order they were bound.
func (e *Environment) Names() []string { return slices.Clone(e.order) }

// Select returns the tensors bound to the given names, in order. It fails if any of them is not bound.
func (e *Environment) Select(names ...string) ([]Tensor, error) {
	tensors := make([]Tensor, len(names))
	var missing []string
	for ii, name := range names {
		t, found := e.Get(name)
		if !found {
			missing = append(missing, name)
			continue
		}
		tensors[ii] = t
	}
	if len(missing) > 0 {
		return nil, errors.Errorf("tensors %q not found", missing)
	}
	return tensors, nil
}
