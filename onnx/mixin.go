package onnx

import (
	"github.com/pkg/errors"
)

// Helper is a routine contributed by a Mixin, shared by the rules of all handlers composing the mixin.
type Helper func(ctx *Context, inputs []Tensor) ([]Tensor, error)

// Mixin is a named bundle of helpers that handlers compose, instead of each handler re-implementing them.
//
// A helper belongs to the mixin that defines it: composing two different mixins that define the same helper
// name fails with ErrMixinConflict, even if the functions look the same. Composing the same *Mixin twice is fine.
type Mixin struct {
	Name    string
	Helpers map[string]Helper
}

// composeMixins merges the helpers of the mixins, in order.
func composeMixins(op string, mixins []*Mixin) (helpers map[string]Helper, names []string, err error) {
	helpers = make(map[string]Helper)
	origin := make(map[string]*Mixin)
	seen := make(map[*Mixin]bool, len(mixins))
	for _, mixin := range mixins {
		if mixin == nil {
			return nil, nil, errors.Errorf("handler %q composes a nil mixin", op)
		}
		if seen[mixin] {
			continue
		}
		seen[mixin] = true
		names = append(names, mixin.Name)
		for helperName, helper := range mixin.Helpers {
			if helper == nil {
				return nil, nil, errors.Errorf("mixin %q of handler %q has a nil helper %q", mixin.Name, op, helperName)
			}
			if previous, found := origin[helperName]; found {
				return nil, nil, errors.Wrapf(ErrMixinConflict, "handler %q: helper %q defined by mixins %q and %q",
					op, helperName, previous.Name, mixin.Name)
			}
			helpers[helperName] = helper
			origin[helperName] = mixin
		}
	}
	return helpers, names, nil
}
