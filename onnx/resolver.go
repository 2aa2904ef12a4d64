package onnx

import (
	"sort"

	"github.com/pkg/errors"
)

// Resolve selects the rule of the entry to use for a graph declaring the given opset: the one registered
// with the largest version not greater than opset.
//
// It fails with ErrNoApplicableVersion if the operator was only introduced after opset.
// It has no side effects, so results can be cached per (operator, opset).
func Resolve(entry *Entry, opset int) (version int, rule Rule, err error) {
	if opset < 0 {
		return -1, nil, errors.Wrapf(ErrNoApplicableVersion, "operator %q: invalid opset %d", entry.op, opset)
	}
	// Index of the first version > opset.
	idx := sort.SearchInts(entry.versions, opset+1)
	if idx == 0 {
		return -1, nil, errors.Wrapf(ErrNoApplicableVersion, "operator %q introduced in opset %d, graph declares opset %d",
			entry.op, entry.versions[0], opset)
	}
	version = entry.versions[idx-1]
	return version, entry.rules[version], nil
}
