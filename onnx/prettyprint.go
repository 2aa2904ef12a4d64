package onnx

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gomlx/gomlx/pkg/support/sets"
)

// String implements fmt.Stringer, and prints the node as `Name:OpType(inputs...) -> [outputs...]`.
func (n *Node) String() string {
	if n == nil {
		return "<nil node>"
	}
	var sb strings.Builder
	if n.Name != "" {
		sb.WriteString(n.Name)
		sb.WriteByte(':')
	}
	sb.WriteString(n.OpType)
	sb.WriteByte('(')
	for ii, input := range n.Inputs {
		if ii > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q", input)
	}
	if len(n.Attributes) > 0 {
		if len(n.Inputs) > 0 {
			sb.WriteString(", ")
		}
		for ii, attr := range n.Attributes {
			if ii > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(attr.String())
		}
	}
	fmt.Fprintf(&sb, ") -> %q", n.Outputs)
	return sb.String()
}

// String implements fmt.Stringer.
func (a *Attribute) String() string {
	switch a.Type {
	case AttrFloat:
		return fmt.Sprintf("%s=%g", a.Name, a.F)
	case AttrInt:
		return fmt.Sprintf("%s=%d", a.Name, a.I)
	case AttrString:
		return fmt.Sprintf("%s=%q", a.Name, a.S)
	case AttrTensor:
		if a.T == nil {
			return fmt.Sprintf("%s=<nil tensor>", a.Name)
		}
		return fmt.Sprintf("%s=%s", a.Name, a.T.Shape())
	case AttrFloats:
		return fmt.Sprintf("%s=%v", a.Name, a.Floats)
	case AttrInts:
		return fmt.Sprintf("%s=%v", a.Name, a.Ints)
	case AttrStrings:
		return fmt.Sprintf("%s=%q", a.Name, a.Strings)
	default:
		return fmt.Sprintf("%s=<%s>", a.Name, a.Type)
	}
}

// String implements fmt.Stringer, and pretty prints the graph summary.
func (g *Graph) String() string {
	var buf bytes.Buffer
	w := func(format string, args ...any) {
		if len(args) == 0 {
			buf.WriteString(format)
		} else {
			buf.WriteString(fmt.Sprintf(format, args...))
		}
	}
	w("ONNX Graph %q:\n", g.Name)
	w("\tOperator Set:\tv%d\n", g.Opset)
	w("\tInputs:\t%q\n", g.Inputs)
	w("\tOutputs:\t%q\n", g.Outputs)
	if len(g.Initializers) > 0 {
		w("\tInitializers:\t%q\n", slices.Sorted(maps.Keys(g.Initializers)))
	}
	w("\t# nodes:\t%d\n", len(g.Nodes))
	opTypesSet := sets.Make[string]()
	for _, n := range g.Nodes {
		opTypesSet.Insert(n.OpType)
	}
	w("\tOp types:\t%#v\n", slices.Sorted(maps.Keys(opTypesSet)))
	return buf.String()
}
