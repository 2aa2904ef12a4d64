package onnx

import (
	"maps"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/support/sets"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// State of a Translator.
type State int

const (
	Pending State = iota
	Running
	Completed
	Failed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Running:
		return "Running"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	default:
		return "Invalid"
	}
}

// resolution is a memoized Resolve result.
type resolution struct {
	entry   *Entry
	version int
	rule    Rule
}

// Translator runs one translation of a Graph into a Backend.
//
// It starts Pending, and Run takes it to Completed or Failed. A Translator can only be run once: to translate
// again (e.g., after fixing the graph) create a new one. Different Translators can run concurrently, sharing
// the same Registry.
type Translator struct {
	registry *Registry
	backend  Backend

	allowDTypePromotion bool

	state State
	err   error
	graph *Graph
	env   *Environment

	// resolved caches the rule resolution per operator: the opset is fixed for the whole run.
	resolved map[string]resolution

	// static holds the values of tensors known at translation time: initializers and constants.
	static map[string]*tensors.Tensor
}

// NewTranslator creates a Translator into backend, using the DefaultRegistry.
func NewTranslator(backend Backend) *Translator {
	return &Translator{
		registry: DefaultRegistry,
		backend:  backend,
		env:      NewEnvironment(),
		resolved: make(map[string]resolution),
		static:   make(map[string]*tensors.Tensor),
	}
}

// WithRegistry configures the registry used to look up handlers. It returns the Translator itself, so calls
// can be chained.
func (t *Translator) WithRegistry(r *Registry) *Translator {
	t.registry = r
	return t
}

// WithDTypePromotion configures whether rules may convert operands of different dtypes to a common dtype.
// ONNX requires operands of most operators to have the same dtype, so by default (false) a mismatch is an error
// of the backend. It returns the Translator itself, so calls can be chained.
func (t *Translator) WithDTypePromotion(allow bool) *Translator {
	t.allowDTypePromotion = allow
	return t
}

// State returns the current state of the translator.
func (t *Translator) State() State { return t.state }

// Err returns the error that made the translation fail, or nil.
func (t *Translator) Err() error { return t.err }

// Environment returns the environment of the translation. After a failure, it holds the bindings of the nodes
// translated before the failing one.
func (t *Translator) Environment() *Environment { return t.env }

// Resolved returns the version of the rule selected for each operator translated so far.
func (t *Translator) Resolved() map[string]int {
	versions := make(map[string]int, len(t.resolved))
	for op, res := range t.resolved {
		versions[op] = res.version
	}
	return versions
}

// Run translates the graph nodes in order, given the backend tensors for the graph inputs.
//
// If g.Inputs is set, all of them must be given, except those with an initializer, and no other.
// Initializers not overridden by an input are created with the backend OpConstant.
//
// It returns the final environment, with the graph inputs, initializers and all node outputs bound.
// Errors at a node are returned as a *NodeError.
func (t *Translator) Run(g *Graph, inputs map[string]Tensor) (*Environment, error) {
	if t.state != Pending {
		return nil, errors.Wrapf(ErrTranslatorReused, "translator is %s", t.state)
	}
	t.state = Running
	t.graph = g
	if g == nil {
		return nil, t.fail(errors.New("cannot translate a nil graph"))
	}
	klog.V(1).Infof("onnx: translating graph %q (%d nodes, opset %d) into %s", g.Name, len(g.Nodes), g.Opset, t.backend.Name())

	if err := g.Validate(); err != nil {
		return nil, t.fail(err)
	}
	if err := t.bindInputs(g, inputs); err != nil {
		return nil, t.fail(err)
	}
	for ii, node := range g.Nodes {
		if err := t.convertNode(ii, node); err != nil {
			return nil, t.fail(err)
		}
	}
	t.state = Completed
	klog.V(1).Infof("onnx: graph %q translated, %d tensors bound", g.Name, t.env.Len())
	return t.env, nil
}

// fail transitions to Failed, recording err.
func (t *Translator) fail(err error) error {
	t.state = Failed
	t.err = err
	if t.graph == nil {
		klog.Warningf("onnx: translation failed: %v", err)
	} else {
		klog.Warningf("onnx: translation of graph %q failed: %v", t.graph.Name, err)
	}
	return err
}

// bindInputs binds the given inputs and the initializers, reporting any discrepancies with the graph inputs.
func (t *Translator) bindInputs(g *Graph, inputs map[string]Tensor) error {
	if len(g.Inputs) == 0 {
		for _, name := range slices.Sorted(maps.Keys(inputs)) {
			if err := t.env.Bind(name, inputs[name]); err != nil {
				return errors.WithMessagef(err, "binding graph input")
			}
		}
	} else {
		missingInputs := sets.Make[string]()
		unknownInputs := sets.Make[string]()
		graphInputs := sets.Make[string]()
		for _, name := range g.Inputs {
			graphInputs.Insert(name)
			value, found := inputs[name]
			if !found || value == nil {
				if _, hasDefault := g.Initializers[name]; !hasDefault {
					missingInputs.Insert(name)
				}
				continue
			}
			if err := t.env.Bind(name, value); err != nil {
				return errors.WithMessagef(err, "binding graph input")
			}
		}
		for name := range inputs {
			if !graphInputs.Has(name) {
				unknownInputs.Insert(name)
			}
		}
		if len(missingInputs) > 0 || len(unknownInputs) > 0 {
			return errors.Wrapf(ErrInvalidInputs, "graph %q: missing inputs=%q; unknown given inputs=%q", g.Name,
				slices.Sorted(maps.Keys(missingInputs)), slices.Sorted(maps.Keys(unknownInputs)))
		}
	}

	for _, name := range slices.Sorted(maps.Keys(g.Initializers)) {
		if t.env.Has(name) {
			// Input given overrides the initializer.
			continue
		}
		outputs, err := t.backend.Construct(OpConstant, nil, Params{"value": g.Initializers[name]})
		if err == nil && len(outputs) != 1 {
			err = errors.Errorf("backend returned %d outputs", len(outputs))
		}
		if err != nil {
			return errors.WithMessagef(err, "creating initializer %q", name)
		}
		if err = t.env.Bind(name, outputs[0]); err != nil {
			return errors.WithMessagef(err, "binding initializer")
		}
		t.static[name] = g.Initializers[name]
	}
	return nil
}

// resolve returns the entry and rule for the operator, memoized for the run.
func (t *Translator) resolve(op string) (resolution, error) {
	if res, found := t.resolved[op]; found {
		return res, nil
	}
	entry, err := t.registry.Lookup(op)
	if err != nil {
		return resolution{}, err
	}
	version, rule, err := Resolve(entry, t.graph.Opset)
	if err != nil {
		return resolution{entry: entry, version: -1}, err
	}
	res := resolution{entry: entry, version: version, rule: rule}
	t.resolved[op] = res
	return res, nil
}

// convertNode translates one node, and binds its outputs.
func (t *Translator) convertNode(index int, node *Node) error {
	nodeErr := func(kind error, version int, cause error) error {
		return &NodeError{Kind: kind, Index: index, Node: node, Opset: t.graph.Opset, Version: version, Cause: cause}
	}

	// Inputs: empty names are optional inputs not given.
	inputs := make([]Tensor, len(node.Inputs))
	for ii, name := range node.Inputs {
		if name == "" {
			continue
		}
		value, found := t.env.Get(name)
		if !found {
			return nodeErr(ErrNodeTranslation, -1, errors.Wrapf(ErrUnboundInput, "input #%d %q", ii, name))
		}
		inputs[ii] = value
	}

	res, err := t.resolve(node.OpType)
	if err != nil {
		if errors.Is(err, ErrUnknownOperator) {
			return nodeErr(ErrUnknownOperator, -1, nil)
		}
		return nodeErr(ErrNoApplicableVersion, -1, errors.WithMessagef(err, "registered versions %v", res.entry.versions))
	}
	klog.V(2).Infof("onnx: node #%d %s: using %q rule v%d (opset %d)", index, node, node.OpType, res.version, t.graph.Opset)

	ctx := &Context{
		Index:   index,
		Opset:   t.graph.Opset,
		Version: res.version,

		AllowDTypePromotion: t.allowDTypePromotion,

		node:    node,
		inputs:  inputs,
		env:     t.env,
		static:  t.static,
		backend: t.backend,
		entry:   res.entry,
	}
	var outputs []Tensor
	var ruleErr error
	err = exceptions.TryCatch[error](func() { outputs, ruleErr = res.rule(node, ctx) })
	if err == nil {
		err = ruleErr
	}
	if err != nil {
		return nodeErr(ErrNodeTranslation, res.version, err)
	}
	if len(outputs) != len(node.Outputs) {
		return nodeErr(ErrOutputArityMismatch, res.version,
			errors.Errorf("rule produced %d tensors for %d outputs", len(outputs), len(node.Outputs)))
	}

	// Check all outputs before binding any, so a failing node leaves no bindings behind.
	for ii, name := range node.Outputs {
		if name == "" {
			continue
		}
		if t.env.Has(name) || slices.Contains(node.Outputs[:ii], name) {
			return nodeErr(ErrRebind, res.version, errors.Wrapf(ErrRebind, "output #%d %q", ii, name))
		}
		if outputs[ii] == nil {
			return nodeErr(ErrNodeTranslation, res.version, errors.Errorf("rule produced a nil tensor for output #%d %q", ii, name))
		}
	}
	for ii, name := range node.Outputs {
		if name == "" {
			continue
		}
		if err := t.env.Bind(name, outputs[ii]); err != nil {
			return nodeErr(ErrRebind, res.version, err)
		}
		if value, found := ctx.staticOutputs[ii]; found {
			t.static[name] = value
		}
	}
	return nil
}

// Outputs returns the tensors bound to the given names, or to the graph outputs if no names are given.
// Typically called after Run completes.
func (t *Translator) Outputs(names ...string) ([]Tensor, error) {
	if len(names) == 0 && t.graph != nil {
		names = t.graph.Outputs
	}
	return t.env.Select(names...)
}
