package onnx

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Entry is what the Registry holds for one operator: its versioned rules and composed mixin helpers.
// It is immutable once registered.
type Entry struct {
	op        string
	handler   *Handler
	versions  []int // Sorted, unique.
	rules     map[int]Rule
	helpers   map[string]Helper
	mixins    []string
	defaultOp OpKind
}

// Op returns the operator name of the entry.
func (e *Entry) Op() string { return e.op }

// Versions returns the sorted opset versions with a registered rule.
func (e *Entry) Versions() []int { return slices.Clone(e.versions) }

// Mixins returns the names of the mixins composed by the handler.
func (e *Entry) Mixins() []string { return slices.Clone(e.mixins) }

// Registry maps operator names to their handlers.
//
// It is populated once, before any translation, and frozen on the first Lookup: after that it is read-only,
// and can be shared by concurrent translations without locking.
type Registry struct {
	mu      sync.Mutex
	frozen  atomic.Bool
	entries map[string]*Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// DefaultRegistry is the registry used by NewTranslator. The built-in handlers (package handlers) register
// themselves here.
var DefaultRegistry = NewRegistry()

// MustRegister registers the handler in the DefaultRegistry, and panics if it fails.
// It is meant to be called from init functions.
func MustRegister(h *Handler) {
	if err := DefaultRegistry.Register(h); err != nil {
		panic(err)
	}
}

// Register the handler for h.Op.
//
// It fails with ErrDuplicateRegistration if a different handler is already registered for the operator
// (use Override instead), with ErrMixinConflict if the handler mixins conflict, and with ErrRegistryFrozen
// if translations already started using the registry. Registering the same handler twice is a no-op.
func (r *Registry) Register(h *Handler) error {
	return r.register(h, false)
}

// Override registers the handler for h.Op, replacing any previously registered handler.
func (r *Registry) Override(h *Handler) error {
	return r.register(h, true)
}

func (r *Registry) register(h *Handler, override bool) error {
	if h == nil {
		return errors.New("cannot register a nil handler")
	}
	entry, err := newEntry(h)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		return errors.Wrapf(ErrRegistryFrozen, "registering handler for %q", h.Op)
	}
	if previous, found := r.entries[h.Op]; found && !override {
		if previous.handler == h {
			return nil
		}
		return errors.Wrapf(ErrDuplicateRegistration, "operator %q already has a handler (versions %v)", h.Op, previous.versions)
	}
	r.entries[h.Op] = entry
	klog.V(3).Infof("onnx: registered handler for %q, versions %v", h.Op, entry.versions)
	return nil
}

// newEntry validates the handler and builds its registry entry.
func newEntry(h *Handler) (*Entry, error) {
	if h.Op == "" {
		return nil, errors.New("handler has no operator name")
	}
	if len(h.Versions) == 0 {
		return nil, errors.Errorf("handler for %q has no versioned rules", h.Op)
	}
	for version, rule := range h.Versions {
		if version < 0 {
			return nil, errors.Errorf("handler for %q has negative version %d", h.Op, version)
		}
		if rule == nil {
			return nil, errors.Errorf("handler for %q has a nil rule for version %d", h.Op, version)
		}
	}
	helpers, mixinNames, err := composeMixins(h.Op, h.Mixins)
	if err != nil {
		return nil, err
	}
	return &Entry{
		op:        h.Op,
		handler:   h,
		versions:  slices.Sorted(maps.Keys(h.Versions)),
		rules:     maps.Clone(h.Versions),
		helpers:   helpers,
		mixins:    mixinNames,
		defaultOp: h.DefaultOp,
	}, nil
}

// Freeze makes the registry read-only. It is called by the first Lookup, and it is safe to call more than once.
func (r *Registry) Freeze() {
	if r.frozen.Load() {
		return
	}
	r.mu.Lock()
	r.frozen.Store(true)
	r.mu.Unlock()
}

// Frozen returns whether the registry is frozen.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Lookup returns the entry for the operator, or an error matching ErrUnknownOperator.
// It freezes the registry.
func (r *Registry) Lookup(op string) (*Entry, error) {
	r.Freeze()
	entry, found := r.entries[op]
	if !found {
		return nil, errors.Wrapf(ErrUnknownOperator, "operator %q", op)
	}
	return entry, nil
}

// Operators returns the sorted names of the registered operators.
func (r *Registry) Operators() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.entries))
}
