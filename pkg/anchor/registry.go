package anchor

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/isolink-io/isolink/pkg/linker"
)

// KindConstant is the only kind registered out of the box. Other kinds
// (notably "embedding") are registered by the packages that can build them.
const KindConstant = "constant"

// ErrUnknownKind is returned by Build for kinds no factory claims.
var ErrUnknownKind = errors.New("unknown activation kind")

// Registry maps capability kinds to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in kinds registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.factories[KindConstant] = func(spec Spec) (linker.Activation, error) {
		return Constant(spec.Score), nil
	}
	return r
}

// Register adds a factory for kind. Re-registering a kind is an error.
func (r *Registry) Register(kind string, f Factory) error {
	if kind == "" {
		return fmt.Errorf("activation kind must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("activation kind %q already registered", kind)
	}
	r.factories[kind] = f
	return nil
}

// Build constructs the activation a spec describes. An empty kind yields a nil
// activation, which the linker treats as an inert anchor.
func (r *Registry) Build(spec Spec) (linker.Activation, error) {
	if spec.Kind == "" {
		return nil, nil
	}
	r.mu.RLock()
	f, ok := r.factories[spec.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, spec.Kind)
	}
	return f(spec)
}

// Kinds returns the registered kind names, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
