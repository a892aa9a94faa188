// Package registry resolves configuration-declared identifier strings to
// registered provider and address-backend implementations. It replaces
// dynamic dotted-path loading with an explicit registration step: each
// implementation package registers a factory and a precomputed
// descriptor at init time, and resolution becomes a lookup.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kart-io/missivehub/pkg/errors"
	"github.com/kart-io/missivehub/pkg/provider"
)

// Kind distinguishes channel-dispatch providers from single-operation
// backends such as address verification.
type Kind int

const (
	KindProvider Kind = iota
	KindBackend
)

// Registration binds an identifier to a factory and its descriptor.
type Registration struct {
	Identifier string
	Kind       Kind
	Descriptor *provider.Descriptor
	Factory    provider.Factory
}

// Name returns the short human-readable name for the registration.
func (r *Registration) Name() string {
	return NameFromIdentifier(r.Identifier)
}

// Registry is an append-only mapping from identifier to registration.
// It doubles as the process-wide load cache: resolution of the same
// identifier always yields the same registration. Registration happens
// at init time; concurrent reads afterwards are safe.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Registration)}
}

// Default is the process-wide registry implementation packages register
// into from their init functions.
var Default = NewRegistry()

// Register adds a registration. It rejects duplicates, nil factories and
// descriptors, and dispatch providers with an empty supported-type set
// (backends are exempt, they expose one operation instead of channels).
func (r *Registry) Register(reg *Registration) error {
	if reg == nil || reg.Identifier == "" {
		return fmt.Errorf("registration requires an identifier")
	}
	if reg.Factory == nil {
		return fmt.Errorf("registration %s has no factory", reg.Identifier)
	}
	if reg.Descriptor == nil {
		return fmt.Errorf("registration %s has no descriptor", reg.Identifier)
	}
	if reg.Kind == KindProvider && len(reg.Descriptor.SupportedTypes()) == 0 {
		return fmt.Errorf("provider %s declares no supported channel types", reg.Identifier)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[reg.Identifier]; exists {
		return fmt.Errorf("identifier %s already registered", reg.Identifier)
	}
	r.entries[reg.Identifier] = reg
	return nil
}

// MustRegister panics on registration failure; meant for init functions
// where a failure is a programming error.
func (r *Registry) MustRegister(reg *Registration) {
	if err := r.Register(reg); err != nil {
		panic(err)
	}
}

// Resolve turns an identifier into its registration. It either returns a
// registration or a resolution error, never a partial value.
func (r *Registry) Resolve(identifier string) (*Registration, error) {
	if !strings.Contains(identifier, ".") {
		return nil, errors.New(errors.CodeInvalidIdentifier, errors.CategoryResolution,
			fmt.Sprintf("invalid identifier %q: expected \"<module-path>.<ImplementationName>\"", identifier))
	}

	r.mu.RLock()
	reg, ok := r.entries[identifier]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.CodeUnknownIdentifier, errors.CategoryResolution,
			fmt.Sprintf("no implementation registered for %q", identifier))
	}
	return reg, nil
}

// Identifiers returns every registered identifier, unordered.
func (r *Registry) Identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// Clear removes every registration. Only for test lifecycles; production
// code treats the registry as append-only.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*Registration)
}

// NameFromIdentifier derives a short display name from an identifier by
// string manipulation only, so it works even for identifiers that fail
// to resolve. The last-but-one path segment is the conventional short
// name; when that segment is a package grouping, the implementation name
// is used instead, with its conventional suffix stripped.
func NameFromIdentifier(identifier string) string {
	if identifier == "" {
		return "custom"
	}
	if !strings.Contains(identifier, ".") {
		return strings.ToLower(identifier)
	}

	parts := strings.Split(identifier, ".")
	name := strings.ToLower(parts[len(parts)-2])
	if name == "" || name == "providers" || name == "backends" || name == "address_backends" {
		class := parts[len(parts)-1]
		class = strings.TrimSuffix(class, "AddressBackend")
		class = strings.TrimSuffix(class, "Backend")
		class = strings.TrimSuffix(class, "Provider")
		name = strings.ToLower(class)
	}
	if name == "" {
		return "custom"
	}
	return name
}

// Register adds a registration to the default registry.
func Register(reg *Registration) error {
	return Default.Register(reg)
}

// MustRegister adds a registration to the default registry, panicking on
// failure.
func MustRegister(reg *Registration) {
	Default.MustRegister(reg)
}

// Resolve resolves an identifier against the default registry.
func Resolve(identifier string) (*Registration, error) {
	return Default.Resolve(identifier)
}
