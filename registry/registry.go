// Package registry holds the named strategies a metamodel is built with:
// custom property accessors, user instantiators, discriminator strategies,
// record constructors, optimizer and proxy factories, and the Go types bound
// to role names.
//
// A Registry is typically filled in init functions (see the code emitted by
// compiler/gen) and handed to metamodel.New. It is safe for concurrent use,
// although lookups after the metamodel is built are the common case.
package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/syssam/hydrate"
	"github.com/syssam/hydrate/boot"
	"github.com/syssam/hydrate/discriminator"
	"github.com/syssam/hydrate/instantiator"
)

// AccessorFactory creates the access strategy for attribute attr of owner.
type AccessorFactory func(attr string, owner reflect.Type) (boot.Accessor, error)

// Registry is a set of name tables. The zero value is not usable; use New.
type Registry struct {
	mu            sync.RWMutex
	accessors     map[string]AccessorFactory
	instantiators map[string]instantiator.UserInstantiator
	discriminator map[string]discriminator.Strategy
	constructors  map[string][]any
	factories     map[string]instantiator.Factory
	proxies       map[string]instantiator.ProxyFactory
	types         map[string]reflect.Type
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		accessors:     make(map[string]AccessorFactory),
		instantiators: make(map[string]instantiator.UserInstantiator),
		discriminator: make(map[string]discriminator.Strategy),
		constructors:  make(map[string][]any),
		factories:     make(map[string]instantiator.Factory),
		proxies:       make(map[string]instantiator.ProxyFactory),
		types:         make(map[string]reflect.Type),
	}
}

// register adds v under name to table m. Empty names, nil values and
// duplicates are configuration errors.
func register[V any](r *Registry, m map[string]V, table, name string, v V) error {
	if name == "" {
		return hydrate.NewConfigError("", table, nil, "empty name")
	}
	if rv := reflect.ValueOf(v); !rv.IsValid() || (isNillable(rv.Kind()) && rv.IsNil()) {
		return hydrate.NewConfigError(name, table, nil, "nil value")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := m[name]; ok {
		return hydrate.NewConfigError(name, table, name, "already registered")
	}
	m[name] = v
	return nil
}

func lookup[V any](r *Registry, m map[string]V, name string) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := m[name]
	return v, ok
}

func isNillable(k reflect.Kind) bool {
	switch k {
	case reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice, reflect.Chan:
		return true
	}
	return false
}

// RegisterAccessor registers a named property accessor. The builtin names
// field, property, map and mixed are reserved.
func (r *Registry) RegisterAccessor(name string, f AccessorFactory) error {
	switch name {
	case "field", "property", "map", "mixed":
		return hydrate.NewConfigError(name, "accessor", name, "reserved accessor name")
	}
	return register(r, r.accessors, "accessor", name, f)
}

// Accessor returns the accessor factory registered under name.
func (r *Registry) Accessor(name string) (AccessorFactory, bool) {
	return lookup(r, r.accessors, name)
}

// RegisterInstantiator registers a named user instantiator.
func (r *Registry) RegisterInstantiator(name string, u instantiator.UserInstantiator) error {
	return register(r, r.instantiators, "instantiator", name, u)
}

// Instantiator returns the user instantiator registered under name.
func (r *Registry) Instantiator(name string) (instantiator.UserInstantiator, bool) {
	return lookup(r, r.instantiators, name)
}

// RegisterDiscriminator registers a named discriminator strategy. The
// builtin strategy names are reserved.
func (r *Registry) RegisterDiscriminator(name string, s discriminator.Strategy) error {
	switch name {
	case boot.DiscriminatorFullName, boot.DiscriminatorShortName, boot.DiscriminatorExplicit:
		return hydrate.NewConfigError(name, "discriminator", name, "reserved discriminator name")
	}
	return register(r, r.discriminator, "discriminator", name, s)
}

// Discriminator returns the discriminator strategy registered under name.
func (r *Registry) Discriminator(name string) (discriminator.Strategy, bool) {
	return lookup(r, r.discriminator, name)
}

// RegisterConstructors adds candidate record constructors for role. Repeated
// calls append; candidates are tried in registration order.
func (r *Registry) RegisterConstructors(role string, fns ...any) error {
	if role == "" {
		return hydrate.NewConfigError("", "constructor", nil, "empty name")
	}
	for i, fn := range fns {
		if fv := reflect.ValueOf(fn); fv.Kind() != reflect.Func || fv.IsNil() {
			return hydrate.NewConfigError(role, "constructor", i, fmt.Sprintf("%T is not a function", fn))
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[role] = append(r.constructors[role], fns...)
	return nil
}

// Constructors returns the record constructor candidates of role.
func (r *Registry) Constructors(role string) []any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]any(nil), r.constructors[role]...)
}

// RegisterFactory registers the optimizer factory of role.
func (r *Registry) RegisterFactory(role string, f instantiator.Factory) error {
	return register(r, r.factories, "factory", role, f)
}

// MustRegisterFactory is like RegisterFactory but panics on error.
// It is meant for generated init functions.
func (r *Registry) MustRegisterFactory(role string, f instantiator.Factory) {
	if err := r.RegisterFactory(role, f); err != nil {
		panic(err)
	}
}

// Factory returns the optimizer factory of role.
func (r *Registry) Factory(role string) (instantiator.Factory, bool) {
	return lookup(r, r.factories, role)
}

// RegisterProxyFactory registers the proxy factory of an embeddable role.
func (r *Registry) RegisterProxyFactory(role string, f instantiator.ProxyFactory) error {
	return register(r, r.proxies, "proxy", role, f)
}

// ProxyFactory returns the proxy factory of role.
func (r *Registry) ProxyFactory(role string) (instantiator.ProxyFactory, bool) {
	return lookup(r, r.proxies, role)
}

// RegisterType binds role to a Go type. Pointer types are stored by their
// element type.
func (r *Registry) RegisterType(role string, typ reflect.Type) error {
	if typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ == nil {
		return hydrate.NewConfigError(role, "type", nil, "nil value")
	}
	return register(r, r.types, "type", role, typ)
}

// MustRegisterType is like RegisterType but panics on error.
func (r *Registry) MustRegisterType(role string, typ reflect.Type) {
	if err := r.RegisterType(role, typ); err != nil {
		panic(err)
	}
}

// Type returns the Go type bound to role.
func (r *Registry) Type(role string) (reflect.Type, bool) {
	return lookup(r, r.types, role)
}

// Roles returns the sorted roles with a bound Go type.
func (r *Registry) Roles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roles := make([]string, 0, len(r.types))
	for role := range r.types {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// RegisterTypeOf binds role to T.
func RegisterTypeOf[T any](r *Registry, role string) error {
	return r.RegisterType(role, reflect.TypeFor[T]())
}
