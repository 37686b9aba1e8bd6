// Package instantiator creates and classifies instances of a single managed
// type under its chosen representation.
//
// Instantiator is one closed type over a fixed set of variants (see Kind).
// Every variant is immutable after construction; Instantiate, IsInstance and
// IsSameClass neither lock nor mutate shared state and may be called from any
// number of goroutines.
package instantiator

import (
	"fmt"
	"reflect"

	"github.com/syssam/hydrate"
)

// TypeKey is the reserved key under which map instances carry the role name
// of their managed type. Attribute names must not collide with it.
const TypeKey = "$type$"

// Kind enumerates the instantiator variants.
type Kind uint8

// Instantiator variants.
const (
	Standard Kind = iota + 1
	Optimized
	Illegal
	Map
	Proxy
	Record
	Delegating
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case Standard:
		return "standard"
	case Optimized:
		return "optimized"
	case Illegal:
		return "illegal"
	case Map:
		return "map"
	case Proxy:
		return "proxy"
	case Record:
		return "record"
	case Delegating:
		return "delegating"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Layout distributes a value vector into an instance.
type Layout interface {
	Inject(instance any, values []any) error
}

// Factory is an injected zero-argument construction capability, typically
// produced by generated code.
type Factory func() any

// ProxyFactory returns a lazy proxy for an embeddable.
type ProxyFactory func() (any, error)

// Proxied is implemented by proxies. Classification uses the declared target
// type rather than the proxy's own runtime type.
type Proxied interface {
	ProxiedType() reflect.Type
}

// UserInstantiator is a custom instantiation strategy registered by the user.
type UserInstantiator interface {
	Instantiate(values []any, s *hydrate.Session) (any, error)
	ReturnedType() reflect.Type
}

// Instantiator turns value vectors into instances of one managed type.
type Instantiator struct {
	kind     Kind
	role     string
	typ      reflect.Type
	abstract bool
	layout   Layout

	// Standard
	ctor func() reflect.Value
	// Optimized
	factory   Factory
	intercept func(any) any
	// Proxy
	proxy ProxyFactory
	// Record
	record    reflect.Value
	arity     int
	recordErr bool
	// Delegating
	user UserInstantiator
}

// Option configures an Instantiator at construction.
type Option func(*Instantiator)

// WithLayout sets the layout used to distribute value vectors.
func WithLayout(l Layout) Option {
	return func(i *Instantiator) {
		i.layout = l
	}
}

// WithAbstract flags the mapped type as abstract.
func WithAbstract() Option {
	return func(i *Instantiator) {
		i.abstract = true
	}
}

// WithIntercept sets the post-construction hook of an optimized instantiator.
func WithIntercept(fn func(any) any) Option {
	return func(i *Instantiator) {
		i.intercept = fn
	}
}

// WithConstructor supplies an explicit zero-argument constructor function,
// func() T or func() *T, for a standard instantiator.
func WithConstructor(fn any) Option {
	return func(i *Instantiator) {
		i.ctor = constructorFunc(i.typ, fn)
	}
}

// Kind returns the variant.
func (i *Instantiator) Kind() Kind { return i.kind }

// Role returns the role name of the managed type.
func (i *Instantiator) Role() string { return i.role }

// MappedType returns the Go type instances are classified against. It is nil
// for map instantiators.
func (i *Instantiator) MappedType() reflect.Type { return i.typ }

// CanBeInstantiated reports whether Instantiate can ever succeed.
func (i *Instantiator) CanBeInstantiated() bool {
	return i.kind != Illegal
}

// Instantiate creates an instance from values. A nil values vector creates
// an empty instance.
func (i *Instantiator) Instantiate(values []any, s *hydrate.Session) (any, error) {
	switch i.kind {
	case Standard:
		return i.instantiateStandard(values)
	case Optimized:
		v := i.factory()
		if i.intercept != nil {
			v = i.intercept(v)
		}
		return i.inject(v, values)
	case Illegal:
		return nil, hydrate.NewInstantiationError(i.name(), hydrate.ReasonIllegalAttempt, nil)
	case Map:
		m := map[string]any{TypeKey: i.role}
		if values != nil && i.layout != nil {
			if err := i.layout.Inject(m, values); err != nil {
				return nil, err
			}
		}
		return m, nil
	case Proxy:
		p, err := i.proxy()
		if err != nil {
			return nil, hydrate.NewInstantiationError(i.name(), hydrate.ReasonConstructionFailed, err)
		}
		return i.inject(p, values)
	case Record:
		return i.instantiateRecord(values)
	case Delegating:
		return i.user.Instantiate(values, s)
	default:
		return nil, hydrate.NewInstantiationError(i.name(), hydrate.ReasonUnsupported, nil)
	}
}

// IsInstance reports whether obj is an instance of the managed type or of
// one of its subtypes.
func (i *Instantiator) IsInstance(obj any, _ *hydrate.Session) bool {
	switch i.kind {
	case Map:
		return i.isTagged(obj)
	case Proxy:
		return isInstanceOf(proxiedType(obj), i.typ)
	default:
		return isInstanceOf(reflect.TypeOf(obj), i.typ)
	}
}

// IsSameClass reports whether obj is an instance of exactly the managed type.
func (i *Instantiator) IsSameClass(obj any, _ *hydrate.Session) bool {
	switch i.kind {
	case Illegal:
		return false
	case Map:
		return i.isTagged(obj)
	case Proxy:
		return isSameType(proxiedType(obj), i.typ)
	default:
		return isSameType(reflect.TypeOf(obj), i.typ)
	}
}

func (i *Instantiator) isTagged(obj any) bool {
	m, ok := obj.(map[string]any)
	if !ok {
		return false
	}
	tag, ok := m[TypeKey].(string)
	return ok && tag == i.role
}

func (i *Instantiator) inject(v any, values []any) (any, error) {
	if values != nil && i.layout != nil {
		if err := i.layout.Inject(v, values); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (i *Instantiator) name() string {
	if i.role != "" {
		return i.role
	}
	if i.typ != nil {
		return i.typ.String()
	}
	return "<unknown>"
}

func (i *Instantiator) String() string {
	return fmt.Sprintf("%s instantiator for %s", i.kind, i.name())
}

// proxiedType returns the declared target of a proxy, or the runtime type.
func proxiedType(obj any) reflect.Type {
	if p, ok := obj.(Proxied); ok {
		if t := p.ProxiedType(); t != nil {
			return t
		}
	}
	return reflect.TypeOf(obj)
}

// isSameType reports whether rt (or the type it points to) is exactly t.
func isSameType(rt, t reflect.Type) bool {
	if rt == nil || t == nil {
		return false
	}
	if rt == t {
		return true
	}
	return rt.Kind() == reflect.Pointer && rt.Elem() == t
}

// isInstanceOf reports whether rt is t, implements interface t, or is a
// struct embedding t at any depth.
func isInstanceOf(rt, t reflect.Type) bool {
	if rt == nil || t == nil {
		return false
	}
	if t.Kind() == reflect.Interface {
		return rt.Implements(t)
	}
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	return embeds(rt, t, 0)
}

func embeds(rt, t reflect.Type, depth int) bool {
	if rt == t {
		return true
	}
	if rt.Kind() != reflect.Struct || depth > 16 {
		return false
	}
	for j := 0; j < rt.NumField(); j++ {
		f := rt.Field(j)
		if !f.Anonymous {
			continue
		}
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if embeds(ft, t, depth+1) {
			return true
		}
	}
	return false
}
