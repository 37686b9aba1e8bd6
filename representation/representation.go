// Package representation builds, once per managed type, the strategy that
// decides how instances are physically realized: the bound instantiator,
// the property access of every attribute and the optional proxy factory.
//
// A Strategy is immutable once built and may be shared by any number of
// goroutines.
package representation

import (
	"log/slog"
	"reflect"

	"github.com/syssam/hydrate"
	"github.com/syssam/hydrate/boot"
	"github.com/syssam/hydrate/instantiator"
	"github.com/syssam/hydrate/property"
	"github.com/syssam/hydrate/registry"
)

// Strategy is the representation of one managed type.
type Strategy struct {
	mode     boot.Mode
	inst     *instantiator.Instantiator
	accesses []property.Access
	index    map[string]int
	layout   *Layout
	proxy    instantiator.ProxyFactory
}

// Option configures Build.
type Option func(*config) error

type config struct {
	registry     *registry.Registry
	optimizer    instantiator.Factory
	intercept    func(any) any
	proxy        instantiator.ProxyFactory
	constructors []any
	attributes   []*boot.Attribute
	logger       *slog.Logger
}

// WithRegistry sets the registry named strategies and factories are
// looked up in.
func WithRegistry(r *registry.Registry) Option {
	return func(c *config) error {
		c.registry = r
		return nil
	}
}

// WithOptimizer sets the optimizer factory, taking precedence over one
// registered for the type.
func WithOptimizer(f instantiator.Factory) Option {
	return func(c *config) error {
		if f == nil {
			return hydrate.NewConfigError("", "optimizer", nil, "factory cannot be nil")
		}
		c.optimizer = f
		return nil
	}
}

// WithIntercept sets the hook applied to instances produced by the
// optimizer factory.
func WithIntercept(fn func(any) any) Option {
	return func(c *config) error {
		c.intercept = fn
		return nil
	}
}

// WithProxyFactory sets the lazy proxy factory of an embeddable.
func WithProxyFactory(f instantiator.ProxyFactory) Option {
	return func(c *config) error {
		if f == nil {
			return hydrate.NewConfigError("", "proxy", nil, "factory cannot be nil")
		}
		c.proxy = f
		return nil
	}
}

// WithConstructors adds record constructor candidates, tried before the
// ones in the registry.
func WithConstructors(fns ...any) Option {
	return func(c *config) error {
		c.constructors = append(c.constructors, fns...)
		return nil
	}
}

// WithAttributes overrides the attribute list of the descriptor, as when
// inherited attributes are prepended by the metamodel.
func WithAttributes(attrs []*boot.Attribute) Option {
	return func(c *config) error {
		c.attributes = attrs
		return nil
	}
}

// WithLogger sets the logger for build diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) error {
		if l == nil {
			return hydrate.NewConfigError("", "logger", nil, "logger cannot be nil")
		}
		c.logger = l
		return nil
	}
}

// Build selects the representation of t. goType is the Go type of native
// and record types and may be nil for map types and types with a user
// instantiator.
//
// The instantiator is chosen by the first matching rule: map mode, a named
// user instantiator, record mode, an abstract or non-instantiable entity
// (illegal), a proxied embeddable with a proxy factory, an available
// optimizer factory, and finally reflective construction.
func Build(t *boot.Type, goType reflect.Type, opts ...Option) (*Strategy, error) {
	if t == nil {
		return nil, hydrate.NewConfigError("", "type", nil, "nil type descriptor")
	}
	c := &config{logger: slog.Default(), attributes: t.Attributes}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if goType != nil && goType.Kind() == reflect.Pointer {
		goType = goType.Elem()
	}
	b := &builder{t: t, goType: goType, c: c}
	s, err := b.build()
	if err != nil {
		return nil, err
	}
	c.logger.Debug("representation selected",
		"type", t.Name, "mode", string(s.mode), "instantiator", s.inst.Kind().String(), "attributes", len(s.accesses))
	return s, nil
}

type builder struct {
	t      *boot.Type
	goType reflect.Type
	c      *config
}

func (b *builder) build() (*Strategy, error) {
	t, c := b.t, b.c
	s := &Strategy{mode: t.Mode}
	if t.Mode == boot.ModeMap {
		if err := b.mapAccesses(s); err != nil {
			return nil, err
		}
		inst, err := instantiator.NewMap(t.Name, instantiator.WithLayout(s.layout))
		if err != nil {
			return nil, err
		}
		s.inst = inst
		return s, nil
	}
	if t.Instantiator != "" {
		return b.delegating(s)
	}
	if b.goType == nil {
		return nil, hydrate.NewConfigError(t.Name, "go_type", nil, "no Go type bound to a native type")
	}
	// Attributes of abstract types are only reached through their subtypes.
	lenient := t.Abstract || t.NotInstantiable || b.goType.Kind() == reflect.Interface
	if err := b.accesses(s, b.goType, lenient); err != nil {
		return nil, err
	}
	switch {
	case t.Mode == boot.ModeRecord:
		s.inst = b.record()
	case t.Kind == boot.KindEntity && (t.Abstract || t.NotInstantiable):
		s.inst = instantiator.NewIllegal(t.Name, b.goType)
	case t.Kind == boot.KindEmbeddable && t.Proxy && b.proxyFactory() != nil:
		s.proxy = b.proxyFactory()
		s.inst = instantiator.NewProxy(t.Name, b.goType, s.proxy, instantiator.WithLayout(s.layout))
	case b.optimizer() != nil:
		s.inst = instantiator.NewOptimized(t.Name, b.goType, b.optimizer(),
			instantiator.WithLayout(s.layout), instantiator.WithIntercept(c.intercept))
	default:
		if t.Proxy {
			c.logger.Debug("no proxy factory, using reflective construction", "type", t.Name)
		}
		opts := []instantiator.Option{instantiator.WithLayout(s.layout)}
		if t.Abstract {
			opts = append(opts, instantiator.WithAbstract())
		}
		s.inst = instantiator.NewStandard(t.Name, b.goType, opts...)
	}
	return s, nil
}

func (b *builder) delegating(s *Strategy) (*Strategy, error) {
	t := b.t
	if b.c.registry == nil {
		return nil, hydrate.NewConfigError(t.Name, "instantiator", t.Instantiator, "unknown instantiator")
	}
	user, ok := b.c.registry.Instantiator(t.Instantiator)
	if !ok {
		return nil, hydrate.NewConfigError(t.Name, "instantiator", t.Instantiator, "unknown instantiator")
	}
	inst, err := instantiator.NewDelegating(t.Name, user)
	if err != nil {
		return nil, err
	}
	owner := b.goType
	if owner == nil {
		owner = inst.MappedType()
	}
	if err := b.accesses(s, owner, false); err != nil {
		return nil, err
	}
	s.inst = inst
	return s, nil
}

func (b *builder) record() *instantiator.Instantiator {
	components := make([]reflect.Type, len(b.c.attributes))
	for i, a := range b.c.attributes {
		if f, err := property.NewField(b.goType, a.Name, a.GoName); err == nil {
			components[i] = f.Member().Type
		}
	}
	candidates := append([]any(nil), b.c.constructors...)
	if b.c.registry != nil {
		candidates = append(candidates, b.c.registry.Constructors(b.t.Name)...)
	}
	return instantiator.NewRecord(b.t.Name, b.goType, components, candidates...)
}

func (b *builder) proxyFactory() instantiator.ProxyFactory {
	if b.c.proxy != nil {
		return b.c.proxy
	}
	if b.c.registry != nil {
		if f, ok := b.c.registry.ProxyFactory(b.t.Name); ok {
			return f
		}
	}
	return nil
}

func (b *builder) optimizer() instantiator.Factory {
	if b.c.optimizer != nil {
		return b.c.optimizer
	}
	if b.c.registry != nil {
		if f, ok := b.c.registry.Factory(b.t.Name); ok {
			return f
		}
	}
	return nil
}

// accesses resolves the property access of every attribute against owner.
// When lenient, unresolvable attributes are left out.
func (b *builder) accesses(s *Strategy, owner reflect.Type, lenient bool) error {
	var errs []error
	for _, a := range b.c.attributes {
		acc, err := property.Resolve(a, owner, b.c.registry)
		switch {
		case err != nil && lenient:
			b.c.logger.Debug("attribute not accessible on abstract type", "type", b.t.Name, "attribute", a.Name)
			continue
		case err != nil:
			errs = append(errs, err)
			continue
		}
		s.accesses = append(s.accesses, acc)
	}
	if err := hydrate.NewAggregateError(errs...); err != nil {
		return err
	}
	s.finish(b.t.Name, false)
	return nil
}

// mapAccesses binds every attribute to its map key.
func (b *builder) mapAccesses(s *Strategy) error {
	var errs []error
	for _, a := range b.c.attributes {
		acc, err := property.NewMapKey(a.Name)
		if err != nil {
			errs = append(errs, hydrate.NewConfigError(b.t.Name, a.Name, nil, "attribute name collides with the reserved type key"))
			continue
		}
		s.accesses = append(s.accesses, acc)
	}
	if err := hydrate.NewAggregateError(errs...); err != nil {
		return err
	}
	s.finish(b.t.Name, true)
	return nil
}

func (s *Strategy) finish(role string, keepNil bool) {
	s.index = make(map[string]int, len(s.accesses))
	for i, a := range s.accesses {
		s.index[a.Name()] = i
	}
	s.layout = NewLayout(role, s.accesses)
	s.layout.keepNil = keepNil
}

// Mode returns the representation mode.
func (s *Strategy) Mode() boot.Mode { return s.mode }

// Instantiator returns the bound instantiator.
func (s *Strategy) Instantiator() *instantiator.Instantiator { return s.inst }

// ResolvePropertyAccess returns the access of the named attribute.
func (s *Strategy) ResolvePropertyAccess(name string) (property.Access, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.accesses[i], true
}

// Accesses returns the attribute accesses in declaration order.
func (s *Strategy) Accesses() []property.Access {
	return append([]property.Access(nil), s.accesses...)
}

// Layout returns the value layout of the type.
func (s *Strategy) Layout() *Layout { return s.layout }

// ProxyFactory returns the proxy factory of a proxied embeddable, or nil.
func (s *Strategy) ProxyFactory() instantiator.ProxyFactory { return s.proxy }
