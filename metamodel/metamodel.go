// Package metamodel builds the runtime view of a boot mapping: one
// ManagedType per declared entity or embeddable, each with its attributes,
// its representation strategy and, for inheritance hierarchies, the
// discriminator strategy shared by the hierarchy.
//
// Build is single-threaded; the resulting Metamodel is immutable and every
// lookup may be called concurrently.
package metamodel

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/syssam/hydrate"
	"github.com/syssam/hydrate/boot"
	"github.com/syssam/hydrate/discriminator"
	"github.com/syssam/hydrate/instantiator"
	"github.com/syssam/hydrate/registry"
	"github.com/syssam/hydrate/representation"
)

// DefaultDiscriminatorColumn is the discriminator column of hierarchies that
// do not name one.
const DefaultDiscriminatorColumn = "dtype"

var (
	errNoDiscriminator = errors.New("type has no discriminator")
	errNotSubtype      = errors.New("resolved type is outside the hierarchy")
)

// Metamodel is the set of managed types of a mapping.
type Metamodel struct {
	types      []*ManagedType
	byName     map[string]*ManagedType
	imports    map[string]string
	byGoType   map[reflect.Type]*ManagedType
	population PopulationSetting
	registry   *registry.Registry
}

// Option configures New.
type Option func(*config) error

type config struct {
	registry   *registry.Registry
	goTypes    map[string]reflect.Type
	repr       map[string][]representation.Option
	population *PopulationSetting
	logger     *slog.Logger
}

// WithRegistry sets the strategy registry. A fresh empty registry is used
// when none is given.
func WithRegistry(r *registry.Registry) Option {
	return func(c *config) error {
		if r == nil {
			return hydrate.NewConfigError("", "registry", nil, "registry cannot be nil")
		}
		c.registry = r
		return nil
	}
}

// WithGoType binds role to a Go type, taking precedence over the registry.
func WithGoType(role string, typ reflect.Type) Option {
	return func(c *config) error {
		if role == "" || typ == nil {
			return hydrate.NewConfigError(role, "go_type", nil, "role and type are required")
		}
		if typ.Kind() == reflect.Pointer {
			typ = typ.Elem()
		}
		c.goTypes[role] = typ
		return nil
	}
}

// WithRepresentation passes extra representation options for role, such as
// an optimizer or proxy factory.
func WithRepresentation(role string, opts ...representation.Option) Option {
	return func(c *config) error {
		c.repr[role] = append(c.repr[role], opts...)
		return nil
	}
}

// WithPopulation overrides the population setting of the mapping.
func WithPopulation(p PopulationSetting) Option {
	return func(c *config) error {
		c.population = &p
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

// New builds the metamodel of m. Configuration problems across all types
// are collected into a single error.
func New(m *boot.Mapping, opts ...Option) (*Metamodel, error) {
	if m == nil {
		return nil, hydrate.NewConfigError("", "mapping", nil, "nil mapping")
	}
	c := &config{
		goTypes: make(map[string]reflect.Type),
		repr:    make(map[string][]representation.Option),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.registry == nil {
		c.registry = registry.New()
	}
	m.Normalize()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	mm := &Metamodel{
		byName:     make(map[string]*ManagedType, len(m.Types)),
		imports:    make(map[string]string),
		population: ParsePopulationSetting(m.Population),
		registry:   c.registry,
	}
	if c.population != nil {
		mm.population = *c.population
	}
	order, err := buildOrder(m)
	if err != nil {
		return nil, err
	}
	var errs []error
	for _, d := range order {
		if err := mm.add(d, c); err != nil {
			errs = append(errs, err)
		}
	}
	if err := hydrate.NewAggregateError(errs...); err != nil {
		return nil, err
	}
	errs = append(errs, mm.wireImports(m)...)
	errs = append(errs, mm.wireDiscriminators()...)
	errs = append(errs, mm.index(c.logger)...)
	if err := hydrate.NewAggregateError(errs...); err != nil {
		return nil, err
	}
	c.logger.Debug("metamodel built", "types", len(mm.types), "population", mm.population.String())
	return mm, nil
}

// buildOrder returns the types with every super type before its subtypes,
// otherwise keeping declaration order.
func buildOrder(m *boot.Mapping) ([]*boot.Type, error) {
	const (
		visiting = iota + 1
		done
	)
	state := make(map[string]int, len(m.Types))
	order := make([]*boot.Type, 0, len(m.Types))
	var visit func(t *boot.Type) error
	visit = func(t *boot.Type) error {
		switch state[t.Name] {
		case done:
			return nil
		case visiting:
			return hydrate.NewConfigError(t.Name, "super", t.Super, "inheritance cycle")
		}
		state[t.Name] = visiting
		if t.Super != "" {
			s, ok := m.TypeByName(t.Super)
			if !ok {
				return hydrate.NewConfigError(t.Name, "super", t.Super, "unknown super type")
			}
			if s.Kind != t.Kind {
				return hydrate.NewConfigError(t.Name, "super", t.Super, "super type is of a different kind")
			}
			if err := visit(s); err != nil {
				return err
			}
		}
		state[t.Name] = done
		order = append(order, t)
		return nil
	}
	for _, t := range m.Types {
		if err := visit(t); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (mm *Metamodel) add(d *boot.Type, c *config) error {
	t := &ManagedType{desc: d, byName: make(map[string]*Attribute)}
	t.root = t
	descs := make([]*boot.Attribute, 0, len(d.Attributes))
	if d.Super != "" {
		s, ok := mm.byName[d.Super]
		if !ok {
			return hydrate.NewConfigError(d.Name, "super", d.Super, "super type failed to build")
		}
		t.super, t.root = s, s.root
		s.subtypes = append(s.subtypes, t)
		for _, a := range s.attrs {
			descs = append(descs, a.desc)
		}
	}
	inherited := len(descs)
	for _, a := range d.Attributes {
		for _, in := range descs[:inherited] {
			if in.Name == a.Name {
				return hydrate.NewConfigError(d.Name, a.Name, d.Super, "attribute redeclares an inherited attribute")
			}
		}
		descs = append(descs, a)
	}
	if d.Mode != boot.ModeMap {
		if typ, ok := c.goTypes[d.Name]; ok {
			t.goType = typ
		} else if typ, ok := c.registry.Type(d.Name); ok {
			t.goType = typ
		}
	}
	opts := append([]representation.Option{
		representation.WithRegistry(c.registry),
		representation.WithAttributes(descs),
		representation.WithLogger(c.logger),
	}, c.repr[d.Name]...)
	repr, err := representation.Build(d, t.goType, opts...)
	if err != nil {
		return err
	}
	t.repr = repr
	if t.goType == nil && d.Mode != boot.ModeMap {
		t.goType = repr.Instantiator().MappedType()
	}
	for i, a := range descs {
		attr := &Attribute{desc: a, position: i, owner: t}
		if acc, ok := repr.ResolvePropertyAccess(a.Name); ok {
			attr.access = acc
			attr.member = memberOf(acc)
		}
		t.attrs = append(t.attrs, attr)
		t.byName[a.Name] = attr
	}
	mm.types = append(mm.types, t)
	mm.byName[d.Name] = t
	return nil
}

// wireImports registers explicit aliases, then the short name of every type
// whose short name is unambiguous.
func (mm *Metamodel) wireImports(m *boot.Mapping) []error {
	var errs []error
	for alias, full := range m.Imports {
		if _, ok := mm.byName[full]; !ok {
			errs = append(errs, hydrate.NewConfigError("", "imports", alias, fmt.Sprintf("alias of unknown type %q", full)))
			continue
		}
		mm.imports[alias] = full
	}
	count := make(map[string]int, len(mm.types))
	for _, t := range mm.types {
		count[t.ShortName()]++
	}
	for _, t := range mm.types {
		short := t.ShortName()
		if _, ok := mm.imports[short]; ok || count[short] > 1 || short == t.Name() {
			continue
		}
		mm.imports[short] = t.Name()
	}
	return errs
}

// wireDiscriminators assigns every entity hierarchy with subtypes, an
// explicit discriminator or declared values its strategy.
func (mm *Metamodel) wireDiscriminators() []error {
	var errs []error
	for _, root := range mm.types {
		if root.super != nil || root.Kind() != boot.KindEntity {
			continue
		}
		hierarchy := mm.hierarchy(root)
		conf := root.desc.Discriminator
		values := make(map[string]any)
		for _, t := range hierarchy {
			if t.desc.DiscriminatorValue != nil {
				values[t.Name()] = t.desc.DiscriminatorValue
			}
		}
		if conf == nil && len(hierarchy) == 1 && len(values) == 0 {
			continue
		}
		name := boot.DiscriminatorFullName
		column := DefaultDiscriminatorColumn
		if conf != nil {
			if conf.Strategy != "" {
				name = conf.Strategy
			}
			if conf.Column != "" {
				column = conf.Column
			}
		}
		if conf == nil && len(values) > 0 {
			name = boot.DiscriminatorExplicit
		}
		s, err := mm.strategy(root, name, values)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if s == discriminator.ShortName {
			if bad := mm.unresolvableShortNames(hierarchy); len(bad) > 0 {
				errs = append(errs, bad...)
				continue
			}
		}
		for _, t := range hierarchy {
			t.disc, t.discColumn = s, column
		}
	}
	return errs
}

// unresolvableShortNames reports the types of hierarchy whose short name
// imports to another type, or to none.
func (mm *Metamodel) unresolvableShortNames(hierarchy []*ManagedType) []error {
	var errs []error
	for _, t := range hierarchy {
		if mm.ImportedName(t.ShortName()) != t.Name() {
			errs = append(errs, hydrate.NewConfigError(t.Name(), "discriminator", t.ShortName(),
				"short name does not resolve back to the type"))
		}
	}
	return errs
}

func (mm *Metamodel) strategy(root *ManagedType, name string, values map[string]any) (discriminator.Strategy, error) {
	switch name {
	case boot.DiscriminatorFullName:
		return discriminator.FullName, nil
	case boot.DiscriminatorShortName:
		return discriminator.ShortName, nil
	case boot.DiscriminatorExplicit:
		return discriminator.NewExplicit(values)
	}
	if s, ok := mm.registry.Discriminator(name); ok {
		return s, nil
	}
	return nil, hydrate.NewConfigError(root.Name(), "discriminator", name, "unknown discriminator strategy")
}

// hierarchy returns root and all its descendants in build order.
func (mm *Metamodel) hierarchy(root *ManagedType) []*ManagedType {
	var out []*ManagedType
	for _, t := range mm.types {
		if t.root == root {
			out = append(out, t)
		}
	}
	return out
}

// index populates the Go type index according to the population setting.
func (mm *Metamodel) index(logger *slog.Logger) []error {
	if mm.population == PopulationDisabled {
		return nil
	}
	mm.byGoType = make(map[reflect.Type]*ManagedType, len(mm.types))
	var errs []error
	for _, t := range mm.types {
		switch {
		case t.Mode() == boot.ModeMap && mm.population == PopulationEnabled:
			errs = append(errs, hydrate.NewUnsupportedError("populate",
				fmt.Sprintf("map-mode type %s has no Go type to index", t.Name())))
			continue
		case t.Mode() == boot.ModeMap, t.goType == nil:
			logger.Debug("type left out of the go type index", "type", t.Name())
			continue
		}
		if prev, ok := mm.byGoType[t.goType]; ok {
			logger.Debug("go type bound to several types", "go_type", t.goType.String(), "kept", prev.Name(), "skipped", t.Name())
			continue
		}
		mm.byGoType[t.goType] = t
	}
	return errs
}

// Population returns the effective population setting.
func (mm *Metamodel) Population() PopulationSetting { return mm.population }

// Registry returns the strategy registry the metamodel was built with.
func (mm *Metamodel) Registry() *registry.Registry { return mm.registry }

// Type returns the managed type registered under name or under the import
// alias name.
func (mm *Metamodel) Type(name string) (*ManagedType, bool) {
	if t, ok := mm.byName[name]; ok {
		return t, true
	}
	t, ok := mm.byName[mm.ImportedName(name)]
	return t, ok
}

// MustType is like Type but panics when name is unknown.
func (mm *Metamodel) MustType(name string) *ManagedType {
	t, ok := mm.Type(name)
	if !ok {
		panic(fmt.Sprintf("metamodel: unknown type %q", name))
	}
	return t
}

// FindType returns the type registered under exactly name.
func (mm *Metamodel) FindType(name string) (discriminator.Type, bool) {
	t, ok := mm.byName[name]
	if !ok {
		return nil, false
	}
	return t, true
}

// ImportedName expands an import alias, returning name unchanged otherwise.
func (mm *Metamodel) ImportedName(name string) string {
	if full, ok := mm.imports[name]; ok {
		return full
	}
	return name
}

// Imports returns a copy of the import alias table.
func (mm *Metamodel) Imports() map[string]string {
	out := make(map[string]string, len(mm.imports))
	for k, v := range mm.imports {
		out[k] = v
	}
	return out
}

// Types returns all managed types, super types before subtypes.
func (mm *Metamodel) Types() []*ManagedType {
	return append([]*ManagedType(nil), mm.types...)
}

// Entities returns the entity types.
func (mm *Metamodel) Entities() []*ManagedType { return mm.ofKind(boot.KindEntity) }

// Embeddables returns the embeddable types.
func (mm *Metamodel) Embeddables() []*ManagedType { return mm.ofKind(boot.KindEmbeddable) }

func (mm *Metamodel) ofKind(k boot.Kind) []*ManagedType {
	var out []*ManagedType
	for _, t := range mm.types {
		if t.Kind() == k {
			out = append(out, t)
		}
	}
	return out
}

// TypeOf returns the managed type indexed under the Go type typ. It always
// reports false when population is disabled.
func (mm *Metamodel) TypeOf(typ reflect.Type) (*ManagedType, bool) {
	if typ == nil || mm.byGoType == nil {
		return nil, false
	}
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	t, ok := mm.byGoType[typ]
	return t, ok
}

// Classify returns the managed type obj is exactly an instance of: the
// type tag of map instances, then the Go type index, then a scan asking
// every instantiator.
func (mm *Metamodel) Classify(obj any) (*ManagedType, bool) {
	if obj == nil {
		return nil, false
	}
	if m, ok := obj.(map[string]any); ok {
		role, _ := m[instantiator.TypeKey].(string)
		t, ok := mm.byName[role]
		if ok && t.Mode() == boot.ModeMap {
			return t, true
		}
		return nil, false
	}
	if p, ok := obj.(instantiator.Proxied); ok {
		if t, ok := mm.TypeOf(p.ProxiedType()); ok {
			return t, true
		}
	}
	if t, ok := mm.TypeOf(reflect.TypeOf(obj)); ok {
		return t, true
	}
	for _, t := range mm.types {
		if t.repr.Instantiator().IsSameClass(obj, nil) {
			return t, true
		}
	}
	return nil, false
}

// Subtypes returns every descendant of role, excluding role itself.
func (mm *Metamodel) Subtypes(role string) []*ManagedType {
	root, ok := mm.Type(role)
	if !ok {
		return nil
	}
	var out []*ManagedType
	for _, t := range mm.types {
		if t != root && t.IsSubtypeOf(root) {
			out = append(out, t)
		}
	}
	return out
}

// DiscriminatorValue returns the discriminator value of role.
func (mm *Metamodel) DiscriminatorValue(role string) (any, error) {
	t, ok := mm.Type(role)
	if !ok {
		return nil, hydrate.NewDiscriminatorError(role, nil, fmt.Errorf("unknown type %q", role))
	}
	if t.disc == nil {
		return nil, hydrate.NewDiscriminatorError(t.Name(), nil, errNoDiscriminator)
	}
	return t.disc.DiscriminatorValue(t, t.root.Name(), mm)
}

// ResolveSubtype returns the type of the hierarchy under role that value
// denotes. The resolved type must be role or one of its descendants.
func (mm *Metamodel) ResolveSubtype(role string, value any) (*ManagedType, error) {
	base, ok := mm.Type(role)
	if !ok {
		return nil, hydrate.NewDiscriminatorError(role, value, fmt.Errorf("unknown type %q", role))
	}
	if base.disc == nil {
		return nil, hydrate.NewDiscriminatorError(base.Name(), value, errNoDiscriminator)
	}
	dt, err := base.disc.EntityMapping(value, base.root.Name(), mm)
	if err != nil {
		return nil, err
	}
	t, ok := dt.(*ManagedType)
	if !ok || !t.IsSubtypeOf(base) {
		return nil, hydrate.NewDiscriminatorError(base.Name(), value, errNotSubtype)
	}
	return t, nil
}

// Role identifies an attribute of a managed type.
type Role struct {
	Owner     string
	Attribute string
}

func (r Role) String() string { return r.Owner + "." + r.Attribute }

// EmbeddedPart is not supported: textual roles are ambiguous for nested
// embeddables. Use EmbeddedPartByRole.
func (mm *Metamodel) EmbeddedPart(role string) (*ManagedType, error) {
	return nil, hydrate.NewUnsupportedError("EmbeddedPart", fmt.Sprintf("lookup by textual role %q; use EmbeddedPartByRole", role))
}

// EmbeddedPartByRole returns the embeddable type of an embedded attribute.
func (mm *Metamodel) EmbeddedPartByRole(r Role) (*ManagedType, error) {
	owner, ok := mm.Type(r.Owner)
	if !ok {
		return nil, hydrate.NewConfigError(r.Owner, r.Attribute, nil, "unknown owner type")
	}
	a, ok := owner.Attribute(r.Attribute)
	if !ok || a.Classification() != boot.Embedded {
		return nil, hydrate.NewConfigError(owner.Name(), r.Attribute, nil, "not an embedded attribute")
	}
	t, ok := mm.Type(a.desc.Type)
	if !ok || t.Kind() != boot.KindEmbeddable {
		return nil, hydrate.NewConfigError(owner.Name(), r.Attribute, a.desc.Type, "embedded type is not a known embeddable")
	}
	return t, nil
}
