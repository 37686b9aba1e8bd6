// Package property resolves how attribute values are read from and written
// to instances.
package property

import (
	"fmt"
	"reflect"

	"github.com/go-openapi/inflect"

	"github.com/syssam/hydrate"
	"github.com/syssam/hydrate/boot"
	"github.com/syssam/hydrate/instantiator"
	"github.com/syssam/hydrate/internal/convert"
	"github.com/syssam/hydrate/registry"
)

// Builtin access strategy names.
const (
	StrategyField        = "field"
	StrategyProperty     = "property"
	StrategyMap          = "map"
	StrategyMixed        = "mixed"
	StrategyBackRef      = "backref"
	StrategyIndexBackRef = "index-backref"
	StrategyAttached     = "attached"
)

// TagName is the struct tag naming the attribute a field maps, as in
// `hydrate:"first_name"`.
const TagName = "hydrate"

// Access reads and writes one attribute of an instance.
type Access interface {
	// Name returns the attribute name.
	Name() string
	// Strategy returns the name of the access strategy.
	Strategy() string
	Get(owner any) (any, error)
	Set(owner, value any) error
}

// BackRefHolder is implemented by instances that accept the owner of the
// collection they belong to.
type BackRefHolder interface {
	SetBackRef(collection string, owner any)
}

// IndexBackRefHolder is implemented by instances that accept their position
// within an indexed collection.
type IndexBackRefHolder interface {
	SetIndexBackRef(collection string, index any)
}

// Resolve returns the access strategy of attr on owner. The first match
// wins: an access attached to the descriptor, a named accessor (builtin or
// from reg), a back reference, then the mixed field-or-method fallback.
func Resolve(attr *boot.Attribute, owner reflect.Type, reg *registry.Registry) (Access, error) {
	if attr == nil {
		return nil, hydrate.NewConfigError("", "attribute", nil, "nil attribute descriptor")
	}
	owner = structType(owner)
	if attr.Access != nil {
		return &custom{name: attr.Name, strategy: StrategyAttached, acc: attr.Access}, nil
	}
	if attr.Accessor != "" {
		return named(attr, owner, reg)
	}
	switch attr.Classification {
	case boot.BackRef:
		return &BackRef{Attribute: attr.Name, Collection: attr.Collection, Entity: attr.Entity}, nil
	case boot.IndexBackRef:
		return &IndexBackRef{Attribute: attr.Name, Collection: attr.Collection, Entity: attr.Entity}, nil
	}
	return NewMixed(owner, attr.Name, attr.GoName)
}

func named(attr *boot.Attribute, owner reflect.Type, reg *registry.Registry) (Access, error) {
	switch attr.Accessor {
	case StrategyField:
		return NewField(owner, attr.Name, attr.GoName)
	case StrategyProperty:
		return NewProperty(owner, attr.Name, attr.GoName)
	case StrategyMap:
		return NewMapKey(attr.Name)
	case StrategyMixed:
		return NewMixed(owner, attr.Name, attr.GoName)
	}
	if reg == nil {
		return nil, hydrate.NewConfigError(ownerName(owner), attr.Name, attr.Accessor, "unknown accessor")
	}
	f, ok := reg.Accessor(attr.Accessor)
	if !ok {
		return nil, hydrate.NewConfigError(ownerName(owner), attr.Name, attr.Accessor, "unknown accessor")
	}
	acc, err := f(attr.Name, owner)
	if err != nil {
		return nil, fmt.Errorf("property: accessor %q for %s: %w", attr.Accessor, attr.Name, err)
	}
	if acc == nil {
		return nil, hydrate.NewConfigError(ownerName(owner), attr.Name, attr.Accessor, "accessor factory returned nil")
	}
	return &custom{name: attr.Name, strategy: attr.Accessor, acc: acc}, nil
}

// custom adapts a boot.Accessor supplied by the user.
type custom struct {
	name, strategy string
	acc            boot.Accessor
}

func (c *custom) Name() string               { return c.name }
func (c *custom) Strategy() string           { return c.strategy }
func (c *custom) Get(owner any) (any, error) { return c.acc.Get(owner) }
func (c *custom) Set(owner, value any) error { return c.acc.Set(owner, value) }

// MapKey accesses one key of a map[string]any instance.
type MapKey struct {
	key string
}

// NewMapKey returns the map access for key. The reserved type key cannot be
// mapped.
func NewMapKey(key string) (*MapKey, error) {
	if key == instantiator.TypeKey {
		return nil, hydrate.NewConfigError("", key, nil, "attribute name collides with the reserved type key")
	}
	return &MapKey{key: key}, nil
}

func (m *MapKey) Name() string     { return m.key }
func (m *MapKey) Strategy() string { return StrategyMap }

func (m *MapKey) Get(owner any) (any, error) {
	mv, ok := owner.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("property: %T is not a map instance", owner)
	}
	return mv[m.key], nil
}

func (m *MapKey) Set(owner, value any) error {
	mv, ok := owner.(map[string]any)
	if !ok {
		return fmt.Errorf("property: %T is not a map instance", owner)
	}
	mv[m.key] = value
	return nil
}

// BackRef is the write-only synthetic attribute linking an element to the
// owner of the collection it belongs to. Reads return nil.
type BackRef struct {
	Attribute  string
	Collection string
	Entity     string
}

func (b *BackRef) Name() string         { return b.Attribute }
func (b *BackRef) Strategy() string     { return StrategyBackRef }
func (b *BackRef) Get(any) (any, error) { return nil, nil }

// Set hands value to owner when it is a BackRefHolder and is a no-op otherwise.
func (b *BackRef) Set(owner, value any) error {
	if h, ok := owner.(BackRefHolder); ok {
		h.SetBackRef(b.Collection, value)
	}
	return nil
}

// IndexBackRef is the write-only synthetic attribute carrying the position
// of an element in an indexed collection.
type IndexBackRef struct {
	Attribute  string
	Collection string
	Entity     string
}

func (b *IndexBackRef) Name() string         { return b.Attribute }
func (b *IndexBackRef) Strategy() string     { return StrategyIndexBackRef }
func (b *IndexBackRef) Get(any) (any, error) { return nil, nil }

// Set hands value to owner when it is an IndexBackRefHolder and is a no-op otherwise.
func (b *IndexBackRef) Set(owner, value any) error {
	if h, ok := owner.(IndexBackRefHolder); ok {
		h.SetIndexBackRef(b.Collection, value)
	}
	return nil
}

// Mixed accesses an attribute through a struct field when one exists, else
// through a Get/Set method pair.
type Mixed struct {
	Access
}

// NewMixed resolves attr on owner, preferring fields over methods.
func NewMixed(owner reflect.Type, attr, goName string) (*Mixed, error) {
	if f, err := NewField(owner, attr, goName); err == nil {
		return &Mixed{Access: f}, nil
	}
	p, err := NewProperty(owner, attr, goName)
	if err != nil {
		return nil, hydrate.NewConfigError(ownerName(owner), attr, nil, "no field or accessor methods")
	}
	return &Mixed{Access: p}, nil
}

// Strategy returns "mixed".
func (m *Mixed) Strategy() string { return StrategyMixed }

// Member returns the underlying field or property access.
func (m *Mixed) Member() Access { return m.Access }

// goIdent returns the exported Go name of attr.
func goIdent(attr, goName string) string {
	if goName != "" {
		return goName
	}
	return inflect.Camelize(attr)
}

func structType(t reflect.Type) reflect.Type {
	if t != nil && t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}

func ownerName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	return t.String()
}

// assign stores value into dst with loose conversion.
func assign(dst reflect.Value, value any) error {
	return convert.Assign(dst, value)
}
