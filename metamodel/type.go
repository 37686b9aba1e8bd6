package metamodel

import (
	"reflect"

	"github.com/syssam/hydrate/boot"
	"github.com/syssam/hydrate/discriminator"
	"github.com/syssam/hydrate/property"
	"github.com/syssam/hydrate/representation"
)

// Attribute is the runtime metadata of one attribute.
type Attribute struct {
	desc     *boot.Attribute
	position int
	owner    *ManagedType
	access   property.Access
	member   *reflect.StructField
}

// Name returns the attribute name, unique within its owner.
func (a *Attribute) Name() string { return a.desc.Name }

// Member returns the struct field backing the attribute. It reports false
// for map-mode types and attributes accessed through methods.
func (a *Attribute) Member() (reflect.StructField, bool) {
	if a.member == nil {
		return reflect.StructField{}, false
	}
	return *a.member, true
}

// Type returns the declared value type, or the Go type of the member when
// none is declared.
func (a *Attribute) Type() string {
	if a.desc.Type == "" && a.member != nil {
		return a.member.Type.String()
	}
	return a.desc.Type
}

func (a *Attribute) Plural() bool                        { return a.desc.Plural }
func (a *Attribute) Classification() boot.Classification { return a.desc.Classification }
func (a *Attribute) Column() string                      { return a.desc.ColumnName() }
func (a *Attribute) Position() int                       { return a.position }
func (a *Attribute) Owner() *ManagedType                 { return a.owner }
func (a *Attribute) Access() property.Access             { return a.access }
func (a *Attribute) Descriptor() *boot.Attribute         { return a.desc }

// ManagedType is an entity or embeddable known to the metamodel. It is
// immutable once the metamodel is built.
type ManagedType struct {
	desc     *boot.Type
	goType   reflect.Type
	super    *ManagedType
	root     *ManagedType
	subtypes []*ManagedType
	attrs    []*Attribute
	byName   map[string]*Attribute
	repr     *representation.Strategy
	// discriminator is shared by every type of a hierarchy.
	disc       discriminator.Strategy
	discColumn string
}

// Name returns the role name.
func (t *ManagedType) Name() string { return t.desc.Name }

// ShortName returns the unqualified role name.
func (t *ManagedType) ShortName() string { return t.desc.ShortName() }

// Kind returns whether t is an entity or an embeddable.
func (t *ManagedType) Kind() boot.Kind { return t.desc.Kind }

// Mode returns the representation mode.
func (t *ManagedType) Mode() boot.Mode { return t.desc.Mode }

// Abstract reports whether t is declared abstract.
func (t *ManagedType) Abstract() bool { return t.desc.Abstract }

// GoType returns the Go type of native and record types, or nil.
func (t *ManagedType) GoType() reflect.Type { return t.goType }

// Attributes returns the attributes, inherited ones first.
func (t *ManagedType) Attributes() []*Attribute {
	return append([]*Attribute(nil), t.attrs...)
}

// Attribute returns the named attribute.
func (t *ManagedType) Attribute(name string) (*Attribute, bool) {
	a, ok := t.byName[name]
	return a, ok
}

// AttributeNames returns the attribute names in position order.
func (t *ManagedType) AttributeNames() []string {
	names := make([]string, len(t.attrs))
	for i, a := range t.attrs {
		names[i] = a.Name()
	}
	return names
}

// Super returns the direct super type, or nil.
func (t *ManagedType) Super() *ManagedType { return t.super }

// Root returns the root of the hierarchy t belongs to.
func (t *ManagedType) Root() *ManagedType { return t.root }

// Subtypes returns the direct subtypes.
func (t *ManagedType) Subtypes() []*ManagedType {
	return append([]*ManagedType(nil), t.subtypes...)
}

// Discriminator returns the discriminator strategy of the hierarchy, or nil.
func (t *ManagedType) Discriminator() discriminator.Strategy { return t.disc }

// DiscriminatorColumn returns the column holding discriminator values.
func (t *ManagedType) DiscriminatorColumn() string { return t.discColumn }

// Representation returns the representation strategy.
func (t *ManagedType) Representation() *representation.Strategy { return t.repr }

// IsSubtypeOf reports whether t is other or one of its descendants.
func (t *ManagedType) IsSubtypeOf(other *ManagedType) bool {
	for s := t; s != nil; s = s.super {
		if s == other {
			return true
		}
	}
	return false
}

func (t *ManagedType) String() string { return t.desc.Name }

// memberOf returns the struct field behind a field or mixed access.
func memberOf(acc property.Access) *reflect.StructField {
	if m, ok := acc.(*property.Mixed); ok {
		acc = m.Member()
	}
	if f, ok := acc.(*property.Field); ok {
		sf := f.Member()
		return &sf
	}
	return nil
}
