// Package boot holds the boot-time descriptors a metamodel is built from.
//
// Descriptors are plain data. They are usually decoded from a YAML mapping
// file (see Parse and LoadFile) but may be constructed directly:
//
//	m := &boot.Mapping{
//	    Types: []*boot.Type{
//	        {
//	            Name:   "app.User",
//	            Kind:   boot.KindEntity,
//	            Mode:   boot.ModeNative,
//	            Attributes: []*boot.Attribute{
//	                {Name: "id"},
//	                {Name: "name"},
//	            },
//	        },
//	    },
//	}
package boot

import (
	"fmt"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/syssam/hydrate"
)

// Kind tells entities and embeddables apart.
type Kind string

// Managed type kinds.
const (
	KindEntity     Kind = "entity"
	KindEmbeddable Kind = "embeddable"
)

// Mode is the representation mode of a managed type.
type Mode string

// Representation modes.
const (
	ModeNative Mode = "native"
	ModeMap    Mode = "map"
	ModeRecord Mode = "record"
)

// Classification describes the nature of an attribute value.
type Classification string

// Attribute classifications.
const (
	Basic        Classification = "basic"
	Embedded     Classification = "embedded"
	ToOne        Classification = "to-one"
	Collection   Classification = "collection"
	Any          Classification = "any"
	BackRef      Classification = "backref"
	IndexBackRef Classification = "index-backref"
)

// Builtin discriminator strategy names.
const (
	DiscriminatorFullName  = "full-name"
	DiscriminatorShortName = "short-name"
	DiscriminatorExplicit  = "explicit"
)

// Accessor is an access strategy attached directly to an attribute descriptor.
type Accessor interface {
	Get(owner any) (any, error)
	Set(owner, value any) error
}

// Mapping is the root of a mapping document.
type Mapping struct {
	// Population is the textual static-index population setting.
	Population string            `yaml:"population,omitempty" json:"population,omitempty"`
	Imports    map[string]string `yaml:"imports,omitempty" json:"imports,omitempty"`
	Types      []*Type           `yaml:"types" json:"types"`
}

// Type describes one managed type.
type Type struct {
	Name      string `yaml:"name" json:"name"`
	Kind      Kind   `yaml:"kind,omitempty" json:"kind,omitempty"`
	Mode      Mode   `yaml:"mode,omitempty" json:"mode,omitempty"`
	GoName    string `yaml:"go_name,omitempty" json:"go_name,omitempty"`
	GoPackage string `yaml:"go_package,omitempty" json:"go_package,omitempty"`
	Abstract  bool   `yaml:"abstract,omitempty" json:"abstract,omitempty"`
	// NotInstantiable marks an entity that must never be constructed.
	NotInstantiable bool `yaml:"not_instantiable,omitempty" json:"not_instantiable,omitempty"`
	Super           string `yaml:"super,omitempty" json:"super,omitempty"`
	// Instantiator names a user instantiator registered in the strategy registry.
	Instantiator string `yaml:"instantiator,omitempty" json:"instantiator,omitempty"`
	// Proxy requests lazy proxy representation (embeddables only).
	Proxy              bool           `yaml:"proxy,omitempty" json:"proxy,omitempty"`
	Discriminator      *Discriminator `yaml:"discriminator,omitempty" json:"discriminator,omitempty"`
	DiscriminatorValue any            `yaml:"discriminator_value,omitempty" json:"discriminator_value,omitempty"`
	Attributes         []*Attribute   `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

// Discriminator configures the discriminator of a hierarchy root.
type Discriminator struct {
	Strategy string `yaml:"strategy,omitempty" json:"strategy,omitempty"`
	Column   string `yaml:"column,omitempty" json:"column,omitempty"`
}

// Attribute describes one attribute of a managed type.
type Attribute struct {
	Name           string         `yaml:"name" json:"name"`
	GoName         string         `yaml:"go_name,omitempty" json:"go_name,omitempty"`
	Column         string         `yaml:"column,omitempty" json:"column,omitempty"`
	Type           string         `yaml:"type,omitempty" json:"type,omitempty"`
	Plural         bool           `yaml:"plural,omitempty" json:"plural,omitempty"`
	Classification Classification `yaml:"classification,omitempty" json:"classification,omitempty"`
	// Accessor names an access strategy, builtin or registered.
	Accessor string `yaml:"accessor,omitempty" json:"accessor,omitempty"`
	// Collection and Entity parameterize back-reference attributes.
	Collection string `yaml:"collection,omitempty" json:"collection,omitempty"`
	Entity     string `yaml:"entity,omitempty" json:"entity,omitempty"`

	Access Accessor `yaml:"-" json:"-"`
}

// ShortName returns the segment of the type name after the last dot.
func (t *Type) ShortName() string {
	return ShortName(t.Name)
}

// ShortName returns the unqualified part of a logical type name.
func ShortName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// GoIdent returns the Go identifier of the type, derived from its short name when unset.
func (t *Type) GoIdent() string {
	if t.GoName != "" {
		return t.GoName
	}
	return inflect.Camelize(t.ShortName())
}

// GoIdent returns the Go field name of the attribute, derived from its name when unset.
func (a *Attribute) GoIdent() string {
	if a.GoName != "" {
		return a.GoName
	}
	return inflect.Camelize(a.Name)
}

// ColumnName returns the column the attribute is read from.
func (a *Attribute) ColumnName() string {
	if a.Column != "" {
		return a.Column
	}
	return a.Name
}

// Normalize fills in defaults: entity kind, native mode, basic classification.
func (m *Mapping) Normalize() {
	for _, t := range m.Types {
		if t == nil {
			continue
		}
		if t.Kind == "" {
			t.Kind = KindEntity
		}
		if t.Mode == "" {
			t.Mode = ModeNative
		}
		for _, a := range t.Attributes {
			if a != nil && a.Classification == "" {
				a.Classification = Basic
			}
		}
	}
}

// Validate checks the mapping for structural errors. All errors are
// collected and returned as a single error.
func (m *Mapping) Validate() error {
	var errs []error
	seen := make(map[string]struct{}, len(m.Types))
	for i, t := range m.Types {
		if t == nil {
			errs = append(errs, hydrate.NewConfigError("", "types", i, "nil type descriptor"))
			continue
		}
		if t.Name == "" {
			errs = append(errs, hydrate.NewConfigError("", "name", i, "missing role name"))
			continue
		}
		if _, ok := seen[t.Name]; ok {
			errs = append(errs, hydrate.NewConfigError(t.Name, "name", t.Name, "duplicate role name"))
		}
		seen[t.Name] = struct{}{}
		errs = append(errs, t.validate()...)
	}
	for alias, full := range m.Imports {
		if alias == "" || full == "" {
			errs = append(errs, hydrate.NewConfigError("", "imports", alias, "empty import alias"))
		}
	}
	return hydrate.NewAggregateError(errs...)
}

func (t *Type) validate() []error {
	var errs []error
	switch t.Kind {
	case KindEntity, KindEmbeddable:
	default:
		errs = append(errs, hydrate.NewConfigError(t.Name, "kind", t.Kind, "unknown kind"))
	}
	switch t.Mode {
	case ModeNative, ModeMap, ModeRecord:
	default:
		errs = append(errs, hydrate.NewConfigError(t.Name, "mode", t.Mode, "unknown mode"))
	}
	if t.Proxy && t.Kind != KindEmbeddable {
		errs = append(errs, hydrate.NewConfigError(t.Name, "proxy", nil, "proxy representation applies to embeddables only"))
	}
	if t.Discriminator != nil && t.Kind != KindEntity {
		errs = append(errs, hydrate.NewConfigError(t.Name, "discriminator", nil, "only entities carry a discriminator"))
	}
	names := make(map[string]struct{}, len(t.Attributes))
	for i, a := range t.Attributes {
		if a == nil || a.Name == "" {
			errs = append(errs, hydrate.NewConfigError(t.Name, "attributes", i, "missing attribute name"))
			continue
		}
		if _, ok := names[a.Name]; ok {
			errs = append(errs, hydrate.NewConfigError(t.Name, a.Name, nil, "duplicate attribute"))
		}
		names[a.Name] = struct{}{}
		if (a.Classification == BackRef || a.Classification == IndexBackRef) && a.Collection == "" {
			errs = append(errs, hydrate.NewConfigError(t.Name, a.Name, nil, fmt.Sprintf("%s attribute requires a collection role", a.Classification)))
		}
	}
	return errs
}

// TypeByName returns the type descriptor with the given role name.
func (m *Mapping) TypeByName(name string) (*Type, bool) {
	for _, t := range m.Types {
		if t != nil && t.Name == name {
			return t, true
		}
	}
	return nil, false
}
