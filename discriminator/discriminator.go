// Package discriminator maps between a stored discriminator value and the
// concrete managed type it denotes.
//
// FullName and ShortName are shared, stateless strategies over textual
// values; they never coerce a non-string value. Explicit maps values declared
// per subtype. No strategy falls back to a guessed type: an unresolvable
// value is always a *hydrate.DiscriminatorError.
package discriminator

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/syssam/hydrate"
)

// Type is a managed type as seen by a discriminator strategy.
type Type interface {
	Name() string
	ShortName() string
}

// Metamodel is the lookup service a strategy resolves names against.
type Metamodel interface {
	// FindType returns the managed type registered under the exact name.
	FindType(name string) (Type, bool)
	// ImportedName expands an import alias to its full name, returning
	// name unchanged when it is not an alias.
	ImportedName(name string) string
}

// Strategy maps concrete types to discriminator values and back.
type Strategy interface {
	DiscriminatorValue(t Type, role string, mm Metamodel) (any, error)
	EntityMapping(value any, role string, mm Metamodel) (Type, error)
}

// Shared builtin strategies.
var (
	// FullName uses the full logical type name as the discriminator value.
	FullName Strategy = fullName{}
	// ShortName uses the short (imported) type name as the discriminator value.
	ShortName Strategy = shortName{}
)

var (
	errNotText     = errors.New("discriminator value is not textual")
	errNotMapped   = errors.New("no managed type registered under this name")
	errNilType     = errors.New("nil type")
	errNotDeclared = errors.New("no value declared for this type")
)

type fullName struct{}

func (fullName) DiscriminatorValue(t Type, role string, _ Metamodel) (any, error) {
	if t == nil {
		return nil, hydrate.NewDiscriminatorError(role, nil, errNilType)
	}
	return t.Name(), nil
}

func (fullName) EntityMapping(value any, role string, mm Metamodel) (Type, error) {
	name, ok := value.(string)
	if !ok {
		return nil, hydrate.NewDiscriminatorError(role, value, errNotText)
	}
	return lookup(mm, name, value, role)
}

func (fullName) String() string { return "full-name" }

type shortName struct{}

func (shortName) DiscriminatorValue(t Type, role string, _ Metamodel) (any, error) {
	if t == nil {
		return nil, hydrate.NewDiscriminatorError(role, nil, errNilType)
	}
	return t.ShortName(), nil
}

func (shortName) EntityMapping(value any, role string, mm Metamodel) (Type, error) {
	name, ok := value.(string)
	if !ok {
		return nil, hydrate.NewDiscriminatorError(role, value, errNotText)
	}
	return lookup(mm, mm.ImportedName(name), value, role)
}

func (shortName) String() string { return "short-name" }

func lookup(mm Metamodel, name string, value any, role string) (Type, error) {
	t, ok := mm.FindType(name)
	if !ok || t == nil {
		return nil, hydrate.NewDiscriminatorError(role, value, errNotMapped)
	}
	return t, nil
}

// Explicit maps values declared per concrete type. Build it with NewExplicit.
type Explicit struct {
	toType  map[any]string
	toValue map[string]any
}

// NewExplicit builds an Explicit strategy from a type name → value table.
// Values must be comparable and unique.
func NewExplicit(values map[string]any) (*Explicit, error) {
	e := &Explicit{
		toType:  make(map[any]string, len(values)),
		toValue: make(map[string]any, len(values)),
	}
	for name, v := range values {
		v = normalize(v)
		if v == nil || !reflect.TypeOf(v).Comparable() {
			return nil, hydrate.NewConfigError(name, "discriminator_value", v, "value must be non-nil and comparable")
		}
		if other, dup := e.toType[v]; dup {
			return nil, hydrate.NewConfigError(name, "discriminator_value", v, fmt.Sprintf("value already used by %s", other))
		}
		e.toType[v] = name
		e.toValue[name] = v
	}
	return e, nil
}

// DiscriminatorValue returns the value declared for t.
func (e *Explicit) DiscriminatorValue(t Type, role string, _ Metamodel) (any, error) {
	if t == nil {
		return nil, hydrate.NewDiscriminatorError(role, nil, errNilType)
	}
	v, ok := e.toValue[t.Name()]
	if !ok {
		return nil, hydrate.NewDiscriminatorError(role, t.Name(), errNotDeclared)
	}
	return v, nil
}

// EntityMapping returns the type the value was declared for.
func (e *Explicit) EntityMapping(value any, role string, mm Metamodel) (Type, error) {
	key := normalize(value)
	if key == nil || !reflect.TypeOf(key).Comparable() {
		return nil, hydrate.NewDiscriminatorError(role, value, errNotMapped)
	}
	name, ok := e.toType[key]
	if !ok {
		return nil, hydrate.NewDiscriminatorError(role, value, errNotMapped)
	}
	return lookup(mm, name, value, role)
}

func (e *Explicit) String() string { return "explicit" }

// normalize folds driver and decoder representations of the same value:
// integers widen to int64, floats to float64 and []byte becomes string.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint:
		if uint64(x) > math.MaxInt64 {
			return v
		}
		return int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return v
		}
		return int64(x)
	case uintptr:
		if uint64(x) > math.MaxInt64 {
			return v
		}
		return int64(x)
	case float32:
		return float64(x)
	case []byte:
		return string(x)
	default:
		return v
	}
}
