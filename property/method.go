package property

import (
	"fmt"
	"reflect"

	"github.com/syssam/hydrate"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Property accesses an attribute through a Get<Name>/Set<Name> method pair
// declared on the pointer type. Either method may return a trailing error.
// The setter is optional; without one, Set fails.
type Property struct {
	name   string
	owner  reflect.Type
	getter reflect.Method
	setter *reflect.Method
}

// NewProperty finds the accessor methods of attr on owner.
func NewProperty(owner reflect.Type, attr, goName string) (*Property, error) {
	owner = structType(owner)
	if owner == nil {
		return nil, hydrate.NewConfigError("", attr, nil, "property access requires a type")
	}
	ident := goIdent(attr, goName)
	pt := reflect.PointerTo(owner)
	get, ok := pt.MethodByName("Get" + ident)
	if !ok || !validGetter(get.Type) {
		return nil, hydrate.NewConfigError(owner.String(), attr, "Get"+ident, "no usable getter")
	}
	p := &Property{name: attr, owner: owner, getter: get}
	if set, ok := pt.MethodByName("Set" + ident); ok {
		if !validSetter(set.Type) {
			return nil, hydrate.NewConfigError(owner.String(), attr, "Set"+ident, "setter must take one argument")
		}
		p.setter = &set
	}
	return p, nil
}

// Method types include the receiver as first parameter.
func validGetter(t reflect.Type) bool {
	switch {
	case t.NumIn() != 1:
		return false
	case t.NumOut() == 1:
		return true
	case t.NumOut() == 2:
		return t.Out(1) == errorType
	default:
		return false
	}
}

func validSetter(t reflect.Type) bool {
	if t.NumIn() != 2 || t.IsVariadic() {
		return false
	}
	return t.NumOut() == 0 || (t.NumOut() == 1 && t.Out(0) == errorType)
}

func (p *Property) Name() string     { return p.name }
func (p *Property) Strategy() string { return StrategyProperty }

// Getter returns the getter method.
func (p *Property) Getter() reflect.Method { return p.getter }

// Get calls the getter. A struct value owner is copied to an addressable
// value first.
func (p *Property) Get(owner any) (any, error) {
	rv, err := p.receiver(owner, false)
	if err != nil {
		return nil, err
	}
	out := p.getter.Func.Call([]reflect.Value{rv})
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

// Set calls the setter with value converted to its parameter type.
func (p *Property) Set(owner, value any) error {
	if p.setter == nil {
		return fmt.Errorf("property: %s.%s is read-only", p.owner, p.name)
	}
	rv, err := p.receiver(owner, true)
	if err != nil {
		return err
	}
	arg := reflect.New(p.setter.Type.In(1)).Elem()
	if err := assign(arg, value); err != nil {
		return fmt.Errorf("property: set %s.%s: %w", p.owner, p.name, err)
	}
	out := p.setter.Func.Call([]reflect.Value{rv, arg})
	if len(out) == 1 && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}

func (p *Property) receiver(owner any, write bool) (reflect.Value, error) {
	rv := reflect.ValueOf(owner)
	switch {
	case !rv.IsValid():
		return reflect.Value{}, fmt.Errorf("property: %s of nil owner", p.name)
	case rv.Kind() == reflect.Pointer && rv.Type().Elem() == p.owner:
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("property: %s of nil %T", p.name, owner)
		}
		return rv, nil
	case rv.Type() == p.owner && !write:
		cp := reflect.New(p.owner)
		cp.Elem().Set(rv)
		return cp, nil
	default:
		return reflect.Value{}, fmt.Errorf("property: %s: %T is not *%s", p.name, owner, p.owner)
	}
}
