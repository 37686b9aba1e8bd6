package instantiator

import (
	"fmt"
	"reflect"

	"github.com/syssam/hydrate"
	"github.com/syssam/hydrate/internal/convert"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// NewStandard returns an instantiator constructing typ reflectively.
//
// The zero-argument constructor is resolved once: an explicit constructor
// given with WithConstructor, else reflect.New for struct types. Abstract
// types (interfaces, or WithAbstract) are never given a constructor. When no
// constructor exists every Instantiate call fails with
// ReasonNoDefaultConstructor.
func NewStandard(role string, typ reflect.Type, opts ...Option) *Instantiator {
	i := &Instantiator{kind: Standard, role: role, typ: typ}
	for _, opt := range opts {
		opt(i)
	}
	if typ != nil && typ.Kind() == reflect.Interface {
		i.abstract = true
	}
	switch {
	case i.abstract:
		i.ctor = nil
	case i.ctor == nil && typ != nil && typ.Kind() == reflect.Struct:
		i.ctor = func() reflect.Value { return reflect.New(typ) }
	}
	return i
}

func (i *Instantiator) instantiateStandard(values []any) (any, error) {
	if i.ctor == nil {
		return nil, hydrate.NewInstantiationError(i.name(), hydrate.ReasonNoDefaultConstructor, nil)
	}
	v, err := construct(i.ctor)
	if err != nil {
		return nil, hydrate.NewInstantiationError(i.name(), hydrate.ReasonConstructionFailed, err)
	}
	return i.inject(v.Interface(), values)
}

// construct invokes ctor, turning a panic into an error.
func construct(ctor func() reflect.Value) (v reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("constructor panicked: %v", r)
		}
	}()
	return ctor(), nil
}

// constructorFunc adapts fn, a func() T or func() *T, to a constructor
// returning *T. It returns nil when fn does not fit typ.
func constructorFunc(typ reflect.Type, fn any) func() reflect.Value {
	fv := reflect.ValueOf(fn)
	if typ == nil || fv.Kind() != reflect.Func || fv.IsNil() {
		return nil
	}
	ft := fv.Type()
	if ft.NumIn() != 0 || ft.NumOut() != 1 {
		return nil
	}
	switch out := ft.Out(0); {
	case out == reflect.PointerTo(typ):
		return func() reflect.Value { return fv.Call(nil)[0] }
	case out == typ:
		return func() reflect.Value {
			p := reflect.New(typ)
			p.Elem().Set(fv.Call(nil)[0])
			return p
		}
	default:
		return nil
	}
}

// NewOptimized returns an instantiator delegating construction to an
// injected factory. The hot path is the factory call followed by the
// optional intercept hook.
func NewOptimized(role string, typ reflect.Type, factory Factory, opts ...Option) *Instantiator {
	i := &Instantiator{kind: Optimized, role: role, typ: typ, factory: factory}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// NewIllegal returns an instantiator for an entity that must never be
// instantiated. It still answers IsInstance.
func NewIllegal(role string, typ reflect.Type) *Instantiator {
	return &Instantiator{kind: Illegal, role: role, typ: typ, abstract: true}
}

// NewMap returns an instantiator producing map[string]any instances tagged
// with role under TypeKey. The role name is required.
func NewMap(role string, opts ...Option) (*Instantiator, error) {
	if role == "" {
		return nil, hydrate.NewConfigError("", "name", nil, "map representation requires a role name")
	}
	i := &Instantiator{kind: Map, role: role}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// NewProxy returns an instantiator obtaining instances from a lazy proxy
// factory. target is the type the proxies stand for.
func NewProxy(role string, target reflect.Type, factory ProxyFactory, opts ...Option) *Instantiator {
	i := &Instantiator{kind: Proxy, role: role, typ: target, proxy: factory}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// NewRecord returns an instantiator for an immutable type built by a
// positional constructor. Among candidates (functions) it selects the first
// whose parameters accept components in order and whose first result is
// typ or *typ; an optional second result must be an error. A missing match
// is reported by Instantiate, not here.
func NewRecord(role string, typ reflect.Type, components []reflect.Type, candidates ...any) *Instantiator {
	i := &Instantiator{kind: Record, role: role, typ: typ, arity: len(components)}
	for _, c := range candidates {
		if fv, ok := matchRecordConstructor(typ, components, c); ok {
			i.record = fv
			return i
		}
	}
	i.recordErr = true
	return i
}

func matchRecordConstructor(typ reflect.Type, components []reflect.Type, c any) (reflect.Value, bool) {
	fv := reflect.ValueOf(c)
	if typ == nil || fv.Kind() != reflect.Func || fv.IsNil() {
		return reflect.Value{}, false
	}
	ft := fv.Type()
	if ft.IsVariadic() || ft.NumIn() != len(components) {
		return reflect.Value{}, false
	}
	switch ft.NumOut() {
	case 1:
	case 2:
		if ft.Out(1) != errorType {
			return reflect.Value{}, false
		}
	default:
		return reflect.Value{}, false
	}
	if out := ft.Out(0); out != typ && out != reflect.PointerTo(typ) {
		return reflect.Value{}, false
	}
	for j, ct := range components {
		if ct != nil && !ct.AssignableTo(ft.In(j)) {
			return reflect.Value{}, false
		}
	}
	return fv, true
}

func (i *Instantiator) instantiateRecord(values []any) (any, error) {
	if i.recordErr {
		return nil, hydrate.NewInstantiationError(i.name(), hydrate.ReasonNoMatchingConstructor,
			fmt.Errorf("no constructor with %d matching parameters", i.arity))
	}
	if len(values) != i.arity {
		return nil, hydrate.NewInstantiationError(i.name(), hydrate.ReasonConstructionFailed,
			fmt.Errorf("expected %d values, got %d", i.arity, len(values)))
	}
	ft := i.record.Type()
	args := make([]reflect.Value, len(values))
	for j, v := range values {
		arg, err := convert.To(ft.In(j), v)
		if err != nil {
			return nil, hydrate.NewInstantiationError(i.name(), hydrate.ReasonConstructionFailed,
				fmt.Errorf("argument %d: %w", j, err))
		}
		args[j] = arg
	}
	out, err := call(i.record, args)
	if err != nil {
		return nil, hydrate.NewInstantiationError(i.name(), hydrate.ReasonConstructionFailed, err)
	}
	return out, nil
}

// call invokes fn, converting a panic or a trailing non-nil error to err.
func call(fn reflect.Value, args []reflect.Value) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("constructor panicked: %w", e)
				return
			}
			err = fmt.Errorf("constructor panicked: %v", r)
		}
	}()
	res := fn.Call(args)
	if len(res) == 2 && !res[1].IsNil() {
		return nil, res[1].Interface().(error)
	}
	return res[0].Interface(), nil
}

// NewDelegating returns an instantiator forwarding to a user strategy.
// Classification is derived from the strategy's returned type.
func NewDelegating(role string, user UserInstantiator) (*Instantiator, error) {
	if user == nil {
		return nil, hydrate.NewConfigError(role, "instantiator", nil, "nil user instantiator")
	}
	return &Instantiator{kind: Delegating, role: role, typ: user.ReturnedType(), user: user}, nil
}
