// Package convert adapts loosely typed attribute values, as produced by
// database drivers and decoders, to the Go types of members and parameters.
package convert

import (
	"database/sql"
	"fmt"
	"reflect"
)

var scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

// To returns v as a value of type t. nil yields the zero value.
func To(t reflect.Type, v any) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if reflect.PointerTo(t).Implements(scannerType) {
		p := reflect.New(t)
		if err := p.Interface().(sql.Scanner).Scan(v); err != nil {
			return reflect.Value{}, fmt.Errorf("scan %T into %s: %w", v, t, err)
		}
		return p.Elem(), nil
	}
	if t.Kind() == reflect.Pointer {
		elem, err := To(t.Elem(), v)
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(elem)
		return p, nil
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Zero(t), nil
		}
		return To(t, rv.Elem().Interface())
	}
	if rv.Type().ConvertibleTo(t) && safe(rv.Kind(), t.Kind()) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
}

// Assign sets dst, which must be settable, to v.
func Assign(dst reflect.Value, v any) error {
	cv, err := To(dst.Type(), v)
	if err != nil {
		return err
	}
	dst.Set(cv)
	return nil
}

// safe excludes conversions that compile but change meaning, such as
// int to string, or slice to array pointer.
func safe(from, to reflect.Kind) bool {
	switch to {
	case reflect.String:
		return from == reflect.String || from == reflect.Slice
	case reflect.Array, reflect.Pointer:
		return from == to
	default:
		return true
	}
}
