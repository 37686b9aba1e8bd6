package property

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/syssam/hydrate"
)

// Field accesses an exported struct field, possibly promoted through
// embedded structs.
type Field struct {
	name   string
	owner  reflect.Type
	member reflect.StructField
}

// NewField finds the field mapping attr on owner. Candidates, in order: the
// explicit Go name, a field tagged `hydrate:"<attr>"`, the camelized
// attribute name, and a case-insensitive match ignoring underscores.
func NewField(owner reflect.Type, attr, goName string) (*Field, error) {
	owner = structType(owner)
	if owner == nil || owner.Kind() != reflect.Struct {
		return nil, hydrate.NewConfigError(ownerName(owner), attr, nil, "field access requires a struct type")
	}
	sf, ok := findField(owner, attr, goName)
	if !ok {
		return nil, hydrate.NewConfigError(owner.String(), attr, nil, "no exported field")
	}
	return &Field{name: attr, owner: owner, member: sf}, nil
}

func findField(owner reflect.Type, attr, goName string) (reflect.StructField, bool) {
	fields := reflect.VisibleFields(owner)
	usable := func(sf reflect.StructField) bool {
		return sf.IsExported() && !sf.Anonymous && reachable(owner, sf.Index)
	}
	if goName != "" {
		sf, ok := owner.FieldByName(goName)
		return sf, ok && usable(sf)
	}
	for _, sf := range fields {
		if tag, _, _ := strings.Cut(sf.Tag.Get(TagName), ","); tag == attr && usable(sf) {
			return sf, true
		}
	}
	if sf, ok := owner.FieldByName(goIdent(attr, "")); ok && usable(sf) {
		return sf, true
	}
	folded := strings.ReplaceAll(attr, "_", "")
	for _, sf := range fields {
		if usable(sf) && strings.EqualFold(sf.Name, folded) {
			return sf, true
		}
	}
	return reflect.StructField{}, false
}

// reachable reports whether every embedded struct on the index path is
// exported, so the promoted field can be read and set.
func reachable(t reflect.Type, index []int) bool {
	for _, x := range index[:len(index)-1] {
		sf := t.Field(x)
		if !sf.IsExported() {
			return false
		}
		t = sf.Type
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
	}
	return true
}

func (f *Field) Name() string     { return f.name }
func (f *Field) Strategy() string { return StrategyField }

// Member returns the struct field backing the access.
func (f *Field) Member() reflect.StructField { return f.member }

// Get returns the field value of owner, a struct or a pointer to one.
// A nil embedded pointer on the path reads as nil.
func (f *Field) Get(owner any) (any, error) {
	rv, err := f.value(owner)
	if err != nil {
		return nil, err
	}
	fv, err := rv.FieldByIndexErr(f.member.Index)
	if err != nil {
		return nil, nil
	}
	return fv.Interface(), nil
}

// Set stores value in the field of owner, which must be a pointer. Nil
// embedded pointers on the path are allocated.
func (f *Field) Set(owner, value any) error {
	rv := reflect.ValueOf(owner)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("property: set %s: %T is not a non-nil pointer", f.name, owner)
	}
	rv, err := f.value(owner)
	if err != nil {
		return err
	}
	fv := rv
	for i, x := range f.member.Index {
		if i > 0 && fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				fv.Set(reflect.New(fv.Type().Elem()))
			}
			fv = fv.Elem()
		}
		fv = fv.Field(x)
	}
	if err := assign(fv, value); err != nil {
		return fmt.Errorf("property: set %s.%s: %w", f.owner, f.member.Name, err)
	}
	return nil
}

func (f *Field) value(owner any) (reflect.Value, error) {
	rv := reflect.ValueOf(owner)
	if !rv.IsValid() {
		return reflect.Value{}, fmt.Errorf("property: %s of nil owner", f.name)
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("property: %s of nil %T", f.name, owner)
		}
		rv = rv.Elem()
	}
	if rv.Type() != f.owner {
		return reflect.Value{}, fmt.Errorf("property: %s: %T is not %s", f.name, owner, f.owner)
	}
	return rv, nil
}
