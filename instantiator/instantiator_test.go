package instantiator

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/hydrate"
)

type (
	Animal struct {
		ID   int
		Name string
	}
	Dog struct {
		Animal
		Breed string
	}
	Shape interface{ Area() float64 }
	Point struct{ X, Y int }
	Label string
)

// sliceLayout writes values into exported struct fields or map keys, in order.
type sliceLayout struct{ names []string }

func (l sliceLayout) Inject(instance any, values []any) error {
	if m, ok := instance.(map[string]any); ok {
		for i, v := range values {
			m[l.names[i]] = v
		}
		return nil
	}
	rv := reflect.ValueOf(instance).Elem()
	for i, v := range values {
		rv.FieldByName(l.names[i]).Set(reflect.ValueOf(v))
	}
	return nil
}

func reason(t *testing.T, err error) hydrate.Reason {
	t.Helper()
	r, ok := hydrate.InstantiationReason(err)
	require.True(t, ok, "not an instantiation error: %v", err)
	return r
}

func TestStandard(t *testing.T) {
	t.Parallel()

	i := NewStandard("zoo.Animal", reflect.TypeOf(Animal{}), WithLayout(sliceLayout{names: []string{"ID", "Name"}}))
	assert.Equal(t, Standard, i.Kind())
	assert.True(t, i.CanBeInstantiated())

	v, err := i.Instantiate([]any{1, "rex"}, nil)
	require.NoError(t, err)
	assert.Equal(t, &Animal{ID: 1, Name: "rex"}, v)
	assert.True(t, i.IsInstance(v, nil))
	assert.True(t, i.IsSameClass(v, nil))

	empty, err := i.Instantiate(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, &Animal{}, empty)

	// A subtype embedding the mapped type is an instance but not the same class.
	dog := &Dog{Animal: Animal{ID: 2}}
	assert.True(t, i.IsInstance(dog, nil))
	assert.False(t, i.IsSameClass(dog, nil))
	assert.False(t, i.IsInstance(Point{}, nil))
	assert.False(t, i.IsInstance(nil, nil))
}

func TestStandardConstructor(t *testing.T) {
	t.Parallel()

	calls := 0
	i := NewStandard("zoo.Animal", reflect.TypeOf(Animal{}), WithConstructor(func() Animal {
		calls++
		return Animal{Name: "default"}
	}))
	v, err := i.Instantiate(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, &Animal{Name: "default"}, v)
	assert.Equal(t, 1, calls)

	p := NewStandard("zoo.Animal", reflect.TypeOf(Animal{}), WithConstructor(func() *Animal {
		panic("boom")
	}))
	_, err = p.Instantiate(nil, nil)
	assert.Equal(t, hydrate.ReasonConstructionFailed, reason(t, err))
}

func TestStandardNoDefaultConstructor(t *testing.T) {
	t.Parallel()

	i := NewStandard("app.Label", reflect.TypeOf(Label("")))
	assert.True(t, i.CanBeInstantiated())
	for range 3 {
		_, err := i.Instantiate(nil, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, hydrate.ErrInstantiation))
		assert.Equal(t, hydrate.ReasonNoDefaultConstructor, reason(t, err))
	}
	assert.True(t, i.IsSameClass(Label("x"), nil))
}

func TestStandardAbstract(t *testing.T) {
	t.Parallel()

	i := NewStandard("geo.Shape", reflect.TypeOf((*Shape)(nil)).Elem())
	_, err := i.Instantiate(nil, nil)
	assert.Equal(t, hydrate.ReasonNoDefaultConstructor, reason(t, err))

	a := NewStandard("zoo.Animal", reflect.TypeOf(Animal{}), WithAbstract(), WithConstructor(func() *Animal { return &Animal{} }))
	_, err = a.Instantiate(nil, nil)
	assert.Equal(t, hydrate.ReasonNoDefaultConstructor, reason(t, err), "abstract types never get a constructor")
}

func TestOptimized(t *testing.T) {
	t.Parallel()

	i := NewOptimized("zoo.Animal", reflect.TypeOf(Animal{}), func() any { return &Animal{} },
		WithLayout(sliceLayout{names: []string{"ID", "Name"}}))
	v, err := i.Instantiate([]any{3, "fido"}, nil)
	require.NoError(t, err)
	assert.Equal(t, &Animal{ID: 3, Name: "fido"}, v)
	assert.True(t, i.IsSameClass(v, nil))

	var intercepted []any
	hooked := NewOptimized("zoo.Animal", reflect.TypeOf(Animal{}), func() any { return &Animal{} },
		WithIntercept(func(v any) any {
			intercepted = append(intercepted, v)
			v.(*Animal).Name = "wrapped"
			return v
		}))
	v, err = hooked.Instantiate(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "wrapped", v.(*Animal).Name)
	assert.Len(t, intercepted, 1)
}

func TestIllegal(t *testing.T) {
	t.Parallel()

	i := NewIllegal("zoo.Animal", reflect.TypeOf(Animal{}))
	assert.False(t, i.CanBeInstantiated())

	_, err := i.Instantiate([]any{1, "x"}, nil)
	require.Error(t, err)
	assert.Equal(t, hydrate.ReasonIllegalAttempt, reason(t, err))
	assert.Contains(t, err.Error(), "zoo.Animal")

	for _, obj := range []any{&Animal{}, Animal{}, &Dog{}, nil, map[string]any{}} {
		assert.False(t, i.IsSameClass(obj, nil))
	}
	assert.True(t, i.IsInstance(&Dog{}, nil))
}

func TestMap(t *testing.T) {
	t.Parallel()

	_, err := NewMap("")
	require.Error(t, err)
	assert.True(t, hydrate.IsConfigError(err))

	i, err := NewMap("dyn.Order", WithLayout(sliceLayout{names: []string{"id", "total"}}))
	require.NoError(t, err)

	v, err := i.Instantiate(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{TypeKey: "dyn.Order"}, v)
	assert.True(t, i.IsSameClass(v, nil))
	assert.True(t, i.IsInstance(v, nil))

	v, err = i.Instantiate([]any{7, 9.5}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{TypeKey: "dyn.Order", "id": 7, "total": 9.5}, v)

	other := map[string]any{TypeKey: "dyn.Invoice"}
	assert.False(t, i.IsSameClass(other, nil))
	assert.False(t, i.IsInstance(other, nil))
	assert.False(t, i.IsSameClass(map[string]any{TypeKey: "dyn.order"}, nil))
	assert.False(t, i.IsSameClass(map[string]any{}, nil))
	assert.False(t, i.IsSameClass(map[string]any{TypeKey: 1}, nil))
	assert.False(t, i.IsSameClass(&Animal{}, nil))
	assert.Nil(t, i.MappedType())
}

type lazyPoint struct{ target *Point }

func (*lazyPoint) ProxiedType() reflect.Type { return reflect.TypeOf(Point{}) }

func TestProxy(t *testing.T) {
	t.Parallel()

	layout := layoutFunc(func(instance any, values []any) error {
		p := instance.(*lazyPoint)
		p.target = &Point{X: values[0].(int), Y: values[1].(int)}
		return nil
	})
	i := NewProxy("geo.Point", reflect.TypeOf(Point{}), func() (any, error) { return &lazyPoint{}, nil }, WithLayout(layout))
	v, err := i.Instantiate([]any{1, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, &Point{X: 1, Y: 2}, v.(*lazyPoint).target)
	assert.True(t, i.IsInstance(v, nil))
	assert.True(t, i.IsSameClass(v, nil))
	assert.True(t, i.IsSameClass(&Point{}, nil))
	assert.False(t, i.IsSameClass(&Animal{}, nil))

	failing := NewProxy("geo.Point", reflect.TypeOf(Point{}), func() (any, error) { return nil, errors.New("no session") })
	_, err = failing.Instantiate(nil, nil)
	assert.Equal(t, hydrate.ReasonConstructionFailed, reason(t, err))
}

type layoutFunc func(any, []any) error

func (f layoutFunc) Inject(instance any, values []any) error { return f(instance, values) }

func NewPoint(x, y int) Point { return Point{X: x, Y: y} }

func TestRecord(t *testing.T) {
	t.Parallel()

	intT := reflect.TypeOf(0)
	components := []reflect.Type{intT, intT}
	i := NewRecord("geo.Point", reflect.TypeOf(Point{}), components,
		func(x int) Point { return Point{X: x} },   // wrong arity
		func(x, y string) Point { return Point{} }, // wrong types
		NewPoint,
	)
	v, err := i.Instantiate([]any{int64(1), 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, Point{X: 1, Y: 2}, v)
	assert.True(t, i.IsSameClass(v, nil))

	_, err = i.Instantiate([]any{1}, nil)
	assert.Equal(t, hydrate.ReasonConstructionFailed, reason(t, err))
	_, err = i.Instantiate(nil, nil)
	assert.Equal(t, hydrate.ReasonConstructionFailed, reason(t, err))
	_, err = i.Instantiate([]any{"a", 2}, nil)
	assert.Equal(t, hydrate.ReasonConstructionFailed, reason(t, err))
}

func TestRecordNoMatchingConstructor(t *testing.T) {
	t.Parallel()

	intT := reflect.TypeOf(0)
	// Construction succeeds, the failure is reported lazily.
	i := NewRecord("geo.Point", reflect.TypeOf(Point{}), []reflect.Type{intT, intT}, func(x int) Point { return Point{} })
	assert.True(t, i.CanBeInstantiated())
	_, err := i.Instantiate([]any{1, 2}, nil)
	assert.Equal(t, hydrate.ReasonNoMatchingConstructor, reason(t, err))
}

func TestRecordConstructionFailed(t *testing.T) {
	t.Parallel()

	intT := reflect.TypeOf(0)
	cause := errors.New("negative coordinate")
	i := NewRecord("geo.Point", reflect.TypeOf(Point{}), []reflect.Type{intT, intT}, func(x, y int) (*Point, error) {
		if x < 0 {
			return nil, cause
		}
		if y < 0 {
			panic(fmt.Errorf("y=%d", y))
		}
		return &Point{X: x, Y: y}, nil
	})
	v, err := i.Instantiate([]any{1, 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, &Point{X: 1, Y: 1}, v)

	_, err = i.Instantiate([]any{-1, 1}, nil)
	assert.Equal(t, hydrate.ReasonConstructionFailed, reason(t, err))
	assert.ErrorIs(t, err, cause)

	_, err = i.Instantiate([]any{1, -1}, nil)
	assert.Equal(t, hydrate.ReasonConstructionFailed, reason(t, err))
}

type userStrategy struct{}

func (userStrategy) Instantiate(values []any, _ *hydrate.Session) (any, error) {
	return &Animal{Name: fmt.Sprint(values...)}, nil
}

func (userStrategy) ReturnedType() reflect.Type { return reflect.TypeOf(Animal{}) }

func TestDelegating(t *testing.T) {
	t.Parallel()

	_, err := NewDelegating("zoo.Animal", nil)
	assert.True(t, hydrate.IsConfigError(err))

	i, err := NewDelegating("zoo.Animal", userStrategy{})
	require.NoError(t, err)
	v, err := i.Instantiate([]any{"a", "b"}, hydrate.NewSession())
	require.NoError(t, err)
	assert.Equal(t, &Animal{Name: "ab"}, v)
	assert.True(t, i.IsSameClass(v, nil))
	assert.True(t, i.IsInstance(&Dog{}, nil))
	assert.False(t, i.IsSameClass(&Dog{}, nil))
}

func TestConcurrentInstantiate(t *testing.T) {
	t.Parallel()

	i := NewStandard("zoo.Animal", reflect.TypeOf(Animal{}), WithLayout(sliceLayout{names: []string{"ID", "Name"}}))
	const n = 64
	results := make([]any, n)
	var wg sync.WaitGroup
	for k := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := i.Instantiate([]any{k, "a"}, nil)
			assert.NoError(t, err)
			results[k] = v
		}()
	}
	wg.Wait()

	seen := make(map[*Animal]struct{}, n)
	for k, v := range results {
		a := v.(*Animal)
		assert.Equal(t, k, a.ID)
		seen[a] = struct{}{}
	}
	assert.Len(t, seen, n, "instances must not alias")
}

func TestKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "record", Record.String())
	assert.Equal(t, "Kind(99)", Kind(99).String())
}
