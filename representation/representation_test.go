package representation

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/hydrate"
	"github.com/syssam/hydrate/boot"
	"github.com/syssam/hydrate/instantiator"
	"github.com/syssam/hydrate/property"
	"github.com/syssam/hydrate/registry"
)

type (
	Account struct {
		ID    int
		Owner string
	}
	Money struct {
		Amount   int64
		Currency string
	}
	Vehicle interface{ Wheels() int }
)

func NewMoney(amount int64, currency string) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency required")
	}
	return Money{Amount: amount, Currency: currency}, nil
}

type accountProxy struct{ Account }

func (*accountProxy) ProxiedType() reflect.Type { return reflect.TypeOf(Account{}) }

type accountInstantiator struct{}

func (accountInstantiator) Instantiate(values []any, _ *hydrate.Session) (any, error) {
	return &Account{ID: values[0].(int), Owner: "custom"}, nil
}

func (accountInstantiator) ReturnedType() reflect.Type { return reflect.TypeOf(Account{}) }

func attrs(names ...string) []*boot.Attribute {
	out := make([]*boot.Attribute, len(names))
	for i, n := range names {
		out[i] = &boot.Attribute{Name: n, Classification: boot.Basic}
	}
	return out
}

func TestBuildSelection(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	require.NoError(t, reg.RegisterInstantiator("accounts", accountInstantiator{}))
	require.NoError(t, reg.RegisterFactory("bank.Fast", func() any { return &Account{} }))
	require.NoError(t, reg.RegisterProxyFactory("bank.Lazy", func() (any, error) { return &accountProxy{}, nil }))
	require.NoError(t, reg.RegisterConstructors("bank.Money", NewMoney))
	accountT := reflect.TypeOf(Account{})

	tests := []struct {
		name   string
		typ    *boot.Type
		goType reflect.Type
		want   instantiator.Kind
	}{
		{
			name: "map",
			typ:  &boot.Type{Name: "dyn.Account", Kind: boot.KindEntity, Mode: boot.ModeMap, Attributes: attrs("id", "owner")},
			want: instantiator.Map,
		},
		{
			name: "user instantiator",
			typ:  &boot.Type{Name: "bank.Account", Kind: boot.KindEntity, Mode: boot.ModeNative, Instantiator: "accounts", Attributes: attrs("id")},
			want: instantiator.Delegating,
		},
		{
			name:   "record",
			typ:    &boot.Type{Name: "bank.Money", Kind: boot.KindEmbeddable, Mode: boot.ModeRecord, Attributes: attrs("amount", "currency")},
			goType: reflect.TypeOf(Money{}),
			want:   instantiator.Record,
		},
		{
			name:   "abstract entity",
			typ:    &boot.Type{Name: "bank.Base", Kind: boot.KindEntity, Mode: boot.ModeNative, Abstract: true, Attributes: attrs("id")},
			goType: accountT,
			want:   instantiator.Illegal,
		},
		{
			name:   "interface entity",
			typ:    &boot.Type{Name: "fleet.Vehicle", Kind: boot.KindEntity, Mode: boot.ModeNative, NotInstantiable: true, Attributes: attrs("wheels")},
			goType: reflect.TypeOf((*Vehicle)(nil)).Elem(),
			want:   instantiator.Illegal,
		},
		{
			name:   "proxy",
			typ:    &boot.Type{Name: "bank.Lazy", Kind: boot.KindEmbeddable, Mode: boot.ModeNative, Proxy: true, Attributes: attrs("id")},
			goType: accountT,
			want:   instantiator.Proxy,
		},
		{
			name:   "proxy without factory",
			typ:    &boot.Type{Name: "bank.Eager", Kind: boot.KindEmbeddable, Mode: boot.ModeNative, Proxy: true, Attributes: attrs("id")},
			goType: accountT,
			want:   instantiator.Standard,
		},
		{
			name:   "optimized",
			typ:    &boot.Type{Name: "bank.Fast", Kind: boot.KindEntity, Mode: boot.ModeNative, Attributes: attrs("id")},
			goType: accountT,
			want:   instantiator.Optimized,
		},
		{
			name:   "standard",
			typ:    &boot.Type{Name: "bank.Account", Kind: boot.KindEntity, Mode: boot.ModeNative, Attributes: attrs("id", "owner")},
			goType: reflect.PointerTo(accountT),
			want:   instantiator.Standard,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := Build(tt.typ, tt.goType, WithRegistry(reg))
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Instantiator().Kind())
			assert.Equal(t, tt.typ.Mode, s.Mode())
			assert.Equal(t, tt.typ.Name, s.Instantiator().Role())
		})
	}
}

func TestBuildErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		typ    *boot.Type
		goType reflect.Type
		opts   []Option
	}{
		{name: "nil type"},
		{
			name: "no go type",
			typ:  &boot.Type{Name: "bank.Account", Kind: boot.KindEntity, Mode: boot.ModeNative},
		},
		{
			name: "unknown instantiator",
			typ:  &boot.Type{Name: "bank.Account", Kind: boot.KindEntity, Mode: boot.ModeNative, Instantiator: "nope"},
			opts: []Option{WithRegistry(registry.New())},
		},
		{
			name: "reserved map key",
			typ:  &boot.Type{Name: "dyn.Bad", Kind: boot.KindEntity, Mode: boot.ModeMap, Attributes: attrs(instantiator.TypeKey)},
		},
		{
			name:   "unresolvable attribute",
			typ:    &boot.Type{Name: "bank.Account", Kind: boot.KindEntity, Mode: boot.ModeNative, Attributes: attrs("balance")},
			goType: reflect.TypeOf(Account{}),
		},
		{
			name:   "nil optimizer",
			typ:    &boot.Type{Name: "bank.Account", Kind: boot.KindEntity, Mode: boot.ModeNative},
			goType: reflect.TypeOf(Account{}),
			opts:   []Option{WithOptimizer(nil)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Build(tt.typ, tt.goType, tt.opts...)
			require.Error(t, err)
			assert.True(t, hydrate.IsConfigError(err), "got %v", err)
		})
	}
}

func TestStandardRoundTrip(t *testing.T) {
	t.Parallel()

	s, err := Build(&boot.Type{Name: "bank.Account", Kind: boot.KindEntity, Mode: boot.ModeNative, Attributes: attrs("id", "owner")},
		reflect.TypeOf(Account{}))
	require.NoError(t, err)

	v, err := s.Instantiator().Instantiate([]any{int64(5), "ann"}, nil)
	require.NoError(t, err)
	assert.Equal(t, &Account{ID: 5, Owner: "ann"}, v)
	assert.True(t, s.Instantiator().IsInstance(v, nil))
	assert.True(t, s.Instantiator().IsSameClass(v, nil))

	values, err := s.Layout().Extract(v)
	require.NoError(t, err)
	assert.Equal(t, []any{5, "ann"}, values)
	assert.Equal(t, []string{"id", "owner"}, s.Layout().Names())

	v, err = s.Instantiator().Instantiate([]any{7, nil}, nil)
	require.NoError(t, err)
	assert.Equal(t, &Account{ID: 7}, v, "nil slots keep the zero value")

	_, err = s.Instantiator().Instantiate([]any{1}, nil)
	r, ok := hydrate.InstantiationReason(err)
	require.True(t, ok)
	assert.Equal(t, hydrate.ReasonConstructionFailed, r)

	acc, ok := s.ResolvePropertyAccess("owner")
	require.True(t, ok)
	assert.Equal(t, property.StrategyMixed, acc.Strategy())
	_, ok = s.ResolvePropertyAccess("missing")
	assert.False(t, ok)
	assert.Len(t, s.Accesses(), 2)
	assert.Nil(t, s.ProxyFactory())
}

func TestInjectMapped(t *testing.T) {
	t.Parallel()

	native, err := Build(&boot.Type{Name: "bank.Account", Kind: boot.KindEntity, Mode: boot.ModeNative, Attributes: attrs("id", "owner")},
		reflect.TypeOf(Account{}))
	require.NoError(t, err)
	dynamic, err := Build(&boot.Type{Name: "dyn.Order", Kind: boot.KindEntity, Mode: boot.ModeMap, Attributes: attrs("id", "note")}, nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		s       *Strategy
		src     []any
		mapping []int
		want    any
	}{
		{
			name:    "native reordered",
			s:       native,
			src:     []any{"ann", 5},
			mapping: []int{1, 0},
			want:    &Account{ID: 5, Owner: "ann"},
		},
		{
			name:    "native gap",
			s:       native,
			src:     []any{5},
			mapping: []int{0, -1},
			want:    &Account{ID: 5},
		},
		{
			name:    "map gap leaves the key out",
			s:       dynamic,
			src:     []any{7},
			mapping: []int{0, -1},
			want:    map[string]any{instantiator.TypeKey: "dyn.Order", "id": 7},
		},
		{
			name:    "map out of range",
			s:       dynamic,
			src:     []any{7},
			mapping: []int{0, 3},
			want:    map[string]any{instantiator.TypeKey: "dyn.Order", "id": 7},
		},
		{
			name:    "map present nil is kept",
			s:       dynamic,
			src:     []any{7, nil},
			mapping: []int{0, 1},
			want:    map[string]any{instantiator.TypeKey: "dyn.Order", "id": 7, "note": nil},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v, err := tt.s.Instantiator().Instantiate(nil, nil)
			require.NoError(t, err)
			require.NoError(t, tt.s.Layout().InjectMapped(v, tt.src, tt.mapping))
			assert.Equal(t, tt.want, v)
		})
	}

	v, err := native.Instantiator().Instantiate(nil, nil)
	require.NoError(t, err)
	err = native.Layout().InjectMapped(v, []any{1}, []int{0})
	r, ok := hydrate.InstantiationReason(err)
	require.True(t, ok)
	assert.Equal(t, hydrate.ReasonConstructionFailed, r)
}

func TestExtractNilInstance(t *testing.T) {
	t.Parallel()

	s, err := Build(&boot.Type{Name: "bank.Account", Kind: boot.KindEntity, Mode: boot.ModeNative, Attributes: attrs("id", "owner")},
		reflect.TypeOf(Account{}))
	require.NoError(t, err)
	for _, instance := range []any{nil, (*Account)(nil)} {
		var values []any
		require.NotPanics(t, func() { values, err = s.Layout().Extract(instance) })
		assert.Error(t, err)
		assert.Nil(t, values)
	}
}

func TestMapRepresentation(t *testing.T) {
	t.Parallel()

	s, err := Build(&boot.Type{Name: "dyn.Order", Kind: boot.KindEntity, Mode: boot.ModeMap, Attributes: attrs("id", "note")}, nil)
	require.NoError(t, err)
	for _, a := range s.Accesses() {
		assert.Equal(t, property.StrategyMap, a.Strategy())
	}

	empty, err := s.Instantiator().Instantiate(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{instantiator.TypeKey: "dyn.Order"}, empty)

	v, err := s.Instantiator().Instantiate([]any{1, nil}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{instantiator.TypeKey: "dyn.Order", "id": 1, "note": nil}, v)
	assert.True(t, s.Instantiator().IsSameClass(v, nil))
	assert.False(t, s.Instantiator().IsSameClass(map[string]any{instantiator.TypeKey: "dyn.Invoice"}, nil))
}

func TestRecordRepresentation(t *testing.T) {
	t.Parallel()

	s, err := Build(&boot.Type{Name: "bank.Money", Kind: boot.KindEmbeddable, Mode: boot.ModeRecord, Attributes: attrs("amount", "currency")},
		reflect.TypeOf(Money{}), WithConstructors(NewMoney))
	require.NoError(t, err)

	v, err := s.Instantiator().Instantiate([]any{int64(100), "EUR"}, nil)
	require.NoError(t, err)
	assert.Equal(t, Money{Amount: 100, Currency: "EUR"}, v)

	_, err = s.Instantiator().Instantiate([]any{int64(100), ""}, nil)
	require.Error(t, err)
	r, _ := hydrate.InstantiationReason(err)
	assert.Equal(t, hydrate.ReasonConstructionFailed, r)

	none, err := Build(&boot.Type{Name: "bank.Money", Kind: boot.KindEmbeddable, Mode: boot.ModeRecord, Attributes: attrs("amount", "currency")},
		reflect.TypeOf(Money{}))
	require.NoError(t, err, "a missing constructor is reported on use")
	_, err = none.Instantiator().Instantiate([]any{int64(1), "USD"}, nil)
	r, _ = hydrate.InstantiationReason(err)
	assert.Equal(t, hydrate.ReasonNoMatchingConstructor, r)
}

func TestProxyRepresentation(t *testing.T) {
	t.Parallel()

	s, err := Build(&boot.Type{Name: "bank.Lazy", Kind: boot.KindEmbeddable, Mode: boot.ModeNative, Proxy: true, Attributes: attrs("id")},
		reflect.TypeOf(Account{}), WithProxyFactory(func() (any, error) { return &accountProxy{}, nil }))
	require.NoError(t, err)
	require.NotNil(t, s.ProxyFactory())

	_, err = s.Instantiator().Instantiate([]any{3}, nil)
	require.Error(t, err, "proxies do not expose the mapped fields directly")

	v, err := s.Instantiator().Instantiate(nil, nil)
	require.NoError(t, err)
	assert.True(t, s.Instantiator().IsSameClass(v, nil))
}

func TestOptimizedIntercept(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	seen := 0
	s, err := Build(&boot.Type{Name: "bank.Account", Kind: boot.KindEntity, Mode: boot.ModeNative, Attributes: attrs("id")},
		reflect.TypeOf(Account{}),
		WithOptimizer(func() any { return &Account{Owner: "factory"} }),
		WithIntercept(func(v any) any {
			mu.Lock()
			seen++
			mu.Unlock()
			return v
		}))
	require.NoError(t, err)
	v, err := s.Instantiator().Instantiate([]any{4}, nil)
	require.NoError(t, err)
	assert.Equal(t, &Account{ID: 4, Owner: "factory"}, v)
	assert.Equal(t, 1, seen)
}

func TestConcurrentInstantiate(t *testing.T) {
	t.Parallel()

	s, err := Build(&boot.Type{Name: "bank.Account", Kind: boot.KindEntity, Mode: boot.ModeNative, Attributes: attrs("id", "owner")},
		reflect.TypeOf(Account{}))
	require.NoError(t, err)

	const n = 64
	out := make([]any, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.Instantiator().Instantiate([]any{i, "x"}, nil)
			if err == nil {
				out[i] = v
			}
		}()
	}
	wg.Wait()
	for i := range n {
		require.Equal(t, &Account{ID: i, Owner: "x"}, out[i])
		for j := i + 1; j < n; j++ {
			assert.NotSame(t, out[i], out[j])
		}
	}
}
