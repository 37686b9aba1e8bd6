package representation

import (
	"fmt"

	"github.com/syssam/hydrate"
	"github.com/syssam/hydrate/property"
)

// Layout distributes value vectors into instances and reads them back,
// one slot per attribute in declaration order.
type Layout struct {
	role     string
	accesses []property.Access
	// keepNil writes nil slots instead of skipping them.
	keepNil bool
}

// NewLayout returns a layout over accesses for the managed type role.
func NewLayout(role string, accesses []property.Access) *Layout {
	return &Layout{role: role, accesses: accesses}
}

// Len returns the number of slots.
func (l *Layout) Len() int { return len(l.accesses) }

// Names returns the attribute names in slot order.
func (l *Layout) Names() []string {
	names := make([]string, len(l.accesses))
	for i, a := range l.accesses {
		names[i] = a.Name()
	}
	return names
}

// Inject writes values into instance. The vector must have exactly one
// value per slot. Nil values leave the target at its zero value.
func (l *Layout) Inject(instance any, values []any) error {
	if len(values) != len(l.accesses) {
		return hydrate.NewInstantiationError(l.role, hydrate.ReasonConstructionFailed,
			fmt.Errorf("expected %d values, got %d", len(l.accesses), len(values)))
	}
	for i, v := range values {
		if err := l.set(instance, i, v); err != nil {
			return err
		}
	}
	return nil
}

// InjectMapped writes src into instance through mapping, which holds one
// source position per slot. Slots mapped to -1 or past the end of src are
// left untouched, so attributes absent from src are never written.
func (l *Layout) InjectMapped(instance any, src []any, mapping []int) error {
	if len(mapping) != len(l.accesses) {
		return hydrate.NewInstantiationError(l.role, hydrate.ReasonConstructionFailed,
			fmt.Errorf("expected %d mapped slots, got %d", len(l.accesses), len(mapping)))
	}
	for i, j := range mapping {
		if j < 0 || j >= len(src) {
			continue
		}
		if err := l.set(instance, i, src[j]); err != nil {
			return err
		}
	}
	return nil
}

func (l *Layout) set(instance any, i int, v any) error {
	if v == nil && !l.keepNil {
		return nil
	}
	if err := l.accesses[i].Set(instance, v); err != nil {
		return hydrate.NewInstantiationError(l.role, hydrate.ReasonConstructionFailed,
			fmt.Errorf("attribute %s: %w", l.accesses[i].Name(), err))
	}
	return nil
}

// Extract reads the value vector of instance.
func (l *Layout) Extract(instance any) ([]any, error) {
	values := make([]any, len(l.accesses))
	for i, a := range l.accesses {
		v, err := a.Get(instance)
		if err != nil {
			return nil, fmt.Errorf("representation: extract %s.%s: %w", l.role, a.Name(), err)
		}
		values[i] = v
	}
	return values, nil
}
