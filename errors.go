package hydrate

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors, one per failure family.
var (
	// ErrInstantiation is returned when an instance of a managed type cannot be created.
	ErrInstantiation = errors.New("hydrate: instantiation failed")

	// ErrDiscriminator is returned when a discriminator value cannot be mapped
	// to a concrete managed type, or a type cannot be mapped to a value.
	ErrDiscriminator = errors.New("hydrate: discriminator resolution failed")

	// ErrConfig is returned for invalid metamodel configuration detected at build time.
	ErrConfig = errors.New("hydrate: invalid configuration")

	// ErrUnsupported is returned by operations that cannot be answered in the given context.
	ErrUnsupported = errors.New("hydrate: unsupported operation")
)

// Reason classifies an InstantiationError.
type Reason uint8

// Instantiation failure reasons.
const (
	ReasonNoDefaultConstructor Reason = iota + 1
	ReasonIllegalAttempt
	ReasonNoMatchingConstructor
	ReasonConstructionFailed
	ReasonUnsupported
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonNoDefaultConstructor:
		return "no default constructor"
	case ReasonIllegalAttempt:
		return "illegal instantiation attempt"
	case ReasonNoMatchingConstructor:
		return "no matching constructor"
	case ReasonConstructionFailed:
		return "construction failed"
	case ReasonUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("Reason(%d)", uint8(r))
	}
}

// InstantiationError reports a failed Instantiate call.
type InstantiationError struct {
	Type   string // Role name or Go type name of the managed type
	Reason Reason
	Err    error // Underlying cause, if any
}

// Error returns the error string.
func (e *InstantiationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hydrate: cannot instantiate %s (%s): %v", e.Type, e.Reason, e.Err)
	}
	return fmt.Sprintf("hydrate: cannot instantiate %s (%s)", e.Type, e.Reason)
}

// Unwrap returns the underlying error.
func (e *InstantiationError) Unwrap() error {
	return e.Err
}

// Is reports whether the target matches ErrInstantiation.
func (e *InstantiationError) Is(target error) bool {
	return target == ErrInstantiation
}

// NewInstantiationError returns a new InstantiationError.
func NewInstantiationError(typ string, reason Reason, err error) *InstantiationError {
	return &InstantiationError{Type: typ, Reason: reason, Err: err}
}

// IsInstantiationError returns true if the error is an InstantiationError.
func IsInstantiationError(err error) bool {
	if err == nil {
		return false
	}
	var e *InstantiationError
	return errors.As(err, &e) || errors.Is(err, ErrInstantiation)
}

// InstantiationReason extracts the failure reason from err.
// The second result is false if err carries no InstantiationError.
func InstantiationReason(err error) (Reason, bool) {
	var e *InstantiationError
	if errors.As(err, &e) {
		return e.Reason, true
	}
	return 0, false
}

// DiscriminatorError reports an unresolvable discriminator value or type.
type DiscriminatorError struct {
	Role  string // Role of the hierarchy (or entity) being resolved
	Value any    // Offending discriminator value
	Err   error  // Underlying error
}

// Error returns the error string.
func (e *DiscriminatorError) Error() string {
	msg := fmt.Sprintf("hydrate: unresolvable discriminator value %#v for %s", e.Value, e.Role)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *DiscriminatorError) Unwrap() error {
	return e.Err
}

// Is reports whether the target matches ErrDiscriminator.
func (e *DiscriminatorError) Is(target error) bool {
	return target == ErrDiscriminator
}

// NewDiscriminatorError returns a new DiscriminatorError.
func NewDiscriminatorError(role string, value any, err error) *DiscriminatorError {
	return &DiscriminatorError{Role: role, Value: value, Err: err}
}

// IsDiscriminatorError returns true if the error is a DiscriminatorError.
func IsDiscriminatorError(err error) bool {
	if err == nil {
		return false
	}
	var e *DiscriminatorError
	return errors.As(err, &e) || errors.Is(err, ErrDiscriminator)
}

// ConfigError represents an invalid boot descriptor or build option.
type ConfigError struct {
	Type    string // Managed type the error belongs to (optional)
	Option  string // Offending setting or attribute
	Value   any
	Message string
}

// Error returns the error string.
func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("hydrate: config error")
	if e.Type != "" {
		b.WriteString(" on type ")
		b.WriteString(e.Type)
	}
	if e.Option != "" {
		fmt.Fprintf(&b, " for %q", e.Option)
	}
	if e.Value != nil {
		fmt.Fprintf(&b, " (value: %v)", e.Value)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Is reports whether the target matches ErrConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// NewConfigError returns a new ConfigError.
func NewConfigError(typ, option string, value any, message string) *ConfigError {
	return &ConfigError{Type: typ, Option: option, Value: value, Message: message}
}

// IsConfigError returns true if the error is a ConfigError.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigError
	return errors.As(err, &e) || errors.Is(err, ErrConfig)
}

// UnsupportedError is returned by operations that are explicitly not
// implementable in the given context.
type UnsupportedError struct {
	Op      string
	Message string
}

// Error returns the error string.
func (e *UnsupportedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("hydrate: %s is not supported: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("hydrate: %s is not supported", e.Op)
}

// Is reports whether the target matches ErrUnsupported.
func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

// NewUnsupportedError returns a new UnsupportedError.
func NewUnsupportedError(op, message string) *UnsupportedError {
	return &UnsupportedError{Op: op, Message: message}
}

// IsUnsupported returns true if the error is an UnsupportedError.
func IsUnsupported(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsupportedError
	return errors.As(err, &e) || errors.Is(err, ErrUnsupported)
}

// AggregateError represents multiple errors collected during a metamodel build.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "hydrate: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("hydrate: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors so errors.Is/As inspect each of them.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
