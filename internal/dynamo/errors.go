package dynamo

import (
	"fmt"

	"github.com/pkg/errors"
)

// Domain errors for problem assembly.
var (
	// ErrUnknownConstraint indicates a constraint type tag with no builder.
	ErrUnknownConstraint = errors.New("dynamo: not a valid constraint type")

	// ErrDimensionMismatch indicates phases or vectors whose sizes must agree.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")

	// ErrIndexOutOfRange indicates a structural index beyond the model counts.
	ErrIndexOutOfRange = errors.New("dynamo: index out of range")

	// ErrInvalidCoefficient indicates a non-numeric proportionality coefficient.
	ErrInvalidCoefficient = errors.New("dynamo: coef must be an int or a float")

	// ErrNoControlAtLastNode indicates a control-dependent constraint on the terminal node.
	ErrNoControlAtLastNode = errors.New("dynamo: no control at last node")

	// ErrShapeMismatch indicates reference data with an unexpected shape.
	ErrShapeMismatch = errors.New("dynamo: data shape mismatch")

	// ErrInvalidParameter indicates a missing, unknown or ill-typed parameter.
	ErrInvalidParameter = errors.New("dynamo: invalid parameter")

	// ErrDescriptorConsumed indicates a constraint descriptor dispatched twice.
	ErrDescriptorConsumed = errors.New("dynamo: descriptor already consumed")

	// ErrChannelIndex indicates an auxiliary-dynamics channel index beyond the channel count.
	ErrChannelIndex = errors.New("dynamo: channel index out of range")

	// ErrDuplicateRegistration indicates a second aggregator for one family slot.
	ErrDuplicateRegistration = errors.New("dynamo: slot already registered")

	// ErrIncompatibleModel indicates a model that cannot join an aggregator.
	ErrIncompatibleModel = errors.New("dynamo: incompatible auxiliary-dynamics model")
)

// ConfigError wraps an assembly error with the declaration that caused it.
type ConfigError struct {
	Subject string
	Value   any
	Wrapped error
}

func (e *ConfigError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %v", e.Subject, e.Wrapped)
	}
	return fmt.Sprintf("%s (%v): %v", e.Subject, e.Value, e.Wrapped)
}

func (e *ConfigError) Unwrap() error {
	return e.Wrapped
}

// Errorf builds a ConfigError around sentinel with a formatted detail.
func Errorf(subject string, value any, sentinel error, format string, args ...any) error {
	return &ConfigError{
		Subject: subject,
		Value:   value,
		Wrapped: errors.Wrapf(sentinel, format, args...),
	}
}
