package property

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is matched by every contract violation reported by
// this package. Callers should treat it as a bug at the call site rather
// than a condition to retry.
var ErrInvalidArgument = errors.New("attribut: invalid argument")

// ArgumentError describes a rejected argument.
type ArgumentError struct {
	Op     string // operation that rejected the argument (e.g., "Property.Set")
	Arg    string // name of the offending argument
	Reason string // what was wrong with it
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	return fmt.Sprintf("attribut: %s: invalid %s: %s", e.Op, e.Arg, e.Reason)
}

// Unwrap returns ErrInvalidArgument for errors.Is support.
func (e *ArgumentError) Unwrap() error {
	return ErrInvalidArgument
}

func argError(op, arg, reason string) error {
	return &ArgumentError{Op: op, Arg: arg, Reason: reason}
}

func absentError(op string) error {
	return argError(op, "value", "nil is not allowed on a non-nullable property")
}

// Must panics if err is non-nil and returns p otherwise.
// It is meant for package-level declarations:
//
//	var title = property.Must(property.New("title", "untitled"))
func Must[P any](p P, err error) P {
	if err != nil {
		panic(err)
	}
	return p
}
