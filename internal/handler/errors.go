package handler

import (
	"errors"
	"fmt"
)

// Failure taxonomy for message processing. All three abort the surrounding
// transaction; the distinction matters to operators reading poison logs:
// validation and invariant failures never succeed on redelivery, lookup
// failures often do once the referenced record has been created by a
// slower-arriving event.
var (
	// ErrValidation marks a malformed or incomplete payload.
	ErrValidation = errors.New("validation failed")

	// ErrLookup marks a referenced case or link that does not exist (yet).
	ErrLookup = errors.New("lookup failed")

	// ErrInvariant marks a payload that is well-formed but conflicts with
	// stored state.
	ErrInvariant = errors.New("invariant violated")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func lookupf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrLookup, fmt.Sprintf(format, args...))
}

func invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}
