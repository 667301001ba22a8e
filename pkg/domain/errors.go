package domain

import (
	"errors"
	"fmt"
)

// ConfigError reports an invalid machine definition or registry setup. It is
// a programmer error discovered at process start and is never retried.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "config: " + e.Reason }

// Configf builds a ConfigError from a format string.
func Configf(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// ConstraintError reports a store uniqueness violation. Seeding recovers
// from it locally; entity creation surfaces it to the caller, who must roll
// back and may retry with corrected data.
type ConstraintError struct {
	Op  string
	Err error
}

func (e *ConstraintError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *ConstraintError) Unwrap() error { return e.Err }

// ReferentialError reports a broken foreign-key reference, e.g. a touch
// naming an actor, artifact or state that does not exist. Always fatal to
// the operation.
type ReferentialError struct {
	Op  string
	Err error
}

func (e *ReferentialError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *ReferentialError) Unwrap() error { return e.Err }

// NotFoundError reports a lookup that matched no row.
type NotFoundError struct {
	Entity string
	Ref    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Ref)
}

// IsConstraint reports whether err is (or wraps) a ConstraintError.
func IsConstraint(err error) bool {
	var ce *ConstraintError
	return errors.As(err, &ce)
}

// IsReferential reports whether err is (or wraps) a ReferentialError.
func IsReferential(err error) bool {
	var re *ReferentialError
	return errors.As(err, &re)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}
