package tilelib

import (
	"fmt"
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
)

// ValidationError lists the constraints violated by an entity.
type ValidationError struct {
	// Entity describes the rejected entity, e.g. "tile variant 00.000.0001.000".
	Entity string
	// Violations maps a constraint name to the reasons it was violated.
	Violations map[string][]string
}

// Error implements error.
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Violations))
	for k := range e.Violations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "invalid %s:", e.Entity)
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, " %s: %s", k, strings.Join(e.Violations[k], ", "))
	}
	return b.String()
}

// Has reports whether the constraint named key was violated.
func (e *ValidationError) Has(key string) bool {
	_, ok := e.Violations[key]
	return ok
}

// violations accumulates the violations of one entity.
type violations map[string][]string

func (vs violations) add(key, format string, args ...interface{}) {
	vs[key] = append(vs[key], fmt.Sprintf(format, args...))
}

func (vs violations) err(entity string) error {
	if len(vs) == 0 {
		return nil
	}
	return errors.E(errors.Invalid, &ValidationError{Entity: entity, Violations: vs})
}

// MissingLocusError reports that the locus of a tile variant cannot be
// resolved because an endpoint position has no annotation on the assembly.
type MissingLocusError struct {
	Entity string
	// Start and End are set for the missing endpoints.
	Start, End bool
}

// Error implements error.
func (e *MissingLocusError) Error() string {
	var missing []string
	if e.Start {
		missing = append(missing, "start")
	}
	if e.End {
		missing = append(missing, "end")
	}
	return fmt.Sprintf("%s: no locus for the %s position", e.Entity, strings.Join(missing, " and "))
}

var (
	// ErrExistingStatistics is returned when statistics are initialized twice.
	ErrExistingStatistics = errors.E(errors.Exists, "genome statistics are already initialized")
	// ErrMissingStatistics is returned when statistics are updated before they
	// are initialized.
	ErrMissingStatistics = errors.E(errors.Precondition, "genome statistics are not initialized")
)

// Violations returns the validation error carried by err, if any.
func Violations(err error) (*ValidationError, bool) {
	for err != nil {
		switch e := err.(type) {
		case *ValidationError:
			return e, true
		case *errors.Error:
			err = e.Err
		default:
			return nil, false
		}
	}
	return nil, false
}

// AsMissingLocus returns the missing-locus error carried by err, if any.
func AsMissingLocus(err error) (*MissingLocusError, bool) {
	for err != nil {
		switch e := err.(type) {
		case *MissingLocusError:
			return e, true
		case *errors.Error:
			err = e.Err
		default:
			return nil, false
		}
	}
	return nil, false
}
