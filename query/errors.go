package query

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/tilelib/tile"
)

// LocusOutOfRangeError reports a query coordinate outside the annotated
// range of a chromosome. It is carried by errors of kind errors.NotExist.
type LocusOutOfRangeError struct {
	Assembly   tile.Assembly
	Chromosome tile.Chromosome
	// Field names the offending request field.
	Field string
	Value int64
	// Min and Max bound the annotated range, [Min, Max). Both are zero if the
	// chromosome has no annotation on the assembly.
	Min, Max int64
}

// Error implements error.
func (e *LocusOutOfRangeError) Error() string {
	if e.Min == 0 && e.Max == 0 {
		return fmt.Sprintf("%v on %v: no tile is annotated", e.Chromosome, e.Assembly)
	}
	return fmt.Sprintf("%v on %v: %s %d is outside the annotated range [%d, %d)",
		e.Chromosome, e.Assembly, e.Field, e.Value, e.Min, e.Max)
}

func outOfRange(assembly tile.Assembly, chr tile.Chromosome, field string, value, min, max int64) error {
	return errors.E(errors.NotExist, &LocusOutOfRangeError{
		Assembly:   assembly,
		Chromosome: chr,
		Field:      field,
		Value:      value,
		Min:        min,
		Max:        max,
	})
}

// CGFTranslatorError reports a call that names no variant the query can
// place. It is carried by errors of kind errors.Integrity.
type CGFTranslatorError struct {
	CGF string
	Msg string
}

// Error implements error.
func (e *CGFTranslatorError) Error() string {
	return fmt.Sprintf("cgf translator: %s: %s", e.CGF, e.Msg)
}

func translatorError(cgf, format string, args ...interface{}) error {
	return errors.E(errors.Integrity, &CGFTranslatorError{CGF: cgf, Msg: fmt.Sprintf(format, args...)})
}

// EmptyPathError reports a walk into a path of the chromosome that has no
// positions in the library. It is carried by errors of kind errors.NotExist.
type EmptyPathError struct {
	Version, Path int
}

// Error implements error.
func (e *EmptyPathError) Error() string {
	return fmt.Sprintf("path %#x version %d has no positions", e.Path, e.Version)
}

func emptyPath(version, path int) error {
	return errors.E(errors.NotExist, &EmptyPathError{Version: version, Path: path})
}

func find(err error, match func(error) bool) bool {
	for err != nil {
		if match(err) {
			return true
		}
		e, ok := err.(*errors.Error)
		if !ok {
			return false
		}
		err = e.Err
	}
	return false
}

// AsLocusOutOfRange returns the LocusOutOfRangeError carried by err.
func AsLocusOutOfRange(err error) (r *LocusOutOfRangeError, ok bool) {
	ok = find(err, func(err error) bool {
		r, _ = err.(*LocusOutOfRangeError)
		return r != nil
	})
	return
}

// IsTranslatorError reports whether err carries a CGFTranslatorError.
func IsTranslatorError(err error) bool {
	return find(err, func(err error) bool {
		_, ok := err.(*CGFTranslatorError)
		return ok
	})
}

// IsEmptyPath reports whether err carries an EmptyPathError.
func IsEmptyPath(err error) bool {
	return find(err, func(err error) bool {
		_, ok := err.(*EmptyPathError)
		return ok
	})
}
