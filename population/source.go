package population

import (
	"context"
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/tilelib/tile"
)

// Phases holds the calls of the two phases of a human, each ordered by
// position.
type Phases [2][]string

// Calls maps a human name to its phased calls.
type Calls map[string]Phases

// Humans returns the sorted names of the humans in c.
func (c Calls) Humans() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Source provides population calls.
type Source interface {
	// Calls returns the calls of every human that start at a position in
	// [first, last]. Every human known to the source is present in the
	// result, even if it has no call in the range.
	Calls(ctx context.Context, first, last tile.Position) (Calls, error)
}

// UnexpectedBehaviorError reports population calls that are inconsistent
// with the tile library or with each other.
type UnexpectedBehaviorError struct {
	Msg string
}

// Error implements error.
func (e *UnexpectedBehaviorError) Error() string { return "unexpected population behavior: " + e.Msg }

// Unexpected returns an UnexpectedBehaviorError of kind errors.Integrity.
func Unexpected(format string, args ...interface{}) error {
	return errors.E(errors.Integrity, &UnexpectedBehaviorError{Msg: fmt.Sprintf(format, args...)})
}

// IsUnexpected reports whether err carries an UnexpectedBehaviorError.
func IsUnexpected(err error) bool {
	for err != nil {
		switch e := err.(type) {
		case *UnexpectedBehaviorError:
			return true
		case *errors.Error:
			err = e.Err
		default:
			return false
		}
	}
	return false
}

// call is a parsed cgf string.
type call struct {
	pos tile.Position
	cgf string
}

func parseCalls(layout tile.Layout, phase []string) ([]call, error) {
	r := make([]call, len(phase))
	for i, s := range phase {
		p, err := layout.PositionOfCGF(s)
		if err != nil {
			return nil, err
		}
		r[i] = call{p, s}
	}
	return r, nil
}

// SortPhase orders the calls of a phase by position. Calls at the same
// position keep their order.
func SortPhase(layout tile.Layout, phase []string) error {
	calls, err := parseCalls(layout, phase)
	if err != nil {
		return err
	}
	sort.SliceStable(calls, func(i, j int) bool { return calls[i].pos < calls[j].pos })
	for i := range calls {
		phase[i] = calls[i].cgf
	}
	return nil
}

// filterPhase returns the calls of phase that start in [first, last].
func filterPhase(layout tile.Layout, phase []string, first, last tile.Position) ([]string, error) {
	calls, err := parseCalls(layout, phase)
	if err != nil {
		return nil, err
	}
	lo := sort.Search(len(calls), func(i int) bool { return calls[i].pos >= first })
	hi := sort.Search(len(calls), func(i int) bool { return calls[i].pos > last })
	if hi <= lo {
		return nil, nil
	}
	r := make([]string, 0, hi-lo)
	for _, c := range calls[lo:hi] {
		r = append(r, c.cgf)
	}
	return r, nil
}

func filterCalls(layout tile.Layout, calls Calls, first, last tile.Position) (Calls, error) {
	if last < first {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("population range: last position %#x is before first %#x", uint64(last), uint64(first)))
	}
	r := make(Calls, len(calls))
	for name, phases := range calls {
		var out Phases
		for i, phase := range phases {
			f, err := filterPhase(layout, phase, first, last)
			if err != nil {
				return nil, errors.E(err, fmt.Sprintf("human %s phase %d", name, i))
			}
			out[i] = f
		}
		r[name] = out
	}
	return r, nil
}
