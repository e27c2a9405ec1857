package population

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/tilelib/tile"
)

// PathSplitter is a Source that splits a request crossing paths into one
// request per path and concatenates the answers.
type PathSplitter struct {
	Source Source
	Layout tile.Layout
	// LastPosition returns the last position of a path, and false if the
	// path holds no positions. Per-path requests end there instead of at the
	// largest step the layout can address. Nil means the latter.
	LastPosition func(version, path int) (tile.Position, bool)
}

// Calls implements Source.
func (s PathSplitter) Calls(ctx context.Context, first, last tile.Position) (Calls, error) {
	l := s.Layout
	if last < first {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("population range: last position %#x is before first %#x", uint64(last), uint64(first)))
	}
	if l.SamePath(first, last) {
		return s.Source.Calls(ctx, first, last)
	}
	version := l.Version(first)
	if l.Version(last) != version {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("population range %#x-%#x crosses library versions", uint64(first), uint64(last)))
	}
	var calls Calls
	for path := l.Path(first); path <= l.Path(last); path++ {
		lo, err := l.PackPosition(version, path, 0)
		if err != nil {
			return nil, err
		}
		hi, err := l.PackPosition(version, path, l.MaxStep())
		if err != nil {
			return nil, err
		}
		if s.LastPosition != nil {
			end, ok := s.LastPosition(version, path)
			if !ok {
				continue
			}
			hi = end
		}
		if lo < first {
			lo = first
		}
		if hi > last {
			hi = last
		}
		if hi < lo {
			continue
		}
		part, err := s.Source.Calls(ctx, lo, hi)
		if err != nil {
			return nil, err
		}
		if calls, err = concatCalls(calls, part); err != nil {
			return nil, err
		}
	}
	if calls == nil {
		// Every path was empty; first still names the population.
		return s.Source.Calls(ctx, first, first)
	}
	return calls, nil
}
