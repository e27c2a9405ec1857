package population

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/tilelib/tile"
)

// MemSource is a Source that holds every call in memory.
type MemSource struct {
	layout tile.Layout
	calls  Calls
}

// NewMemSource creates a MemSource. The calls of each phase are sorted by
// position; calls is not modified.
func NewMemSource(layout tile.Layout, calls Calls) (*MemSource, error) {
	s := &MemSource{layout: layout, calls: make(Calls, len(calls))}
	for name, phases := range calls {
		var sorted Phases
		for i, phase := range phases {
			sorted[i] = append([]string(nil), phase...)
			if err := SortPhase(layout, sorted[i]); err != nil {
				return nil, errors.E(err, fmt.Sprintf("human %s phase %d", name, i))
			}
		}
		s.calls[name] = sorted
	}
	return s, nil
}

// Calls implements Source.
func (s *MemSource) Calls(ctx context.Context, first, last tile.Position) (Calls, error) {
	return filterCalls(s.layout, s.calls, first, last)
}

// All returns every call of the source.
func (s *MemSource) All() Calls { return s.calls }
