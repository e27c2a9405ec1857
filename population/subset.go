package population

import (
	"context"
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/tilelib/tile"
)

// Subset is a Source that restricts another source to the named humans.
type Subset struct {
	Source Source
	Humans []string
}

// Calls implements Source. It fails with errors.NotExist if a named human
// is unknown to the underlying source.
func (s Subset) Calls(ctx context.Context, first, last tile.Position) (Calls, error) {
	calls, err := s.Source.Calls(ctx, first, last)
	if err != nil {
		return nil, err
	}
	r := make(Calls, len(s.Humans))
	for _, name := range s.Humans {
		phases, ok := calls[name]
		if !ok {
			return nil, errors.E(errors.NotExist, fmt.Sprintf("population: human %s not found", name))
		}
		r[name] = phases
	}
	return r, nil
}

// ParseHumans splits a comma-separated list of human names. Duplicates
// are dropped and the result is sorted.
func ParseHumans(list string) []string {
	seen := make(map[string]bool)
	var r []string
	start := 0
	for i := 0; i <= len(list); i++ {
		if i < len(list) && list[i] != ',' {
			continue
		}
		if name := list[start:i]; name != "" && !seen[name] {
			seen[name] = true
			r = append(r, name)
		}
		start = i + 1
	}
	sort.Strings(r)
	return r
}
