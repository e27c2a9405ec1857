package query

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/tilelib/population"
	"github.com/grailbio/tilelib/tile"
	"github.com/grailbio/tilelib/tilelib"
)

// Opts configures an Engine.
type Opts struct {
	// Parallelism bounds the number of phases reconstructed concurrently.
	Parallelism int
	// MaxWalkSteps bounds the number of positions an around-locus query may
	// visit per phase.
	MaxWalkSteps int
	// CacheShards is the number of shards of the translator cache.
	CacheShards int
	// Humans restricts queries to the named humans. Empty means every human
	// of the population.
	Humans []string
}

// DefaultOpts are the default Engine options.
var DefaultOpts = Opts{
	Parallelism:  runtime.NumCPU(),
	MaxWalkSteps: 10000,
	CacheShards:  16,
}

// Sequence is the reconstructed sequence of one human. The bases are
// uppercase.
type Sequence struct {
	Human  string
	Phases [2]string
}

// Engine answers population sequence queries over a tile library.
type Engine struct {
	lib    *tilelib.Library
	source population.Source
	opts   Opts
	cache  *translatorCache

	mu    sync.Mutex
	stats Stats
}

// New creates an Engine. Requests to source are split per path and end at
// the last position of each path.
func New(lib *tilelib.Library, source population.Source, opts Opts) *Engine {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	if opts.MaxWalkSteps <= 0 {
		opts.MaxWalkSteps = DefaultOpts.MaxWalkSteps
	}
	if opts.CacheShards <= 0 {
		opts.CacheShards = 1
	}
	if len(opts.Humans) > 0 {
		source = population.Subset{Source: source, Humans: opts.Humans}
	}
	return &Engine{
		lib: lib,
		source: population.PathSplitter{
			Source: source,
			Layout: lib.Layout(),
			LastPosition: func(version, path int) (tile.Position, bool) {
				tp, ok := lib.LastPositionInPath(version, path)
				return tp.Position, ok
			},
		},
		opts:   opts,
		cache:  newTranslatorCache(opts.CacheShards),
	}
}

// Stats returns the counters accumulated over every query of the engine.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Engine) addStats(s Stats) {
	e.mu.Lock()
	e.stats.Merge(s)
	e.mu.Unlock()
}

// normalize converts coordinates of the given indexing to 0-based ones.
func normalize(indexing int, coords ...*int64) error {
	switch indexing {
	case 0:
	case 1:
		for _, c := range coords {
			*c--
		}
	default:
		return errors.E(errors.Invalid, fmt.Sprintf("indexing %d is neither 0 nor 1", indexing))
	}
	return nil
}

// annotatedRange returns the annotated range of the chromosome, or a
// LocusOutOfRangeError if it has none.
func (e *Engine) annotatedRange(assembly tile.Assembly, chr tile.Chromosome, field string, value int64) (min, max int64, err error) {
	min, max, ok := e.lib.LociRange(assembly, chr)
	if !ok {
		return 0, 0, outOfRange(assembly, chr, field, value, 0, 0)
	}
	return min, max, nil
}

// positionsOverlapping returns the smallest and largest positions whose
// loci overlap [lo, hi). Only positions of the version of the smallest one
// are considered.
func (e *Engine) positionsOverlapping(assembly tile.Assembly, chr tile.Chromosome, lo, hi int64) (first, last tile.Position, ok bool) {
	loci := e.lib.LociOverlapping(assembly, chr, lo, hi)
	if len(loci) == 0 {
		return 0, 0, false
	}
	first = loci[0].Position
	for _, a := range loci[1:] {
		if a.Position < first {
			first = a.Position
		}
	}
	layout := e.lib.Layout()
	version := layout.Version(first)
	last = first
	for _, a := range loci {
		if layout.Version(a.Position) == version && a.Position > last {
			last = a.Position
		}
	}
	return first, last, true
}

// lookback returns the first position whose variants may span into p.
func (e *Engine) lookback(p tile.Position) tile.Position {
	layout := e.lib.Layout()
	n := e.lib.MaxSpanInPath(layout.Version(p), layout.Path(p)) - 1
	if step := layout.Step(p); n > step {
		n = step
	}
	if n < 0 {
		n = 0
	}
	return p - tile.Position(n)
}

// each runs fn(i) for every i in [0, n), splitting the range into at most
// Parallelism jobs.
func (e *Engine) each(n int, fn func(i int) error) error {
	jobs := e.opts.Parallelism
	if jobs > n {
		jobs = n
	}
	if jobs == 0 {
		return nil
	}
	return traverse.Each(jobs, func(job int) error {
		for i := job * n / jobs; i < (job+1)*n/jobs; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	})
}
