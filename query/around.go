package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/tilelib/population"
	"github.com/grailbio/tilelib/tile"
	"github.com/grailbio/tilelib/tilelib"
)

// AroundRequest asks for the bases within Radius of a target base.
type AroundRequest struct {
	Assembly   tile.Assembly
	Chromosome tile.Chromosome
	Target     int64
	Radius     int64
	// Indexing is 0 or 1, the base of Target.
	Indexing int
}

// AroundLocus returns, for every human ordered by name, the bases of each
// phase from Radius before the target base to Radius after it. A phase that
// deletes the target base carries only its neighbors.
func (e *Engine) AroundLocus(ctx context.Context, req AroundRequest) ([]Sequence, error) {
	target := req.Target
	if err := normalize(req.Indexing, &target); err != nil {
		return nil, err
	}
	if req.Radius < 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("around locus: negative radius %d", req.Radius))
	}
	min, max, err := e.annotatedRange(req.Assembly, req.Chromosome, "target_base", req.Target)
	if err != nil {
		return nil, err
	}
	switch {
	case target < min || target >= max:
		return nil, outOfRange(req.Assembly, req.Chromosome, "target_base", req.Target, min, max)
	case target-req.Radius < min:
		return nil, outOfRange(req.Assembly, req.Chromosome, "lower_base", req.Target-req.Radius, min, max)
	case target+req.Radius >= max:
		return nil, outOfRange(req.Assembly, req.Chromosome, "upper_base", req.Target+req.Radius, min, max)
	}
	loci := e.lib.LociContaining(req.Assembly, req.Chromosome, target)
	if len(loci) == 0 {
		return nil, outOfRange(req.Assembly, req.Chromosome, "target_base", req.Target, min, max)
	}
	center := loci[0].Position
	first, last, ok := e.positionsOverlapping(req.Assembly, req.Chromosome, target-req.Radius, target+req.Radius+1)
	if !ok {
		first, last = center, center
	}
	if first > center {
		first = center
	}
	if last < center {
		last = center
	}
	first = e.lookback(first)
	calls, err := e.source.Calls(ctx, first, last)
	if err != nil {
		return nil, err
	}
	q := &aroundQuery{
		e:        e,
		ctx:      ctx,
		assembly: req.Assembly,
		chr:      req.Chromosome,
		layout:   e.lib.Layout(),
		first:    first,
		last:     last,
		lower:    req.Target - req.Radius,
		upper:    req.Target + req.Radius,
		fetched:  map[tile.Position]population.Calls{},
		variants: map[string]*call{},
	}
	humans := calls.Humans()
	log.Debug.Printf("around %v:%d±%d on %v: center %#x, prefetched %#x-%#x, %d humans",
		req.Chromosome, target, req.Radius, req.Assembly, uint64(center), uint64(first), uint64(last), len(humans))
	seqs := make([]Sequence, len(humans))
	for i, h := range humans {
		seqs[i].Human = h
	}
	phaseStats := make([]Stats, 2*len(humans))
	err = e.each(len(phaseStats), func(i int) error {
		h, phase := humans[i/2], i%2
		w, err := q.newWalker(h, phase, calls[h][phase], &phaseStats[i])
		if err != nil {
			return errors.E(err, h, "phase", phaseName(phase))
		}
		s, err := w.around(center, target, req.Radius)
		if err != nil {
			return errors.E(err, h, "phase", phaseName(phase))
		}
		seqs[i/2].Phases[phase] = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	st := Stats{Queries: 1, Humans: int64(len(humans))}
	for _, s := range phaseStats {
		st.Merge(s)
	}
	e.addStats(st)
	return seqs, nil
}

// call is a population call resolved against the library.
type call struct {
	cgf       string
	pos, last tile.Position
	variant   tilelib.TileVariant
	locus     tilelib.Locus
}

// aroundQuery holds the state an around-locus query shares among its
// walkers.
type aroundQuery struct {
	e        *Engine
	ctx      context.Context
	assembly tile.Assembly
	chr      tile.Chromosome
	layout   tile.Layout
	// first and last bound the prefetched positions.
	first, last tile.Position
	// lower and upper are the first and last requested bases, in the
	// indexing of the request.
	lower, upper int64

	mu       sync.Mutex
	fetched  map[tile.Position]population.Calls
	variants map[string]*call
}

// resolve returns the call named by a cgf string.
func (q *aroundQuery) resolve(s string) (*call, error) {
	q.mu.Lock()
	c := q.variants[s]
	q.mu.Unlock()
	if c != nil {
		return c, nil
	}
	v, err := q.e.lib.VariantByCGF(s)
	if err != nil {
		if errors.Is(errors.NotExist, err) || errors.Is(errors.Invalid, err) {
			return nil, translatorError(s, "%v", err)
		}
		return nil, err
	}
	locus, err := q.e.lib.VariantLocus(&v, q.assembly)
	if err != nil {
		return nil, err
	}
	if locus.Chromosome != q.chr {
		return nil, translatorError(s, "variant is on %v, not %v", locus.Chromosome, q.chr)
	}
	c = &call{cgf: s, pos: v.Position, last: v.LastPosition(), variant: v, locus: locus}
	q.mu.Lock()
	q.variants[s] = c
	q.mu.Unlock()
	return c, nil
}

// fetch returns the calls that start at p.
func (q *aroundQuery) fetch(p tile.Position, st *Stats) (population.Calls, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if calls, ok := q.fetched[p]; ok {
		return calls, nil
	}
	st.Fetches++
	calls, err := q.e.source.Calls(q.ctx, p, p)
	if err != nil {
		return nil, err
	}
	q.fetched[p] = calls
	return calls, nil
}

// walker assembles the sequence of one phase around the target.
type walker struct {
	q      *aroundQuery
	human  string
	phase  int
	calls  []string
	pos    []tile.Position
	steps  int
	st     *Stats
	strand []byte
}

func (q *aroundQuery) newWalker(human string, phase int, calls []string, st *Stats) (*walker, error) {
	w := &walker{q: q, human: human, phase: phase, calls: calls, pos: make([]tile.Position, len(calls)), st: st}
	for i, c := range calls {
		p, err := q.layout.PositionOfCGF(c)
		if err != nil {
			return nil, err
		}
		w.pos[i] = p
	}
	return w, nil
}

// callAt returns the call of the phase that starts at p, or nil if there is
// none.
func (w *walker) callAt(p tile.Position) (*call, error) {
	if w.steps++; w.steps > w.q.e.opts.MaxWalkSteps {
		return nil, errors.E(errors.TooManyTries,
			fmt.Sprintf("around locus: walked more than %d positions", w.q.e.opts.MaxWalkSteps))
	}
	w.st.WalkSteps++
	if err := w.q.ctx.Err(); err != nil {
		return nil, errors.E(errors.Canceled, err)
	}
	var s string
	if p >= w.q.first && p <= w.q.last {
		i := sort.Search(len(w.pos), func(i int) bool { return w.pos[i] >= p })
		if i == len(w.pos) || w.pos[i] != p {
			return nil, nil
		}
		s = w.calls[i]
	} else {
		calls, err := w.q.fetch(p, w.st)
		if err != nil {
			return nil, err
		}
		phases, ok := calls[w.human]
		if !ok {
			return nil, population.Unexpected("human %s is missing from the calls at %#x", w.human, uint64(p))
		}
		for _, c := range phases[w.phase] {
			cp, err := w.q.layout.PositionOfCGF(c)
			if err != nil {
				return nil, err
			}
			if cp == p {
				s = c
				break
			}
		}
		if s == "" {
			return nil, nil
		}
	}
	return w.q.resolve(s)
}

// covering returns the call covering p, walking back from p through
// positions covered by a spanning call.
func (w *walker) covering(p tile.Position) (*call, error) {
	for r := p; ; r-- {
		c, err := w.callAt(r)
		if err != nil {
			return nil, err
		}
		if c != nil {
			if c.last < p {
				return nil, population.Unexpected("no call covers %#x", uint64(p))
			}
			return c, nil
		}
		if w.q.layout.Step(r) == 0 {
			return nil, population.Unexpected("no call covers %#x", uint64(p))
		}
	}
}

// neighborPath returns the path next to path in the direction dir, which
// must be on the query's chromosome.
func (w *walker) neighborPath(path, dir int) (int, error) {
	codec := w.q.e.lib.Codec()
	next := path + dir
	chr, err := codec.Paths.ChromosomeForPath(next)
	if next < 0 || err != nil || chr != w.q.chr {
		field, value := "upper_base", w.q.upper
		if dir < 0 {
			field, value = "lower_base", w.q.lower
		}
		min, max, _ := w.q.e.lib.LociRange(w.q.assembly, w.q.chr)
		return 0, errors.E(errors.NotExist, &LocusOutOfRangeError{
			Assembly:   w.q.assembly,
			Chromosome: w.q.chr,
			Field:      field,
			Value:      value,
			Min:        min,
			Max:        max,
		}, "walked off the chromosome")
	}
	return next, nil
}

// prev returns the call that ends just before c.
func (w *walker) prev(c *call) (*call, error) {
	layout := w.q.layout
	end := c.pos - 1
	if layout.Step(c.pos) == 0 {
		version := layout.Version(c.pos)
		path, err := w.neighborPath(layout.Path(c.pos), -1)
		if err != nil {
			return nil, err
		}
		p, ok := w.q.e.lib.LastPositionInPath(version, path)
		if !ok {
			return nil, emptyPath(version, path)
		}
		end = p.Position
	}
	pc, err := w.covering(end)
	if err != nil {
		return nil, err
	}
	if pc.last != end {
		return nil, population.Unexpected("call %s overlaps call %s", pc.cgf, c.cgf)
	}
	return pc, nil
}

// next returns the call that starts just after c.
func (w *walker) next(c *call) (*call, error) {
	layout := w.q.layout
	version := layout.Version(c.last)
	start := c.last + 1
	if p, ok := w.q.e.lib.LastPositionInPath(version, layout.Path(c.last)); ok && p.Position == c.last {
		path, err := w.neighborPath(layout.Path(c.last), 1)
		if err != nil {
			return nil, err
		}
		if start, err = layout.PackPosition(version, path, 0); err != nil {
			return nil, err
		}
		if _, ok := w.q.e.lib.Position(start); !ok {
			return nil, emptyPath(version, path)
		}
	}
	nc, err := w.callAt(start)
	if err != nil {
		return nil, err
	}
	if nc == nil {
		return nil, population.Unexpected("no call starts at %#x after %s", uint64(start), c.cgf)
	}
	return nc, nil
}

// overlap returns the number of bases a and b, with a before b, share.
func (w *walker) overlap(a, b *call) int {
	if !w.q.layout.SamePath(a.last, b.pos) || b.locus.Start >= a.locus.End {
		return 0
	}
	return int(a.locus.End - b.locus.Start)
}

func (w *walker) around(center tile.Position, target, radius int64) (string, error) {
	c, err := w.covering(center)
	if err != nil {
		return "", err
	}
	m, err := newCoordMap(w.q.e.lib, &c.variant, c.locus)
	if err != nil {
		return "", err
	}
	lo := m.index(int(target - c.locus.Start))
	hi := m.index(int(target + 1 - c.locus.Start))
	w.strand = append(w.strand[:0], c.variant.Sequence...)
	w.st.Fragments++

	r := int(radius)
	for left := c; lo < r; {
		p, err := w.prev(left)
		if err != nil {
			return "", err
		}
		k := w.overlap(p, left)
		seq := p.variant.Sequence
		if k > len(seq) || k > len(w.strand) || seq[len(seq)-k:] != string(w.strand[:k]) {
			return "", population.Unexpected("call %s does not end with the tag of %s", p.cgf, left.cgf)
		}
		w.strand = append([]byte(seq[:len(seq)-k]), w.strand...)
		lo += len(seq) - k
		hi += len(seq) - k
		left = p
		w.st.Fragments++
	}
	for right := c; len(w.strand)-hi < r; {
		n, err := w.next(right)
		if err != nil {
			return "", err
		}
		k := w.overlap(right, n)
		seq := n.variant.Sequence
		if k > len(seq) || k > len(w.strand) || seq[:k] != string(w.strand[len(w.strand)-k:]) {
			return "", population.Unexpected("call %s does not start with the tag of %s", n.cgf, right.cgf)
		}
		w.strand = append(w.strand, seq[k:]...)
		right = n
		w.st.Fragments++
	}
	return strings.ToUpper(string(w.strand[lo-r : hi+r])), nil
}
