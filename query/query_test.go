package query

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/tilelib/population"
	"github.com/grailbio/tilelib/tile"
	"github.com/grailbio/tilelib/tilelib/tilelibtest"
)

func newEngine(t *testing.T, calls population.Calls, opts Opts) (*tilelibtest.Fixture, *Engine) {
	f, err := tilelibtest.New()
	assert.NoError(t, err)
	if calls == nil {
		calls = f.Calls
	}
	src, err := population.NewMemSource(f.Lib.Layout(), calls)
	assert.NoError(t, err)
	return f, New(f.Lib, src, opts)
}

func upper(parts ...string) string { return strings.ToUpper(strings.Join(parts, "")) }

func alt(s string, i int) string { return string(tilelibtest.Alt(s[i])) }

func serialOpts() Opts {
	opts := DefaultOpts
	opts.Parallelism = 1
	return opts
}

func TestCoordMap(t *testing.T) {
	del := coordMap{{0, 0}, {26, 26}, {28, 26}, {54, 52}}
	for _, test := range []struct{ q, want int }{
		{0, 0}, {25, 25}, {26, 26}, {27, 26}, {28, 26}, {30, 28}, {54, 52}, {60, 52},
	} {
		expect.EQ(t, del.index(test.q), test.want, "deletion %d", test.q)
	}
	ins := coordMap{{0, 0}, {27, 27}, {27, 29}, {54, 56}}
	for _, test := range []struct{ q, want int }{
		{26, 26}, {27, 29}, {28, 30}, {54, 56},
	} {
		expect.EQ(t, ins.index(test.q), test.want, "insertion %d", test.q)
	}
}

func TestBetweenLociSNP(t *testing.T) {
	ctx := vcontext.Background()
	_, e := newEngine(t, nil, serialOpts())
	req := BetweenRequest{Assembly: tilelibtest.Assembly, Chromosome: 1, Lower: 24, Upper: 25}
	seqs, err := e.BetweenLoci(ctx, req)
	assert.NoError(t, err)
	expect.EQ(t, seqs, []Sequence{
		{"hu1", [2]string{"C", "T"}},
		{"hu2", [2]string{"T", "C"}},
		{"hu3", [2]string{"C", "C"}},
	})
	st := e.Stats()
	expect.EQ(t, st.Queries, int64(1))
	expect.EQ(t, st.Humans, int64(3))
	expect.EQ(t, st.CacheMisses, int64(1))
	expect.EQ(t, st.MemoHits, int64(4))

	// The same window, 1-based, hits the translator cache.
	req.Lower, req.Upper, req.Indexing = 25, 26, 1
	seqs2, err := e.BetweenLoci(ctx, req)
	assert.NoError(t, err)
	expect.EQ(t, seqs2, seqs)
	expect.EQ(t, e.Stats().CacheHits, int64(1))
}

func TestBetweenLociPathBoundary(t *testing.T) {
	f, e := newEngine(t, nil, DefaultOpts)
	seqs, err := e.BetweenLoci(vcontext.Background(),
		BetweenRequest{Assembly: tilelibtest.Assembly, Chromosome: 2, Lower: 129, Upper: 131})
	assert.NoError(t, err)
	ref := f.Chr2
	expect.EQ(t, seqs[0], Sequence{"hu1", [2]string{upper(ref[129:131]), upper(alt(ref, 129), alt(ref, 130))}})
	expect.EQ(t, seqs[2], Sequence{"hu3", [2]string{upper(ref[129:131]), upper(ref[129:131])}})
}

func TestBetweenLociIndels(t *testing.T) {
	f, e := newEngine(t, nil, DefaultOpts)
	ref := f.Chr1
	seqs, err := e.BetweenLoci(vcontext.Background(),
		BetweenRequest{Assembly: tilelibtest.Assembly, Chromosome: 1, Lower: 0, Upper: 180})
	assert.NoError(t, err)
	expect.EQ(t, seqs[0].Phases[0], upper(ref[:180]))
	expect.EQ(t, seqs[0].Phases[1], upper(ref[:24], "t", ref[25:82], ref[84:113], "ga", ref[113:180]))
	// hu2 carries a variant spanning positions 2 to 4.
	expect.EQ(t, seqs[1].Phases[0],
		upper(ref[:24], "t", ref[25:53], alt(ref, 53), ref[54:128], alt(ref, 128), ref[129:180]))

	// Across the path boundary at 180.
	seqs, err = e.BetweenLoci(vcontext.Background(),
		BetweenRequest{Assembly: tilelibtest.Assembly, Chromosome: 1, Lower: 100, Upper: 240})
	assert.NoError(t, err)
	expect.EQ(t, seqs[0].Phases[1], upper(ref[100:113], "ga", ref[113:233], alt(ref, 233), ref[234:240]))
	expect.EQ(t, seqs[1].Phases[0], upper(ref[100:128], alt(ref, 128), ref[129:240]))

	// Windows ending inside a deletion or at an insertion.
	seqs, err = e.BetweenLoci(vcontext.Background(),
		BetweenRequest{Assembly: tilelibtest.Assembly, Chromosome: 1, Lower: 81, Upper: 113})
	assert.NoError(t, err)
	expect.EQ(t, seqs[0].Phases[1], upper(ref[81:82], ref[84:113], "ga"))
	seqs, err = e.BetweenLoci(vcontext.Background(),
		BetweenRequest{Assembly: tilelibtest.Assembly, Chromosome: 1, Lower: 113, Upper: 120})
	assert.NoError(t, err)
	expect.EQ(t, seqs[0].Phases[1], upper(ref[113:120]))
}

func TestBetweenLociRange(t *testing.T) {
	ctx := vcontext.Background()
	_, e := newEngine(t, nil, DefaultOpts)
	for _, test := range []struct {
		req   BetweenRequest
		field string
	}{
		{BetweenRequest{Chromosome: 1, Lower: 300, Upper: 310}, "lower_base"},
		{BetweenRequest{Chromosome: 1, Lower: -5, Upper: 10}, "lower_base"},
		{BetweenRequest{Chromosome: 1, Lower: 260, Upper: 271}, "upper_base"},
		{BetweenRequest{Chromosome: 3, Lower: 0, Upper: 10}, "lower_base"},
	} {
		test.req.Assembly = tilelibtest.Assembly
		_, err := e.BetweenLoci(ctx, test.req)
		expect.True(t, errors.Is(errors.NotExist, err), "%+v: %v", test.req, err)
		r, ok := AsLocusOutOfRange(err)
		assert.True(t, ok, "%+v: %v", test.req, err)
		expect.EQ(t, r.Field, test.field)
		if test.req.Chromosome == 1 {
			expect.EQ(t, [2]int64{r.Min, r.Max}, [2]int64{0, tilelibtest.Chr1Len})
		}
	}
	_, err := e.BetweenLoci(ctx, BetweenRequest{Assembly: tilelibtest.Assembly, Chromosome: 1, Lower: 10, Upper: 10})
	expect.True(t, errors.Is(errors.Invalid, err))
	_, err = e.BetweenLoci(ctx, BetweenRequest{Assembly: tilelibtest.Assembly, Chromosome: 1, Lower: 1, Upper: 10, Indexing: 2})
	expect.True(t, errors.Is(errors.Invalid, err))
}

func TestBetweenLociBadCalls(t *testing.T) {
	ctx := vcontext.Background()
	ref := func(path, step int) string { return tilelibtest.CGF(path, step, 0, 1) }
	for _, test := range []struct {
		name  string
		calls []string
		check func(error) bool
	}{
		{"gap", []string{ref(0, 0), ref(0, 2), ref(0, 3)}, population.IsUnexpected},
		{"unknown", []string{tilelibtest.CGF(0, 0, 7, 1), ref(0, 1), ref(0, 2), ref(0, 3)}, IsTranslatorError},
		{"span", []string{tilelibtest.CGF(0, 0, 0, 2), ref(0, 1), ref(0, 2), ref(0, 3)}, IsTranslatorError},
		{"empty", nil, population.IsUnexpected},
	} {
		calls := population.Calls{"bad": {test.calls, []string{ref(0, 0), ref(0, 1), ref(0, 2), ref(0, 3)}}}
		_, e := newEngine(t, calls, DefaultOpts)
		_, err := e.BetweenLoci(ctx, BetweenRequest{Assembly: tilelibtest.Assembly, Chromosome: 1, Lower: 0, Upper: 110})
		expect.True(t, errors.Is(errors.Integrity, err), "%s: %v", test.name, err)
		expect.True(t, test.check(err), "%s: %v", test.name, err)
	}
}

func TestAroundLocus(t *testing.T) {
	ctx := vcontext.Background()
	f, e := newEngine(t, nil, DefaultOpts)
	ref, ref2 := f.Chr1, f.Chr2
	around := func(chr tile.Chromosome, target, radius int64) []Sequence {
		seqs, err := e.AroundLocus(ctx, AroundRequest{
			Assembly: tilelibtest.Assembly, Chromosome: chr, Target: target, Radius: radius})
		assert.NoError(t, err)
		assert.EQ(t, len(seqs), 3)
		return seqs
	}

	seqs := around(1, 24, 2)
	expect.EQ(t, seqs[0].Phases, [2]string{upper(ref[22:27]), upper(ref[22:24], "t", ref[25:27])})

	// Across a tile junction.
	seqs = around(1, 49, 5)
	expect.EQ(t, seqs[0].Phases[0], upper(ref[44:55]))
	expect.EQ(t, seqs[1].Phases[0], upper(ref[44:53], alt(ref, 53), ref[54:55]))

	// Around a deletion, into an insertion.
	seqs = around(1, 100, 20)
	expect.EQ(t, seqs[0].Phases[1], upper(ref[78:82], ref[84:113], "ga", ref[113:119]))

	// Within a spanning variant.
	seqs = around(1, 150, 2)
	expect.EQ(t, seqs[1].Phases[0], upper(ref[148:153]))

	// Across path boundaries.
	seqs = around(1, 179, 3)
	expect.EQ(t, seqs[0].Phases[1], upper(ref[176:183]))
	seqs = around(2, 130, 1)
	expect.EQ(t, seqs[0].Phases[1], upper(alt(ref2, 129), alt(ref2, 130), ref2[131:132]))
	expect.EQ(t, seqs[2].Phases[0], upper(ref2[129:132]))

	// 1-based.
	seqs, err := e.AroundLocus(ctx, AroundRequest{
		Assembly: tilelibtest.Assembly, Chromosome: 1, Target: 25, Radius: 0, Indexing: 1})
	assert.NoError(t, err)
	expect.EQ(t, seqs[0].Phases, [2]string{"C", "T"})
	expect.True(t, e.Stats().WalkSteps > 0)
}

func TestAroundLocusErrors(t *testing.T) {
	ctx := vcontext.Background()
	_, e := newEngine(t, nil, DefaultOpts)
	for _, test := range []struct {
		target, radius int64
		field          string
	}{
		{300, 0, "target_base"},
		{5, 10, "lower_base"},
		{265, 10, "upper_base"},
	} {
		_, err := e.AroundLocus(ctx, AroundRequest{
			Assembly: tilelibtest.Assembly, Chromosome: 1, Target: test.target, Radius: test.radius})
		r, ok := AsLocusOutOfRange(err)
		assert.True(t, ok, "%+v: %v", test, err)
		expect.EQ(t, r.Field, test.field)
		if test.field == "lower_base" {
			expect.EQ(t, r.Value, test.target-test.radius)
		}
	}
	_, err := e.AroundLocus(ctx, AroundRequest{Assembly: tilelibtest.Assembly, Chromosome: 1, Target: 5, Radius: -1})
	expect.True(t, errors.Is(errors.Invalid, err))

	opts := DefaultOpts
	opts.MaxWalkSteps = 1
	_, e = newEngine(t, nil, opts)
	_, err = e.AroundLocus(ctx, AroundRequest{Assembly: tilelibtest.Assembly, Chromosome: 1, Target: 49, Radius: 5})
	expect.True(t, errors.Is(errors.TooManyTries, err), "err: %v", err)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, e = newEngine(t, nil, DefaultOpts)
	_, err = e.AroundLocus(cctx, AroundRequest{Assembly: tilelibtest.Assembly, Chromosome: 1, Target: 49, Radius: 5})
	expect.True(t, errors.Is(errors.Canceled, err), "err: %v", err)
}

type countingSource struct {
	population.Source
	n int32
}

func (s *countingSource) Calls(ctx context.Context, first, last tile.Position) (population.Calls, error) {
	atomic.AddInt32(&s.n, 1)
	return s.Source.Calls(ctx, first, last)
}

func TestWalkerFetches(t *testing.T) {
	ctx := vcontext.Background()
	f, err := tilelibtest.New()
	assert.NoError(t, err)
	mem, err := population.NewMemSource(f.Lib.Layout(), f.Calls)
	assert.NoError(t, err)
	src := &countingSource{Source: mem}
	e := New(f.Lib, src, DefaultOpts)

	// Nothing is prefetched, so every position the walk visits is fetched.
	q := &aroundQuery{
		e:        e,
		ctx:      ctx,
		assembly: tilelibtest.Assembly,
		chr:      1,
		layout:   f.Lib.Layout(),
		first:    1,
		last:     0,
		fetched:  map[tile.Position]population.Calls{},
		variants: map[string]*call{},
	}
	var st Stats
	w, err := q.newWalker("hu2", 0, nil, &st)
	assert.NoError(t, err)
	s, err := w.around(tilelibtest.Position(0, 4), 150, 2)
	assert.NoError(t, err)
	expect.EQ(t, s, upper(f.Chr1[148:153]))
	// Positions 4 and 3 are covered by the call at 2, which spans them.
	expect.EQ(t, st.Fetches, int64(3))
	expect.EQ(t, st.WalkSteps, int64(3))
	expect.EQ(t, atomic.LoadInt32(&src.n), int32(3))

	// A second walker reuses the fetched positions.
	var st2 Stats
	w, err = q.newWalker("hu1", 0, nil, &st2)
	assert.NoError(t, err)
	s, err = w.around(tilelibtest.Position(0, 4), 150, 40)
	assert.NoError(t, err)
	expect.EQ(t, s, upper(f.Chr1[110:191]))
	expect.True(t, st2.Fetches > 0)
}

func TestWalkerOffChromosome(t *testing.T) {
	f, err := tilelibtest.New()
	assert.NoError(t, err)
	mem, err := population.NewMemSource(f.Lib.Layout(), f.Calls)
	assert.NoError(t, err)
	e := New(f.Lib, mem, DefaultOpts)
	q := &aroundQuery{
		e:        e,
		ctx:      vcontext.Background(),
		assembly: tilelibtest.Assembly,
		chr:      1,
		layout:   f.Lib.Layout(),
		first:    1,
		last:     0,
		lower:    -30,
		upper:    50,
		fetched:  map[tile.Position]population.Calls{},
		variants: map[string]*call{},
	}
	var st Stats
	w, err := q.newWalker("hu1", 0, nil, &st)
	assert.NoError(t, err)
	// Forty bases before base 10 lie before the first path of chr1.
	_, err = w.around(tilelibtest.Position(0, 0), 10, 40)
	expect.True(t, errors.Is(errors.NotExist, err), "err: %v", err)
	r, ok := AsLocusOutOfRange(err)
	assert.True(t, ok, "err: %v", err)
	expect.EQ(t, r.Field, "lower_base")
	expect.EQ(t, r.Value, int64(-30))
	expect.EQ(t, r.Min, int64(0))
	expect.EQ(t, r.Max, int64(270))
}

func TestBetweenLociHumans(t *testing.T) {
	ctx := vcontext.Background()
	opts := serialOpts()
	opts.Humans = []string{"hu2", "hu3"}
	_, e := newEngine(t, nil, opts)
	req := BetweenRequest{Assembly: tilelibtest.Assembly, Chromosome: 1, Lower: 24, Upper: 25}
	seqs, err := e.BetweenLoci(ctx, req)
	assert.NoError(t, err)
	expect.EQ(t, seqs, []Sequence{
		{"hu2", [2]string{"T", "C"}},
		{"hu3", [2]string{"C", "C"}},
	})
	expect.EQ(t, e.Stats().Humans, int64(2))

	opts.Humans = []string{"hu4"}
	_, e = newEngine(t, nil, opts)
	_, err = e.BetweenLoci(ctx, req)
	expect.True(t, errors.Is(errors.NotExist, err), "err: %v", err)
}

// rangeSource records the ranges it is asked for.
type rangeSource struct {
	population.Source
	mu     sync.Mutex
	ranges [][2]tile.Position
}

func (s *rangeSource) Calls(ctx context.Context, first, last tile.Position) (population.Calls, error) {
	s.mu.Lock()
	s.ranges = append(s.ranges, [2]tile.Position{first, last})
	s.mu.Unlock()
	return s.Source.Calls(ctx, first, last)
}

func TestBetweenLociRequestsEndAtPath(t *testing.T) {
	f, err := tilelibtest.New()
	assert.NoError(t, err)
	mem, err := population.NewMemSource(f.Lib.Layout(), f.Calls)
	assert.NoError(t, err)
	src := &rangeSource{Source: mem}
	e := New(f.Lib, src, DefaultOpts)
	_, err = e.BetweenLoci(vcontext.Background(),
		BetweenRequest{Assembly: tilelibtest.Assembly, Chromosome: 1, Lower: 100, Upper: 240})
	assert.NoError(t, err)
	// One request per path, each ending at a position of the library.
	assert.EQ(t, len(src.ranges), 2)
	expect.EQ(t, src.ranges[0][1], tilelibtest.Position(0, 5))
	expect.EQ(t, src.ranges[1][0], tilelibtest.Position(1, 0))
	expect.True(t, src.ranges[1][1] <= tilelibtest.Position(1, 2), "ranges: %v", src.ranges)
}
