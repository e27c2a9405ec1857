package query

import (
	"encoding/binary"
	"sync"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/tilelib/tile"
	"github.com/grailbio/tilelib/tilelib"
)

// fragment is the share of a tile variant inside a query window.
type fragment struct {
	pos, last tile.Position
	span      int
	// start and end bound the genomic range of bases, the variant's locus
	// clipped to the window.
	start, end int64
	bases      string
}

// translator maps the span-free cgf of every variant that may be called
// inside a window to its fragment.
type translator struct {
	lo, hi int64
	// Calls are fetched for [fetchFirst, lastPos]. Calls that end before
	// firstPos do not reach the window.
	fetchFirst, firstPos, lastPos tile.Position
	fragments                     map[string]*fragment
}

func (e *Engine) buildTranslator(assembly tile.Assembly, chr tile.Chromosome, lo, hi int64) (*translator, error) {
	firstPos, lastPos, ok := e.positionsOverlapping(assembly, chr, lo, hi)
	if !ok {
		min, max, _ := e.lib.LociRange(assembly, chr)
		return nil, outOfRange(assembly, chr, "lower_base", lo, min, max)
	}
	tr := &translator{
		lo:         lo,
		hi:         hi,
		fetchFirst: e.lookback(firstPos),
		firstPos:   firstPos,
		lastPos:    lastPos,
		fragments:  map[string]*fragment{},
	}
	layout := e.lib.Layout()
	for _, p := range e.lib.PositionsInRange(tr.fetchFirst, lastPos) {
		for _, v := range e.lib.VariantsAt(p.Position) {
			v := v
			if v.LastPosition() < firstPos {
				continue
			}
			locus, err := e.lib.VariantLocus(&v, assembly)
			if err != nil {
				return nil, err
			}
			f := &fragment{
				pos:   v.Position,
				last:  v.LastPosition(),
				span:  v.NumPositionsSpanned,
				start: max64(locus.Start, lo),
				end:   min64(locus.End, hi),
			}
			if f.start >= f.end {
				continue
			}
			if f.bases, err = e.clip(&v, locus, f.start, f.end); err != nil {
				return nil, err
			}
			key, err := layout.CGFOf(v.Variant, 1)
			if err != nil {
				return nil, err
			}
			tr.fragments[key] = f
		}
	}
	return tr, nil
}

// clip returns the bases of v covering [start, end) of its locus.
func (e *Engine) clip(v *tilelib.TileVariant, locus tilelib.Locus, start, end int64) (string, error) {
	if start == locus.Start && end == locus.End {
		return v.Sequence, nil
	}
	m, err := newCoordMap(e.lib, v, locus)
	if err != nil {
		return "", err
	}
	return v.Sequence[m.index(int(start-locus.Start)):m.index(int(end-locus.Start))], nil
}

type translatorKey struct {
	generation uint64
	assembly   tile.Assembly
	chr        tile.Chromosome
	lo, hi     int64
}

func (k translatorKey) hash() uint64 {
	var buf [40]byte
	binary.LittleEndian.PutUint64(buf[0:], k.generation)
	binary.LittleEndian.PutUint64(buf[8:], uint64(k.assembly))
	binary.LittleEndian.PutUint64(buf[16:], uint64(k.chr))
	binary.LittleEndian.PutUint64(buf[24:], uint64(k.lo))
	binary.LittleEndian.PutUint64(buf[32:], uint64(k.hi))
	return farm.Hash64(buf[:])
}

// maxShardEntries bounds each cache shard. A full shard is emptied.
const maxShardEntries = 256

type cacheShard struct {
	mu sync.Mutex
	m  map[translatorKey]*translator
}

// translatorCache is a sharded, thread-safe map of translators.
type translatorCache struct {
	shards []cacheShard
}

func newTranslatorCache(n int) *translatorCache {
	c := &translatorCache{shards: make([]cacheShard, n)}
	for i := range c.shards {
		c.shards[i].m = map[translatorKey]*translator{}
	}
	return c
}

func (c *translatorCache) shard(k translatorKey) *cacheShard {
	return &c.shards[int(k.hash()%uint64(len(c.shards)))]
}

func (c *translatorCache) get(k translatorKey) *translator {
	s := c.shard(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[k]
}

func (c *translatorCache) put(k translatorKey, tr *translator) {
	s := c.shard(k)
	s.mu.Lock()
	if len(s.m) >= maxShardEntries {
		s.m = map[translatorKey]*translator{}
	}
	s.m[k] = tr
	s.mu.Unlock()
}

// translator returns the translator of the window, from the cache if the
// library has not changed since it was built.
func (e *Engine) translator(assembly tile.Assembly, chr tile.Chromosome, lo, hi int64, st *Stats) (*translator, error) {
	k := translatorKey{e.lib.Generation(), assembly, chr, lo, hi}
	if tr := e.cache.get(k); tr != nil {
		st.CacheHits++
		return tr, nil
	}
	st.CacheMisses++
	tr, err := e.buildTranslator(assembly, chr, lo, hi)
	if err != nil {
		return nil, err
	}
	e.cache.put(k, tr)
	return tr, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
