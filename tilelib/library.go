package tilelib

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/tilelib/interval"
	"github.com/grailbio/tilelib/tile"
)

// positionItem is a TilePosition in the position tree. A bound item sorts
// right after the position it names, so that it can close an inclusive
// range.
type positionItem struct {
	pos   tile.Position
	bound bool
	p     *TilePosition
}

// Compare implements llrb.Comparable.
func (a positionItem) Compare(b llrb.Comparable) int {
	o := b.(positionItem)
	return compareKeys(uint64(a.pos), a.bound, uint64(o.pos), o.bound)
}

// variantItem is a TileVariant in the variant tree. Variants sort by address,
// which groups them by position.
type variantItem struct {
	variant tile.Variant
	bound   bool
	v       *TileVariant
}

// Compare implements llrb.Comparable.
func (a variantItem) Compare(b llrb.Comparable) int {
	o := b.(variantItem)
	return compareKeys(uint64(a.variant), a.bound, uint64(o.variant), o.bound)
}

func compareKeys(a uint64, aBound bool, b uint64, bBound bool) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	case aBound == bBound:
		return 0
	case aBound:
		return 1
	}
	return -1
}

type pathKey struct{ version, path int }

type locusKey struct {
	pos      tile.Position
	assembly tile.Assembly
}

type chromKey struct {
	assembly tile.Assembly
	chr      tile.Chromosome
}

type genomeVariantKey struct {
	assembly   tile.Assembly
	chr        tile.Chromosome
	start, end int64
	ref, alt   string
}

func (gv *GenomeVariant) key() genomeVariantKey {
	return genomeVariantKey{gv.Assembly, gv.Chromosome, gv.StartInt, gv.EndInt,
		stripGap(gv.ReferenceBases), stripGap(gv.AlternateBases)}
}

// Library is an in-memory tile library. It is safe for concurrent use. Every
// Add method validates its argument and commits it under the write lock; an
// entity that fails validation is not stored.
type Library struct {
	opts Opts

	mu         sync.RWMutex
	generation uint64
	positions  llrb.Tree
	variants   llrb.Tree
	// maxSpan is the largest NumPositionsSpanned of the variants of a path.
	maxSpan          map[pathKey]int
	loci             map[locusKey]*TileLocusAnnotation
	lociIndex        map[chromKey]*interval.Index
	genomeVariants   map[int64]*GenomeVariant
	genomeVariantIDs map[genomeVariantKey]int64
	nextID           int64
	// translations are sorted by Start for each variant.
	translations map[tile.Variant][]GenomeVariantTranslation
	stats        map[statisticKey]GenomeStatistic
}

// New creates an empty library.
func New(opts Opts) (*Library, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Library{
		opts:             opts,
		maxSpan:          map[pathKey]int{},
		loci:             map[locusKey]*TileLocusAnnotation{},
		lociIndex:        map[chromKey]*interval.Index{},
		genomeVariants:   map[int64]*GenomeVariant{},
		genomeVariantIDs: map[genomeVariantKey]int64{},
		nextID:           1,
		translations:     map[tile.Variant][]GenomeVariantTranslation{},
		stats:            map[statisticKey]GenomeStatistic{},
	}, nil
}

// Opts returns the options the library was created with.
func (l *Library) Opts() Opts { return l.opts }

// Codec returns the address codec of the library.
func (l *Library) Codec() *tile.Codec { return l.opts.Codec }

// Layout returns the address layout of the library.
func (l *Library) Layout() tile.Layout { return l.opts.Codec.Layout }

// TagLength returns the number of bases shared by consecutive tiles.
func (l *Library) TagLength() int { return l.opts.TagLength }

// Generation is incremented by every committed change. Caches keyed by the
// generation are invalidated by any change to the library.
func (l *Library) Generation() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.generation
}

func (l *Library) getPosition(p tile.Position) *TilePosition {
	if x := l.positions.Get(positionItem{pos: p}); x != nil {
		return x.(positionItem).p
	}
	return nil
}

func (l *Library) getVariant(v tile.Variant) *TileVariant {
	if x := l.variants.Get(variantItem{variant: v}); x != nil {
		return x.(variantItem).v
	}
	return nil
}

// AddPosition validates and stores p.
func (l *Library) AddPosition(p TilePosition) error {
	if err := ValidatePosition(l.opts, &p); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.getPosition(p.Position) != nil {
		return errors.E(errors.Exists, positionName(l.Layout(), p.Position)+" already exists")
	}
	l.positions.Insert(positionItem{pos: p.Position, p: &p})
	l.generation++
	return nil
}

// AddVariant validates and stores v. Every position v spans must already be
// in the library.
func (l *Library) AddVariant(v TileVariant) error {
	layout := l.Layout()
	name := variantName(layout, v.Variant)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.getVariant(v.Variant) != nil {
		return errors.E(errors.Exists, name+" already exists")
	}
	vs := violations{}
	var last *TilePosition
	first := l.getPosition(v.Position)
	if first == nil {
		vs.add("tile_position", "%s does not exist", positionName(layout, v.Position))
	} else {
		last = l.spannedPositions(first, &v, vs)
	}
	validateVariant(l.opts, first, last, &v, vs)
	if err := vs.err(name); err != nil {
		return err
	}
	l.variants.Insert(variantItem{variant: v.Variant, v: &v})
	k := pathKey{layout.Version(v.Position), layout.Path(v.Position)}
	if v.NumPositionsSpanned > l.maxSpan[k] {
		l.maxSpan[k] = v.NumPositionsSpanned
	}
	l.generation++
	return nil
}

// spannedPositions checks the positions covered by v and returns the last
// one, or nil if it cannot be found.
func (l *Library) spannedPositions(first *TilePosition, v *TileVariant, vs violations) *TilePosition {
	layout := l.Layout()
	span := v.NumPositionsSpanned
	if span <= 1 {
		return first
	}
	if layout.Step(first.Position)+span-1 > layout.MaxStep() {
		vs.add("spanning_tile_error", "%d positions from %s run past the last step of the path",
			span, positionName(layout, first.Position))
		return nil
	}
	var (
		missing []string
		last    *TilePosition
	)
	for k := 0; k < span; k++ {
		p := first.Position + tile.Position(k)
		tp := l.getPosition(p)
		if tp == nil {
			s, _ := layout.FormatPosition(p)
			missing = append(missing, s)
			continue
		}
		if !layout.SamePath(first.Position, tp.Position) {
			vs.add("spanning_tile_error", "position %s is not in the path of the first position", positionName(layout, p))
		}
		if k < span-1 && tp.IsEndOfPath {
			vs.add("spanning_tile_error", "%s ends its path but is not the last spanned position", positionName(layout, p))
		}
		if k == span-1 {
			last = tp
		}
	}
	if len(missing) > 0 {
		vs.add("spanning_tile_error_missing_tile", "missing positions %v", missing)
	}
	return last
}

// AddLocus validates and stores a locus annotation. The position and the
// reference variant it names must already be in the library.
func (l *Library) AddLocus(a TileLocusAnnotation) error {
	layout := l.Layout()
	l.mu.Lock()
	defer l.mu.Unlock()
	key := locusKey{a.Position, a.Assembly}
	if _, ok := l.loci[key]; ok {
		return errors.E(errors.Exists, locusName(layout, &a)+" already exists")
	}
	vs := violations{}
	pos := l.getPosition(a.Position)
	if pos == nil {
		vs.add("tile_position", "%s does not exist", positionName(layout, a.Position))
	}
	var ref *TileVariant
	if v, err := layout.VariantOf(a.Position, a.VariantValue); err == nil {
		ref = l.getVariant(v)
	}
	validateLocus(l.opts, pos, ref, &a, vs)
	if err := vs.err(locusName(layout, &a)); err != nil {
		return err
	}
	ck := chromKey{a.Assembly, a.Chromosome}
	idx := l.lociIndex[ck]
	if idx == nil {
		idx = &interval.Index{}
		l.lociIndex[ck] = idx
	}
	if err := idx.Insert(interval.PosType(a.StartInt), interval.PosType(a.EndInt), uint64(a.Position)); err != nil {
		return err
	}
	l.loci[key] = &a
	l.generation++
	return nil
}

// AddGenomeVariant validates and stores gv and returns the ID assigned to
// it. gv.ID is ignored.
func (l *Library) AddGenomeVariant(gv GenomeVariant) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	gv.ID = l.nextID
	if err := l.addGenomeVariantLocked(&gv); err != nil {
		return 0, err
	}
	return gv.ID, nil
}

// restoreGenomeVariant stores gv under its own ID.
func (l *Library) restoreGenomeVariant(gv GenomeVariant) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gv.ID <= 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("genome variant id %d must be positive", gv.ID))
	}
	if _, ok := l.genomeVariants[gv.ID]; ok {
		return errors.E(errors.Exists, fmt.Sprintf("genome variant %d already exists", gv.ID))
	}
	return l.addGenomeVariantLocked(&gv)
}

func (l *Library) addGenomeVariantLocked(gv *GenomeVariant) error {
	name := fmt.Sprintf("genome variant %d (%v %v:%d-%d %s>%s)", gv.ID, gv.Assembly, gv.Chromosome,
		gv.StartInt, gv.EndInt, gv.ReferenceBases, gv.AlternateBases)
	vs := violations{}
	validateGenomeVariant(l.opts, gv, vs)
	if err := vs.err(name); err != nil {
		return err
	}
	key := gv.key()
	if id, ok := l.genomeVariantIDs[key]; ok {
		return errors.E(errors.Exists, fmt.Sprintf("%s duplicates genome variant %d", name, id))
	}
	l.genomeVariants[gv.ID] = gv
	l.genomeVariantIDs[key] = gv.ID
	if gv.ID >= l.nextID {
		l.nextID = gv.ID + 1
	}
	l.generation++
	return nil
}

// AddTranslation validates and stores t. Translations of a tile variant must
// be added in order of Start, since the genomic position of an offset
// depends on the indels before it.
func (l *Library) AddTranslation(t GenomeVariantTranslation) error {
	layout := l.Layout()
	name := fmt.Sprintf("translation of %s to genome variant %d", variantName(layout, t.Variant), t.GenomeVariantID)
	l.mu.Lock()
	defer l.mu.Unlock()
	vs := violations{}
	v := l.getVariant(t.Variant)
	if v == nil {
		vs.add("tile_variant", "%s does not exist", variantName(layout, t.Variant))
	}
	gv := l.genomeVariants[t.GenomeVariantID]
	if gv == nil {
		vs.add("genome_variant", "genome variant %d does not exist", t.GenomeVariantID)
	}
	if len(vs) > 0 {
		return vs.err(name)
	}
	existing := l.translations[t.Variant]
	for _, e := range existing {
		if e.GenomeVariantID == t.GenomeVariantID {
			return errors.E(errors.Exists, name+" already exists")
		}
	}
	l.validateTranslationLocked(v, gv, &t, existing, vs)
	if err := vs.err(name); err != nil {
		return err
	}
	i := sort.Search(len(existing), func(i int) bool { return existing[i].Start > t.Start })
	existing = append(existing, GenomeVariantTranslation{})
	copy(existing[i+1:], existing[i:])
	existing[i] = t
	l.translations[t.Variant] = existing
	l.generation++
	return nil
}

func (l *Library) validateTranslationLocked(v *TileVariant, gv *GenomeVariant, t *GenomeVariantTranslation,
	existing []GenomeVariantTranslation, vs violations) {
	n := len(v.Sequence)
	if t.Start < 0 || t.Start > n {
		vs.add("start", "%d is outside [0, %d]", t.Start, n)
	}
	if t.End < 0 || t.End > n {
		vs.add("end", "%d is outside [0, %d]", t.End, n)
	}
	if t.End < t.Start {
		vs.add("start-end", "end %d is before start %d", t.End, t.Start)
	}
	if len(vs) > 0 {
		return
	}
	locus, err := l.locusLocked(v, gv.Assembly)
	if err != nil {
		vs.add("tile_variant-locus", "%v", err)
		return
	}
	if locus.Chromosome != gv.Chromosome {
		vs.add("chromosome", "tile variant is on %v, genome variant on %v", locus.Chromosome, gv.Chromosome)
		return
	}
	// Indels before t.Start shift the reference coordinate of the offset.
	refOffset := int64(t.Start)
	for _, e := range existing {
		if e.End > t.Start {
			break
		}
		prev := l.genomeVariants[e.GenomeVariantID]
		refOffset -= int64(len(stripGap(prev.AlternateBases)) - len(stripGap(prev.ReferenceBases)))
	}
	start := locus.Start + refOffset
	if start != gv.StartInt {
		vs.add("genome_variant.start_int", "offset %d maps to %d, genome variant starts at %d", t.Start, start, gv.StartInt)
	}
	if end := start + int64(len(stripGap(gv.ReferenceBases))); end != gv.EndInt {
		vs.add("genome_variant.end_int", "offset %d maps to end %d, genome variant ends at %d", t.Start, end, gv.EndInt)
	}
	if got, want := stripGap(v.Sequence[t.Start:t.End]), stripGap(gv.AlternateBases); got != want {
		vs.add("genome_variant.alternate_bases", "sequence has %q at [%d, %d), alternate bases are %q",
			got, t.Start, t.End, want)
	}
}

// Position returns the position p.
func (l *Library) Position(p tile.Position) (TilePosition, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if tp := l.getPosition(p); tp != nil {
		return *tp, true
	}
	return TilePosition{}, false
}

// Variant returns the variant v.
func (l *Library) Variant(v tile.Variant) (TileVariant, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if tv := l.getVariant(v); tv != nil {
		return *tv, true
	}
	return TileVariant{}, false
}

// VariantsAt returns the variants starting at p, ordered by variant value.
func (l *Library) VariantsAt(p tile.Position) []TileVariant {
	from, err := l.Layout().MinVariant(p)
	if err != nil {
		return nil
	}
	to, err := l.Layout().VariantOf(p, int(fieldMax(l.Layout().VariantDigits)))
	if err != nil {
		log.Panicf("variants at %#x: %v", uint64(p), err)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	var r []TileVariant
	l.variants.DoRange(func(c llrb.Comparable) bool {
		r = append(r, *c.(variantItem).v)
		return false
	}, variantItem{variant: from}, variantItem{variant: to, bound: true})
	return r
}

func fieldMax(digits int) uint64 { return 1<<(4*uint(digits)) - 1 }

// VariantByCGF returns the variant named by a cgf string. A "+span" suffix,
// if present, must match the variant's span.
func (l *Library) VariantByCGF(s string) (TileVariant, error) {
	layout := l.Layout()
	c, err := layout.ParseCGF(s)
	if err != nil {
		return TileVariant{}, err
	}
	p, err := c.Position(layout)
	if err != nil {
		return TileVariant{}, err
	}
	id, err := layout.VariantOf(p, c.Value)
	if err != nil {
		return TileVariant{}, err
	}
	v, ok := l.Variant(id)
	if !ok {
		return TileVariant{}, errors.E(errors.NotExist, fmt.Sprintf("cgf %s: no such variant", s))
	}
	if strings.IndexByte(s, '+') >= 0 && c.Span != v.NumPositionsSpanned {
		return TileVariant{}, errors.E(errors.Invalid,
			fmt.Sprintf("cgf %s: variant spans %d positions", s, v.NumPositionsSpanned))
	}
	return v, nil
}

// CGF returns the cgf name of v.
func (l *Library) CGF(v *TileVariant) (string, error) {
	return l.Layout().CGFOf(v.Variant, v.NumPositionsSpanned)
}

// PositionsInRange returns the positions in [first, last], in order.
func (l *Library) PositionsInRange(first, last tile.Position) []TilePosition {
	if last < first {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	var r []TilePosition
	l.positions.DoRange(func(c llrb.Comparable) bool {
		r = append(r, *c.(positionItem).p)
		return false
	}, positionItem{pos: first}, positionItem{pos: last, bound: true})
	return r
}

// LastPositionInPath returns the position with the largest step in the path.
func (l *Library) LastPositionInPath(version, path int) (TilePosition, bool) {
	layout := l.Layout()
	end, err := layout.PackPosition(version, path, layout.MaxStep())
	if err != nil {
		return TilePosition{}, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	x := l.positions.Floor(positionItem{pos: end})
	if x == nil {
		return TilePosition{}, false
	}
	p := x.(positionItem).p
	if !layout.SamePath(p.Position, end) {
		return TilePosition{}, false
	}
	return *p, true
}

// MaxSpanInPath returns the largest number of positions spanned by a
// variant of the path, or 0 if the path has no variants.
func (l *Library) MaxSpanInPath(version, path int) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.maxSpan[pathKey{version, path}]
}

// Annotation returns the locus annotation of p on the assembly.
func (l *Library) Annotation(p tile.Position, assembly tile.Assembly) (TileLocusAnnotation, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if a, ok := l.loci[locusKey{p, assembly}]; ok {
		return *a, true
	}
	return TileLocusAnnotation{}, false
}

// LociOverlapping returns the annotations of the chromosome that overlap
// [lo, hi), ordered by start and then by position.
func (l *Library) LociOverlapping(assembly tile.Assembly, chr tile.Chromosome, lo, hi int64) []TileLocusAnnotation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx := l.lociIndex[chromKey{assembly, chr}]
	if idx == nil {
		return nil
	}
	var r []TileLocusAnnotation
	idx.Overlapping(interval.PosType(lo), interval.PosType(hi), func(e interval.Entry) bool {
		r = append(r, *l.loci[locusKey{tile.Position(e.ID), assembly}])
		return true
	})
	return r
}

// LociContaining returns the annotations of the chromosome that contain pos,
// ordered by start.
func (l *Library) LociContaining(assembly tile.Assembly, chr tile.Chromosome, pos int64) []TileLocusAnnotation {
	return l.LociOverlapping(assembly, chr, pos, pos+1)
}

// LociRange returns the smallest start and the largest end of the
// annotations of the chromosome. ok is false if there are none.
func (l *Library) LociRange(assembly tile.Assembly, chr tile.Chromosome) (lo, hi int64, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx := l.lociIndex[chromKey{assembly, chr}]
	if idx == nil {
		return 0, 0, false
	}
	min, max, ok := idx.Bounds()
	return int64(min), int64(max), ok
}

// TranslationsFor returns the translations of v ordered by Start.
func (l *Library) TranslationsFor(v tile.Variant) []GenomeVariantTranslation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]GenomeVariantTranslation(nil), l.translations[v]...)
}

// GenomeVariant returns the genome variant with the given ID.
func (l *Library) GenomeVariant(id int64) (GenomeVariant, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if gv, ok := l.genomeVariants[id]; ok {
		return *gv, true
	}
	return GenomeVariant{}, false
}
