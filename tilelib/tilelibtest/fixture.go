// Package tilelibtest builds a small deterministic tile library and a matching
// population for tests.
//
// The library has tag length 24 and uses hg19. Chromosome 1 holds path 0,
// with six positions, and path 1, with three; path 1 starts where path 0
// ends, at 180. Chromosome 2 holds paths 63 and 64, which meet at 130.
//
//   path 0:  [0,50) [26,80) [56,110) [86,140) [116,170) [146,180)
//   path 1:  [180,230) [206,260) [236,270)
//   path 63: [0,77) [53,130)
//   path 64: [130,180) [156,200)
//
// Variant 0 of every position is the reference. The other variants are:
//
//   00.000.0000.001  SNP at 24 (c>t)
//   00.000.0001.001  SNP at 53
//   00.000.0002.001  deletion of [82,84)
//   00.000.0002.002  spans positions 2 to 4, SNP at 128
//   00.000.0003.001  insertion of "ga" before 113
//   00.001.0001.001  SNP at 233
//   00.03f.0001.001  SNP at chr2:129
//   00.040.0000.001  SNP at chr2:130
//
// Every non-reference variant has a genome variant translation.
package tilelibtest

import (
	"crypto/md5"
	"fmt"
	"strings"

	"github.com/grailbio/tilelib/population"
	"github.com/grailbio/tilelib/reference"
	"github.com/grailbio/tilelib/tile"
	"github.com/grailbio/tilelib/tilelib"
)

const (
	// TagLength is the tag length of the fixture library.
	TagLength = 24
	// Assembly is the assembly of every locus in the fixture.
	Assembly = tile.Hg19
	// Chr1Len and Chr2Len are the lengths of the fixture chromosomes.
	Chr1Len = 270
	Chr2Len = 200
)

// Tile describes one position of the fixture.
type Tile struct {
	Chromosome tile.Chromosome
	Path, Step int
	Start, End int64
	// Last is set for the last position of a path.
	Last bool
}

// Tiles lists every position of the fixture in address order.
var Tiles = []Tile{
	{1, 0, 0, 0, 50, false},
	{1, 0, 1, 26, 80, false},
	{1, 0, 2, 56, 110, false},
	{1, 0, 3, 86, 140, false},
	{1, 0, 4, 116, 170, false},
	{1, 0, 5, 146, 180, true},
	{1, 1, 0, 180, 230, false},
	{1, 1, 1, 206, 260, false},
	{1, 1, 2, 236, 270, true},
	{2, 63, 0, 0, 77, false},
	{2, 63, 1, 53, 130, true},
	{2, 64, 0, 130, 180, false},
	{2, 64, 1, 156, 200, true},
}

// Edit is a change to the reference. A SNP replaces the base at Pos with
// Alt(base); a deletion removes Del bases from Pos; an insertion inserts Ins
// before Pos.
type Edit struct {
	Pos int64
	Del int
	Ins string
	SNP bool
}

// VariantSpec describes a non-reference variant of the fixture.
type VariantSpec struct {
	Path, Step, Value, Span int
	Edit                    Edit
}

// Variants lists the non-reference variants.
var Variants = []VariantSpec{
	{0, 0, 1, 1, Edit{Pos: 24, SNP: true}},
	{0, 1, 1, 1, Edit{Pos: 53, SNP: true}},
	{0, 2, 1, 1, Edit{Pos: 82, Del: 2}},
	{0, 2, 2, 3, Edit{Pos: 128, SNP: true}},
	{0, 3, 1, 1, Edit{Pos: 113, Ins: "ga"}},
	{1, 1, 1, 1, Edit{Pos: 233, SNP: true}},
	{63, 1, 1, 1, Edit{Pos: 129, SNP: true}},
	{64, 0, 1, 1, Edit{Pos: 130, SNP: true}},
}

// Alt returns the transition of a base: a<->g, c<->t.
func Alt(b byte) byte {
	switch b {
	case 'a':
		return 'g'
	case 'g':
		return 'a'
	case 'c':
		return 't'
	case 't':
		return 'c'
	}
	return b
}

// randomBases returns n deterministic pseudo-random lowercase bases.
func randomBases(seed uint64, n int) []byte {
	b := make([]byte, n)
	x := seed
	for i := range b {
		x = x*6364136223846793005 + 1442695040888963407
		b[i] = "acgt"[x>>62]
	}
	return b
}

// Fixture is the fixture library and population.
type Fixture struct {
	Lib *tilelib.Library
	Ref *reference.Store
	// Chr1 and Chr2 are the lowercase reference sequences.
	Chr1, Chr2 string
	// Calls holds the population: "hu1", "hu2", and "hu3".
	Calls population.Calls
}

// Sequence returns the lowercase reference sequence of chr.
func (f *Fixture) Sequence(chr tile.Chromosome) string {
	if chr == 2 {
		return f.Chr2
	}
	return f.Chr1
}

// Position returns the address of (path, step) at version 0.
func Position(path, step int) tile.Position {
	p, err := tile.DefaultLayout.PackPosition(0, path, step)
	if err != nil {
		panic(err)
	}
	return p
}

// VariantID returns the address of (path, step, value) at version 0.
func VariantID(path, step, value int) tile.Variant {
	v, err := tile.DefaultLayout.PackVariant(0, path, step, value)
	if err != nil {
		panic(err)
	}
	return v
}

// CGF returns the cgf name of (path, step, value) at version 0.
func CGF(path, step, value, span int) string {
	s, err := tile.DefaultLayout.FormatCGF(tile.CGF{Path: path, Step: step, Value: value, Span: span})
	if err != nil {
		panic(err)
	}
	return s
}

func findTile(path, step int) Tile {
	for _, t := range Tiles {
		if t.Path == path && t.Step == step {
			return t
		}
	}
	panic(fmt.Sprintf("no tile %d.%d", path, step))
}

// apply returns ref[start:end] with e applied.
func apply(ref string, start, end int64, e Edit) string {
	off := e.Pos - start
	seq := ref[start:end]
	switch {
	case e.SNP:
		return seq[:off] + string(Alt(seq[off])) + seq[off+1:]
	case e.Del > 0:
		return seq[:off] + seq[off+int64(e.Del):]
	}
	return seq[:off] + e.Ins + seq[off:]
}

// New builds the fixture.
func New() (*Fixture, error) {
	chr1 := randomBases(1, Chr1Len)
	chr1[24] = 'c'
	f := &Fixture{
		Ref:  reference.NewStore(),
		Chr1: string(chr1),
		Chr2: string(randomBases(2, Chr2Len)),
	}
	f.Ref.Set(Assembly, 1, f.Chr1)
	f.Ref.Set(Assembly, 2, f.Chr2)

	opts := tilelib.DefaultOpts
	opts.TagLength = TagLength
	opts.Reference = f.Ref
	lib, err := tilelib.New(opts)
	if err != nil {
		return nil, err
	}
	f.Lib = lib

	for _, t := range Tiles {
		ref := f.Sequence(t.Chromosome)
		p := tilelib.TilePosition{
			Position:      Position(t.Path, t.Step),
			IsStartOfPath: t.Step == 0,
			IsEndOfPath:   t.Last,
		}
		if !p.IsStartOfPath {
			p.StartTag = ref[t.Start : t.Start+TagLength]
		}
		if !p.IsEndOfPath {
			p.EndTag = ref[t.End-TagLength : t.End]
		}
		if err := lib.AddPosition(p); err != nil {
			return nil, err
		}
	}
	addVariant := func(path, step, value, span int, seq string) error {
		return lib.AddVariant(tilelib.TileVariant{
			Variant:             VariantID(path, step, value),
			Position:            Position(path, step),
			VariantValue:        value,
			Length:              len(seq),
			Sequence:            seq,
			MD5Sum:              fmt.Sprintf("%x", md5.Sum([]byte(seq))),
			NumPositionsSpanned: span,
		})
	}
	for _, t := range Tiles {
		ref := f.Sequence(t.Chromosome)
		if err := addVariant(t.Path, t.Step, 0, 1, ref[t.Start:t.End]); err != nil {
			return nil, err
		}
		if err := lib.AddLocus(tilelib.TileLocusAnnotation{
			Position:   Position(t.Path, t.Step),
			Assembly:   Assembly,
			Chromosome: t.Chromosome,
			StartInt:   t.Start,
			EndInt:     t.End,
		}); err != nil {
			return nil, err
		}
	}
	for _, v := range Variants {
		first := findTile(v.Path, v.Step)
		last := findTile(v.Path, v.Step+v.Span-1)
		ref := f.Sequence(first.Chromosome)
		seq := apply(ref, first.Start, last.End, v.Edit)
		if err := addVariant(v.Path, v.Step, v.Value, v.Span, seq); err != nil {
			return nil, err
		}
		gv := tilelib.GenomeVariant{
			Assembly:   Assembly,
			Chromosome: first.Chromosome,
			StartInt:   v.Edit.Pos,
		}
		off := int(v.Edit.Pos - first.Start)
		t := tilelib.GenomeVariantTranslation{Variant: VariantID(v.Path, v.Step, v.Value), Start: off}
		switch {
		case v.Edit.SNP:
			gv.EndInt = v.Edit.Pos + 1
			gv.ReferenceBases = strings.ToUpper(ref[v.Edit.Pos : v.Edit.Pos+1])
			gv.AlternateBases = strings.ToUpper(string(Alt(ref[v.Edit.Pos])))
			t.End = off + 1
		case v.Edit.Del > 0:
			gv.EndInt = v.Edit.Pos + int64(v.Edit.Del)
			gv.ReferenceBases = strings.ToUpper(ref[v.Edit.Pos:gv.EndInt])
			gv.AlternateBases = "-"
			t.End = off
		default:
			gv.EndInt = v.Edit.Pos
			gv.ReferenceBases = "-"
			gv.AlternateBases = strings.ToUpper(v.Edit.Ins)
			t.End = off + len(v.Edit.Ins)
		}
		if t.GenomeVariantID, err = lib.AddGenomeVariant(gv); err != nil {
			return nil, err
		}
		if err := lib.AddTranslation(t); err != nil {
			return nil, err
		}
	}
	f.Calls = population.Calls{
		"hu1": {referenceCalls(), withCalls(map[[2]int]string{
			{0, 0}:  CGF(0, 0, 1, 1),
			{0, 2}:  CGF(0, 2, 1, 1),
			{0, 3}:  CGF(0, 3, 1, 1),
			{1, 1}:  CGF(1, 1, 1, 1),
			{63, 1}: CGF(63, 1, 1, 1),
			{64, 0}: CGF(64, 0, 1, 1),
		})},
		"hu2": {withCalls(map[[2]int]string{
			{0, 0}: CGF(0, 0, 1, 1),
			{0, 1}: CGF(0, 1, 1, 1),
			{0, 2}: CGF(0, 2, 2, 3),
			{0, 3}: "",
			{0, 4}: "",
		}), referenceCalls()},
		"hu3": {referenceCalls(), referenceCalls()},
	}
	return f, nil
}

// referenceCalls calls variant 0 at every position.
func referenceCalls() []string {
	return withCalls(nil)
}

// withCalls calls variant 0 at every position except those in m, keyed by
// {path, step}. An empty replacement drops the call, as for positions covered
// by a spanning call.
func withCalls(m map[[2]int]string) []string {
	var r []string
	for _, t := range Tiles {
		c, ok := m[[2]int{t.Path, t.Step}]
		if !ok {
			c = CGF(t.Path, t.Step, 0, 1)
		}
		if c != "" {
			r = append(r, c)
		}
	}
	return r
}
