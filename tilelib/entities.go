package tilelib

import (
	"github.com/grailbio/tilelib/tile"
)

// TilePosition is a slot in a path. Consecutive positions of a path share
// their tags: the end tag of one is the start tag of the next.
type TilePosition struct {
	Position      tile.Position
	IsStartOfPath bool
	IsEndOfPath   bool
	// StartTag and EndTag are lowercase and either empty or TagLength bases
	// long. The start tag is empty iff the position starts its path; the end
	// tag is empty iff it ends it.
	StartTag string
	EndTag   string
}

// TileVariant is one sequence observed at a position.
type TileVariant struct {
	Variant  tile.Variant
	Position tile.Position
	// VariantValue must match the value field of Variant.
	VariantValue int
	Length       int
	// Sequence is lowercase. It starts with the start tag of Position and ends
	// with the end tag of the last position it spans.
	Sequence string
	// MD5Sum is the hex md5 digest of Sequence.
	MD5Sum              string
	NumPositionsSpanned int
}

// Spanning reports whether the variant covers more than one position.
func (v *TileVariant) Spanning() bool { return v.NumPositionsSpanned > 1 }

// LastPosition is the last position covered by the variant.
func (v *TileVariant) LastPosition() tile.Position {
	return v.Position + tile.Position(v.NumPositionsSpanned-1)
}

// TileLocusAnnotation places a position on a reference assembly.
type TileLocusAnnotation struct {
	Position   tile.Position
	Assembly   tile.Assembly
	Chromosome tile.Chromosome
	// StartInt and EndInt are 0-based, end-exclusive.
	StartInt int64
	EndInt   int64
	// VariantValue names the variant at Position whose sequence matches the
	// assembly.
	VariantValue int
}

// Len is the length of the locus.
func (a *TileLocusAnnotation) Len() int64 { return a.EndInt - a.StartInt }

// Locus is a half-open range [Start, End) on a chromosome of an assembly.
type Locus struct {
	Assembly   tile.Assembly
	Chromosome tile.Chromosome
	Start      int64
	End        int64
}

// GenomeVariant is a difference from a reference assembly. ReferenceBases is
// "-" for a pure insertion, in which case StartInt == EndInt, and
// AlternateBases is "-" for a pure deletion.
type GenomeVariant struct {
	ID             int64
	Assembly       tile.Assembly
	Chromosome     tile.Chromosome
	StartInt       int64
	EndInt         int64
	ReferenceBases string
	AlternateBases string
	// Names holds optional external identifiers, e.g. dbSNP ids.
	Names string
	Info  string
}

// GenomeVariantTranslation links a tile variant to a genome variant. Start
// and End are offsets into the tile variant's sequence.
type GenomeVariantTranslation struct {
	Variant         tile.Variant
	GenomeVariantID int64
	Start           int
	End             int
}

// StatisticsType identifies the scope of a GenomeStatistic.
type StatisticsType int

const (
	// GenomeStatistics rows cover the whole library. Types 1..26 are the
	// chromosomes, see tile.Chromosome.
	GenomeStatistics StatisticsType = 0
	// PathStatistics rows cover one path, named by PathName.
	PathStatistics StatisticsType = StatisticsType(tile.NumChromosomes + 1)
)

// GenomeStatistic summarizes the positions and variants of a scope.
type GenomeStatistic struct {
	Type StatisticsType
	// PathName is the path of a PathStatistics row and -1 otherwise.
	PathName               int
	NumPositions           int
	NumTiles               int
	MaxNumPositionsSpanned int
	MinLength              int
	MaxLength              int
	AvgLength              float64
	// MaxVariantValue and AvgVariantValue summarize the value field of the
	// variants, a proxy for how many variants positions carry.
	MaxVariantValue int
	AvgVariantValue float64
}

type statisticKey struct {
	typ  StatisticsType
	path int
}

func (s *GenomeStatistic) key() statisticKey { return statisticKey{s.Type, s.PathName} }

func (s *GenomeStatistic) less(o *GenomeStatistic) bool {
	if s.Type != o.Type {
		return s.Type < o.Type
	}
	return s.PathName < o.PathName
}
