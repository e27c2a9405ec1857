package stats

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/tilelib/tile"
	"github.com/grailbio/tilelib/tilelib"
)

// Report is the result of a statistics run.
type Report struct {
	// Rows are the committed rows, ordered by type and path.
	Rows []tilelib.GenomeStatistic
	// Fingerprint is the fingerprint of the library snapshot the rows were
	// computed from.
	Fingerprint uint64
}

// InvalidGenomeError reports library contents that do not fit the
// chromosome layout of the path table.
type InvalidGenomeError struct {
	Msg string
}

// Error implements error.
func (e *InvalidGenomeError) Error() string { return "invalid genome: " + e.Msg }

func invalidGenome(format string, args ...interface{}) error {
	return errors.E(errors.Invalid, &InvalidGenomeError{Msg: fmt.Sprintf(format, args...)})
}

// IsInvalidGenome reports whether err carries an InvalidGenomeError.
func IsInvalidGenome(err error) bool {
	for err != nil {
		switch e := err.(type) {
		case *InvalidGenomeError:
			return true
		case *errors.Error:
			err = e.Err
		default:
			return false
		}
	}
	return false
}

// Aggregator computes and stores the statistics of a library.
type Aggregator struct {
	lib *tilelib.Library
}

// New creates an Aggregator for lib.
func New(lib *tilelib.Library) *Aggregator {
	return &Aggregator{lib: lib}
}

// Initialize computes and stores the first statistics of the library. It
// fails with tilelib.ErrExistingStatistics if the library already has
// statistics, leaving them unchanged.
func (a *Aggregator) Initialize(ctx context.Context) (Report, error) {
	if len(a.lib.Statistics()) > 0 {
		return Report{}, tilelib.ErrExistingStatistics
	}
	return a.run(ctx, a.lib.InitStatistics)
}

// Update recomputes the statistics of the library and replaces the stored
// ones. It fails with tilelib.ErrMissingStatistics if the library has no
// statistics yet.
func (a *Aggregator) Update(ctx context.Context) (Report, error) {
	if len(a.lib.Statistics()) == 0 {
		return Report{}, tilelib.ErrMissingStatistics
	}
	return a.run(ctx, a.lib.ReplaceStatistics)
}

func (a *Aggregator) run(ctx context.Context, commit func([]tilelib.GenomeStatistic) error) (Report, error) {
	snap := a.lib.Snapshot()
	codec := a.lib.Codec()
	rows, err := Compute(snap, codec)
	if err != nil {
		return Report{}, err
	}
	if err := ctx.Err(); err != nil {
		return Report{}, errors.E(errors.Canceled, err)
	}
	if err := commit(rows); err != nil {
		return Report{}, err
	}
	r := Report{Rows: rows, Fingerprint: snap.Fingerprint()}
	log.Printf("stats: committed %d rows for %d positions and %d variants (fingerprint %016x)",
		len(rows), len(snap.Positions), len(snap.Variants), r.Fingerprint)
	return r, nil
}

// acc accumulates the statistics of a scope.
type acc struct {
	positions, tiles, maxSpan int
	minLen, maxLen            int
	sumLen                    int64
	maxVal                    int
	sumVal                    int64
}

func (a *acc) addVariant(v *tilelib.TileVariant) {
	if a.tiles == 0 || v.Length < a.minLen {
		a.minLen = v.Length
	}
	if v.Length > a.maxLen {
		a.maxLen = v.Length
	}
	if v.NumPositionsSpanned > a.maxSpan {
		a.maxSpan = v.NumPositionsSpanned
	}
	if v.VariantValue > a.maxVal {
		a.maxVal = v.VariantValue
	}
	a.tiles++
	a.sumLen += int64(v.Length)
	a.sumVal += int64(v.VariantValue)
}

func (a *acc) merge(b *acc) {
	if b.tiles > 0 && (a.tiles == 0 || b.minLen < a.minLen) {
		a.minLen = b.minLen
	}
	if b.maxLen > a.maxLen {
		a.maxLen = b.maxLen
	}
	if b.maxSpan > a.maxSpan {
		a.maxSpan = b.maxSpan
	}
	if b.maxVal > a.maxVal {
		a.maxVal = b.maxVal
	}
	a.positions += b.positions
	a.tiles += b.tiles
	a.sumLen += b.sumLen
	a.sumVal += b.sumVal
}

func (a *acc) row(typ tilelib.StatisticsType, path int) tilelib.GenomeStatistic {
	s := tilelib.GenomeStatistic{
		Type:                   typ,
		PathName:               path,
		NumPositions:           a.positions,
		NumTiles:               a.tiles,
		MaxNumPositionsSpanned: a.maxSpan,
		MinLength:              a.minLen,
		MaxLength:              a.maxLen,
		MaxVariantValue:        a.maxVal,
	}
	if a.tiles > 0 {
		s.AvgLength = float64(a.sumLen) / float64(a.tiles)
		s.AvgVariantValue = float64(a.sumVal) / float64(a.tiles)
	}
	return s
}

// Compute returns the statistics rows of a snapshot: the genome row, one row
// per chromosome, and one row per path of the codec's path table, in that
// order. Versions of a path are counted together.
func Compute(snap *tilelib.Snapshot, codec *tile.Codec) ([]tilelib.GenomeStatistic, error) {
	if err := codec.Paths.Validate(); err != nil {
		return nil, invalidGenome("the path table does not describe %d chromosomes: %v", tile.NumChromosomes, err)
	}
	layout := codec.Layout
	numPaths := codec.Paths.NumPaths()
	paths := make([]acc, numPaths)
	pathOf := func(what string, p tile.Position) (int, error) {
		path := layout.Path(p)
		if path >= numPaths {
			name, _ := layout.FormatPosition(p)
			return 0, invalidGenome("%s %s is on path %#x, past the last path %#x of the table",
				what, name, path, numPaths-1)
		}
		return path, nil
	}
	for i := range snap.Positions {
		path, err := pathOf("position", snap.Positions[i].Position)
		if err != nil {
			return nil, err
		}
		paths[path].positions++
	}
	for i := range snap.Variants {
		v := &snap.Variants[i]
		path, err := pathOf("variant", v.Position)
		if err != nil {
			return nil, err
		}
		paths[path].addVariant(v)
	}

	var (
		genome acc
		chrs   = make([]acc, tile.NumChromosomes+1)
	)
	for path := range paths {
		chr, err := codec.Paths.ChromosomeForPath(path)
		if err != nil {
			return nil, invalidGenome("path %#x: %v", path, err)
		}
		chrs[chr].merge(&paths[path])
	}
	rows := make([]tilelib.GenomeStatistic, 0, 1+tile.NumChromosomes+numPaths)
	for chr := 1; chr <= tile.NumChromosomes; chr++ {
		genome.merge(&chrs[chr])
	}
	rows = append(rows, genome.row(tilelib.GenomeStatistics, -1))
	for chr := 1; chr <= tile.NumChromosomes; chr++ {
		rows = append(rows, chrs[chr].row(tilelib.StatisticsType(chr), -1))
	}
	for path := range paths {
		rows = append(rows, paths[path].row(tilelib.PathStatistics, path))
	}
	return rows, nil
}
