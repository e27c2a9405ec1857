package stats_test

import (
	"context"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/testutil/h"
	"github.com/grailbio/tilelib/stats"
	"github.com/grailbio/tilelib/tile"
	"github.com/grailbio/tilelib/tilelib"
	"github.com/grailbio/tilelib/tilelib/tilelibtest"
)

func row(rows []tilelib.GenomeStatistic, typ tilelib.StatisticsType, path int) tilelib.GenomeStatistic {
	for _, r := range rows {
		if r.Type == typ && r.PathName == path {
			return r
		}
	}
	return tilelib.GenomeStatistic{Type: -1}
}

func TestInitialize(t *testing.T) {
	f, err := tilelibtest.New()
	assert.NoError(t, err)
	ctx := context.Background()
	agg := stats.New(f.Lib)

	r, err := agg.Initialize(ctx)
	assert.NoError(t, err)
	expect.EQ(t, len(r.Rows), 1+tile.NumChromosomes+f.Lib.Codec().Paths.NumPaths())
	expect.EQ(t, r.Fingerprint, f.Lib.Fingerprint())
	expect.That(t, f.Lib.Statistics(), h.EQ(r.Rows))

	rows := f.Lib.Statistics()
	genome := row(rows, tilelib.GenomeStatistics, -1)
	expect.EQ(t, genome.NumPositions, 13)
	expect.EQ(t, genome.NumTiles, 21)
	expect.EQ(t, genome.MaxNumPositionsSpanned, 3)
	expect.EQ(t, genome.MaxVariantValue, 2)
	expect.EQ(t, genome.AvgVariantValue, 9.0/21.0)

	chr1 := row(rows, tilelib.StatisticsType(1), -1)
	expect.EQ(t, chr1.NumPositions, 9)
	expect.EQ(t, chr1.NumTiles, 15)
	expect.EQ(t, chr1.MaxNumPositionsSpanned, 3)
	chr2 := row(rows, tilelib.StatisticsType(2), -1)
	expect.EQ(t, chr2.NumPositions, 4)
	expect.EQ(t, chr2.NumTiles, 6)
	expect.EQ(t, chr2.MaxNumPositionsSpanned, 1)
	chr3 := row(rows, tilelib.StatisticsType(3), -1)
	expect.EQ(t, chr3.NumPositions, 0)
	expect.EQ(t, chr3.NumTiles, 0)
	expect.EQ(t, chr3.AvgLength, 0.0)

	path0 := row(rows, tilelib.PathStatistics, 0)
	expect.EQ(t, path0.NumPositions, 6)
	expect.EQ(t, path0.NumTiles, 11)
	expect.EQ(t, path0.MaxNumPositionsSpanned, 3)
	path1 := row(rows, tilelib.PathStatistics, 1)
	expect.EQ(t, path1.NumPositions, 3)
	expect.EQ(t, path1.NumTiles, 4)
	expect.EQ(t, path1.MinLength, 34)
	expect.EQ(t, path1.MaxLength, 54)
	expect.EQ(t, path1.AvgLength, 48.0)
	expect.EQ(t, path1.MaxVariantValue, 1)
	expect.EQ(t, path1.AvgVariantValue, 0.25)
	expect.EQ(t, row(rows, tilelib.PathStatistics, 63).NumTiles, 3)
	expect.EQ(t, row(rows, tilelib.PathStatistics, 64).NumPositions, 2)
	expect.EQ(t, row(rows, tilelib.PathStatistics, 2).NumTiles, 0)

	// The sums of the chromosome rows agree with the genome row.
	var positions, tiles int
	for chr := 1; chr <= tile.NumChromosomes; chr++ {
		r := row(rows, tilelib.StatisticsType(chr), -1)
		positions += r.NumPositions
		tiles += r.NumTiles
	}
	expect.EQ(t, positions, genome.NumPositions)
	expect.EQ(t, tiles, genome.NumTiles)

	_, err = agg.Initialize(ctx)
	expect.True(t, errors.Is(errors.Exists, err), "err: %v", err)
	expect.That(t, f.Lib.Statistics(), h.EQ(rows))
}

func TestUpdate(t *testing.T) {
	f, err := tilelibtest.New()
	assert.NoError(t, err)
	ctx := context.Background()
	agg := stats.New(f.Lib)

	_, err = agg.Update(ctx)
	expect.True(t, errors.Is(errors.Precondition, err), "err: %v", err)
	expect.EQ(t, len(f.Lib.Statistics()), 0)

	_, err = agg.Initialize(ctx)
	assert.NoError(t, err)
	first, err := agg.Update(ctx)
	assert.NoError(t, err)
	second, err := agg.Update(ctx)
	assert.NoError(t, err)
	expect.That(t, second.Rows, h.EQ(first.Rows))
	expect.That(t, f.Lib.Statistics(), h.EQ(first.Rows))
}

func TestUpdateCanceled(t *testing.T) {
	f, err := tilelibtest.New()
	assert.NoError(t, err)
	agg := stats.New(f.Lib)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = agg.Initialize(ctx)
	expect.True(t, errors.Is(errors.Canceled, err), "err: %v", err)
	expect.EQ(t, len(f.Lib.Statistics()), 0)
}

func TestComputeInvalidGenome(t *testing.T) {
	table := make(tile.PathTable, tile.NumChromosomes+1)
	for i := 1; i < len(table); i++ {
		table[i] = 2
	}
	codec, err := tile.NewCodec(tile.DefaultLayout, table)
	assert.NoError(t, err)
	pos, err := codec.Layout.PackPosition(0, 5, 0)
	assert.NoError(t, err)
	snap := &tilelib.Snapshot{Positions: []tilelib.TilePosition{{Position: pos}}}
	_, err = stats.Compute(snap, codec)
	expect.True(t, errors.Is(errors.Invalid, err), "err: %v", err)
	expect.True(t, stats.IsInvalidGenome(err), "err: %v", err)

	// A table of the wrong karyotype.
	codec = &tile.Codec{Layout: tile.DefaultLayout, Paths: tile.PathTable{0, 2, 3}}
	_, err = stats.Compute(&tilelib.Snapshot{}, codec)
	expect.True(t, stats.IsInvalidGenome(err), "err: %v", err)
}
