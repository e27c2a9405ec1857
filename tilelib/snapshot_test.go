package tilelib_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/tilelib/tilelib"
	"github.com/grailbio/tilelib/tilelib/tilelibtest"
)

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := vcontext.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "lib.rio")

	f := newFixture(t)
	assert.NoError(t, f.Lib.InitStatistics([]tilelib.GenomeStatistic{
		{Type: tilelib.GenomeStatistics, PathName: -1, NumPositions: 13, NumTiles: 21},
	}))
	assert.NoError(t, tilelib.WriteSnapshot(ctx, path, f.Lib))

	opts := tilelib.DefaultOpts
	opts.Reference = f.Ref
	lib, err := tilelib.ReadSnapshot(ctx, path, opts)
	assert.NoError(t, err)
	expect.EQ(t, lib.TagLength(), tilelibtest.TagLength)
	expect.EQ(t, lib.Fingerprint(), f.Lib.Fingerprint())

	want, got := f.Lib.Snapshot(), lib.Snapshot()
	expect.EQ(t, got.Positions, want.Positions)
	expect.EQ(t, got.Variants, want.Variants)
	expect.EQ(t, got.Loci, want.Loci)
	expect.EQ(t, got.GenomeVariants, want.GenomeVariants)
	expect.EQ(t, got.Translations, want.Translations)
	expect.EQ(t, got.Statistics, want.Statistics)

	// New genome variants continue after the restored IDs.
	gv := want.GenomeVariants[0]
	gv.StartInt, gv.EndInt = 0, 1
	gv.ReferenceBases = string(f.Chr1[0] - 'a' + 'A')
	gv.AlternateBases = "-"
	id, err := lib.AddGenomeVariant(gv)
	assert.NoError(t, err)
	expect.EQ(t, id, int64(len(want.GenomeVariants)+1))
}

func TestFingerprintChanges(t *testing.T) {
	f := newFixture(t)
	before := f.Lib.Fingerprint()
	expect.EQ(t, f.Lib.Fingerprint(), before)
	assert.NoError(t, f.Lib.AddLocus(tilelib.TileLocusAnnotation{
		Position:   tilelibtest.Position(0, 1),
		Assembly:   38,
		Chromosome: 1,
		StartInt:   1026,
		EndInt:     1080,
	}))
	expect.True(t, f.Lib.Fingerprint() != before)
}

func TestReadSnapshotErrors(t *testing.T) {
	ctx := vcontext.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	_, err := tilelib.ReadSnapshot(ctx, filepath.Join(tempDir, "missing.rio"), tilelib.DefaultOpts)
	expect.NotNil(t, err)

	// A reference that disagrees with the library fails validation on read.
	f := newFixture(t)
	path := filepath.Join(tempDir, "lib.rio")
	assert.NoError(t, tilelib.WriteSnapshot(ctx, path, f.Lib))
	other, err := tilelibtest.New()
	assert.NoError(t, err)
	other.Ref.Set(tilelibtest.Assembly, 1, strings.Repeat("n", tilelibtest.Chr1Len))
	opts := tilelib.DefaultOpts
	opts.Reference = other.Ref
	_, err = tilelib.ReadSnapshot(ctx, path, opts)
	expect.True(t, errors.Is(errors.Invalid, err), "err: %v", err)
}
