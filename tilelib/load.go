package tilelib

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/sync/multierror"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/tilelib/tile"
	"github.com/klauspost/compress/gzip"
)

// maxLoadErrors bounds the number of errors LoadTSV reports.
const maxLoadErrors = 100

// Rows of the TSV files read by LoadTSV. Every file starts with a header
// row naming the columns in the order below.
type (
	positionRow struct {
		Position      string `tsv:"position"`
		IsStartOfPath string `tsv:"is_start_of_path"`
		IsEndOfPath   string `tsv:"is_end_of_path"`
		StartTag      string `tsv:"start_tag"`
		EndTag        string `tsv:"end_tag"`
	}
	variantRow struct {
		Variant             string `tsv:"variant"`
		Position            string `tsv:"position"`
		VariantValue        int    `tsv:"variant_value"`
		Length              int    `tsv:"length"`
		NumPositionsSpanned int    `tsv:"num_positions_spanned"`
		MD5Sum              string `tsv:"md5sum"`
		Sequence            string `tsv:"sequence"`
	}
	locusRow struct {
		Position     string `tsv:"position"`
		Assembly     string `tsv:"assembly"`
		Chromosome   string `tsv:"chromosome"`
		StartInt     int64  `tsv:"start_int"`
		EndInt       int64  `tsv:"end_int"`
		VariantValue int    `tsv:"variant_value"`
	}
	genomeVariantRow struct {
		ID             int64  `tsv:"id"`
		Assembly       string `tsv:"assembly"`
		Chromosome     string `tsv:"chromosome"`
		StartInt       int64  `tsv:"start_int"`
		EndInt         int64  `tsv:"end_int"`
		ReferenceBases string `tsv:"reference_bases"`
		AlternateBases string `tsv:"alternate_bases"`
		Names          string `tsv:"names"`
		Info           string `tsv:"info"`
	}
	translationRow struct {
		Variant         string `tsv:"variant"`
		GenomeVariantID int64  `tsv:"genome_variant_id"`
		Start           int    `tsv:"start"`
		End             int    `tsv:"end"`
	}
)

// LoadStats counts the rows LoadTSV inserted.
type LoadStats struct {
	Positions, Variants, Loci, GenomeVariants, Translations int
	// Rejected is the number of rows that failed to parse or validate.
	Rejected int
}

// LoadTSV reads positions.tsv, variants.tsv, loci.tsv, genome_variants.tsv,
// and translations.tsv from dir and inserts their rows into lib, in that
// order. Each file may instead be gzip-compressed, with a ".gz" suffix. A
// missing file is skipped. Rows that fail to parse or validate are skipped;
// their errors are combined into the returned error.
func LoadTSV(ctx context.Context, dir string, lib *Library) (LoadStats, error) {
	var (
		stats LoadStats
		errs  = multierror.NewMultiError(maxLoadErrors)
	)
	layout := lib.Layout()
	load := func(name string, row interface{}, insert func() error, count *int) {
		path, ok := findTable(ctx, dir, name)
		if !ok {
			log.Debug.Printf("tilelib: %s not found in %s, skipping", name, dir)
			return
		}
		n, err := readTable(ctx, path, row, func(line int) {
			if err := insert(); err != nil {
				stats.Rejected++
				errs.Add(errors.E(err, fmt.Sprintf("%s:%d", path, line)))
				return
			}
			*count++
		})
		if err != nil {
			errs.Add(err)
		}
		log.Printf("tilelib: read %d rows from %s", n, path)
	}

	var p positionRow
	load("positions.tsv", &p, func() error {
		pos, err := layout.ParsePosition(p.Position)
		if err != nil {
			return err
		}
		start, err := strconv.ParseBool(p.IsStartOfPath)
		if err != nil {
			return errors.E(errors.Invalid, err, "is_start_of_path")
		}
		end, err := strconv.ParseBool(p.IsEndOfPath)
		if err != nil {
			return errors.E(errors.Invalid, err, "is_end_of_path")
		}
		return lib.AddPosition(TilePosition{
			Position:      pos,
			IsStartOfPath: start,
			IsEndOfPath:   end,
			StartTag:      p.StartTag,
			EndTag:        p.EndTag,
		})
	}, &stats.Positions)

	var v variantRow
	load("variants.tsv", &v, func() error {
		id, err := layout.ParseVariant(v.Variant)
		if err != nil {
			return err
		}
		pos, err := layout.ParsePosition(v.Position)
		if err != nil {
			return err
		}
		return lib.AddVariant(TileVariant{
			Variant:             id,
			Position:            pos,
			VariantValue:        v.VariantValue,
			Length:              v.Length,
			Sequence:            v.Sequence,
			MD5Sum:              v.MD5Sum,
			NumPositionsSpanned: v.NumPositionsSpanned,
		})
	}, &stats.Variants)

	var a locusRow
	load("loci.tsv", &a, func() error {
		pos, err := layout.ParsePosition(a.Position)
		if err != nil {
			return err
		}
		assembly, err := tile.ParseAssembly(a.Assembly)
		if err != nil {
			return err
		}
		chr, err := tile.ParseChromosome(a.Chromosome)
		if err != nil {
			return err
		}
		return lib.AddLocus(TileLocusAnnotation{
			Position:     pos,
			Assembly:     assembly,
			Chromosome:   chr,
			StartInt:     a.StartInt,
			EndInt:       a.EndInt,
			VariantValue: a.VariantValue,
		})
	}, &stats.Loci)

	var g genomeVariantRow
	load("genome_variants.tsv", &g, func() error {
		assembly, err := tile.ParseAssembly(g.Assembly)
		if err != nil {
			return err
		}
		chr, err := tile.ParseChromosome(g.Chromosome)
		if err != nil {
			return err
		}
		return lib.restoreGenomeVariant(GenomeVariant{
			ID:             g.ID,
			Assembly:       assembly,
			Chromosome:     chr,
			StartInt:       g.StartInt,
			EndInt:         g.EndInt,
			ReferenceBases: g.ReferenceBases,
			AlternateBases: g.AlternateBases,
			Names:          g.Names,
			Info:           g.Info,
		})
	}, &stats.GenomeVariants)

	var t translationRow
	load("translations.tsv", &t, func() error {
		id, err := layout.ParseVariant(t.Variant)
		if err != nil {
			return err
		}
		return lib.AddTranslation(GenomeVariantTranslation{
			Variant:         id,
			GenomeVariantID: t.GenomeVariantID,
			Start:           t.Start,
			End:             t.End,
		})
	}, &stats.Translations)

	return stats, errs.Err()
}

// findTable returns the path of name or name.gz in dir.
func findTable(ctx context.Context, dir, name string) (string, bool) {
	for _, path := range []string{filepath.Join(dir, name), filepath.Join(dir, name+".gz")} {
		if _, err := file.Stat(ctx, path); err == nil {
			return path, true
		}
	}
	return "", false
}

// readTable reads the rows of a TSV file into row and calls fn after each
// one. It returns the number of rows read.
func readTable(ctx context.Context, path string, row interface{}, fn func(line int)) (n int, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return 0, errors.E(err, "open", path)
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil && err == nil {
			err = errors.E(cerr, "close", path)
		}
	}()
	var reader io.Reader = in.Reader(ctx)
	if fileio.DetermineType(path) == fileio.Gzip {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return 0, errors.E(errors.Invalid, err, "gzip", path)
		}
		defer gz.Close()
		reader = gz
	}
	r := tsv.NewReader(reader)
	r.HasHeaderRow = true
	r.UseHeaderNames = true
	for {
		if err := r.Read(row); err != nil {
			if err == io.EOF {
				break
			}
			return n, errors.E(errors.Invalid, err, fmt.Sprintf("%s:%d", path, n+2))
		}
		n++
		// Line numbers count the header row.
		fn(n + 1)
	}
	return n, nil
}
