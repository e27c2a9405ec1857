package tilelib

// This file defines Snapshot, a consistent copy of a Library, and its
// recordio file format. WriteSnapshot stores one gob-encoded record per
// entity, in insertion-safe order: positions, variants, loci, genome
// variants, translations, statistics. The trailer holds the codec, the tag
// length, and the fingerprint of the contents. ReadSnapshot inserts every
// record through the validating Add methods and then checks the fingerprint.

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"sort"

	"blainsmith.com/go/seahash"
	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/grailbio/tilelib/tile"
)

// Snapshot is a consistent copy of the contents of a Library.
type Snapshot struct {
	Generation     uint64
	Positions      []TilePosition
	Variants       []TileVariant
	Loci           []TileLocusAnnotation
	GenomeVariants []GenomeVariant
	Translations   []GenomeVariantTranslation
	Statistics     []GenomeStatistic
}

// Snapshot copies the contents of the library. Positions and variants are
// ordered by address, loci by (position, assembly), genome variants by ID,
// and translations by (variant, start).
func (l *Library) Snapshot() *Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := &Snapshot{
		Generation: l.generation,
		Positions:  make([]TilePosition, 0, l.positions.Len()),
		Variants:   make([]TileVariant, 0, l.variants.Len()),
		Statistics: l.statisticsLocked(),
	}
	l.positions.Do(func(c llrb.Comparable) bool {
		s.Positions = append(s.Positions, *c.(positionItem).p)
		return false
	})
	l.variants.Do(func(c llrb.Comparable) bool {
		s.Variants = append(s.Variants, *c.(variantItem).v)
		return false
	})
	for _, a := range l.loci {
		s.Loci = append(s.Loci, *a)
	}
	sort.Slice(s.Loci, func(i, j int) bool {
		a, b := &s.Loci[i], &s.Loci[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.Assembly < b.Assembly
	})
	for _, gv := range l.genomeVariants {
		s.GenomeVariants = append(s.GenomeVariants, *gv)
	}
	sort.Slice(s.GenomeVariants, func(i, j int) bool { return s.GenomeVariants[i].ID < s.GenomeVariants[j].ID })
	for _, ts := range l.translations {
		s.Translations = append(s.Translations, ts...)
	}
	sort.SliceStable(s.Translations, func(i, j int) bool {
		a, b := &s.Translations[i], &s.Translations[j]
		if a.Variant != b.Variant {
			return a.Variant < b.Variant
		}
		return a.Start < b.Start
	})
	return s
}

// Fingerprint is a seahash digest of the tile data of the snapshot.
// Statistics and the generation are not included.
func (s *Snapshot) Fingerprint() uint64 {
	h := seahash.New()
	for _, p := range s.Positions {
		fmt.Fprintf(h, "P%x|%v|%v|%s|%s\n", uint64(p.Position), p.IsStartOfPath, p.IsEndOfPath, p.StartTag, p.EndTag)
	}
	for _, v := range s.Variants {
		fmt.Fprintf(h, "V%x|%x|%d|%d|%d|%s|%s\n", uint64(v.Variant), uint64(v.Position), v.VariantValue,
			v.Length, v.NumPositionsSpanned, v.MD5Sum, v.Sequence)
	}
	for _, a := range s.Loci {
		fmt.Fprintf(h, "L%x|%d|%d|%d|%d|%d\n", uint64(a.Position), a.Assembly, a.Chromosome,
			a.StartInt, a.EndInt, a.VariantValue)
	}
	for _, gv := range s.GenomeVariants {
		fmt.Fprintf(h, "G%d|%d|%d|%d|%d|%s|%s|%s|%s\n", gv.ID, gv.Assembly, gv.Chromosome, gv.StartInt, gv.EndInt,
			gv.ReferenceBases, gv.AlternateBases, gv.Names, gv.Info)
	}
	for _, t := range s.Translations {
		fmt.Fprintf(h, "T%x|%d|%d|%d\n", uint64(t.Variant), t.GenomeVariantID, t.Start, t.End)
	}
	return h.Sum64()
}

// Fingerprint is the fingerprint of a snapshot of the library.
func (l *Library) Fingerprint() uint64 { return l.Snapshot().Fingerprint() }

const (
	// <fileVersionHeader, fileVersion> is stored in a recordio header.
	fileVersionHeader = "tilelibversion"
	fileVersion       = "TILELIB_V1"
)

// snapshotRecord is one recordio record. Exactly one field is set.
type snapshotRecord struct {
	Position      *TilePosition
	Variant       *TileVariant
	Locus         *TileLocusAnnotation
	GenomeVariant *GenomeVariant
	Translation   *GenomeVariantTranslation
	Statistic     *GenomeStatistic
}

// snapshotTrailer is stored in the trailer section of the recordio file.
type snapshotTrailer struct {
	Layout      tile.Layout
	Paths       tile.PathTable
	TagLength   int
	Fingerprint uint64
	NumRecords  int
}

func encodeGOB(v interface{}) ([]byte, error) {
	b := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(b).Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// WriteSnapshot writes a snapshot of lib to path.
func WriteSnapshot(ctx context.Context, path string, lib *Library) (err error) {
	s := lib.Snapshot()
	recordiozstd.Init()
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create snapshot", path)
	}
	defer func() {
		if cerr := out.Close(ctx); cerr != nil && err == nil {
			err = errors.E(cerr, "close snapshot", path)
		}
	}()
	w := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(fileVersionHeader, fileVersion)
	w.AddHeader(recordio.KeyTrailer, true)

	n := 0
	var encErr error
	add := func(r snapshotRecord) {
		if encErr != nil {
			return
		}
		b, err := encodeGOB(r)
		if err != nil {
			encErr = err
			return
		}
		w.Append(b)
		n++
	}
	for i := range s.Positions {
		add(snapshotRecord{Position: &s.Positions[i]})
	}
	for i := range s.Variants {
		add(snapshotRecord{Variant: &s.Variants[i]})
	}
	for i := range s.Loci {
		add(snapshotRecord{Locus: &s.Loci[i]})
	}
	for i := range s.GenomeVariants {
		add(snapshotRecord{GenomeVariant: &s.GenomeVariants[i]})
	}
	for i := range s.Translations {
		add(snapshotRecord{Translation: &s.Translations[i]})
	}
	for i := range s.Statistics {
		add(snapshotRecord{Statistic: &s.Statistics[i]})
	}
	if encErr != nil {
		return errors.E(encErr, "encode snapshot", path)
	}
	opts := lib.Opts()
	trailer, err := encodeGOB(snapshotTrailer{
		Layout:      opts.Codec.Layout,
		Paths:       opts.Codec.Paths,
		TagLength:   opts.TagLength,
		Fingerprint: s.Fingerprint(),
		NumRecords:  n,
	})
	if err != nil {
		return errors.E(err, "encode snapshot trailer", path)
	}
	w.SetTrailer(trailer)
	if err := w.Finish(); err != nil {
		return errors.E(err, "write snapshot", path)
	}
	log.Printf("tilelib: wrote %d records (generation %d) to %s", n, s.Generation, path)
	return nil
}

// ReadSnapshot reads a library written by WriteSnapshot. The codec and tag
// length stored in the file replace those of opts; the remaining options,
// such as the reference genome, are used to validate the contents.
func ReadSnapshot(ctx context.Context, path string, opts Opts) (lib *Library, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open snapshot", path)
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil && err == nil {
			err = errors.E(cerr, "close snapshot", path)
		}
	}()
	recordiozstd.Init()
	r := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{})
	versionFound := false
	for _, kv := range r.Header() {
		if kv.Key == fileVersionHeader {
			if v, ok := kv.Value.(string); !ok || v != fileVersion {
				return nil, errors.E(errors.Invalid,
					fmt.Sprintf("snapshot %s: version mismatch, got %v, expect %v", path, kv.Value, fileVersion))
			}
			versionFound = true
			break
		}
	}
	if !versionFound {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("snapshot %s: %s not found", path, fileVersionHeader))
	}
	var t snapshotTrailer
	if err := gob.NewDecoder(bytes.NewReader(r.Trailer())).Decode(&t); err != nil {
		return nil, errors.E(errors.Invalid, err, "decode snapshot trailer", path)
	}
	if opts.Codec, err = tile.NewCodec(t.Layout, t.Paths); err != nil {
		return nil, errors.E(err, "snapshot codec", path)
	}
	opts.TagLength = t.TagLength
	if lib, err = New(opts); err != nil {
		return nil, err
	}
	var (
		stats []GenomeStatistic
		n     int
	)
	for r.Scan() {
		var rec snapshotRecord
		if err := gob.NewDecoder(bytes.NewReader(r.Get().([]byte))).Decode(&rec); err != nil {
			return nil, errors.E(errors.Invalid, err, fmt.Sprintf("snapshot %s: record %d", path, n))
		}
		n++
		switch {
		case rec.Position != nil:
			err = lib.AddPosition(*rec.Position)
		case rec.Variant != nil:
			err = lib.AddVariant(*rec.Variant)
		case rec.Locus != nil:
			err = lib.AddLocus(*rec.Locus)
		case rec.GenomeVariant != nil:
			err = lib.restoreGenomeVariant(*rec.GenomeVariant)
		case rec.Translation != nil:
			err = lib.AddTranslation(*rec.Translation)
		case rec.Statistic != nil:
			stats = append(stats, *rec.Statistic)
		default:
			err = errors.E(errors.Invalid, "empty record")
		}
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("snapshot %s: record %d", path, n-1))
		}
	}
	if err := r.Err(); err != nil {
		return nil, errors.E(err, "read snapshot", path)
	}
	if n != t.NumRecords {
		return nil, errors.E(errors.Integrity,
			fmt.Sprintf("snapshot %s: read %d records, trailer says %d", path, n, t.NumRecords))
	}
	if len(stats) > 0 {
		if err := lib.InitStatistics(stats); err != nil {
			return nil, err
		}
	}
	if fp := lib.Fingerprint(); fp != t.Fingerprint {
		return nil, errors.E(errors.Integrity,
			fmt.Sprintf("snapshot %s: fingerprint %016x, trailer says %016x", path, fp, t.Fingerprint))
	}
	log.Printf("tilelib: read %d records from %s", n, path)
	return lib, nil
}
