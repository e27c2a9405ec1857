package cmd

import (
	"context"
	"fmt"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/tilelib/reference"
	"github.com/grailbio/tilelib/stats"
	"github.com/grailbio/tilelib/tile"
	"github.com/grailbio/tilelib/tilelib"
	"v.io/x/lib/cmdline"
)

type loadFlags struct {
	tagLength int
	assembly  string
	fasta     string
	force     bool
}

func load(ctx context.Context, flags loadFlags, dir, out string) error {
	opts := tilelib.DefaultOpts
	opts.TagLength = flags.tagLength
	if flags.fasta != "" {
		assembly, err := tile.ParseAssembly(flags.assembly)
		if err != nil {
			return err
		}
		ref := reference.NewStore()
		if err := ref.ReadFASTA(ctx, assembly, flags.fasta); err != nil {
			return err
		}
		opts.Reference = ref
	}
	lib, err := tilelib.New(opts)
	if err != nil {
		return err
	}
	st, err := tilelib.LoadTSV(ctx, dir, lib)
	log.Printf("load %s: %d positions, %d variants, %d loci, %d genome variants, %d translations, %d rejected",
		dir, st.Positions, st.Variants, st.Loci, st.GenomeVariants, st.Translations, st.Rejected)
	if err != nil {
		if !flags.force {
			return err
		}
		log.Error.Printf("load %s: keeping the valid rows: %v", dir, err)
	}
	return tilelib.WriteSnapshot(ctx, out, lib)
}

func newCmdLoad() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "load",
		Short: "Build a snapshot from TSV tables",
		Long: `
Load reads positions.tsv, variants.tsv, loci.tsv, genome_variants.tsv, and
translations.tsv (each optionally gzipped) from tabledir, validates every row,
and writes the resulting library to snapshot.`,
		ArgsName: "tabledir snapshot",
	}
	flags := loadFlags{}
	cmd.Flags.IntVar(&flags.tagLength, "tag-length", tilelib.DefaultOpts.TagLength, "Number of bases shared by neighboring tiles")
	cmd.Flags.StringVar(&flags.assembly, "assembly", tile.Hg19.String(), "Assembly of the -fasta file")
	cmd.Flags.StringVar(&flags.fasta, "fasta", "", "Reference FASTA used to check the bases of genome variants")
	cmd.Flags.BoolVar(&flags.force, "force", false, "Write the snapshot even if some rows were rejected")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("load takes tabledir snapshot, but found %v", argv)
		}
		return load(vcontext.Background(), flags, argv[0], argv[1])
	})
	return cmd
}

func newCmdStats(name string) *cmdline.Command {
	short := "Compute and store the first genome statistics of a snapshot"
	if name == "stats-update" {
		short = "Recompute the genome statistics of a snapshot"
	}
	cmd := &cmdline.Command{
		Name:     name,
		Short:    short,
		ArgsName: "snapshot",
	}
	outFlag := cmd.Flags.String("out", "", "Output snapshot path. By default the input snapshot is replaced")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		ctx := vcontext.Background()
		lib, err := readLibrary(ctx, name, argv)
		if err != nil {
			return err
		}
		agg := stats.New(lib)
		var r stats.Report
		if name == "stats-init" {
			r, err = agg.Initialize(ctx)
		} else {
			r, err = agg.Update(ctx)
		}
		if err != nil {
			return errors.E(err, name, argv[0])
		}
		out := *outFlag
		if out == "" {
			out = argv[0]
		}
		if err := tilelib.WriteSnapshot(ctx, out, lib); err != nil {
			return err
		}
		for _, s := range r.Rows {
			if s.NumTiles == 0 {
				continue
			}
			scope := "genome"
			switch {
			case s.Type == tilelib.PathStatistics:
				scope = fmt.Sprintf("path:%03x", s.PathName)
			case s.Type != tilelib.GenomeStatistics:
				scope = tile.Chromosome(s.Type).String()
			}
			fmt.Fprintf(env.Stdout, "%s\t%d\t%d\t%d\t%d\t%d\t%.2f\t%d\t%.2f\n", scope, s.NumPositions, s.NumTiles,
				s.MaxNumPositionsSpanned, s.MinLength, s.MaxLength, s.AvgLength, s.MaxVariantValue, s.AvgVariantValue)
		}
		return nil
	})
	return cmd
}
