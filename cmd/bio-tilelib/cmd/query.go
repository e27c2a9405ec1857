package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/tilelib/population"
	"github.com/grailbio/tilelib/query"
	"github.com/grailbio/tilelib/tile"
	"github.com/grailbio/tilelib/tilelib"
	"v.io/x/lib/cmdline"
)

// sourceFlags selects the population a query reads.
type sourceFlags struct {
	calls   *string
	lantern *string
	dataset *string
}

func addSourceFlags(cmd *cmdline.Command) sourceFlags {
	return sourceFlags{
		calls:   cmd.Flags.String("calls", "", "Population file written by population.WriteFile"),
		lantern: cmd.Flags.String("lantern", "", "URL of a lantern server; this xor -calls required"),
		dataset: cmd.Flags.String("dataset", "all", "Lantern dataset"),
	}
}

func (f sourceFlags) open(ctx context.Context, layout tile.Layout) (population.Source, error) {
	switch {
	case *f.calls != "" && *f.lantern != "":
		return nil, fmt.Errorf("-calls and -lantern are mutually exclusive")
	case *f.calls != "":
		return population.OpenFile(ctx, *f.calls, layout)
	case *f.lantern != "":
		c := population.NewLanternClient(*f.lantern, layout)
		c.Dataset = *f.dataset
		return c, nil
	}
	return nil, fmt.Errorf("one of -calls or -lantern is required")
}

// locusFlags name a chromosome of an assembly.
type locusFlags struct {
	assembly   *string
	chromosome *string
	indexing   *int
}

func addLocusFlags(cmd *cmdline.Command) locusFlags {
	return locusFlags{
		assembly:   cmd.Flags.String("assembly", tile.Hg19.String(), "Reference assembly of the coordinates"),
		chromosome: cmd.Flags.String("chr", "", "Chromosome, e.g. chr13 or 13"),
		indexing:   cmd.Flags.Int("indexing", 0, "Base of the coordinates, 0 or 1"),
	}
}

func (f locusFlags) parse() (tile.Assembly, tile.Chromosome, error) {
	assembly, err := tile.ParseAssembly(*f.assembly)
	if err != nil {
		return 0, 0, err
	}
	chr, err := tile.ParseChromosome(*f.chromosome)
	if err != nil {
		return 0, 0, err
	}
	return assembly, chr, nil
}

func addEngineFlags(cmd *cmdline.Command) *query.Opts {
	opts := query.DefaultOpts
	cmd.Flags.IntVar(&opts.Parallelism, "parallelism", opts.Parallelism, "Maximum number of phases reconstructed concurrently")
	cmd.Flags.IntVar(&opts.MaxWalkSteps, "max-walk-steps", opts.MaxWalkSteps, "Maximum number of positions an around query visits per phase")
	cmd.Flags.Var(humansFlag{&opts.Humans}, "humans", "Comma-separated humans to reconstruct. By default every human is")
	return &opts
}

// humansFlag is a flag.Value holding a list of human names.
type humansFlag struct{ names *[]string }

func (f humansFlag) String() string {
	if f.names == nil {
		return ""
	}
	return strings.Join(*f.names, ",")
}

func (f humansFlag) Set(v string) error {
	*f.names = population.ParseHumans(v)
	return nil
}

func printSequences(w io.Writer, seqs []query.Sequence) {
	for _, s := range seqs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Human, s.Phases[0], s.Phases[1])
	}
}

func logStats(e *query.Engine) {
	s := e.Stats()
	log.Debug.Printf("query stats: %d humans, %d fragments, cache %d/%d, memo %d, walk %d, fetches %d",
		s.Humans, s.Fragments, s.CacheHits, s.CacheHits+s.CacheMisses, s.MemoHits, s.WalkSteps, s.Fetches)
}

func newCmdBetween() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "between",
		Short: "Print the sequences of every human over a window of a chromosome",
		Long: `
Between prints one line per human: the name followed by the bases of the two
phases over [lower, upper).`,
		ArgsName: "snapshot",
	}
	src := addSourceFlags(cmd)
	loc := addLocusFlags(cmd)
	opts := addEngineFlags(cmd)
	lower := cmd.Flags.Int64("lower", 0, "First base of the window")
	upper := cmd.Flags.Int64("upper", 0, "One past the last base of the window")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		ctx := vcontext.Background()
		lib, err := readLibrary(ctx, "between", argv)
		if err != nil {
			return err
		}
		assembly, chr, err := loc.parse()
		if err != nil {
			return err
		}
		source, err := src.open(ctx, lib.Layout())
		if err != nil {
			return err
		}
		e := query.New(lib, source, *opts)
		seqs, err := e.BetweenLoci(ctx, query.BetweenRequest{
			Assembly:   assembly,
			Chromosome: chr,
			Lower:      *lower,
			Upper:      *upper,
			Indexing:   *loc.indexing,
		})
		if err != nil {
			return err
		}
		logStats(e)
		printSequences(env.Stdout, seqs)
		return nil
	})
	return cmd
}

func newCmdAround() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "around",
		Short:    "Print the sequences of every human around a base of a chromosome",
		ArgsName: "snapshot",
	}
	src := addSourceFlags(cmd)
	loc := addLocusFlags(cmd)
	opts := addEngineFlags(cmd)
	target := cmd.Flags.Int64("target", 0, "Target base")
	radius := cmd.Flags.Int64("radius", 0, "Number of bases to print on each side of the target")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		ctx := vcontext.Background()
		lib, err := readLibrary(ctx, "around", argv)
		if err != nil {
			return err
		}
		assembly, chr, err := loc.parse()
		if err != nil {
			return err
		}
		source, err := src.open(ctx, lib.Layout())
		if err != nil {
			return err
		}
		e := query.New(lib, source, *opts)
		seqs, err := e.AroundLocus(ctx, query.AroundRequest{
			Assembly:   assembly,
			Chromosome: chr,
			Target:     *target,
			Radius:     *radius,
			Indexing:   *loc.indexing,
		})
		if err != nil {
			if oor, ok := query.AsLocusOutOfRange(err); ok {
				return errors.E(err, fmt.Sprintf("%s must be in [%d, %d)", oor.Field, oor.Min, oor.Max))
			}
			return err
		}
		logStats(e)
		printSequences(env.Stdout, seqs)
		return nil
	})
	return cmd
}

func newCmdCGF() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "cgf",
		Short:    "Describe tile variants by cgf name",
		ArgsName: "snapshot cgf...",
	}
	assemblyFlag := cmd.Flags.String("assembly", tile.Hg19.String(), "Assembly of the printed loci")
	seqFlag := cmd.Flags.Bool("seq", false, "Print the sequence of each variant")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) < 2 {
			return fmt.Errorf("cgf takes a snapshot and at least one cgf name, but found %v", argv)
		}
		ctx := vcontext.Background()
		lib, err := readLibrary(ctx, "cgf", argv[:1])
		if err != nil {
			return err
		}
		assembly, err := tile.ParseAssembly(*assemblyFlag)
		if err != nil {
			return err
		}
		for _, name := range argv[1:] {
			v, err := lib.VariantByCGF(name)
			if err != nil {
				return err
			}
			full, err := lib.CGF(&v)
			if err != nil {
				return err
			}
			where := "-"
			if locus, err := lib.VariantLocus(&v, assembly); err == nil {
				where = fmt.Sprintf("%v:%d-%d", locus.Chromosome, locus.Start, locus.End)
			} else if _, ok := tilelib.AsMissingLocus(err); !ok {
				return err
			}
			fmt.Fprintf(env.Stdout, "%s\t%d\t%d\t%s\t%s", full, v.Length, v.NumPositionsSpanned, v.MD5Sum, where)
			if *seqFlag {
				fmt.Fprintf(env.Stdout, "\t%s", strings.ToUpper(v.Sequence))
			}
			fmt.Fprintln(env.Stdout)
		}
		return nil
	})
	return cmd
}

func newCmdDumpCalls() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "dump-calls",
		Short:    "Print the calls of a population file",
		ArgsName: "path",
	}
	firstFlag := cmd.Flags.String("first", "", "First position to print, e.g. 00.000.0000. By default all calls are printed")
	lastFlag := cmd.Flags.String("last", "", "Last position to print; required with -first")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("dump-calls takes one pathname argument, but got %v", argv)
		}
		ctx := vcontext.Background()
		layout := tile.DefaultLayout
		src, err := population.OpenFile(ctx, argv[0], layout)
		if err != nil {
			return err
		}
		calls := src.All()
		if *firstFlag != "" || *lastFlag != "" {
			first, err := layout.ParsePosition(*firstFlag)
			if err != nil {
				return err
			}
			last, err := layout.ParsePosition(*lastFlag)
			if err != nil {
				return err
			}
			if calls, err = src.Calls(ctx, first, last); err != nil {
				return err
			}
		}
		for _, h := range calls.Humans() {
			for phase, cgfs := range calls[h] {
				fmt.Fprintf(env.Stdout, "%s\t%d\t%s\n", h, phase, strings.Join(cgfs, " "))
			}
		}
		return nil
	})
	return cmd
}
