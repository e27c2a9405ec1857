package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/tilelib/tilelib"
	"v.io/x/lib/cmdline"
)

// readLibrary reads the snapshot named by the only element of argv.
func readLibrary(ctx context.Context, name string, argv []string) (*tilelib.Library, error) {
	if len(argv) != 1 {
		return nil, fmt.Errorf("%s takes one snapshot path, but got %v", name, argv)
	}
	return tilelib.ReadSnapshot(ctx, argv[0], tilelib.DefaultOpts)
}

func newCmdValidate() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "validate",
		Short:    "Check a snapshot and print a summary of its contents",
		ArgsName: "snapshot",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		ctx := vcontext.Background()
		lib, err := readLibrary(ctx, "validate", argv)
		if err != nil {
			return err
		}
		s := lib.Snapshot()
		fmt.Fprintf(env.Stdout, "generation\t%d\n", s.Generation)
		fmt.Fprintf(env.Stdout, "fingerprint\t%016x\n", s.Fingerprint())
		fmt.Fprintf(env.Stdout, "positions\t%d\n", len(s.Positions))
		fmt.Fprintf(env.Stdout, "variants\t%d\n", len(s.Variants))
		fmt.Fprintf(env.Stdout, "loci\t%d\n", len(s.Loci))
		fmt.Fprintf(env.Stdout, "genome_variants\t%d\n", len(s.GenomeVariants))
		fmt.Fprintf(env.Stdout, "translations\t%d\n", len(s.Translations))
		fmt.Fprintf(env.Stdout, "statistics\t%d\n", len(s.Statistics))
		return nil
	})
	return cmd
}

// Run parses the command line and runs the selected subcommand.
func Run() error {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	return cmdline.ParseAndRun(
		&cmdline.Command{
			Name:     "bio-tilelib",
			Short:    "Tools for building and querying tile libraries",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdLoad(),
				newCmdValidate(),
				newCmdStats("stats-init"),
				newCmdStats("stats-update"),
				newCmdBetween(),
				newCmdAround(),
				newCmdCGF(),
				newCmdDumpCalls(),
			},
		}, cmdline.EnvFromOS(), os.Args[1:])
}
