package main

/*
bio-tilelib builds tile library snapshots from TSV tables, maintains their
genome statistics, and answers population sequence queries against them.

Typical use:

  bio-tilelib load -fasta hg19.fa tables/ lib.snapshot
  bio-tilelib stats-init lib.snapshot
  bio-tilelib between -calls population.sz -chr chr1 -lower 1000 -upper 1200 lib.snapshot
  bio-tilelib around -lantern http://localhost:8080 -chr 13 -target 32914437 -radius 10 lib.snapshot
*/

import (
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/tilelib/cmd/bio-tilelib/cmd"
	"v.io/x/lib/cmdline"
)

func main() {
	shutdown := grail.Init()
	err := cmd.Run()
	shutdown()
	if err != nil {
		os.Exit(cmdline.ExitCode(err, os.Stderr))
	}
}
