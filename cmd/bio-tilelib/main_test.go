package main_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/tilelib/population"
	"github.com/grailbio/tilelib/tilelib"
	"github.com/grailbio/tilelib/tilelib/tilelibtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"v.io/x/lib/gosh"
)

func TestBetweenAndStats(t *testing.T) {
	if !testutil.IsBazel() {
		t.Skip("not bazel")
	}
	ctx := vcontext.Background()
	f, err := tilelibtest.New()
	require.NoError(t, err)

	sh := gosh.NewShell(nil)
	defer sh.Cleanup()
	tilelibPath := testutil.GoExecutable(t, "//go/src/github.com/grailbio/tilelib/cmd/bio-tilelib/bio-tilelib")
	dir := sh.MakeTempDir()
	snapPath := filepath.Join(dir, "lib.snapshot")
	callsPath := filepath.Join(dir, "calls.sz")
	require.NoError(t, tilelib.WriteSnapshot(ctx, snapPath, f.Lib))
	require.NoError(t, population.WriteFile(ctx, callsPath, f.Calls))

	out := sh.Cmd(tilelibPath, "validate", snapPath).Stdout()
	assert.NoError(t, sh.Err)
	assert.Contains(t, out, "positions\t13\n")
	assert.Contains(t, out, "statistics\t0\n")

	out = sh.Cmd(tilelibPath, "stats-init", snapPath).Stdout()
	assert.NoError(t, sh.Err)
	assert.Contains(t, out, "genome\t13\t21\t3\t")
	out = sh.Cmd(tilelibPath, "validate", snapPath).Stdout()
	assert.NoError(t, sh.Err)
	assert.NotContains(t, out, "statistics\t0\n")

	out = sh.Cmd(tilelibPath, "between", "-calls", callsPath, "-chr", "chr1", "-lower", "20", "-upper", "30", snapPath).Stdout()
	assert.NoError(t, sh.Err)
	ref := strings.ToUpper(f.Chr1[20:30])
	alt := []byte(ref)
	alt[4] = 'T'
	assert.Equal(t, "hu1\t"+ref+"\t"+string(alt)+"\n"+
		"hu2\t"+string(alt)+"\t"+ref+"\n"+
		"hu3\t"+ref+"\t"+ref+"\n", out)
}
