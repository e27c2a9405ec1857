package reference

import (
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/tilelib/tile"
)

const fastaData = `>chr1 first
acgtac
GAGGAC

>chrUn_gl000220
NNNN
>chrX
ACGT
`

func TestAddFASTA(t *testing.T) {
	s := NewStore()
	chrs, err := s.AddFASTA(tile.Hg19, strings.NewReader(fastaData))
	assert.NoError(t, err)
	expect.EQ(t, chrs, []tile.Chromosome{1, tile.ChrX})

	b, err := s.Bases(tile.Hg19, 1, 2, 8)
	assert.NoError(t, err)
	expect.EQ(t, b, "GTACGA")
	b, err = s.Bases(tile.Hg19, tile.ChrX, 0, 4)
	assert.NoError(t, err)
	expect.EQ(t, b, "ACGT")
	b, err = s.Bases(tile.Hg19, 1, 3, 3)
	assert.NoError(t, err)
	expect.EQ(t, b, "")
	n, err := s.Len(tile.Hg19, 1)
	assert.NoError(t, err)
	expect.EQ(t, n, int64(12))

	_, err = s.Bases(tile.Hg19, 1, 10, 13)
	expect.NotNil(t, err)
	_, err = s.Bases(tile.Hg38, 1, 0, 1)
	expect.NotNil(t, err)
	_, err = s.Bases(tile.Hg19, 2, 0, 1)
	expect.NotNil(t, err)
}

func TestMalformedFASTA(t *testing.T) {
	s := NewStore()
	_, err := s.AddFASTA(tile.Hg19, strings.NewReader("ACGT\n>chr1\nAC\n"))
	expect.NotNil(t, err)
}

func TestReadFASTA(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "ref.fa")
	assert.NoError(t, ioutil.WriteFile(path, []byte(fastaData), 0644))

	s := NewStore()
	assert.NoError(t, s.ReadFASTA(vcontext.Background(), tile.Hg38, path))
	b, err := s.Bases(tile.Hg38, 1, 0, 3)
	assert.NoError(t, err)
	expect.EQ(t, b, "ACG")
}
