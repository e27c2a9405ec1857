package tile

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
)

// PathTable partitions the paths among chromosomes. Entry i is the first path
// of chromosome i+1, so chromosome c owns paths [t[c-1], t[c]). The table has
// NumChromosomes+1 entries, starts at 0, and never decreases; the last entry
// is the total number of paths.
type PathTable []int

// DefaultPathTable is the partition of the human tile library.
var DefaultPathTable = PathTable{
	0, 63, 125, 187, 234, 279, 327, 371, 411, 454, 496, 532, 573, 609,
	641, 673, 698, 722, 742, 761, 781, 795, 811, 851, 862, 863, 863,
}

// Validate checks the table shape.
func (t PathTable) Validate() error {
	if len(t) != NumChromosomes+1 {
		return errors.E(errors.Invalid,
			fmt.Sprintf("path table: want %d entries, got %d", NumChromosomes+1, len(t)))
	}
	if t[0] != 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("path table: must start at 0, got %d", t[0]))
	}
	for i := 1; i < len(t); i++ {
		if t[i] < t[i-1] {
			return errors.E(errors.Invalid,
				fmt.Sprintf("path table: entry %d (%d) is smaller than entry %d (%d)", i, t[i], i-1, t[i-1]))
		}
	}
	return nil
}

// NumPaths is the total number of paths.
func (t PathTable) NumPaths() int { return t[len(t)-1] }

// ChromosomeForPath returns the chromosome owning path.
func (t PathTable) ChromosomeForPath(path int) (Chromosome, error) {
	if path < 0 || path >= t.NumPaths() {
		return 0, errors.E(errors.Invalid,
			fmt.Sprintf("path %#x is outside [0, %#x)", path, t.NumPaths()))
	}
	// t[0] == 0 <= path, so i >= 1.
	i := sort.Search(len(t), func(i int) bool { return path < t[i] })
	return Chromosome(i), nil
}

// FirstPath returns the first path of chromosome c. c may be one past the last
// chromosome, in which case the result is NumPaths.
func (t PathTable) FirstPath(c Chromosome) (int, error) {
	if c < 1 || int(c) > len(t) {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("chromosome %d is outside [1, %d]", int(c), len(t)))
	}
	return t[c-1], nil
}

// EndPath returns one past the last path of chromosome c.
func (t PathTable) EndPath(c Chromosome) (int, error) {
	if !c.Valid() {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("chromosome %d is outside [1, %d]", int(c), NumChromosomes))
	}
	return t[c], nil
}

// Codec couples a Layout with a PathTable. It is immutable once built.
type Codec struct {
	Layout Layout
	Paths  PathTable
}

// DefaultCodec uses DefaultLayout and DefaultPathTable.
var DefaultCodec = mustNewCodec(DefaultLayout, DefaultPathTable)

func mustNewCodec(l Layout, t PathTable) *Codec {
	c, err := NewCodec(l, t)
	if err != nil {
		panic(err)
	}
	return c
}

// NewCodec validates the layout and table and checks that every path in the
// table is representable in the layout.
func NewCodec(l Layout, t PathTable) (*Codec, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := checkField("path table end", t.NumPaths(), l.PathDigits); err != nil {
		return nil, err
	}
	return &Codec{Layout: l, Paths: append(PathTable(nil), t...)}, nil
}

// MinPositionForPath is the first position (step 0) of the path at the given
// version. path may equal NumPaths, which names the end of the table.
func (c *Codec) MinPositionForPath(path, version int) (Position, error) {
	if path < 0 || path > c.Paths.NumPaths() {
		return 0, errors.E(errors.Invalid,
			fmt.Sprintf("path %#x is outside [0, %#x]", path, c.Paths.NumPaths()))
	}
	return c.Layout.PackPosition(version, path, 0)
}

// MinPositionForChromosome is the first position of the chromosome's first
// path. chr may be NumChromosomes+1 to get the end of the table.
func (c *Codec) MinPositionForChromosome(chr Chromosome, version int) (Position, error) {
	path, err := c.Paths.FirstPath(chr)
	if err != nil {
		return 0, err
	}
	return c.MinPositionForPath(path, version)
}

// MinVariantForPath is MinPositionForPath with variant value 0 attached.
func (c *Codec) MinVariantForPath(path, version int) (Variant, error) {
	p, err := c.MinPositionForPath(path, version)
	if err != nil {
		return 0, err
	}
	return c.Layout.MinVariant(p)
}

// MinVariantForChromosome is MinPositionForChromosome with variant value 0
// attached.
func (c *Codec) MinVariantForChromosome(chr Chromosome, version int) (Variant, error) {
	p, err := c.MinPositionForChromosome(chr, version)
	if err != nil {
		return 0, err
	}
	return c.Layout.MinVariant(p)
}

// ChromosomeForPosition returns the chromosome owning p's path.
func (c *Codec) ChromosomeForPosition(p Position) (Chromosome, error) {
	if p > c.Layout.MaxPosition() {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("position %#x is out of range", uint64(p)))
	}
	return c.Paths.ChromosomeForPath(c.Layout.Path(p))
}
