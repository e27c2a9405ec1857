package query

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/tilelib/tilelib"
)

// coordPoint pairs a reference offset with the variant offset it maps to.
// Both are relative to the start of the variant's locus.
type coordPoint struct {
	ref, v int
}

// coordMap maps reference offsets of a variant's locus to offsets in the
// variant's sequence. Between points the two advance together, except across
// an indel, where the shorter side stays put.
type coordMap []coordPoint

// newCoordMap builds the map of a variant from its genome variant
// translations. locus is the variant's locus.
func newCoordMap(lib *tilelib.Library, v *tilelib.TileVariant, locus tilelib.Locus) (coordMap, error) {
	m := coordMap{{0, 0}, {int(locus.End - locus.Start), len(v.Sequence)}}
	for _, t := range lib.TranslationsFor(v.Variant) {
		gv, ok := lib.GenomeVariant(t.GenomeVariantID)
		if !ok {
			return nil, errors.E(errors.Integrity,
				fmt.Sprintf("genome variant %d of a translation does not exist", t.GenomeVariantID))
		}
		m = append(m,
			coordPoint{int(gv.StartInt - locus.Start), t.Start},
			coordPoint{int(gv.EndInt - locus.Start), t.End})
	}
	sort.Slice(m, func(i, j int) bool {
		if m[i].ref != m[j].ref {
			return m[i].ref < m[j].ref
		}
		return m[i].v < m[j].v
	})
	return m, nil
}

// index returns the variant offset of reference offset q. Bases inserted
// at q belong before it: a window ending at q includes them, and one
// starting at q does not.
func (m coordMap) index(q int) int {
	i := sort.Search(len(m), func(i int) bool { return m[i].ref > q }) - 1
	if i < 0 {
		return 0
	}
	p := m[i]
	if i == len(m)-1 {
		return p.v
	}
	n := m[i+1]
	dr, dv, off := n.ref-p.ref, n.v-p.v, q-p.ref
	switch {
	case dv == 0:
		return p.v
	case dr == dv:
		return p.v + off
	case off > dv:
		return p.v + dv
	}
	return p.v + off
}
