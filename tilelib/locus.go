package tilelib

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/tilelib/tile"
)

// Locus returns the genomic locus of a tile variant on an assembly. The
// locus of a variant spanning several positions runs from the start of its
// first position's locus to the end of its last position's locus. If either
// endpoint has no annotation, Locus returns a *MissingLocusError of kind
// errors.NotExist that reports every missing endpoint.
func (l *Library) Locus(v tile.Variant, assembly tile.Assembly) (Locus, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tv := l.getVariant(v)
	if tv == nil {
		return Locus{}, errors.E(errors.NotExist, variantName(l.Layout(), v)+" does not exist")
	}
	return l.locusLocked(tv, assembly)
}

// VariantLocus is Locus for a variant that may not be stored in the library.
func (l *Library) VariantLocus(v *TileVariant, assembly tile.Assembly) (Locus, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.locusLocked(v, assembly)
}

func (l *Library) locusLocked(v *TileVariant, assembly tile.Assembly) (Locus, error) {
	first, haveFirst := l.loci[locusKey{v.Position, assembly}]
	last, haveLast := l.loci[locusKey{v.LastPosition(), assembly}]
	if !haveFirst || !haveLast {
		return Locus{}, errors.E(errors.NotExist, &MissingLocusError{
			Entity: variantName(l.Layout(), v.Variant) + " on " + assembly.String(),
			Start:  !haveFirst,
			End:    !haveLast,
		})
	}
	return Locus{
		Assembly:   assembly,
		Chromosome: first.Chromosome,
		Start:      first.StartInt,
		End:        last.EndInt,
	}, nil
}
