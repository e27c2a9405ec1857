package tile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
)

// Chromosome identifies a human chromosome. Values 1..22 are the autosomes.
type Chromosome int

// Chromosome values outside the autosomes.
const (
	ChrX Chromosome = 23 + iota
	ChrY
	ChrM
	// ChrOther collects unplaced and alternate contigs.
	ChrOther
)

// NumChromosomes is the number of chromosomes in the human karyotype,
// ChrOther included.
const NumChromosomes = int(ChrOther)

// Valid reports whether c is in [1, NumChromosomes].
func (c Chromosome) Valid() bool { return c >= 1 && int(c) <= NumChromosomes }

// String returns the UCSC-style name, "chr1" .. "chr22", "chrX", "chrY",
// "chrM", or "other".
func (c Chromosome) String() string {
	switch {
	case c >= 1 && c <= 22:
		return "chr" + strconv.Itoa(int(c))
	case c == ChrX:
		return "chrX"
	case c == ChrY:
		return "chrY"
	case c == ChrM:
		return "chrM"
	case c == ChrOther:
		return "other"
	}
	return fmt.Sprintf("Chromosome(%d)", int(c))
}

// ParseChromosome accepts "chr7", "7", "X", "chrX", "MT", "other", or the
// numeric form "23".
func ParseChromosome(s string) (Chromosome, error) {
	name := strings.TrimPrefix(strings.ToLower(s), "chr")
	switch name {
	case "x":
		return ChrX, nil
	case "y":
		return ChrY, nil
	case "m", "mt":
		return ChrM, nil
	case "other":
		return ChrOther, nil
	}
	n, err := strconv.Atoi(name)
	if err != nil || !Chromosome(n).Valid() {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("unknown chromosome %q", s))
	}
	return Chromosome(n), nil
}

// Assembly identifies a reference assembly by its UCSC number.
type Assembly int

// Supported assemblies.
const (
	Hg16 Assembly = 16
	Hg17 Assembly = 17
	Hg18 Assembly = 18
	Hg19 Assembly = 19
	Hg38 Assembly = 38
)

var assemblyNames = map[Assembly][2]string{
	Hg16: {"hg16", "NCBI34"},
	Hg17: {"hg17", "NCBI35"},
	Hg18: {"hg18", "NCBI36"},
	Hg19: {"hg19", "GRCh37"},
	Hg38: {"hg38", "GRCh38"},
}

// Valid reports whether a is a supported assembly.
func (a Assembly) Valid() bool {
	_, ok := assemblyNames[a]
	return ok
}

// String returns the UCSC name, e.g. "hg19".
func (a Assembly) String() string {
	if n, ok := assemblyNames[a]; ok {
		return n[0]
	}
	return fmt.Sprintf("Assembly(%d)", int(a))
}

// ParseAssembly accepts "19", "hg19", or "GRCh37" (case-insensitive).
func ParseAssembly(s string) (Assembly, error) {
	if n, err := strconv.Atoi(s); err == nil && Assembly(n).Valid() {
		return Assembly(n), nil
	}
	for a, names := range assemblyNames {
		if strings.EqualFold(s, names[0]) || strings.EqualFold(s, names[1]) {
			return a, nil
		}
	}
	return 0, errors.E(errors.Invalid, fmt.Sprintf("unknown assembly %q", s))
}
