package tilelib

import (
	"crypto/md5"
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/grailbio/tilelib/tile"
)

// ValidatePosition checks the constraints of a position that do not involve
// other entities.
func ValidatePosition(opts Opts, p *TilePosition) error {
	vs := violations{}
	validatePosition(opts, p, vs)
	return vs.err(positionName(opts.Codec.Layout, p.Position))
}

// ValidateVariant checks v against the position it starts at. The end tag is
// checked only for a variant that spans one position; the positions covered
// by a spanning variant are checked by Library.AddVariant.
func ValidateVariant(opts Opts, pos *TilePosition, v *TileVariant) error {
	vs := violations{}
	var last *TilePosition
	if v.NumPositionsSpanned == 1 {
		last = pos
	}
	validateVariant(opts, pos, last, v, vs)
	return vs.err(variantName(opts.Codec.Layout, v.Variant))
}

// ValidateLocus checks a locus annotation against its position and the
// variant it names. ref is nil if the variant does not exist.
func ValidateLocus(opts Opts, pos *TilePosition, ref *TileVariant, a *TileLocusAnnotation) error {
	vs := violations{}
	validateLocus(opts, pos, ref, a, vs)
	return vs.err(locusName(opts.Codec.Layout, a))
}

func positionName(l tile.Layout, p tile.Position) string {
	s, err := l.FormatPosition(p)
	if err != nil {
		s = fmt.Sprintf("%#x", uint64(p))
	}
	return "tile position " + s
}

func variantName(l tile.Layout, v tile.Variant) string {
	s, err := l.FormatVariant(v)
	if err != nil {
		s = fmt.Sprintf("%#x", uint64(v))
	}
	return "tile variant " + s
}

func locusName(l tile.Layout, a *TileLocusAnnotation) string {
	return fmt.Sprintf("locus of %s on %v", positionName(l, a.Position), a.Assembly)
}

func isLower(s string) bool { return strings.ToLower(s) == s }

// minSequenceLength is the length of the tags a tile must carry.
func minSequenceLength(tagLength int, startTag, endTag string) int {
	n := 2 * tagLength
	if startTag == "" {
		n -= tagLength
	}
	if endTag == "" {
		n -= tagLength
	}
	return n
}

func hamming(a, b string) string {
	d, err := matchr.Hamming(a, b)
	if err != nil {
		return "n/a"
	}
	return fmt.Sprint(d)
}

func checkTag(opts Opts, key, tag string, vs violations) {
	if tag == "" {
		return
	}
	if len(tag) != opts.TagLength {
		vs.add(key, "length is %d, want %d or 0", len(tag), opts.TagLength)
	}
	if !isLower(tag) {
		vs.add(key, "%q is not lowercase", tag)
	}
}

func validatePosition(opts Opts, p *TilePosition, vs violations) {
	l := opts.Codec.Layout
	if p.Position > l.MaxPosition() {
		vs.add("tile_position_int", "%#x does not fit the layout", uint64(p.Position))
		return
	}
	if _, err := opts.Codec.ChromosomeForPosition(p.Position); err != nil {
		vs.add("tile_position_int-path", "%v", err)
	}
	if step := l.Step(p.Position); (step == 0) != p.IsStartOfPath {
		vs.add("tile_position_int-is_start_of_path", "step is %#x but is_start_of_path is %v", step, p.IsStartOfPath)
	}
	checkTag(opts, "start_tag", p.StartTag, vs)
	checkTag(opts, "end_tag", p.EndTag, vs)
	if (p.StartTag == "") != p.IsStartOfPath {
		vs.add("start_tag-is_start_of_path", "start tag %q but is_start_of_path is %v", p.StartTag, p.IsStartOfPath)
	}
	if (p.EndTag == "") != p.IsEndOfPath {
		vs.add("end_tag-is_end_of_path", "end tag %q but is_end_of_path is %v", p.EndTag, p.IsEndOfPath)
	}
}

// validateVariant checks v against its first position and, if known, the
// last position it spans. The tag checks are skipped if first is nil.
func validateVariant(opts Opts, first, last *TilePosition, v *TileVariant, vs violations) {
	l := opts.Codec.Layout
	version, path, step, value, err := l.UnpackVariant(v.Variant)
	if err != nil {
		vs.add("tile_variant_int", "%v", err)
		return
	}
	pVersion, pPath, pStep, err := l.UnpackPosition(v.Position)
	if err != nil {
		vs.add("tile_position_int", "%v", err)
		return
	}
	if version != pVersion {
		vs.add("version_mismatch", "variant version %#x, position version %#x", version, pVersion)
	}
	if path != pPath {
		vs.add("path_mismatch", "variant path %#x, position path %#x", path, pPath)
	}
	if step != pStep {
		vs.add("step_mismatch", "variant step %#x, position step %#x", step, pStep)
	}
	if value != v.VariantValue {
		vs.add("variant_value_mismatch", "address value %#x, variant_value %#x", value, v.VariantValue)
	}
	seq := v.Sequence
	if v.Length != len(seq) {
		vs.add("length_mismatch", "length is %d, sequence has %d bases", v.Length, len(seq))
	}
	if !isLower(seq) {
		vs.add("sequence", "sequence is not lowercase")
	}
	if sum := fmt.Sprintf("%x", md5.Sum([]byte(seq))); sum != v.MD5Sum {
		vs.add("md5sum_mismatch", "md5sum is %q, sequence digest is %q", v.MD5Sum, sum)
	}
	if v.NumPositionsSpanned < 1 {
		vs.add("num_positions_spanned", "%d, want at least 1", v.NumPositionsSpanned)
	}

	if first == nil {
		return
	}
	tagLen := opts.TagLength
	endTag := "unknown"
	if last != nil {
		endTag = last.EndTag
	}
	if need := minSequenceLength(tagLen, first.StartTag, endTag); len(seq) < need {
		vs.add("sequence_malformed", "sequence has %d bases, the tags need %d", len(seq), need)
	}
	if first.StartTag != "" && len(seq) >= tagLen {
		if got := seq[:tagLen]; got != first.StartTag {
			vs.add("start_tag-sequence", "sequence starts with %q, start tag is %q (hamming distance %s)",
				got, first.StartTag, hamming(got, first.StartTag))
		}
	}
	if last != nil && last.EndTag != "" && len(seq) >= tagLen {
		if got := seq[len(seq)-tagLen:]; got != last.EndTag {
			vs.add("end_tag-sequence", "sequence ends with %q, end tag is %q (hamming distance %s)",
				got, last.EndTag, hamming(got, last.EndTag))
		}
	}
}

func validateLocus(opts Opts, pos *TilePosition, ref *TileVariant, a *TileLocusAnnotation, vs violations) {
	if !a.Assembly.Valid() {
		vs.add("assembly", "unknown assembly %d", int(a.Assembly))
	}
	if chr, err := opts.Codec.ChromosomeForPosition(a.Position); err != nil {
		vs.add("chromosome-tile_position", "%v", err)
	} else if chr != a.Chromosome {
		vs.add("chromosome-tile_position", "locus is on %v, the path is on %v", a.Chromosome, chr)
	}
	if a.StartInt < 0 || a.EndInt <= a.StartInt {
		vs.add("malformed_locus", "[%d, %d) is empty or negative", a.StartInt, a.EndInt)
	}
	if ref == nil {
		vs.add("tile_variant_value", "no variant with value %#x at the position", a.VariantValue)
	} else {
		if ref.Spanning() {
			vs.add("tile_variant_value", "variant %#x spans %d positions", a.VariantValue, ref.NumPositionsSpanned)
		}
		if int64(ref.Length) != a.Len() {
			vs.add("tile_length_locus_mismatch", "locus has %d bases, variant %#x has %d",
				a.Len(), a.VariantValue, ref.Length)
		}
	}
	if pos != nil {
		if need := minSequenceLength(opts.TagLength, pos.StartTag, pos.EndTag); a.Len() < int64(need) {
			vs.add("short_locus", "locus has %d bases, the tags need %d", a.Len(), need)
		}
	}
}

func isBases(s string) bool {
	if s == "-" {
		return true
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'A', 'C', 'G', 'T', 'N', 'a', 'c', 'g', 't', 'n':
		default:
			return false
		}
	}
	return len(s) > 0
}

// stripGap returns the uppercase bases of a reference or alternate allele,
// "" for "-".
func stripGap(s string) string {
	return strings.ToUpper(strings.Replace(s, "-", "", -1))
}

func validateGenomeVariant(opts Opts, gv *GenomeVariant, vs violations) {
	if !gv.Assembly.Valid() {
		vs.add("assembly", "unknown assembly %d", int(gv.Assembly))
	}
	if !gv.Chromosome.Valid() {
		vs.add("chromosome", "unknown chromosome %d", int(gv.Chromosome))
	}
	if gv.StartInt < 0 || gv.EndInt < gv.StartInt {
		vs.add("malformed_locus", "[%d, %d) is malformed", gv.StartInt, gv.EndInt)
	}
	if !isBases(gv.ReferenceBases) {
		vs.add("reference_bases", "%q is not a base string or '-'", gv.ReferenceBases)
	}
	if !isBases(gv.AlternateBases) {
		vs.add("alternate_bases", "%q is not a base string or '-'", gv.AlternateBases)
	}
	ref, alt := stripGap(gv.ReferenceBases), stripGap(gv.AlternateBases)
	if ref == alt {
		vs.add("reference_bases-alternate_bases", "reference and alternate bases are both %q", gv.ReferenceBases)
	}
	if int64(len(ref)) != gv.EndInt-gv.StartInt {
		vs.add("reference_bases-locus", "%d reference bases on a locus of length %d", len(ref), gv.EndInt-gv.StartInt)
		return
	}
	if opts.Reference != nil && gv.Assembly.Valid() && gv.Chromosome.Valid() && len(vs) == 0 {
		want, err := opts.Reference.Bases(gv.Assembly, gv.Chromosome, gv.StartInt, gv.EndInt)
		if err != nil {
			vs.add("reference_bases", "%v", err)
		} else if want != ref {
			vs.add("reference_bases", "%q, the reference has %q", gv.ReferenceBases, want)
		}
	}
}
