package tile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
)

// Position is a packed tile position address, version|path|step.
type Position uint64

// Variant is a packed tile variant address, version|path|step|value.
type Variant uint64

// Layout defines the widths, in hex digits, of the address fields.
type Layout struct {
	VersionDigits int
	PathDigits    int
	StepDigits    int
	// VariantDigits is the width of the variant value inside a packed Variant.
	VariantDigits int
	// CGFVariantDigits is the width of the variant value inside a cgf string.
	// It may differ from VariantDigits.
	CGFVariantDigits int
}

// DefaultLayout is the layout of the human tile library.
var DefaultLayout = Layout{
	VersionDigits:    2,
	PathDigits:       3,
	StepDigits:       4,
	VariantDigits:    3,
	CGFVariantDigits: 4,
}

const (
	// maxVariantDigits bounds the total width of a packed Variant so that it
	// fits in 64 bits.
	maxVariantDigits = 16
	// maxFieldDigits bounds a single field so that it fits in an int.
	maxFieldDigits = 8
)

type hexField struct {
	name   string
	digits int
}

// Validate checks that every field width is positive and that a packed
// variant fits in 64 bits.
func (l Layout) Validate() error {
	for _, f := range []hexField{
		{"version", l.VersionDigits},
		{"path", l.PathDigits},
		{"step", l.StepDigits},
		{"variant", l.VariantDigits},
		{"cgf variant", l.CGFVariantDigits},
	} {
		if f.digits <= 0 || f.digits > maxFieldDigits {
			return errors.E(errors.Invalid,
				fmt.Sprintf("tile layout: %s width must be in [1,%d], got %d", f.name, maxFieldDigits, f.digits))
		}
	}
	if n := l.VersionDigits + l.PathDigits + l.StepDigits + l.VariantDigits; n > maxVariantDigits {
		return errors.E(errors.Invalid,
			fmt.Sprintf("tile layout: variant address needs %d hex digits, at most %d fit", n, maxVariantDigits))
	}
	return nil
}

func fieldMask(digits int) uint64 { return 1<<(4*uint(digits)) - 1 }

func checkField(name string, v, digits int) error {
	if v < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("%s %d is negative", name, v))
	}
	if uint64(v) > fieldMask(digits) {
		return errors.E(errors.Invalid, fmt.Sprintf("%s %#x does not fit in %d hex digits", name, v, digits))
	}
	return nil
}

func (l Layout) positionDigits() int { return l.VersionDigits + l.PathDigits + l.StepDigits }

func (l Layout) variantShift() uint { return 4 * uint(l.VariantDigits) }

// MaxPosition is the largest position representable in the layout.
func (l Layout) MaxPosition() Position { return Position(fieldMask(l.positionDigits())) }

// MaxVariant is the largest variant representable in the layout.
func (l Layout) MaxVariant() Variant {
	return Variant(fieldMask(l.positionDigits()+l.VariantDigits))
}

// MaxStep is the largest step representable in the layout.
func (l Layout) MaxStep() int { return int(fieldMask(l.StepDigits)) }

// PackPosition packs the three fields into a Position.
func (l Layout) PackPosition(version, path, step int) (Position, error) {
	if err := checkField("version", version, l.VersionDigits); err != nil {
		return 0, err
	}
	if err := checkField("path", path, l.PathDigits); err != nil {
		return 0, err
	}
	if err := checkField("step", step, l.StepDigits); err != nil {
		return 0, err
	}
	p := uint64(version)<<(4*uint(l.PathDigits+l.StepDigits)) |
		uint64(path)<<(4*uint(l.StepDigits)) |
		uint64(step)
	return Position(p), nil
}

// UnpackPosition is the inverse of PackPosition.
func (l Layout) UnpackPosition(p Position) (version, path, step int, err error) {
	if p > l.MaxPosition() {
		err = errors.E(errors.Invalid,
			fmt.Sprintf("position %#x does not fit in %d hex digits", uint64(p), l.positionDigits()))
		return
	}
	return l.Version(p), l.Path(p), l.Step(p), nil
}

// Version extracts the version field.
//
// REQUIRES: p <= l.MaxPosition().
func (l Layout) Version(p Position) int {
	return int(uint64(p) >> (4 * uint(l.PathDigits+l.StepDigits)))
}

// Path extracts the path field.
//
// REQUIRES: p <= l.MaxPosition().
func (l Layout) Path(p Position) int {
	return int(uint64(p) >> (4 * uint(l.StepDigits)) & fieldMask(l.PathDigits))
}

// Step extracts the step field.
func (l Layout) Step(p Position) int { return int(uint64(p) & fieldMask(l.StepDigits)) }

// SamePath reports whether the two positions share version and path.
func (l Layout) SamePath(a, b Position) bool {
	shift := 4 * uint(l.StepDigits)
	return uint64(a)>>shift == uint64(b)>>shift
}

// FormatPosition renders p in dotted hex form, e.g. "00.01a.002f".
func (l Layout) FormatPosition(p Position) (string, error) {
	version, path, step, err := l.UnpackPosition(p)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*x.%0*x.%0*x",
		l.VersionDigits, version, l.PathDigits, path, l.StepDigits, step), nil
}

// ParsePosition parses the dotted hex form produced by FormatPosition.
func (l Layout) ParsePosition(s string) (Position, error) {
	v, err := parseHexFields(s, "position", []hexField{
		{"version", l.VersionDigits},
		{"path", l.PathDigits},
		{"step", l.StepDigits},
	})
	if err != nil {
		return 0, err
	}
	return l.PackPosition(v[0], v[1], v[2])
}

// PackVariant packs the four fields into a Variant.
func (l Layout) PackVariant(version, path, step, value int) (Variant, error) {
	p, err := l.PackPosition(version, path, step)
	if err != nil {
		return 0, err
	}
	return l.VariantOf(p, value)
}

// UnpackVariant is the inverse of PackVariant.
func (l Layout) UnpackVariant(v Variant) (version, path, step, value int, err error) {
	var p Position
	if p, err = l.PositionOf(v); err != nil {
		return
	}
	version, path, step = l.Version(p), l.Path(p), l.Step(p)
	value = l.VariantValue(v)
	return
}

// VariantValue extracts the variant value field.
func (l Layout) VariantValue(v Variant) int {
	return int(uint64(v) & fieldMask(l.VariantDigits))
}

// VariantOf attaches a variant value to a position.
func (l Layout) VariantOf(p Position, value int) (Variant, error) {
	if p > l.MaxPosition() {
		return 0, errors.E(errors.Invalid,
			fmt.Sprintf("position %#x does not fit in %d hex digits", uint64(p), l.positionDigits()))
	}
	if err := checkField("variant value", value, l.VariantDigits); err != nil {
		return 0, err
	}
	return Variant(uint64(p)<<l.variantShift() | uint64(value)), nil
}

// MinVariant is the smallest variant at p, the one with variant value 0.
func (l Layout) MinVariant(p Position) (Variant, error) { return l.VariantOf(p, 0) }

// PositionOf strips the variant value. PositionOf(MinVariant(p)) == p for
// every valid p.
func (l Layout) PositionOf(v Variant) (Position, error) {
	if v > l.MaxVariant() {
		return 0, errors.E(errors.Invalid,
			fmt.Sprintf("variant %#x does not fit in %d hex digits", uint64(v), l.positionDigits()+l.VariantDigits))
	}
	return Position(uint64(v) >> l.variantShift()), nil
}

// FormatVariant renders v in dotted hex form, e.g. "00.01a.002f.001".
func (l Layout) FormatVariant(v Variant) (string, error) {
	version, path, step, value, err := l.UnpackVariant(v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*x.%0*x.%0*x.%0*x",
		l.VersionDigits, version, l.PathDigits, path, l.StepDigits, step, l.VariantDigits, value), nil
}

// ParseVariant parses the dotted hex form produced by FormatVariant.
func (l Layout) ParseVariant(s string) (Variant, error) {
	v, err := parseHexFields(s, "variant", []hexField{
		{"version", l.VersionDigits},
		{"path", l.PathDigits},
		{"step", l.StepDigits},
		{"variant", l.VariantDigits},
	})
	if err != nil {
		return 0, err
	}
	return l.PackVariant(v[0], v[1], v[2], v[3])
}

func isLowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return len(s) > 0
}

// parseHexFields splits s on '.' and decodes each token as a fixed-width
// lowercase hex number.
func parseHexFields(s, what string, fields []hexField) ([]int, error) {
	parts := strings.Split(s, ".")
	if len(parts) != len(fields) {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("%s %q: want %d dot-separated fields, got %d", what, s, len(fields), len(parts)))
	}
	vals := make([]int, len(fields))
	for i, f := range fields {
		tok := parts[i]
		if len(tok) != f.digits || !isLowerHex(tok) {
			return nil, errors.E(errors.Invalid,
				fmt.Sprintf("%s %q: %s token %q is not %d lowercase hex digits", what, s, f.name, tok, f.digits))
		}
		n, err := strconv.ParseUint(tok, 16, 64)
		if err != nil {
			return nil, errors.E(errors.Invalid, err, fmt.Sprintf("%s %q: %s token %q", what, s, f.name, tok))
		}
		vals[i] = int(n)
	}
	return vals, nil
}
