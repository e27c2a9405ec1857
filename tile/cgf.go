package tile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
)

// CGF is a decoded population call, "path.version.step.variant[+span]".
type CGF struct {
	Path    int
	Version int
	Step    int
	Value   int
	// Span is the number of tile positions covered by the call. It is at
	// least 1; the "+span" suffix is present only when Span > 1.
	Span int
}

// ParseCGF decodes a cgf string. The returned error names the offending token.
func (l Layout) ParseCGF(s string) (CGF, error) {
	body := s
	span := 1
	if i := strings.IndexByte(s, '+'); i >= 0 {
		body = s[:i]
		tok := s[i+1:]
		if !isLowerHex(tok) {
			return CGF{}, errors.E(errors.Invalid, fmt.Sprintf("cgf %q: span token %q is not lowercase hex", s, tok))
		}
		n, err := strconv.ParseUint(tok, 16, 31)
		if err != nil {
			return CGF{}, errors.E(errors.Invalid, err, fmt.Sprintf("cgf %q: span token %q", s, tok))
		}
		if n < 1 {
			return CGF{}, errors.E(errors.Invalid, fmt.Sprintf("cgf %q: span token %q must be at least 1", s, tok))
		}
		span = int(n)
	}
	v, err := parseHexFields(body, "cgf", []hexField{
		{"path", l.PathDigits},
		{"version", l.VersionDigits},
		{"step", l.StepDigits},
		{"variant", l.CGFVariantDigits},
	})
	if err != nil {
		return CGF{}, err
	}
	return CGF{Path: v[0], Version: v[1], Step: v[2], Value: v[3], Span: span}, nil
}

// FormatCGF renders c. A span of 0 is treated as 1.
func (l Layout) FormatCGF(c CGF) (string, error) {
	if err := checkField("path", c.Path, l.PathDigits); err != nil {
		return "", err
	}
	if err := checkField("version", c.Version, l.VersionDigits); err != nil {
		return "", err
	}
	if err := checkField("step", c.Step, l.StepDigits); err != nil {
		return "", err
	}
	if err := checkField("variant value", c.Value, l.CGFVariantDigits); err != nil {
		return "", err
	}
	if c.Span < 0 {
		return "", errors.E(errors.Invalid, fmt.Sprintf("span %d is negative", c.Span))
	}
	s := fmt.Sprintf("%0*x.%0*x.%0*x.%0*x",
		l.PathDigits, c.Path, l.VersionDigits, c.Version, l.StepDigits, c.Step, l.CGFVariantDigits, c.Value)
	if c.Span > 1 {
		s += fmt.Sprintf("+%x", c.Span)
	}
	return s, nil
}

// Position returns the position the call starts at.
func (c CGF) Position(l Layout) (Position, error) {
	return l.PackPosition(c.Version, c.Path, c.Step)
}

// CGFOf renders the cgf name of variant v spanning span positions.
func (l Layout) CGFOf(v Variant, span int) (string, error) {
	version, path, step, value, err := l.UnpackVariant(v)
	if err != nil {
		return "", err
	}
	return l.FormatCGF(CGF{Path: path, Version: version, Step: step, Value: value, Span: span})
}

// StripSpan validates s and removes its "+span" suffix, if any.
func (l Layout) StripSpan(s string) (string, error) {
	if _, err := l.ParseCGF(s); err != nil {
		return "", err
	}
	if i := strings.IndexByte(s, '+'); i >= 0 {
		return s[:i], nil
	}
	return s, nil
}

// PositionOfCGF returns the position a cgf call starts at.
func (l Layout) PositionOfCGF(s string) (Position, error) {
	c, err := l.ParseCGF(s)
	if err != nil {
		return 0, err
	}
	return c.Position(l)
}

// SpanOfCGF returns the number of positions covered by a cgf call.
func (l Layout) SpanOfCGF(s string) (int, error) {
	c, err := l.ParseCGF(s)
	if err != nil {
		return 0, err
	}
	return c.Span, nil
}
