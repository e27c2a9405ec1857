package tile

import (
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestPackPosition(t *testing.T) {
	l := DefaultLayout
	for _, test := range []struct {
		version, path, step int
		want                Position
		str                 string
	}{
		{0, 0, 0, 0, "00.000.0000"},
		{0, 0x1a, 0x2f, 0x1a002f, "00.01a.002f"},
		{1, 2, 3, 0x100020003, "01.002.0003"},
		{0xff, 0xfff, 0xffff, 0xfffffffff, "ff.fff.ffff"},
	} {
		p, err := l.PackPosition(test.version, test.path, test.step)
		assert.NoError(t, err)
		expect.EQ(t, p, test.want)
		v, pa, s, err := l.UnpackPosition(p)
		assert.NoError(t, err)
		expect.EQ(t, []int{v, pa, s}, []int{test.version, test.path, test.step})

		str, err := l.FormatPosition(p)
		assert.NoError(t, err)
		expect.EQ(t, str, test.str)
		p2, err := l.ParsePosition(str)
		assert.NoError(t, err)
		expect.EQ(t, p2, p)
	}
}

func TestPackPositionErrors(t *testing.T) {
	l := DefaultLayout
	for _, test := range []struct {
		version, path, step int
	}{
		{-1, 0, 0},
		{0, -1, 0},
		{0, 0, -1},
		{0x100, 0, 0},
		{0, 0x1000, 0},
		{0, 0, 0x10000},
	} {
		_, err := l.PackPosition(test.version, test.path, test.step)
		expect.True(t, errors.Is(errors.Invalid, err), "%+v: %v", test, err)
	}
	_, _, _, err := l.UnpackPosition(l.MaxPosition() + 1)
	expect.True(t, errors.Is(errors.Invalid, err))
}

func TestParsePositionErrors(t *testing.T) {
	l := DefaultLayout
	for _, s := range []string{
		"",
		"00.000",
		"00.000.0000.000",
		"0.000.0000",
		"00.0000.0000",
		"00.00A.0000",
		"00.000.000g",
		"00.000.-001",
	} {
		_, err := l.ParsePosition(s)
		expect.True(t, errors.Is(errors.Invalid, err), "%q", s)
	}
}

func TestVariantRoundTrip(t *testing.T) {
	l := DefaultLayout
	for _, fields := range [][4]int{
		{0, 0, 0, 0},
		{1, 2, 3, 4},
		{0x10, 0x35f, 0x1234, 0xabc},
		{0xff, 0xfff, 0xffff, 0xfff},
	} {
		v, err := l.PackVariant(fields[0], fields[1], fields[2], fields[3])
		assert.NoError(t, err)
		version, path, step, value, err := l.UnpackVariant(v)
		assert.NoError(t, err)
		expect.EQ(t, [4]int{version, path, step, value}, fields)

		str, err := l.FormatVariant(v)
		assert.NoError(t, err)
		v2, err := l.ParseVariant(str)
		assert.NoError(t, err)
		expect.EQ(t, v2, v)

		p, err := l.PackPosition(fields[0], fields[1], fields[2])
		assert.NoError(t, err)
		min, err := l.MinVariant(p)
		assert.NoError(t, err)
		p2, err := l.PositionOf(min)
		assert.NoError(t, err)
		expect.EQ(t, p2, p)
		p3, err := l.PositionOf(v)
		assert.NoError(t, err)
		expect.EQ(t, p3, p)
		expect.EQ(t, l.VariantValue(v), fields[3])
	}
	v, err := l.PackVariant(1, 2, 3, 4)
	assert.NoError(t, err)
	expect.EQ(t, v, Variant(0x100020003004))
	s, err := l.FormatVariant(v)
	assert.NoError(t, err)
	expect.EQ(t, s, "01.002.0003.004")

	_, err = l.PackVariant(0, 0, 0, 0x1000)
	expect.True(t, errors.Is(errors.Invalid, err))
	_, err = l.PositionOf(l.MaxVariant() + 1)
	expect.True(t, errors.Is(errors.Invalid, err))
}

func TestCustomLayout(t *testing.T) {
	l := Layout{VersionDigits: 1, PathDigits: 2, StepDigits: 2, VariantDigits: 1, CGFVariantDigits: 2}
	assert.NoError(t, l.Validate())
	p, err := l.PackPosition(3, 0x4a, 0x0b)
	assert.NoError(t, err)
	expect.EQ(t, p, Position(0x34a0b))
	s, err := l.FormatPosition(p)
	assert.NoError(t, err)
	expect.EQ(t, s, "3.4a.0b")
	expect.EQ(t, l.MaxStep(), 0xff)

	bad := Layout{VersionDigits: 8, PathDigits: 8, StepDigits: 1, VariantDigits: 1, CGFVariantDigits: 1}
	expect.True(t, errors.Is(errors.Invalid, bad.Validate()))
	expect.True(t, errors.Is(errors.Invalid, Layout{}.Validate()))
}

func TestSamePath(t *testing.T) {
	l := DefaultLayout
	a, _ := l.PackPosition(0, 5, 1)
	b, _ := l.PackPosition(0, 5, 9)
	c, _ := l.PackPosition(1, 5, 1)
	d, _ := l.PackPosition(0, 6, 0)
	expect.True(t, l.SamePath(a, b))
	expect.False(t, l.SamePath(a, c))
	expect.False(t, l.SamePath(b, d))
}
