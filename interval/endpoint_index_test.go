package interval

import (
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func collect(x *Index, lo, hi PosType) []uint64 {
	var ids []uint64
	x.Overlapping(lo, hi, func(e Entry) bool {
		ids = append(ids, e.ID)
		return true
	})
	return ids
}

func TestSearch(t *testing.T) {
	a := []PosType{1, 3, 3, 7, 20, 21}
	for _, x := range []PosType{0, 1, 2, 3, 4, 7, 8, 21, 22} {
		want := SearchPosTypes(a, x)
		for idx := 0; idx <= want; idx++ {
			expect.EQ(t, ExpsearchPosType(a, x, idx), want, "x=%d idx=%d", x, idx)
		}
	}
}

func TestTileLoci(t *testing.T) {
	// Consecutive tiles share 24 bases.
	x := &Index{}
	assert.NoError(t, x.Insert(0, 448, 0))
	assert.NoError(t, x.Insert(424, 725, 1))
	assert.NoError(t, x.Insert(701, 974, 2))
	assert.NoError(t, x.Insert(950, 1099, 3))

	min, max, ok := x.Bounds()
	expect.True(t, ok)
	expect.EQ(t, min, PosType(0))
	expect.EQ(t, max, PosType(1099))

	expect.EQ(t, collect(x, 24, 25), []uint64{0})
	expect.EQ(t, collect(x, 430, 702), []uint64{0, 1, 2})
	expect.EQ(t, collect(x, 448, 701), []uint64{1})
	expect.EQ(t, collect(x, 1099, 2000), []uint64(nil))
	expect.EQ(t, collect(x, -10, 0), []uint64(nil))

	expect.EQ(t, x.Containing(700), []Entry{{424, 725, 1}})
	expect.EQ(t, x.Containing(710), []Entry{{424, 725, 1}, {701, 974, 2}})
}

func TestOutOfOrderInsert(t *testing.T) {
	x := &Index{}
	assert.NoError(t, x.Insert(100, 200, 3))
	assert.NoError(t, x.Insert(0, 1000, 1))
	assert.NoError(t, x.Insert(50, 60, 2))
	assert.NoError(t, x.Insert(100, 150, 0))
	expect.EQ(t, x.Len(), 4)
	expect.EQ(t, x.Entries(), []Entry{{0, 1000, 1}, {50, 60, 2}, {100, 150, 0}, {100, 200, 3}})

	// The long interval must be found even though later ones end earlier.
	expect.EQ(t, collect(x, 500, 501), []uint64{1})
	expect.EQ(t, collect(x, 55, 120), []uint64{1, 2, 0, 3})

	var first []uint64
	x.Overlapping(0, 1000, func(e Entry) bool {
		first = append(first, e.ID)
		return false
	})
	expect.EQ(t, first, []uint64{1})
}

func TestInsertEmpty(t *testing.T) {
	x := &Index{}
	err := x.Insert(5, 5, 0)
	expect.True(t, errors.Is(errors.Invalid, err))
	_, _, ok := x.Bounds()
	expect.False(t, ok)
}
