package interval

import (
	"fmt"
	"math"
	"sort"

	"github.com/grailbio/base/errors"
)

// This file includes support datatypes and functions for searching a set of
// possibly-overlapping intervals kept in start order.
//
// For example, given the tile loci
//   [0, 448)
//   [424, 725)
//   [701, 974)
// Overlapping(430, 702) visits all three, Containing(700) returns the second,
// and Containing(710) returns the second and the third.
//
// Ends are not required to be sorted; maxEnds[i] holds max(ends[:i+1]) so
// that the first interval that can reach past a position is found by binary
// search.

// PosType is the type used to represent interval coordinates.
type PosType int64

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = math.MaxInt64

// SearchPosTypes returns the index of x in a[], or the position where x would
// be inserted if x isn't in a (this could be len(a)).  It's exactly the same
// as sort.SearchInts(), except for PosType.
func SearchPosTypes(a []PosType, x PosType) int {
	return sort.Search(len(a), func(i int) bool { return a[i] >= x })
}

// ExpsearchPosType performs "exponential search"
// (https://en.wikipedia.org/wiki/Exponential_search ), checking a[idx], then
// a[idx + 1], then a[idx + 3], then a[idx + 7], etc., and finishing with
// binary search once it's either found an element not smaller than the target
// or has hit the end of the slice.  It returns the first index >= idx where
// a[i] >= x.  It beats SearchPosTypes when the answer is close to idx, which
// is the common case for small query windows.
func ExpsearchPosType(a []PosType, x PosType, idx int) int {
	nextIncr := 1
	startIdx := idx
	endIdx := len(a)
	for idx < endIdx {
		if a[idx] >= x {
			endIdx = idx
			break
		}
		startIdx = idx + 1
		idx += nextIncr
		nextIncr *= 2
	}
	for startIdx < endIdx {
		midIdx := int(uint(startIdx+endIdx) >> 1)
		if a[midIdx] >= x {
			endIdx = midIdx
		} else {
			startIdx = midIdx + 1
		}
	}
	return startIdx
}

// Entry is one indexed interval, [Start, End), with a caller-defined ID.
type Entry struct {
	Start, End PosType
	ID         uint64
}

// Index holds intervals sorted by (Start, ID). The zero value is an empty
// index. It is not thread safe.
type Index struct {
	starts  []PosType
	ends    []PosType
	maxEnds []PosType
	ids     []uint64
}

// Len is the number of intervals.
func (x *Index) Len() int { return len(x.starts) }

// Insert adds [start, end) under id. Inserting in start order is O(1)
// amortized; out-of-order inserts shift the tail.
//
// REQUIRES: start < end.
func (x *Index) Insert(start, end PosType, id uint64) error {
	if end <= start {
		return errors.E(errors.Invalid, fmt.Sprintf("interval [%d, %d) is empty", start, end))
	}
	n := len(x.starts)
	i := n
	if n > 0 && (x.starts[n-1] > start || x.starts[n-1] == start && x.ids[n-1] > id) {
		i = sort.Search(n, func(j int) bool {
			return x.starts[j] > start || x.starts[j] == start && x.ids[j] >= id
		})
	}
	x.starts = append(x.starts, 0)
	x.ends = append(x.ends, 0)
	x.ids = append(x.ids, 0)
	x.maxEnds = append(x.maxEnds, 0)
	copy(x.starts[i+1:], x.starts[i:n])
	copy(x.ends[i+1:], x.ends[i:n])
	copy(x.ids[i+1:], x.ids[i:n])
	x.starts[i], x.ends[i], x.ids[i] = start, end, id
	for j := i; j <= n; j++ {
		m := x.ends[j]
		if j > 0 && x.maxEnds[j-1] > m {
			m = x.maxEnds[j-1]
		}
		x.maxEnds[j] = m
	}
	return nil
}

// Bounds returns the smallest start and the largest end. ok is false if the
// index is empty.
func (x *Index) Bounds() (min, max PosType, ok bool) {
	n := len(x.starts)
	if n == 0 {
		return 0, 0, false
	}
	return x.starts[0], x.maxEnds[n-1], true
}

// Overlapping calls fn, in start order, on every interval with
// Start < hi && End > lo. Iteration stops when fn returns false.
func (x *Index) Overlapping(lo, hi PosType, fn func(e Entry) bool) {
	// maxEnds is sorted, so every interval before first ends at or before lo.
	first := SearchPosTypes(x.maxEnds, lo+1)
	limit := ExpsearchPosType(x.starts, hi, first)
	for i := first; i < limit; i++ {
		if x.ends[i] <= lo {
			continue
		}
		if !fn(Entry{Start: x.starts[i], End: x.ends[i], ID: x.ids[i]}) {
			return
		}
	}
}

// Containing returns the intervals with Start <= pos < End, in start order.
func (x *Index) Containing(pos PosType) []Entry {
	var r []Entry
	x.Overlapping(pos, pos+1, func(e Entry) bool {
		r = append(r, e)
		return true
	})
	return r
}

// Entries returns every interval in start order.
func (x *Index) Entries() []Entry {
	r := make([]Entry, len(x.starts))
	for i := range x.starts {
		r[i] = Entry{Start: x.starts[i], End: x.ends[i], ID: x.ids[i]}
	}
	return r
}
