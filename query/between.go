package query

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/tilelib/population"
	"github.com/grailbio/tilelib/tile"
	"github.com/minio/highwayhash"
)

// BetweenRequest asks for the sequences of a window of a chromosome.
type BetweenRequest struct {
	Assembly   tile.Assembly
	Chromosome tile.Chromosome
	// Lower and Upper bound the window [Lower, Upper).
	Lower, Upper int64
	// Indexing is 0 or 1, the base of Lower and Upper.
	Indexing int
}

// BetweenLoci returns the sequence of every human over the window, ordered
// by human name.
func (e *Engine) BetweenLoci(ctx context.Context, req BetweenRequest) ([]Sequence, error) {
	lo, hi := req.Lower, req.Upper
	if err := normalize(req.Indexing, &lo, &hi); err != nil {
		return nil, err
	}
	if hi <= lo {
		return nil, errors.E(errors.Invalid, "between loci: upper base must be greater than lower base")
	}
	min, max, err := e.annotatedRange(req.Assembly, req.Chromosome, "lower_base", req.Lower)
	if err != nil {
		return nil, err
	}
	if lo < min || lo >= max {
		return nil, outOfRange(req.Assembly, req.Chromosome, "lower_base", req.Lower, min, max)
	}
	if hi > max {
		return nil, outOfRange(req.Assembly, req.Chromosome, "upper_base", req.Upper, min, max)
	}

	st := Stats{Queries: 1}
	tr, err := e.translator(req.Assembly, req.Chromosome, lo, hi, &st)
	if err != nil {
		return nil, err
	}
	calls, err := e.source.Calls(ctx, tr.fetchFirst, tr.lastPos)
	if err != nil {
		return nil, err
	}
	humans := calls.Humans()
	log.Debug.Printf("between %v:%d-%d on %v: %d fragments, %d humans",
		req.Chromosome, lo, hi, req.Assembly, len(tr.fragments), len(humans))
	seqs := make([]Sequence, len(humans))
	for i, h := range humans {
		seqs[i].Human = h
	}
	memo := newMemo()
	phaseStats := make([]Stats, 2*len(humans))
	layout := e.lib.Layout()
	err = e.each(len(phaseStats), func(i int) error {
		if err := ctx.Err(); err != nil {
			return errors.E(errors.Canceled, err)
		}
		h, phase := humans[i/2], i%2
		s, err := memo.do(calls[h][phase], &phaseStats[i], func() (string, error) {
			return tr.stitch(layout, calls[h][phase], &phaseStats[i])
		})
		if err != nil {
			return errors.E(err, h, "phase", phaseName(phase))
		}
		seqs[i/2].Phases[phase] = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	st.Humans = int64(len(humans))
	for _, s := range phaseStats {
		st.Merge(s)
	}
	e.addStats(st)
	return seqs, nil
}

func phaseName(phase int) string {
	if phase == 0 {
		return "A"
	}
	return "B"
}

// stitch concatenates the fragments of calls.
func (tr *translator) stitch(layout tile.Layout, calls []string, st *Stats) (string, error) {
	var (
		buf   []byte
		first *fragment
		prev  *fragment
	)
	for _, c := range calls {
		cgf, err := layout.ParseCGF(c)
		if err != nil {
			return "", err
		}
		pos, err := cgf.Position(layout)
		if err != nil {
			return "", err
		}
		if pos > tr.lastPos {
			return "", population.Unexpected("call %s is past the requested positions", c)
		}
		if pos+tile.Position(cgf.Span)-1 < tr.firstPos {
			continue
		}
		key, err := layout.StripSpan(c)
		if err != nil {
			return "", err
		}
		f := tr.fragments[key]
		if f == nil {
			return "", translatorError(c, "no such variant in the window")
		}
		if f.span != cgf.Span {
			return "", translatorError(c, "the variant spans %d positions", f.span)
		}
		st.Fragments++
		if prev == nil {
			buf = append(buf, f.bases...)
			first, prev = f, f
			continue
		}
		if f.pos <= prev.last {
			return "", population.Unexpected("call %s overlaps the previous call", c)
		}
		if layout.SamePath(prev.pos, f.pos) {
			if f.start > prev.end {
				return "", population.Unexpected("call %s leaves a gap at [%d, %d)", c, prev.end, f.start)
			}
			k := int(min64(prev.end, f.end) - f.start)
			if k > len(buf) || k > len(f.bases) {
				return "", population.Unexpected("call %s: overlap of %d bases is longer than a fragment", c, k)
			}
			if !bytes.Equal(buf[len(buf)-k:], []byte(f.bases[:k])) {
				return "", population.Unexpected("call %s: tag %q does not match the previous fragment's %q",
					c, f.bases[:k], buf[len(buf)-k:])
			}
			buf = append(buf, f.bases[k:]...)
		} else {
			buf = append(buf, f.bases...)
		}
		prev = f
	}
	if prev == nil {
		return "", population.Unexpected("no call covers [%d, %d)", tr.lo, tr.hi)
	}
	if first.start != tr.lo || prev.end != tr.hi {
		return "", population.Unexpected("calls cover [%d, %d) of [%d, %d)", first.start, prev.end, tr.lo, tr.hi)
	}
	return strings.ToUpper(string(buf)), nil
}

// memo shares the sequence of a call list among the phases of a query that
// carry it.
type memo struct {
	mu   sync.Mutex
	seqs map[[highwayhash.Size]byte]string
}

var zeroSeed [highwayhash.Size]byte

func newMemo() *memo {
	return &memo{seqs: map[[highwayhash.Size]byte]string{}}
}

func (m *memo) do(calls []string, st *Stats, fn func() (string, error)) (string, error) {
	key := highwayhash.Sum([]byte(strings.Join(calls, "\x00")), zeroSeed[:])
	m.mu.Lock()
	s, ok := m.seqs[key]
	m.mu.Unlock()
	if ok {
		st.MemoHits++
		return s, nil
	}
	s, err := fn()
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.seqs[key] = s
	m.mu.Unlock()
	return s, nil
}
