package reference

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/tilelib/tile"
	"github.com/pkg/errors"
)

const (
	bufferInitSize = 1024 * 1024 * 300 // 300 MB
)

// Genome provides the bases of reference assemblies.
type Genome interface {
	// Bases returns the uppercase bases of chr in [start, end) on the given
	// assembly. Bases is thread-safe.
	Bases(assembly tile.Assembly, chr tile.Chromosome, start, end int64) (string, error)
}

type assemblyKey struct {
	assembly tile.Assembly
	chr      tile.Chromosome
}

// Store is an in-memory Genome. The zero value is not usable; call NewStore.
type Store struct {
	mu   sync.RWMutex
	seqs map[assemblyKey]string
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{seqs: make(map[assemblyKey]string)}
}

// Set stores seq as the sequence of chr on assembly, replacing any previous
// value.
func (s *Store) Set(assembly tile.Assembly, chr tile.Chromosome, seq string) {
	s.mu.Lock()
	s.seqs[assemblyKey{assembly, chr}] = strings.ToUpper(seq)
	s.mu.Unlock()
}

// Len returns the length of chr on assembly.
func (s *Store) Len(assembly tile.Assembly, chr tile.Chromosome) (int64, error) {
	s.mu.RLock()
	seq, ok := s.seqs[assemblyKey{assembly, chr}]
	s.mu.RUnlock()
	if !ok {
		return 0, errors.Errorf("sequence not found: %v %v", assembly, chr)
	}
	return int64(len(seq)), nil
}

// Bases implements Genome.Bases.
func (s *Store) Bases(assembly tile.Assembly, chr tile.Chromosome, start, end int64) (string, error) {
	s.mu.RLock()
	seq, ok := s.seqs[assemblyKey{assembly, chr}]
	s.mu.RUnlock()
	if !ok {
		return "", errors.Errorf("sequence not found: %v %v", assembly, chr)
	}
	if end < start {
		return "", fmt.Errorf("start must not be larger than end")
	}
	if start < 0 || end > int64(len(seq)) {
		return "", errors.Errorf("invalid query range %d - %d for sequence %v %v with length %d",
			start, end, assembly, chr, len(seq))
	}
	return seq[start:end], nil
}

// AddFASTA parses FASTA data from r and stores every sequence that names a
// known chromosome under the given assembly. It returns the chromosomes read.
func (s *Store) AddFASTA(assembly tile.Assembly, r io.Reader) ([]tile.Chromosome, error) {
	var (
		chrs    []tile.Chromosome
		seqName string
		seq     strings.Builder
	)
	flush := func() error {
		if seq.Len() == 0 {
			return nil
		}
		if seqName == "" {
			return errors.Errorf("malformed FASTA file: bases before the first header")
		}
		defer seq.Reset()
		chr, err := tile.ParseChromosome(seqName)
		if err != nil {
			log.Debug.Printf("reference: skipping sequence %s", seqName)
			return nil
		}
		s.Set(assembly, chr, seq.String())
		chrs = append(chrs, chr)
		return nil
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, bufferInitSize)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' { // Start a new sequence.
			if err := flush(); err != nil {
				return nil, err
			}
			seqName = strings.Split(line[1:], " ")[0]
		} else {
			seq.WriteString(line)
		}
	}
	if scanner.Err() != nil {
		return nil, errors.Wrap(scanner.Err(), "couldn't read FASTA data")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return chrs, nil
}

// ReadFASTA opens path through grailbio file and calls AddFASTA.
func (s *Store) ReadFASTA(ctx context.Context, assembly tile.Assembly, path string) (err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	chrs, err := s.AddFASTA(assembly, in.Reader(ctx))
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	log.Printf("reference: loaded %d chromosomes of %v from %s", len(chrs), assembly, path)
	return nil
}
