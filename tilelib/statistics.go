package tilelib

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// Statistics returns the statistics rows ordered by type and path.
func (l *Library) Statistics() []GenomeStatistic {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.statisticsLocked()
}

func (l *Library) statisticsLocked() []GenomeStatistic {
	r := make([]GenomeStatistic, 0, len(l.stats))
	for _, s := range l.stats {
		r = append(r, s)
	}
	sort.Slice(r, func(i, j int) bool { return r[i].less(&r[j]) })
	return r
}

// InitStatistics stores the first set of statistics rows. It fails with
// ErrExistingStatistics if rows are already stored.
func (l *Library) InitStatistics(rows []GenomeStatistic) error {
	m, err := statisticsMap(rows)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.stats) > 0 {
		return ErrExistingStatistics
	}
	l.stats = m
	l.generation++
	log.Printf("tilelib: initialized %d statistics rows", len(m))
	return nil
}

// ReplaceStatistics replaces the stored statistics rows. It fails with
// ErrMissingStatistics if no rows are stored.
func (l *Library) ReplaceStatistics(rows []GenomeStatistic) error {
	m, err := statisticsMap(rows)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.stats) == 0 {
		return ErrMissingStatistics
	}
	l.stats = m
	l.generation++
	log.Printf("tilelib: replaced %d statistics rows", len(m))
	return nil
}

func statisticsMap(rows []GenomeStatistic) (map[statisticKey]GenomeStatistic, error) {
	if len(rows) == 0 {
		return nil, errors.E(errors.Invalid, "no statistics rows")
	}
	m := make(map[statisticKey]GenomeStatistic, len(rows))
	for _, s := range rows {
		if err := validateStatistic(&s); err != nil {
			return nil, err
		}
		if _, ok := m[s.key()]; ok {
			return nil, errors.E(errors.Invalid,
				fmt.Sprintf("duplicate statistics row type %d path %d", s.Type, s.PathName))
		}
		m[s.key()] = s
	}
	return m, nil
}

func validateStatistic(s *GenomeStatistic) error {
	vs := violations{}
	switch {
	case s.Type < GenomeStatistics || s.Type > PathStatistics:
		vs.add("statistics_type", "unknown type %d", s.Type)
	case s.Type == PathStatistics && s.PathName < 0:
		vs.add("path_name", "path row without a path")
	case s.Type != PathStatistics && s.PathName != -1:
		vs.add("path_name", "type %d rows must have path -1, got %d", s.Type, s.PathName)
	}
	if s.NumPositions > s.NumTiles {
		vs.add("num_positions-num_tiles", "%d positions but %d tiles", s.NumPositions, s.NumTiles)
	}
	if s.NumTiles > 0 && s.NumPositions == 0 {
		vs.add("num_positions-num_tiles", "%d tiles but no positions", s.NumTiles)
	}
	return vs.err(fmt.Sprintf("statistics row type %d path %d", s.Type, s.PathName))
}
