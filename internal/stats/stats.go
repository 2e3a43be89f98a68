package stats

import "sync/atomic"

type Stats struct {
	pings       atomic.Int64
	echoes      atomic.Int64
	gets        atomic.Int64
	sets        atomic.Int64
	hits        atomic.Int64
	misses      atomic.Int64
	errors      atomic.Int64
	connsOpened atomic.Int64
	connsClosed atomic.Int64
	reclaimed   atomic.Int64
}

func New() *Stats {
	return &Stats{}
}

func (s *Stats) RecordPing() {
	s.pings.Add(1)
}

func (s *Stats) RecordEcho() {
	s.echoes.Add(1)
}

func (s *Stats) RecordGet(hit bool) {
	s.gets.Add(1)
	if hit {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
}

func (s *Stats) RecordSet() {
	s.sets.Add(1)
}

func (s *Stats) RecordError() {
	s.errors.Add(1)
}

func (s *Stats) RecordConnOpened() {
	s.connsOpened.Add(1)
}

func (s *Stats) RecordConnClosed() {
	s.connsClosed.Add(1)
}

func (s *Stats) RecordReclaimed(n int) {
	s.reclaimed.Add(int64(n))
}

// ActiveConns is opened minus closed.
func (s *Stats) ActiveConns() int64 {
	return s.connsOpened.Load() - s.connsClosed.Load()
}

func (s *Stats) Snapshot() map[string]int64 {
	return map[string]int64{
		"pings":             s.pings.Load(),
		"echoes":            s.echoes.Load(),
		"gets":              s.gets.Load(),
		"sets":              s.sets.Load(),
		"hits":              s.hits.Load(),
		"misses":            s.misses.Load(),
		"errors":            s.errors.Load(),
		"conns_opened":      s.connsOpened.Load(),
		"conns_closed":      s.connsClosed.Load(),
		"expired_reclaimed": s.reclaimed.Load(),
	}
}
