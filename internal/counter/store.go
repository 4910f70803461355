// Package counter provides the concurrent per-tag event counters that back
// the throughput reporter.
package counter

import (
	"sort"
	"sync"
)

// Entry holds the counts observed for a single tag within one window.
type Entry struct {
	Incoming uint64
	Outgoing uint64
}

// Snapshot is the full set of per-tag counts captured by a single Drain.
type Snapshot map[string]Entry

// Store is a thread-safe mapping from tag to incoming and outgoing counts.
// Drain atomically reads and resets all counters, making it suitable for
// periodic reporting.
//
// Each side is guarded by its own lock. An increment that acquires a side's
// lock before Drain does is part of the drained window; any later increment
// lands in the next window.
type Store struct {
	incoming side
	outgoing side
}

type side struct {
	mu     sync.Mutex
	counts map[string]uint64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		incoming: side{counts: make(map[string]uint64)},
		outgoing: side{counts: make(map[string]uint64)},
	}
}

// RecordIncoming increments the incoming count for tag by one.
func (s *Store) RecordIncoming(tag string) {
	s.incoming.inc(tag)
}

// RecordOutgoing increments the outgoing count for tag by one.
func (s *Store) RecordOutgoing(tag string) {
	s.outgoing.inc(tag)
}

// Drain captures every tag observed since the previous Drain and resets
// the store to empty.
func (s *Store) Drain() Snapshot {
	in := s.incoming.swap()
	out := s.outgoing.swap()

	snap := make(Snapshot, len(in))

	for tag, n := range in {
		snap[tag] = Entry{Incoming: n}
	}

	for tag, n := range out {
		e := snap[tag]
		e.Outgoing = n
		snap[tag] = e
	}

	return snap
}

func (s *side) inc(tag string) {
	s.mu.Lock()
	s.counts[tag]++
	s.mu.Unlock()
}

func (s *side) swap() map[string]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.counts
	s.counts = make(map[string]uint64, len(old))

	return old
}

// Len returns the number of tags in the snapshot.
func (s Snapshot) Len() int { return len(s) }

// Tags returns the snapshot's tags in sorted order.
func (s Snapshot) Tags() []string {
	tags := make([]string, 0, len(s))
	for tag := range s {
		tags = append(tags, tag)
	}

	sort.Strings(tags)

	return tags
}

// Totals sums the incoming and outgoing counts across all tags.
func (s Snapshot) Totals() (incoming, outgoing uint64) {
	for _, e := range s {
		incoming += e.Incoming
		outgoing += e.Outgoing
	}

	return incoming, outgoing
}
