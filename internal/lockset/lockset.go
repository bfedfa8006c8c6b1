// Package lockset provides per-key mutual exclusion for entities that are
// mutated by concurrent reconciliation operations.
package lockset

import (
	"sort"
	"sync"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Set hands out one mutex per key. Entries are dropped once no caller holds
// or waits on them, so the set only grows with contention.
type Set struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty Set.
func New() *Set {
	return &Set{entries: make(map[string]*entry)}
}

// Lock acquires every key and returns the function that releases them.
// Keys are de-duplicated and taken in sorted order, so two callers locking
// overlapping key sets cannot deadlock.
func (s *Set) Lock(keys ...string) func() {
	ordered := uniqueSorted(keys)

	held := make([]*entry, 0, len(ordered))
	for _, k := range ordered {
		e := s.acquire(k)
		e.mu.Lock()
		held = append(held, e)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				s.release(ordered[i])
			}
		})
	}
}

// Len reports how many keys currently have holders or waiters.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Set) acquire(key string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	e.refs++
	return e
}

func (s *Set) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[key]
	e.refs--
	if e.refs == 0 {
		delete(s.entries, key)
	}
}

func uniqueSorted(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
