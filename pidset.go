package ahkdump

import (
	"sort"
	"sync"
)

// PIDSet is a set of process IDs, safe for concurrent use.
type PIDSet struct {
	mux  sync.RWMutex
	pids map[int]struct{}
}

// NewPIDSet creates a set containing the given pids.
func NewPIDSet(pids ...int) *PIDSet {
	s := &PIDSet{pids: make(map[int]struct{}, len(pids))}
	for _, pid := range pids {
		s.pids[pid] = struct{}{}
	}
	return s
}

// Add inserts pid and reports whether it was not yet contained.
func (s *PIDSet) Add(pid int) bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.pids[pid]; ok {
		return false
	}
	s.pids[pid] = struct{}{}
	return true
}

func (s *PIDSet) Contains(pid int) bool {
	s.mux.RLock()
	defer s.mux.RUnlock()
	_, ok := s.pids[pid]
	return ok
}

func (s *PIDSet) Len() int {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return len(s.pids)
}

// Slice returns a sorted snapshot of the set.
func (s *PIDSet) Slice() []int {
	s.mux.RLock()
	pids := make([]int, 0, len(s.pids))
	for pid := range s.pids {
		pids = append(pids, pid)
	}
	s.mux.RUnlock()
	sort.Ints(pids)
	return pids
}
