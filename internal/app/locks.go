package service

import (
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// stripedLocks serialises updates per player with a fixed set of mutexes.
type stripedLocks struct {
	stripes []sync.Mutex
}

func newStripedLocks(n int) *stripedLocks {
	if n < 1 {
		n = 1
	}
	return &stripedLocks{stripes: make([]sync.Mutex, n)}
}

func (l *stripedLocks) stripe(id string) int {
	return int(xxhash.Sum64String(id) % uint64(len(l.stripes)))
}

// lock acquires the stripes of all ids in ascending order and returns the
// matching unlock.
func (l *stripedLocks) lock(ids ...string) (unlock func()) {
	idx := make([]int, 0, len(ids))
	for _, id := range ids {
		idx = append(idx, l.stripe(id))
	}
	slices.Sort(idx)
	idx = slices.Compact(idx)

	for _, i := range idx {
		l.stripes[i].Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			l.stripes[idx[j]].Unlock()
		}
	}
}
