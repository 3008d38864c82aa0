package service

import "sync"

// GroupLocks serializes mutations per group. Expenses, settlements and
// membership changes for one group take the same lock; different groups
// proceed independently. Locks are created on first use and never reclaimed,
// which is fine at the scale of one mutex per group.
type GroupLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewGroupLocks() *GroupLocks {
	return &GroupLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the group's mutex and returns its unlock function.
func (l *GroupLocks) Lock(groupID string) func() {
	l.mu.Lock()
	m, ok := l.locks[groupID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[groupID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
