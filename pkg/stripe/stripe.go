// Package stripe provides a fixed-size set of mutexes selected by key hash.
//
// Keys that hash to the same stripe serialize; keys on different stripes never
// block each other. The number of stripes bounds contention and memory no matter
// how many distinct keys are used.
package stripe

import (
	"hash/fnv"
	"sync"
)

// DefaultSize is the stripe count used when New is given a non-positive size.
const DefaultSize = 8

// Locks is a striped lock set.
type Locks struct {
	stripes []sync.Mutex
}

// New creates a lock set with n stripes.
func New(n int) *Locks {
	if n <= 0 {
		n = DefaultSize
	}
	return &Locks{stripes: make([]sync.Mutex, n)}
}

// Size returns the number of stripes.
func (l *Locks) Size() int {
	return len(l.stripes)
}

// Index returns the stripe index for key.
func (l *Locks) Index(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(l.stripes)))
}

// Lock acquires the stripe for key and returns its unlock function.
func (l *Locks) Lock(key string) (unlock func()) {
	m := &l.stripes[l.Index(key)]
	m.Lock()
	return m.Unlock
}

// With runs fn while holding the stripe for key.
func (l *Locks) With(key string, fn func() error) error {
	unlock := l.Lock(key)
	defer unlock()
	return fn()
}
