package keymutex

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
)

// KeyedMutex provides per-installation mutual exclusion by striping a fixed
// set of mutexes over installation ids. Two operations on the same
// installation always serialize; operations on different installations run
// in parallel unless they collide on a stripe.
type KeyedMutex struct {
	stripes []sync.Mutex
}

// New creates a keyed mutex with the given number of stripes.
func New(stripeCount int) *KeyedMutex {
	if stripeCount <= 0 {
		stripeCount = 64
	}
	return &KeyedMutex{stripes: make([]sync.Mutex, stripeCount)}
}

// Lock acquires the stripe owning id.
func (m *KeyedMutex) Lock(id uuid.UUID) {
	m.stripes[m.stripeFor(id)].Lock()
}

// Unlock releases the stripe owning id.
func (m *KeyedMutex) Unlock(id uuid.UUID) {
	m.stripes[m.stripeFor(id)].Unlock()
}

func (m *KeyedMutex) stripeFor(id uuid.UUID) int {
	h := fnv.New32a()
	h.Write(id[:])
	return int(h.Sum32() % uint32(len(m.stripes)))
}
