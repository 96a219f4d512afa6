package refresher

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// registry is a copy-on-write listener list. Readers load the current
// slice without locking; writers build a new slice under mu. A loaded
// slice is never modified.
type registry struct {
	mu   sync.Mutex
	list atomic.Pointer[[]Listener]
}

func (r *registry) load() []Listener {
	if p := r.list.Load(); p != nil {
		return *p
	}
	return nil
}

// add appends l unless it is already registered.
func (r *registry) add(l Listener) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.load()
	for _, existing := range cur {
		if existing == l {
			return false
		}
	}
	next := make([]Listener, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, l)
	r.list.Store(&next)
	return true
}

func (r *registry) remove(l Listener) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.load()
	for i, existing := range cur {
		if existing == l {
			next := make([]Listener, 0, len(cur)-1)
			next = append(next, cur[:i]...)
			next = append(next, cur[i+1:]...)
			r.list.Store(&next)
			return true
		}
	}
	return false
}

func (r *registry) size() int {
	return len(r.load())
}

// isComparable reports whether l can be used as a registry key. Comparing
// uncomparable dynamic types (a ListenerFuncs value, say) panics.
func isComparable(l Listener) bool {
	return reflect.TypeOf(l).Comparable()
}
