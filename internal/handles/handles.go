// Package handles maps native user_data identifiers to Go completion
// callbacks.
//
// Native code cannot hold Go pointers, so a callback that must be reachable
// from a C shutdown notification is registered here and the returned
// identifier is stored in native memory instead. Each identifier fires at
// most once: Fire removes the entry before running it, so a duplicated
// native notification finds nothing and is reported to the caller.
package handles

import (
	"sync"
)

var (
	mu        sync.Mutex
	callbacks = make(map[uintptr]func())
	nextID    uintptr = 1
)

// Register stores fn and returns a non-zero identifier for it.
//
// Thread-safe.
func Register(fn func()) uintptr {
	mu.Lock()
	defer mu.Unlock()
	id := nextID
	nextID++
	callbacks[id] = fn
	return id
}

// Fire removes the callback registered under id and runs it on the calling
// goroutine. It reports false when id is unknown, either because it was
// never registered or because it already fired.
//
// Thread-safe. The registry lock is not held while fn runs.
func Fire(id uintptr) bool {
	mu.Lock()
	fn, ok := callbacks[id]
	delete(callbacks, id)
	mu.Unlock()

	if !ok {
		return false
	}
	fn()
	return true
}

// Pending reports whether id is registered and has not fired yet.
func Pending(id uintptr) bool {
	mu.Lock()
	defer mu.Unlock()
	_, ok := callbacks[id]
	return ok
}

// Unregister drops id without running it. Used when the native allocation
// that would have fired it failed.
func Unregister(id uintptr) {
	mu.Lock()
	defer mu.Unlock()
	delete(callbacks, id)
}

// Count returns the number of callbacks still waiting to fire.
func Count() int {
	mu.Lock()
	defer mu.Unlock()
	return len(callbacks)
}
