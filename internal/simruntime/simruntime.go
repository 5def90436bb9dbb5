// Package simruntime is an in-process stand-in for the CRT I/O library.
//
// It hands out opaque identifiers, runs teardown on its own goroutines the
// way the native library runs it on its own threads, and records every
// primitive call so tests can check ordering. Objects keep track of the
// native objects they reference; destroying an object that a live object
// still references is recorded as a use-after-free.
package simruntime

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/obinnaokechukwu/crtgo/internal/native"
)

// ErrSimulatedOOM is the default allocation failure.
var ErrSimulatedOOM = &native.Error{
	Op:      "simruntime",
	Code:    1,
	Name:    "AWS_ERROR_OOM",
	Message: "Out of memory.",
}

// ErrUnknownObject is returned when a release names an identifier the
// runtime never handed out, or already tore down.
var ErrUnknownObject = errors.New("simruntime: unknown object")

// Kind identifies the native type of a simulated object.
type Kind string

const (
	KindEventLoopGroup  Kind = "event_loop_group"
	KindHostResolver    Kind = "host_resolver"
	KindClientBootstrap Kind = "client_bootstrap"
	KindSocketOptions   Kind = "socket_options"
)

// EventType is the kind of a recorded runtime event.
type EventType string

const (
	EventCreated        EventType = "created"
	EventDestroyed      EventType = "destroyed"       // release primitive called
	EventTeardownDone   EventType = "teardown_done"   // async teardown finished, callback about to fire
	EventUseAfterFree   EventType = "use_after_free"  // object released while referenced
	EventDoubleDestroy  EventType = "double_destroy"  // release of an already released object
	EventCallbackIssued EventType = "callback_issued" // shutdown callback invoked
)

// Event is one recorded runtime action.
type Event struct {
	Type   EventType
	Kind   Kind
	Handle uintptr
	Time   time.Time
}

type object struct {
	kind       Kind
	refs       []uintptr // native objects this one uses
	onShutdown func()
	released   bool
}

// Runtime simulates the native runtime. The zero value is not usable; call New.
type Runtime struct {
	mu      sync.Mutex
	next    uintptr
	objects map[uintptr]*object
	events  []Event
	destroy map[uintptr]int

	failAlloc      error
	failDestroy    error
	manual         bool
	duplicate      bool
	teardownDelay  time.Duration
	pendingSignals []func()

	wg sync.WaitGroup
}

var _ native.Runtime = (*Runtime)(nil)

// New returns a runtime that completes teardown asynchronously and
// immediately.
func New() *Runtime {
	return &Runtime{
		next:    0x1000,
		objects: make(map[uintptr]*object),
		destroy: make(map[uintptr]int),
	}
}

// FailAllocations makes every subsequent *New call fail with err. Pass nil
// to restore normal behaviour.
func (r *Runtime) FailAllocations(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failAlloc = err
}

// FailDestroys makes every subsequent release primitive report err. The
// object is treated as leaked: no teardown runs and no callback fires.
func (r *Runtime) FailDestroys(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failDestroy = err
}

// SetManualCompletion holds shutdown callbacks until CompletePending is
// called.
func (r *Runtime) SetManualCompletion(manual bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manual = manual
}

// SetDuplicateCallbacks makes every shutdown callback fire twice.
func (r *Runtime) SetDuplicateCallbacks(dup bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.duplicate = dup
}

// SetTeardownDelay adds latency to asynchronous teardown.
func (r *Runtime) SetTeardownDelay(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teardownDelay = d
}

// CompletePending fires every held shutdown callback, each on its own
// goroutine, and returns how many were released.
func (r *Runtime) CompletePending() int {
	r.mu.Lock()
	pending := r.pendingSignals
	r.pendingSignals = nil
	r.mu.Unlock()

	for _, fire := range pending {
		r.wg.Add(1)
		go func(fire func()) {
			defer r.wg.Done()
			fire()
		}(fire)
	}
	return len(pending)
}

// PendingCompletions returns the number of held shutdown callbacks.
func (r *Runtime) PendingCompletions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pendingSignals)
}

// Wait blocks until every teardown goroutine started so far has returned.
func (r *Runtime) Wait() {
	r.wg.Wait()
}

// DestroyCalls returns how many times the release primitive was called for
// handle.
func (r *Runtime) DestroyCalls(handle uintptr) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroy[handle]
}

// Live returns the number of objects that have not finished teardown.
func (r *Runtime) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.objects)
}

// Events returns a copy of the recorded events in order.
func (r *Runtime) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Violations returns the recorded use-after-free and double-destroy events.
func (r *Runtime) Violations() []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == EventUseAfterFree || e.Type == EventDoubleDestroy {
			out = append(out, e)
		}
	}
	return out
}

func (r *Runtime) record(t EventType, k Kind, h uintptr) {
	r.events = append(r.events, Event{Type: t, Kind: k, Handle: h, Time: time.Now()})
}

func (r *Runtime) create(k Kind, onShutdown func(), refs ...uintptr) (uintptr, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failAlloc != nil {
		return 0, r.failAlloc
	}
	for _, ref := range refs {
		if o, ok := r.objects[ref]; !ok || o.released {
			return 0, &native.Error{
				Op:      fmt.Sprintf("simruntime: new %s", k),
				Code:    34,
				Name:    "AWS_ERROR_INVALID_ARGUMENT",
				Message: fmt.Sprintf("dependency 0x%x is not live", ref),
			}
		}
	}

	h := r.next
	r.next += 0x10
	r.objects[h] = &object{kind: k, refs: refs, onShutdown: onShutdown}
	r.record(EventCreated, k, h)
	return h, nil
}

// release models the release primitive: synchronous validation, then
// teardown either inline (no callback) or on a runtime goroutine.
func (r *Runtime) release(k Kind, h uintptr) error {
	r.mu.Lock()
	r.destroy[h]++

	o, ok := r.objects[h]
	if !ok || o.kind != k {
		if r.destroy[h] > 1 {
			r.record(EventDoubleDestroy, k, h)
		}
		r.mu.Unlock()
		return fmt.Errorf("%w: %s 0x%x", ErrUnknownObject, k, h)
	}
	if o.released {
		r.record(EventDoubleDestroy, k, h)
		r.mu.Unlock()
		return nil
	}
	if r.failDestroy != nil {
		err := r.failDestroy
		r.mu.Unlock()
		return err
	}

	o.released = true
	r.record(EventDestroyed, k, h)
	for other, oo := range r.objects {
		if other == h {
			continue
		}
		for _, ref := range oo.refs {
			if ref == h {
				r.record(EventUseAfterFree, k, h)
			}
		}
	}

	if o.onShutdown == nil {
		delete(r.objects, h)
		r.record(EventTeardownDone, k, h)
		r.mu.Unlock()
		return nil
	}

	delay := r.teardownDelay
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if delay > 0 {
			time.Sleep(delay)
		}
		r.finishTeardown(k, h, o)
	}()
	return nil
}

func (r *Runtime) finishTeardown(k Kind, h uintptr, o *object) {
	r.mu.Lock()
	delete(r.objects, h)
	r.record(EventTeardownDone, k, h)

	fire := func() {
		r.mu.Lock()
		r.record(EventCallbackIssued, k, h)
		r.mu.Unlock()
		o.onShutdown()
	}
	signals := []func(){fire}
	if r.duplicate {
		signals = append(signals, fire)
	}
	if r.manual {
		r.pendingSignals = append(r.pendingSignals, signals...)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	for _, s := range signals {
		s()
	}
}

// EventLoopGroupNew implements native.Runtime.
func (r *Runtime) EventLoopGroupNew(threads uint16, onShutdown func()) (uintptr, error) {
	if threads == 0 {
		return 0, &native.Error{Op: "simruntime: new event_loop_group", Code: 34, Name: "AWS_ERROR_INVALID_ARGUMENT", Message: "zero threads"}
	}
	return r.create(KindEventLoopGroup, onShutdown)
}

// EventLoopGroupRelease implements native.Runtime.
func (r *Runtime) EventLoopGroupRelease(elg uintptr) error {
	return r.release(KindEventLoopGroup, elg)
}

// HostResolverNew implements native.Runtime.
func (r *Runtime) HostResolverNew(elg uintptr, _ int, onShutdown func()) (uintptr, error) {
	return r.create(KindHostResolver, onShutdown, elg)
}

// HostResolverRelease implements native.Runtime.
func (r *Runtime) HostResolverRelease(resolver uintptr) error {
	return r.release(KindHostResolver, resolver)
}

// ClientBootstrapNew implements native.Runtime.
func (r *Runtime) ClientBootstrapNew(elg, resolver uintptr, onShutdown func()) (uintptr, error) {
	return r.create(KindClientBootstrap, onShutdown, elg, resolver)
}

// ClientBootstrapRelease implements native.Runtime.
func (r *Runtime) ClientBootstrapRelease(bootstrap uintptr) error {
	return r.release(KindClientBootstrap, bootstrap)
}

// SocketOptionsNew implements native.Runtime.
func (r *Runtime) SocketOptionsNew(native.SocketOptions) (uintptr, error) {
	return r.create(KindSocketOptions, nil)
}

// SocketOptionsRelease implements native.Runtime.
func (r *Runtime) SocketOptionsRelease(opts uintptr) error {
	return r.release(KindSocketOptions, opts)
}
