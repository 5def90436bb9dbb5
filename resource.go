//go:build !ios && !android && (amd64 || arm64)

package crtgo

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// State is the lifecycle stage of a Resource.
type State int32

const (
	// StateLive: the native object exists and may be used.
	StateLive State = iota
	// StateDestroyRequested: the handle is null and the native destroy
	// primitive is being called.
	StateDestroyRequested
	// StateNativeTeardownPending: destroy was issued and the native runtime
	// has not yet confirmed completion. Dependencies are still held.
	StateNativeTeardownPending
	// StateDestroyed: teardown is complete and the shutdown future resolved.
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateLive:
		return "live"
	case StateDestroyRequested:
		return "destroy_requested"
	case StateNativeTeardownPending:
		return "native_teardown_pending"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Native is implemented once per resource type and tells Resource how that
// type is torn down.
type Native interface {
	// ReleasesImmediately reports whether dependencies may be released as
	// soon as DestroyNative returns. Types whose native destroy finishes on
	// runtime threads after the call returns must return false and arrange
	// for the runtime to call the onTeardown callback passed to AllocFunc.
	// The answer is a property of the type and must never change.
	ReleasesImmediately() bool

	// DestroyNative calls the native destroy primitive for handle.
	DestroyNative(handle uintptr) error
}

// AllocFunc creates the native object. onTeardown must be handed to the
// runtime as the completion callback for types that do not release
// immediately; other types ignore it.
type AllocFunc func(onTeardown func()) (uintptr, error)

// Resource coordinates the lifecycle of one natively-owned object: its
// handle, the resources it depends on, and the future that resolves when
// teardown is complete.
//
// Teardown is always explicit. Release destroys the native object at most
// once no matter how many goroutines call it. Dependencies are released only
// after the native side is known to be done with them: right after destroy
// for types that release immediately, otherwise from the runtime's
// completion callback.
//
// A Resource must not be used, and its dependencies must not be used
// through it, once Release has been called. NativeHandle enforces this.
type Resource struct {
	class  string
	id     ulid.ULID
	native Native
	handle *Handle
	log    *zap.Logger

	state     atomic.Int32
	refs      atomic.Int32
	finishing atomic.Bool
	created   time.Time
	requested atomic.Int64 // unix nanos of the winning Release

	mu   sync.Mutex
	deps []*Resource

	shutdown *Future
}

// NewResource allocates a native object through alloc and returns the live
// Resource that owns it. On failure it returns an *AllocationError and
// nothing is tracked, no future exists and no destroy will ever be issued.
//
// class names the type in logs and metrics. A nil logger uses Logger().
// A nil n or alloc is rejected with ErrInvalidArgument.
//
// NewResource does not watch for leaks: the Resource stays reachable from
// the live tracker until it is destroyed. Wrappers that embed it call
// watchForLeak on themselves.
func NewResource(class string, n Native, l *zap.Logger, alloc AllocFunc) (*Resource, error) {
	if n == nil {
		return nil, invalidArgument("%s: nil Native", class)
	}
	if alloc == nil {
		return nil, invalidArgument("%s: nil allocation function", class)
	}
	r := &Resource{
		class:  class,
		id:     ulid.Make(),
		native: n,
	}
	r.log = loggerOr(l).With(zap.String("resource", class), zap.String("id", r.id.String()))

	h, err := AcquireHandle(class, func() (uintptr, error) {
		return alloc(r.onNativeTeardownComplete)
	})
	if err != nil {
		r.log.Debug("native allocation failed", zap.Error(err))
		return nil, err
	}

	r.handle = h
	r.shutdown = newFuture()
	r.created = time.Now()
	r.refs.Store(1)
	r.state.Store(int32(StateLive))

	track(r)
	resourcesCreated.WithLabelValues(class).Inc()
	resourcesLive.WithLabelValues(class).Inc()
	r.log.Debug("acquired native handle", zap.Stringer("handle", h))
	return r, nil
}

// newDependentResource takes a reference on every dependency before the
// native create call, so none of them can be torn down underneath it, and
// hands those references to the new resource on success. alloc receives
// the dependencies' native handles in order.
func newDependentResource(class string, n Native, l *zap.Logger, deps []*Resource,
	alloc func(handles []uintptr, onTeardown func()) (uintptr, error)) (*Resource, error) {
	held := make([]*Resource, 0, len(deps))
	drop := func() {
		for _, d := range held {
			d.Close()
		}
	}

	handles := make([]uintptr, len(deps))
	for i, d := range deps {
		if err := d.AddRef(); err != nil {
			drop()
			return nil, err
		}
		held = append(held, d)
		h, err := d.NativeHandle()
		if err != nil {
			drop()
			return nil, err
		}
		handles[i] = h
	}

	r, err := NewResource(class, n, l, func(onTeardown func()) (uintptr, error) {
		return alloc(handles, onTeardown)
	})
	if err != nil {
		drop()
		return nil, err
	}

	r.mu.Lock()
	r.deps = append(r.deps, held...)
	r.mu.Unlock()
	return r, nil
}

// ID returns the resource's unique identifier.
func (r *Resource) ID() string {
	return r.id.String()
}

// Class returns the resource type name.
func (r *Resource) Class() string {
	return r.class
}

func (r *Resource) String() string {
	return fmt.Sprintf("%s(%s, handle=%s, %s)", r.class, r.id, r.handle, r.State())
}

// State returns the current lifecycle stage.
func (r *Resource) State() State {
	return State(r.state.Load())
}

// ReleasesImmediately reports the type's release policy.
func (r *Resource) ReleasesImmediately() bool {
	return r.native.ReleasesImmediately()
}

// IsNull reports whether the native handle has been invalidated.
func (r *Resource) IsNull() bool {
	return r.handle.IsNull()
}

// NativeHandle returns the native identifier, or ErrReleased once Release
// has been called.
func (r *Resource) NativeHandle() (uintptr, error) {
	h := r.handle.Value()
	if h == 0 {
		return 0, fmt.Errorf("%w: %s", ErrReleased, r.class)
	}
	return h, nil
}

// AwaitShutdownComplete returns the future that resolves once the native
// object is destroyed and every dependency has been released.
func (r *Resource) AwaitShutdownComplete() *Future {
	return r.shutdown
}

// RefCount returns the number of outstanding references.
func (r *Resource) RefCount() int32 {
	return r.refs.Load()
}

// AddRef takes an additional reference. Each AddRef must be paired with a
// Close. A resource whose references have all been dropped, or that has been
// released, cannot be revived.
func (r *Resource) AddRef() error {
	for {
		n := r.refs.Load()
		if n <= 0 || r.IsNull() {
			return fmt.Errorf("%w: %s", ErrReleased, r.class)
		}
		if r.refs.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

// Close drops one reference and releases the resource when the last one is
// gone. It always returns nil and satisfies io.Closer.
func (r *Resource) Close() error {
	for {
		n := r.refs.Load()
		if n <= 0 {
			r.violation("ref_underflow", "Close called with no outstanding references")
			return nil
		}
		if r.refs.CompareAndSwap(n, n-1) {
			if n == 1 {
				r.Release()
			}
			return nil
		}
	}
}

// AddReferenceTo records that r uses dep. r holds a reference on dep until
// r's own teardown has completed.
func (r *Resource) AddReferenceTo(dep *Resource) error {
	if dep == nil {
		return invalidArgument("%s: nil dependency", r.class)
	}
	if r.IsNull() {
		return fmt.Errorf("%w: %s", ErrReleased, r.class)
	}
	if err := dep.AddRef(); err != nil {
		return err
	}
	r.mu.Lock()
	r.deps = append(r.deps, dep)
	r.mu.Unlock()
	return nil
}

// RemoveReferenceTo drops one reference previously added with
// AddReferenceTo. It reports whether dep was found.
func (r *Resource) RemoveReferenceTo(dep *Resource) bool {
	r.mu.Lock()
	idx := -1
	for i, d := range r.deps {
		if d == dep {
			idx = i
			break
		}
	}
	if idx >= 0 {
		r.deps = append(r.deps[:idx], r.deps[idx+1:]...)
	}
	r.mu.Unlock()

	if idx < 0 {
		return false
	}
	dep.Close()
	return true
}

// Dependencies returns the resources r currently holds references on.
func (r *Resource) Dependencies() []*Resource {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Resource, len(r.deps))
	copy(out, r.deps)
	return out
}

// Release tears the resource down regardless of outstanding references.
// Only the first call has any effect; later calls, including concurrent
// ones, return without touching the native layer and are counted as
// double_release protocol violations.
//
// For types that release immediately, teardown is complete and the shutdown
// future resolved when Release returns. Otherwise Release returns once the
// native destroy has been issued and dependencies stay held until the
// runtime confirms completion.
func (r *Resource) Release() {
	h, ok := r.handle.Invalidate()
	if !ok {
		protocolViolations.WithLabelValues(r.class, "double_release").Inc()
		r.log.Debug("release ignored: handle already null")
		return
	}

	r.requested.Store(time.Now().UnixNano())
	r.state.Store(int32(StateDestroyRequested))

	immediate := r.native.ReleasesImmediately()
	if !immediate {
		// The completion callback may run before DestroyNative returns.
		r.state.Store(int32(StateNativeTeardownPending))
	}

	r.log.Debug("destroying native object", zap.Uintptr("handle", h), zap.Bool("immediate", immediate))
	if err := r.native.DestroyNative(h); err != nil {
		r.destroyFailed(h, err)
		return
	}
	if immediate && r.finishing.CompareAndSwap(false, true) {
		r.finish(true)
	}
}

// onNativeTeardownComplete is handed to the runtime as the completion
// callback. It runs on a runtime thread and must not block.
func (r *Resource) onNativeTeardownComplete() {
	r.log.Debug("native teardown complete")
	if r.State() != StateNativeTeardownPending || !r.finishing.CompareAndSwap(false, true) {
		r.violation("duplicate_completion", "native teardown completion for a resource not awaiting it")
		return
	}
	r.finish(true)
}

// destroyFailed keeps the managed side moving: the handle is already null,
// the future still resolves, and dependencies are deliberately kept because
// the leaked native object may still be using them.
func (r *Resource) destroyFailed(h uintptr, err error) {
	nativeDestroyFailures.WithLabelValues(r.class).Inc()
	r.log.Error("native destroy failed; native object and its dependencies are leaked",
		zap.Uintptr("handle", h),
		zap.Error(fmt.Errorf("%w: %w", ErrNativeDestroy, err)))
	if r.finishing.CompareAndSwap(false, true) {
		r.finish(false)
	}
}

func (r *Resource) finish(releaseDeps bool) {
	if releaseDeps {
		r.releaseReferences()
	}
	r.state.Store(int32(StateDestroyed))

	untrack(r)
	resourcesLive.WithLabelValues(r.class).Dec()
	resourcesDestroyed.WithLabelValues(r.class).Inc()
	if t := r.requested.Load(); t != 0 {
		teardownDuration.WithLabelValues(r.class).Observe(time.Since(time.Unix(0, t)).Seconds())
	}

	if !r.shutdown.complete() {
		r.violation("future_resolved_twice", "shutdown future already resolved")
		return
	}
	r.log.Debug("destroyed")
}

func (r *Resource) releaseReferences() {
	r.mu.Lock()
	deps := r.deps
	r.deps = nil
	r.mu.Unlock()

	for _, d := range deps {
		d.Close()
	}
}

func (r *Resource) violation(kind, msg string) {
	protocolViolations.WithLabelValues(r.class, kind).Inc()
	r.log.Error(msg,
		zap.Error(ErrProtocolViolation),
		zap.String("violation", kind),
		zap.Stringer("state", r.State()))
}

// reportLeak runs when the public wrapper around r is collected.
func (r *Resource) reportLeak() {
	if r.State() != StateLive {
		return
	}
	resourcesLeaked.WithLabelValues(r.class).Inc()
	r.log.Warn("resource collected without Release; native object leaked",
		zap.Stringer("handle", r.handle),
		zap.Duration("age", time.Since(r.created)))
}

// watchForLeak logs a leak if w becomes unreachable while r is still live.
// It never releases anything: native ordering cannot be honoured from a
// cleanup.
func watchForLeak[T any](w *T, r *Resource) {
	runtime.AddCleanup(w, (*Resource).reportLeak, r)
}
