//go:build !ios && !android && (amd64 || arm64)

package crtgo

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ResourceInfo describes a live resource.
type ResourceInfo struct {
	ID    string
	Class string
	State State
	Refs  int32
	Age   time.Duration
}

var tracker = struct {
	mu      sync.Mutex
	live    map[*Resource]struct{}
	changed chan struct{} // closed and replaced whenever live shrinks
}{
	live:    make(map[*Resource]struct{}),
	changed: make(chan struct{}),
}

func track(r *Resource) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	tracker.live[r] = struct{}{}
}

func untrack(r *Resource) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	delete(tracker.live, r)
	close(tracker.changed)
	tracker.changed = make(chan struct{})
}

// LiveResources returns every resource that has been acquired and has not
// reached StateDestroyed, oldest first.
func LiveResources() []ResourceInfo {
	tracker.mu.Lock()
	out := make([]ResourceInfo, 0, len(tracker.live))
	now := time.Now()
	for r := range tracker.live {
		out = append(out, ResourceInfo{
			ID:    r.ID(),
			Class: r.class,
			State: r.State(),
			Refs:  r.RefCount(),
			Age:   now.Sub(r.created),
		})
	}
	tracker.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Age != out[j].Age {
			return out[i].Age > out[j].Age
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// WaitForNoResources blocks until every tracked resource is destroyed or
// ctx is done. Call it before process exit, after releasing everything, to
// make sure no native teardown is still in flight.
func WaitForNoResources(ctx context.Context) error {
	for {
		tracker.mu.Lock()
		n := len(tracker.live)
		ch := tracker.changed
		tracker.mu.Unlock()

		if n == 0 {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			LogLiveResources()
			return ctx.Err()
		}
	}
}

// LogLiveResources writes one log line per live resource.
func LogLiveResources() {
	for _, info := range LiveResources() {
		Logger().Info("live resource",
			zap.String("resource", info.Class),
			zap.String("id", info.ID),
			zap.Stringer("state", info.State),
			zap.Int32("refs", info.Refs),
			zap.Duration("age", info.Age))
	}
}
