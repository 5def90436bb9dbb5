//go:build !ios && !android && (amd64 || arm64)

package crtgo

import (
	"math"
	"runtime"

	"go.uber.org/zap"
)

// EventLoopGroupConfig configures an event loop group.
type EventLoopGroupConfig struct {
	// Threads is the number of event loops, each on its own native thread.
	// Zero means one per CPU.
	Threads int

	// Runtime overrides the default runtime.
	Runtime Runtime

	// Logger overrides the package logger for this group.
	Logger *zap.Logger
}

// EventLoopGroup wraps aws_event_loop_group: a set of native threads that
// run I/O for the resources built on top of it.
//
// Releasing a group stops its loops on a native cleanup thread; the group is
// only fully gone once AwaitShutdownComplete resolves. Release it after the
// resources that use it, or let them hold references and Close it.
type EventLoopGroup struct {
	*Resource
	rt      Runtime
	threads int
}

type eventLoopGroupNative struct{ rt Runtime }

func (eventLoopGroupNative) ReleasesImmediately() bool { return false }

func (n eventLoopGroupNative) DestroyNative(h uintptr) error {
	return n.rt.EventLoopGroupRelease(h)
}

// NewEventLoopGroup creates an event loop group with numThreads loops.
// Usually 1.
func NewEventLoopGroup(numThreads int) (*EventLoopGroup, error) {
	return NewEventLoopGroupWithConfig(EventLoopGroupConfig{Threads: numThreads})
}

// NewEventLoopGroupWithConfig creates an event loop group from cfg.
// It returns an *AllocationError if the native runtime cannot create it.
func NewEventLoopGroupWithConfig(cfg EventLoopGroupConfig) (*EventLoopGroup, error) {
	if cfg.Threads < 0 || cfg.Threads > math.MaxUint16 {
		return nil, invalidArgument("event loop group threads %d out of range [0, %d]", cfg.Threads, math.MaxUint16)
	}
	threads := cfg.Threads
	if threads == 0 {
		threads = min(runtime.NumCPU(), math.MaxUint16)
	}

	rt, err := runtimeOr(cfg.Runtime)
	if err != nil {
		return nil, err
	}

	r, err := NewResource("EventLoopGroup", eventLoopGroupNative{rt}, cfg.Logger, func(onTeardown func()) (uintptr, error) {
		return rt.EventLoopGroupNew(uint16(threads), onTeardown)
	})
	if err != nil {
		return nil, err
	}

	g := &EventLoopGroup{Resource: r, rt: rt, threads: threads}
	watchForLeak(g, r)
	return g, nil
}

// Threads returns the number of event loops the group was created with.
func (g *EventLoopGroup) Threads() int {
	return g.threads
}
