//go:build !ios && !android && (amd64 || arm64)

package crtgo

import (
	"go.uber.org/zap"
)

// DefaultHostResolverMaxEntries is the cache size used when
// HostResolverConfig.MaxEntries is zero.
const DefaultHostResolverMaxEntries = 8

// HostResolverConfig configures a host resolver.
type HostResolverConfig struct {
	// EventLoopGroup runs the resolver's background work. Required.
	EventLoopGroup *EventLoopGroup

	// MaxEntries bounds the resolver's host cache.
	MaxEntries int

	Logger *zap.Logger
}

// HostResolver wraps the default aws_host_resolver. It holds a reference on
// its event loop group until its own native teardown has finished, and is
// always created on the group's runtime.
type HostResolver struct {
	*Resource
	rt  Runtime
	elg *EventLoopGroup
}

type hostResolverNative struct{ rt Runtime }

func (hostResolverNative) ReleasesImmediately() bool { return false }

func (n hostResolverNative) DestroyNative(h uintptr) error {
	return n.rt.HostResolverRelease(h)
}

// NewHostResolver creates a host resolver from cfg.
func NewHostResolver(cfg HostResolverConfig) (*HostResolver, error) {
	if cfg.EventLoopGroup == nil {
		return nil, invalidArgument("host resolver requires an event loop group")
	}
	if cfg.MaxEntries < 0 {
		return nil, invalidArgument("host resolver max entries %d is negative", cfg.MaxEntries)
	}
	maxEntries := cfg.MaxEntries
	if maxEntries == 0 {
		maxEntries = DefaultHostResolverMaxEntries
	}
	rt := cfg.EventLoopGroup.rt

	r, err := newDependentResource("HostResolver", hostResolverNative{rt}, cfg.Logger,
		[]*Resource{cfg.EventLoopGroup.Resource},
		func(handles []uintptr, onTeardown func()) (uintptr, error) {
			return rt.HostResolverNew(handles[0], maxEntries, onTeardown)
		})
	if err != nil {
		return nil, err
	}

	hr := &HostResolver{Resource: r, rt: rt, elg: cfg.EventLoopGroup}
	watchForLeak(hr, r)
	return hr, nil
}

// EventLoopGroup returns the group the resolver runs on.
func (hr *HostResolver) EventLoopGroup() *EventLoopGroup {
	return hr.elg
}
