//go:build !ios && !android && (amd64 || arm64)

package crtgo

import (
	"go.uber.org/zap"
)

// ClientBootstrapConfig configures a client bootstrap.
type ClientBootstrapConfig struct {
	EventLoopGroup *EventLoopGroup // required
	HostResolver   *HostResolver   // required; same runtime as the group

	Logger *zap.Logger
}

// ClientBootstrap wraps aws_client_bootstrap, the factory that protocol
// clients use to open connections. It keeps its event loop group and host
// resolver referenced until the native bootstrap reports shutdown complete.
type ClientBootstrap struct {
	*Resource
	elg      *EventLoopGroup
	resolver *HostResolver
}

type clientBootstrapNative struct{ rt Runtime }

func (clientBootstrapNative) ReleasesImmediately() bool { return false }

func (n clientBootstrapNative) DestroyNative(h uintptr) error {
	return n.rt.ClientBootstrapRelease(h)
}

// NewClientBootstrap creates a client bootstrap from cfg.
func NewClientBootstrap(cfg ClientBootstrapConfig) (*ClientBootstrap, error) {
	if cfg.EventLoopGroup == nil {
		return nil, invalidArgument("client bootstrap requires an event loop group")
	}
	if cfg.HostResolver == nil {
		return nil, invalidArgument("client bootstrap requires a host resolver")
	}
	rt := cfg.EventLoopGroup.rt
	if cfg.HostResolver.rt != rt {
		return nil, invalidArgument("client bootstrap host resolver belongs to a different runtime than its event loop group")
	}

	r, err := newDependentResource("ClientBootstrap", clientBootstrapNative{rt}, cfg.Logger,
		[]*Resource{cfg.EventLoopGroup.Resource, cfg.HostResolver.Resource},
		func(handles []uintptr, onTeardown func()) (uintptr, error) {
			return rt.ClientBootstrapNew(handles[0], handles[1], onTeardown)
		})
	if err != nil {
		return nil, err
	}

	b := &ClientBootstrap{Resource: r, elg: cfg.EventLoopGroup, resolver: cfg.HostResolver}
	watchForLeak(b, r)
	return b, nil
}

// EventLoopGroup returns the bootstrap's event loop group.
func (b *ClientBootstrap) EventLoopGroup() *EventLoopGroup {
	return b.elg
}

// HostResolver returns the bootstrap's host resolver.
func (b *ClientBootstrap) HostResolver() *HostResolver {
	return b.resolver
}
