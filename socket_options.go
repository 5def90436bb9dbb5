//go:build !ios && !android && (amd64 || arm64)

package crtgo

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/crtgo/internal/native"
)

// DefaultConnectTimeout is used when SocketOptionsConfig.ConnectTimeout is zero.
const DefaultConnectTimeout = 3 * time.Second

// SocketOptionsConfig configures a native socket options block.
type SocketOptionsConfig struct {
	Type   SocketType
	Domain SocketDomain

	ConnectTimeout time.Duration

	KeepAlive                bool
	KeepAliveInterval        time.Duration // whole seconds
	KeepAliveTimeout         time.Duration // whole seconds
	KeepAliveMaxFailedProbes uint16

	Runtime Runtime
	Logger  *zap.Logger
}

// SocketOptions owns a natively allocated struct aws_socket_options. Its
// native destroy is a synchronous free, so it releases immediately and its
// shutdown future is resolved by the time Release returns.
type SocketOptions struct {
	*Resource
	cfg native.SocketOptions
}

type socketOptionsNative struct{ rt Runtime }

func (socketOptionsNative) ReleasesImmediately() bool { return true }

func (n socketOptionsNative) DestroyNative(h uintptr) error {
	return n.rt.SocketOptionsRelease(h)
}

// NewSocketOptions allocates native socket options from cfg.
func NewSocketOptions(cfg SocketOptionsConfig) (*SocketOptions, error) {
	opts := native.SocketOptions{
		Type:                     cfg.Type,
		Domain:                   cfg.Domain,
		ConnectTimeout:           cfg.ConnectTimeout,
		KeepAlive:                cfg.KeepAlive,
		KeepAliveInterval:        cfg.KeepAliveInterval,
		KeepAliveTimeout:         cfg.KeepAliveTimeout,
		KeepAliveMaxFailedProbes: cfg.KeepAliveMaxFailedProbes,
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if err := validateSocketOptions(opts); err != nil {
		return nil, err
	}

	rt, err := runtimeOr(cfg.Runtime)
	if err != nil {
		return nil, err
	}

	r, err := NewResource("SocketOptions", socketOptionsNative{rt}, cfg.Logger, func(func()) (uintptr, error) {
		return rt.SocketOptionsNew(opts)
	})
	if err != nil {
		return nil, err
	}

	so := &SocketOptions{Resource: r, cfg: opts}
	watchForLeak(so, r)
	return so, nil
}

func validateSocketOptions(o native.SocketOptions) error {
	if o.Type != SocketStream && o.Type != SocketDgram {
		return invalidArgument("unknown socket type %d", o.Type)
	}
	if o.Domain < SocketIPv4 || o.Domain > SocketVsock {
		return invalidArgument("unknown socket domain %d", o.Domain)
	}
	if o.ConnectTimeout < 0 || o.ConnectTimeout/time.Millisecond > math.MaxUint32 {
		return invalidArgument("connect timeout %s out of range", o.ConnectTimeout)
	}
	for _, d := range []time.Duration{o.KeepAliveInterval, o.KeepAliveTimeout} {
		if d < 0 || d/time.Second > math.MaxUint16 {
			return invalidArgument("keep-alive duration %s out of range", d)
		}
	}
	return nil
}

// ConnectTimeout returns the configured connect timeout.
func (so *SocketOptions) ConnectTimeout() time.Duration {
	return so.cfg.ConnectTimeout
}

// Type returns the socket type.
func (so *SocketOptions) Type() SocketType {
	return so.cfg.Type
}

// Domain returns the socket domain.
func (so *SocketOptions) Domain() SocketDomain {
	return so.cfg.Domain
}
