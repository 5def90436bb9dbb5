// Package native defines the boundary between crtgo and the runtime that
// actually owns event loop groups, host resolvers and client bootstraps.
//
// Identifiers returned by a Runtime are opaque: the only thing crtgo does
// with them is compare against zero and hand them back.
package native

import "time"

// Runtime is the set of primitives crtgo needs from the native layer.
//
// Every *New method allocates synchronously and returns a non-zero
// identifier, or an error. Every *Release method initiates teardown; for
// types created with an onShutdown callback, completion is reported by
// calling onShutdown exactly once, on a thread the runtime chooses, after
// all asynchronous native work for that object has finished.
type Runtime interface {
	EventLoopGroupNew(threads uint16, onShutdown func()) (uintptr, error)
	EventLoopGroupRelease(elg uintptr) error

	HostResolverNew(elg uintptr, maxEntries int, onShutdown func()) (uintptr, error)
	HostResolverRelease(resolver uintptr) error

	ClientBootstrapNew(elg, resolver uintptr, onShutdown func()) (uintptr, error)
	ClientBootstrapRelease(bootstrap uintptr) error

	SocketOptionsNew(opts SocketOptions) (uintptr, error)
	SocketOptionsRelease(opts uintptr) error
}

// SocketType mirrors enum aws_socket_type.
type SocketType int32

const (
	SocketStream SocketType = iota
	SocketDgram
)

// SocketDomain mirrors enum aws_socket_domain.
type SocketDomain int32

const (
	SocketIPv4 SocketDomain = iota
	SocketIPv6
	SocketLocal
	SocketVsock
)

// SocketOptions is the Go view of struct aws_socket_options.
type SocketOptions struct {
	Type                     SocketType
	Domain                   SocketDomain
	ConnectTimeout           time.Duration
	KeepAliveInterval        time.Duration
	KeepAliveTimeout         time.Duration
	KeepAliveMaxFailedProbes uint16
	KeepAlive                bool
}
