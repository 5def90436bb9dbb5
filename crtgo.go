//go:build !ios && !android && (amd64 || arm64)

// Package crtgo manages the lifecycle of AWS Common Runtime I/O objects
// (event loop groups, host resolvers, client bootstraps, socket options)
// from Go, without cgo.
//
// Native objects are never reclaimed by the garbage collector. Every
// resource must be released explicitly with Release or Close, and objects
// whose native teardown runs on native threads report completion through
// AwaitShutdownComplete:
//
//	elg, err := crtgo.NewEventLoopGroup(1)
//	if err != nil {
//	    return err
//	}
//	defer func() {
//	    elg.Release()
//	    _ = elg.AwaitShutdownComplete().Wait(ctx)
//	}()
package crtgo

import (
	"sync"

	"github.com/obinnaokechukwu/crtgo/internal/bindings"
	"github.com/obinnaokechukwu/crtgo/internal/native"
)

// Runtime is the native layer that creates and destroys resources. The
// default is the aws-c-io library loaded by Init.
type Runtime = native.Runtime

// Re-export socket option enums for convenience
type (
	// SocketType selects stream or datagram sockets.
	SocketType = native.SocketType

	// SocketDomain selects the address family.
	SocketDomain = native.SocketDomain
)

const (
	SocketStream = native.SocketStream
	SocketDgram  = native.SocketDgram

	SocketIPv4  = native.SocketIPv4
	SocketIPv6  = native.SocketIPv6
	SocketLocal = native.SocketLocal
	SocketVsock = native.SocketVsock
)

var (
	runtimeMu      sync.RWMutex
	defaultRuntime Runtime
)

// Init loads the CRT libraries. It is called on first use of the default
// runtime, but can be called explicitly to check for errors.
// It is safe to call multiple times.
func Init() error {
	return bindings.Load()
}

// IsLoaded returns true if the CRT libraries have been successfully loaded.
func IsLoaded() bool {
	return bindings.IsLoaded()
}

// LibraryPath returns the file aws-c-io was loaded from, when known.
func LibraryPath() string {
	return bindings.LibraryPath()
}

// SetRuntime replaces the runtime used by configs that leave Runtime nil.
// Pass nil to go back to the native libraries.
func SetRuntime(rt Runtime) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	defaultRuntime = rt
}

// DefaultRuntime returns the runtime set with SetRuntime, or the native
// libraries, loading them if needed.
func DefaultRuntime() (Runtime, error) {
	runtimeMu.RLock()
	rt := defaultRuntime
	runtimeMu.RUnlock()
	if rt != nil {
		return rt, nil
	}
	nrt, err := bindings.NewRuntime()
	if err != nil {
		return nil, err
	}
	return nrt, nil
}

func runtimeOr(rt Runtime) (Runtime, error) {
	if rt != nil {
		return rt, nil
	}
	return DefaultRuntime()
}
