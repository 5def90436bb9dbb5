//go:build !ios && !android && (amd64 || arm64)

package crtgo

import (
	"errors"
	"fmt"

	"github.com/obinnaokechukwu/crtgo/internal/bindings"
	"github.com/obinnaokechukwu/crtgo/internal/native"
)

// NativeError is an error reported by the native runtime, with its decoded
// error code.
type NativeError = native.Error

// Common errors
var (
	// ErrNotLoaded indicates the CRT libraries are not loaded.
	ErrNotLoaded = bindings.ErrNotLoaded

	// ErrLibraryNotFound indicates a CRT library could not be located.
	ErrLibraryNotFound = bindings.ErrLibraryNotFound

	// ErrAllocation indicates the native runtime could not create a resource.
	ErrAllocation = errors.New("crtgo: native allocation failed")

	// ErrReleased indicates the resource has already been released.
	ErrReleased = errors.New("crtgo: resource is released")

	// ErrInvalidArgument indicates a constructor argument was rejected
	// before reaching the native layer.
	ErrInvalidArgument = errors.New("crtgo: invalid argument")

	// ErrProtocolViolation marks a native callback or release sequence that
	// broke the lifecycle contract. It is logged, never returned.
	ErrProtocolViolation = errors.New("crtgo: lifecycle protocol violation")

	// ErrNativeDestroy marks a failed native destroy. It is logged, never
	// returned.
	ErrNativeDestroy = errors.New("crtgo: native destroy failed")
)

// AllocationError is returned by constructors when the native runtime fails
// to create the object. The resource never becomes live.
type AllocationError struct {
	Class string // resource class, e.g. "EventLoopGroup"
	Cause error  // error from the runtime; nil when it returned a null handle
}

func (e *AllocationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("crtgo: failed to allocate %s: %v", e.Class, e.Cause)
	}
	return fmt.Sprintf("crtgo: failed to allocate %s: native runtime returned a null handle", e.Class)
}

// Unwrap returns the runtime error.
func (e *AllocationError) Unwrap() error {
	return e.Cause
}

// Is reports ErrAllocation as a match so callers need not type-assert.
func (e *AllocationError) Is(target error) bool {
	return target == ErrAllocation
}

// ErrorCode returns the native error code carried by err, or 0 if err does
// not wrap a NativeError.
func ErrorCode(err error) int32 {
	var ne *NativeError
	if errors.As(err, &ne) {
		return ne.Code
	}
	return 0
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
