//go:build !ios && !android && (amd64 || arm64)

package crtgo

import (
	"fmt"
	"sync/atomic"
)

// Handle owns one opaque native identifier. The zero Handle is null.
//
// A Handle becomes null exactly once, through Invalidate, and the caller
// that wins Invalidate is the only one allowed to destroy the native object.
// Handles must not be copied after first use.
type Handle struct {
	id atomic.Uintptr
}

// AcquireHandle calls alloc and wraps the identifier it returns. An error
// from alloc, or a zero identifier, is reported as an *AllocationError for
// class and no handle is produced.
func AcquireHandle(class string, alloc func() (uintptr, error)) (*Handle, error) {
	id, err := alloc()
	if err != nil {
		return nil, &AllocationError{Class: class, Cause: err}
	}
	if id == 0 {
		return nil, &AllocationError{Class: class}
	}
	h := &Handle{}
	h.id.Store(id)
	return h, nil
}

// IsNull reports whether the handle has been invalidated.
func (h *Handle) IsNull() bool {
	return h.id.Load() == 0
}

// Value returns the native identifier, or 0 once invalidated.
func (h *Handle) Value() uintptr {
	return h.id.Load()
}

// Invalidate swaps the identifier for the null sentinel. It returns the
// previous identifier and true for the one call that observed it non-null;
// every other call returns (0, false).
func (h *Handle) Invalidate() (uintptr, bool) {
	id := h.id.Swap(0)
	return id, id != 0
}

func (h *Handle) String() string {
	return fmt.Sprintf("0x%x", h.id.Load())
}
