//go:build !ios && !android && (amd64 || arm64)

package crtgo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/obinnaokechukwu/crtgo/internal/native"
)

// requireCRT skips the test when aws-c-io cannot be loaded.
func requireCRT(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping native test in short mode")
	}
	if err := Init(); err != nil {
		t.Skipf("CRT libraries not available: %v", err)
	}
}

func TestDefaultRuntimeOverride(t *testing.T) {
	sim := newSim(t)
	SetRuntime(sim)
	t.Cleanup(func() { SetRuntime(nil) })

	rt, err := DefaultRuntime()
	require.NoError(t, err)
	assert.Same(t, sim, rt)
}

func TestDefaultRuntimeWithoutLibraries(t *testing.T) {
	SetRuntime(nil)
	if IsLoaded() {
		t.Skip("CRT libraries are loaded")
	}
	t.Setenv("CRTGO_LIBRARY_PATH", t.TempDir())

	rt, err := DefaultRuntime()
	if err != nil {
		assert.Nil(t, rt, "no half-initialised runtime on error")
		assert.True(t, errors.Is(err, ErrLibraryNotFound) || errors.Is(err, ErrNotLoaded), "got %v", err)
	}
}

func TestSetLogger(t *testing.T) {
	l, logs := newObservedLogger()
	SetLogger(l)
	t.Cleanup(func() { SetLogger(nil) })

	assert.Same(t, l, Logger())

	sim := newSim(t)
	so, err := NewSocketOptions(SocketOptionsConfig{Runtime: sim})
	require.NoError(t, err)
	so.Release()

	entries := logs.FilterField(zap.String("id", so.ID())).All()
	assert.NotEmpty(t, entries, "resources without their own logger use the package logger")

	SetLogger(nil)
	assert.NotNil(t, Logger())
}

func TestErrorCode(t *testing.T) {
	ne := &native.Error{Op: "aws_event_loop_group_new_default", Code: 34, Name: "AWS_ERROR_INVALID_ARGUMENT"}
	err := fmt.Errorf("wrapped: %w", &AllocationError{Class: "EventLoopGroup", Cause: ne})

	assert.Equal(t, int32(34), ErrorCode(err))
	assert.Zero(t, ErrorCode(errors.New("plain")))
	assert.ErrorIs(t, err, ErrAllocation)
	assert.Contains(t, err.Error(), "EventLoopGroup")

	nullHandle := &AllocationError{Class: "HostResolver"}
	assert.Contains(t, nullHandle.Error(), "null handle")
	assert.Nil(t, nullHandle.Unwrap())
}

func TestNativeChain(t *testing.T) {
	requireCRT(t)
	SetRuntime(nil)

	elg, err := NewEventLoopGroup(1)
	require.NoError(t, err)
	resolver, err := NewHostResolver(HostResolverConfig{EventLoopGroup: elg})
	require.NoError(t, err)
	bootstrap, err := NewClientBootstrap(ClientBootstrapConfig{EventLoopGroup: elg, HostResolver: resolver})
	require.NoError(t, err)
	so, err := NewSocketOptions(SocketOptionsConfig{})
	require.NoError(t, err)

	so.Release()
	assert.True(t, so.AwaitShutdownComplete().IsDone())

	bootstrap.Close()
	resolver.Close()
	elg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, WaitAll(ctx,
		bootstrap.AwaitShutdownComplete(),
		resolver.AwaitShutdownComplete(),
		elg.AwaitShutdownComplete()))
	require.NoError(t, WaitForNoResources(ctx))
}
