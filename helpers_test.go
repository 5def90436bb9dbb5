//go:build !ios && !android && (amd64 || arm64)

package crtgo

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/obinnaokechukwu/crtgo/internal/simruntime"
)

// newObservedLogger returns a logger whose entries can be inspected.
func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

// newSim returns a simulated runtime and makes sure its goroutines are done
// before the test ends.
func newSim(t *testing.T) *simruntime.Runtime {
	t.Helper()
	sim := simruntime.New()
	t.Cleanup(func() {
		sim.CompletePending()
		sim.Wait()
	})
	return sim
}

// waitDone fails the test if f does not resolve within a second.
func waitDone(t *testing.T, f *Future) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.Wait(ctx), "shutdown future did not resolve")
}

// fakeNative is a Native whose destroy calls are counted.
type fakeNative struct {
	immediate bool
	err       error
	destroys  atomic.Int32
	onDestroy func() // runs inside DestroyNative when set
}

func (f *fakeNative) ReleasesImmediately() bool { return f.immediate }

func (f *fakeNative) DestroyNative(uintptr) error {
	f.destroys.Add(1)
	if f.onDestroy != nil {
		f.onDestroy()
	}
	return f.err
}

// newFakeResource builds a Resource over fakeNative and returns the
// completion callback it handed to the "runtime".
func newFakeResource(t *testing.T, n *fakeNative, l *zap.Logger) (*Resource, func()) {
	t.Helper()
	var teardown func()
	r, err := NewResource("Fake", n, l, func(onTeardown func()) (uintptr, error) {
		teardown = onTeardown
		return 0x42, nil
	})
	require.NoError(t, err)
	return r, teardown
}
