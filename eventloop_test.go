//go:build !ios && !android && (amd64 || arm64)

package crtgo

import (
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obinnaokechukwu/crtgo/internal/simruntime"
)

func TestEventLoopGroupLifecycle(t *testing.T) {
	sim := newSim(t)
	sim.SetManualCompletion(true)
	liveBefore := testutil.ToFloat64(resourcesLive.WithLabelValues("EventLoopGroup"))

	elg, err := NewEventLoopGroupWithConfig(EventLoopGroupConfig{Threads: 1, Runtime: sim})
	require.NoError(t, err)
	assert.False(t, elg.IsNull())
	assert.Equal(t, 1, elg.Threads())
	assert.False(t, elg.ReleasesImmediately())
	assert.Equal(t, liveBefore+1, testutil.ToFloat64(resourcesLive.WithLabelValues("EventLoopGroup")))

	h, err := elg.NativeHandle()
	require.NoError(t, err)

	elg.Release()

	assert.True(t, elg.IsNull())
	assert.Equal(t, 1, sim.DestroyCalls(h))
	assert.Equal(t, StateNativeTeardownPending, elg.State())
	assert.False(t, elg.AwaitShutdownComplete().IsDone())

	require.Eventually(t, func() bool { return sim.PendingCompletions() == 1 }, time.Second, time.Millisecond)
	sim.CompletePending()

	waitDone(t, elg.AwaitShutdownComplete())
	assert.Equal(t, StateDestroyed, elg.State())
	assert.Empty(t, elg.Dependencies())
	assert.Equal(t, liveBefore, testutil.ToFloat64(resourcesLive.WithLabelValues("EventLoopGroup")))
}

func TestEventLoopGroupDefaultThreads(t *testing.T) {
	sim := newSim(t)

	elg, err := NewEventLoopGroupWithConfig(EventLoopGroupConfig{Runtime: sim})
	require.NoError(t, err)
	defer elg.Release()

	assert.Equal(t, runtime.NumCPU(), elg.Threads())
}

func TestEventLoopGroupInvalidThreads(t *testing.T) {
	sim := newSim(t)

	for _, n := range []int{-1, 1 << 16} {
		elg, err := NewEventLoopGroupWithConfig(EventLoopGroupConfig{Threads: n, Runtime: sim})
		assert.Nil(t, elg)
		assert.ErrorIs(t, err, ErrInvalidArgument, "threads=%d", n)
	}
	assert.Zero(t, sim.Live())
}

func TestEventLoopGroupAllocationFailure(t *testing.T) {
	sim := newSim(t)
	sim.FailAllocations(simruntime.ErrSimulatedOOM)
	live := len(LiveResources())

	elg, err := NewEventLoopGroupWithConfig(EventLoopGroupConfig{Threads: 1, Runtime: sim})

	assert.Nil(t, elg)
	require.ErrorIs(t, err, ErrAllocation)

	var ne *NativeError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "AWS_ERROR_OOM", ne.Name)
	assert.Equal(t, int32(1), ErrorCode(err))

	assert.Zero(t, sim.Live())
	assert.Len(t, LiveResources(), live)
	for _, e := range sim.Events() {
		assert.NotEqual(t, simruntime.EventDestroyed, e.Type, "no destroy may follow a failed allocation")
	}
}

func TestEventLoopGroupConcurrentRelease(t *testing.T) {
	sim := newSim(t)

	elg, err := NewEventLoopGroupWithConfig(EventLoopGroupConfig{Threads: 1, Runtime: sim})
	require.NoError(t, err)
	h, err := elg.NativeHandle()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			elg.Release()
		}()
	}
	wg.Wait()

	waitDone(t, elg.AwaitShutdownComplete())
	assert.Equal(t, 1, sim.DestroyCalls(h))
	assert.Empty(t, sim.Violations())
}

func TestEventLoopGroupDuplicateCallback(t *testing.T) {
	sim := newSim(t)
	sim.SetDuplicateCallbacks(true)
	l, logs := newObservedLogger()

	elg, err := NewEventLoopGroupWithConfig(EventLoopGroupConfig{Threads: 1, Runtime: sim, Logger: l})
	require.NoError(t, err)

	elg.Release()
	sim.Wait()

	waitDone(t, elg.AwaitShutdownComplete())
	assert.Equal(t, StateDestroyed, elg.State())
	assert.Equal(t, 1, logs.FilterMessage("native teardown completion for a resource not awaiting it").Len())
}

func TestEventLoopGroupDestroyFailure(t *testing.T) {
	sim := newSim(t)
	l, logs := newObservedLogger()

	elg, err := NewEventLoopGroupWithConfig(EventLoopGroupConfig{Threads: 1, Runtime: sim, Logger: l})
	require.NoError(t, err)

	sim.FailDestroys(errors.New("simulated destroy failure"))
	elg.Release()
	sim.FailDestroys(nil)

	assert.True(t, elg.IsNull())
	waitDone(t, elg.AwaitShutdownComplete())
	assert.Equal(t, 1, logs.FilterMessage("native destroy failed; native object and its dependencies are leaked").Len())
	assert.Equal(t, 1, sim.Live(), "the native object is leaked, not retried")
}

func TestEventLoopGroupCloseReleases(t *testing.T) {
	sim := newSim(t)

	elg, err := NewEventLoopGroupWithConfig(EventLoopGroupConfig{Threads: 2, Runtime: sim})
	require.NoError(t, err)

	require.NoError(t, elg.Close())

	assert.True(t, elg.IsNull())
	waitDone(t, elg.AwaitShutdownComplete())
}

func TestEventLoopGroupUsesDefaultRuntime(t *testing.T) {
	sim := newSim(t)
	SetRuntime(sim)
	t.Cleanup(func() { SetRuntime(nil) })

	elg, err := NewEventLoopGroup(1)
	require.NoError(t, err)

	assert.Equal(t, 1, sim.Live())
	elg.Release()
	waitDone(t, elg.AwaitShutdownComplete())
	assert.Zero(t, sim.Live())
}

func TestEventLoopGroupLeakIsLogged(t *testing.T) {
	sim := newSim(t)
	l, logs := newObservedLogger()
	leakedBefore := testutil.ToFloat64(resourcesLeaked.WithLabelValues("EventLoopGroup"))

	r := func() *Resource {
		elg, err := NewEventLoopGroupWithConfig(EventLoopGroupConfig{Threads: 1, Runtime: sim, Logger: l})
		require.NoError(t, err)
		return elg.Resource
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		return logs.FilterMessage("resource collected without Release; native object leaked").Len() == 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.False(t, r.IsNull(), "the cleanup must not release")
	assert.Equal(t, leakedBefore+1, testutil.ToFloat64(resourcesLeaked.WithLabelValues("EventLoopGroup")))

	r.Release()
	waitDone(t, r.AwaitShutdownComplete())
}
