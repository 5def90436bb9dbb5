//go:build !ios && !android && (amd64 || arm64)

package crtgo

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obinnaokechukwu/crtgo/internal/simruntime"
)

func TestSocketOptionsReleaseIsImmediate(t *testing.T) {
	sim := newSim(t)

	so, err := NewSocketOptions(SocketOptionsConfig{Runtime: sim})
	require.NoError(t, err)
	assert.True(t, so.ReleasesImmediately())
	assert.Equal(t, DefaultConnectTimeout, so.ConnectTimeout())
	assert.Equal(t, SocketStream, so.Type())
	assert.Equal(t, SocketIPv4, so.Domain())

	h, err := so.NativeHandle()
	require.NoError(t, err)

	so.Release()

	assert.True(t, so.AwaitShutdownComplete().IsDone(), "future resolves before Release returns")
	assert.Equal(t, StateDestroyed, so.State())
	assert.Equal(t, 1, sim.DestroyCalls(h))
	assert.Zero(t, sim.Live())

	so.Release()
	assert.Equal(t, 1, sim.DestroyCalls(h))
}

func TestSocketOptionsConfig(t *testing.T) {
	sim := newSim(t)

	so, err := NewSocketOptions(SocketOptionsConfig{
		Type:                     SocketDgram,
		Domain:                   SocketIPv6,
		ConnectTimeout:           250 * time.Millisecond,
		KeepAlive:                true,
		KeepAliveInterval:        10 * time.Second,
		KeepAliveTimeout:         30 * time.Second,
		KeepAliveMaxFailedProbes: 3,
		Runtime:                  sim,
	})
	require.NoError(t, err)
	defer so.Release()

	assert.Equal(t, SocketDgram, so.Type())
	assert.Equal(t, SocketIPv6, so.Domain())
	assert.Equal(t, 250*time.Millisecond, so.ConnectTimeout())
}

func TestSocketOptionsValidation(t *testing.T) {
	sim := newSim(t)

	tests := []struct {
		name string
		cfg  SocketOptionsConfig
	}{
		{"unknown type", SocketOptionsConfig{Type: SocketType(7)}},
		{"unknown domain", SocketOptionsConfig{Domain: SocketDomain(9)}},
		{"negative timeout", SocketOptionsConfig{ConnectTimeout: -time.Second}},
		{"timeout overflow", SocketOptionsConfig{ConnectTimeout: 1 << 62}},
		{"keep-alive interval overflow", SocketOptionsConfig{KeepAliveInterval: 100000 * time.Second}},
		{"negative keep-alive timeout", SocketOptionsConfig{KeepAliveTimeout: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Runtime = sim
			so, err := NewSocketOptions(tt.cfg)
			assert.Nil(t, so)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
	assert.Empty(t, sim.Events(), "nothing reaches the runtime when validation fails")
}

func TestSocketOptionsAllocationFailure(t *testing.T) {
	sim := newSim(t)
	sim.FailAllocations(simruntime.ErrSimulatedOOM)

	so, err := NewSocketOptions(SocketOptionsConfig{Runtime: sim})

	assert.Nil(t, so)
	var ae *AllocationError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "SocketOptions", ae.Class)
	assert.ErrorIs(t, err, simruntime.ErrSimulatedOOM)
}
