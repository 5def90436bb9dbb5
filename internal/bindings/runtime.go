//go:build !ios && !android && (amd64 || arm64)

package bindings

import (
	"sync"
	"time"
	"unsafe"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"

	"github.com/obinnaokechukwu/crtgo/internal/handles"
	"github.com/obinnaokechukwu/crtgo/internal/native"
)

// Struct sizes and field offsets for the aws-c-io 0.14 ABI on 64-bit
// platforms. Option structs are built in native memory so the C side never
// sees a Go pointer.
const (
	// struct aws_shutdown_callback_options
	shutdownOptionsSize   = 16
	shutdownOptionsFn     = 0
	shutdownOptionsUserDa = 8

	// struct aws_host_resolver_default_options
	resolverOptionsSize       = 32
	resolverOptionsMaxEntries = 0
	resolverOptionsELG        = 8
	resolverOptionsShutdown   = 16

	// struct aws_client_bootstrap_options
	bootstrapOptionsSize       = 40
	bootstrapOptionsELG        = 0
	bootstrapOptionsResolver   = 8
	bootstrapOptionsOnShutdown = 24
	bootstrapOptionsUserData   = 32

	// struct aws_socket_options, padded; later releases append fields.
	socketOptionsSize              = 64
	socketOptionsType              = 0
	socketOptionsDomain            = 4
	socketOptionsConnectTimeoutMs  = 8
	socketOptionsKeepAliveInterval = 12
	socketOptionsKeepAliveTimeout  = 14
	socketOptionsKeepAliveProbes   = 16
	socketOptionsKeepAlive         = 18
)

var (
	shutdownOnce  sync.Once
	shutdownCBPtr uintptr
)

// initShutdownCallback creates the single C-callable trampoline shared by
// every shutdown notification. purego callbacks are a finite resource, so
// the trampoline is created once and dispatches by user_data.
func initShutdownCallback() {
	shutdownOnce.Do(func() {
		shutdownCBPtr = purego.NewCallback(func(_ purego.CDecl, userData unsafe.Pointer) {
			id := uintptr(userData)
			if !handles.Fire(id) {
				Logger().Error("crtgo: shutdown callback fired for unknown or completed user_data",
					zap.Uintptr("user_data", id))
			}
		})
	})
}

// Runtime is the purego-backed native.Runtime.
type Runtime struct{}

var _ native.Runtime = Runtime{}

// NewRuntime loads the libraries if needed and returns the native runtime.
func NewRuntime() (Runtime, error) {
	if err := Load(); err != nil {
		return Runtime{}, err
	}
	return Runtime{}, nil
}

// EventLoopGroupNew calls aws_event_loop_group_new_default.
func (Runtime) EventLoopGroupNew(threads uint16, onShutdown func()) (uintptr, error) {
	if !loaded {
		return 0, ErrNotLoaded
	}
	initShutdownCallback()

	id := handles.Register(onShutdown)
	opts := calloc(shutdownOptionsSize)
	if opts == 0 {
		handles.Unregister(id)
		return 0, lastError("aws_mem_calloc")
	}
	defer free(opts)
	putUintptr(opts, shutdownOptionsFn, shutdownCBPtr)
	putUintptr(opts, shutdownOptionsUserDa, id)

	elg := awsEventLoopGroupNewDefault(allocator, threads, opts)
	if elg == 0 {
		handles.Unregister(id)
		return 0, lastError("aws_event_loop_group_new_default")
	}
	return elg, nil
}

// EventLoopGroupRelease calls aws_event_loop_group_release. The group's
// threads are joined on a native cleanup thread, which then fires the
// shutdown callback.
func (Runtime) EventLoopGroupRelease(elg uintptr) error {
	if !loaded {
		return ErrNotLoaded
	}
	awsEventLoopGroupRelease(elg)
	return nil
}

// HostResolverNew calls aws_host_resolver_new_default.
func (Runtime) HostResolverNew(elg uintptr, maxEntries int, onShutdown func()) (uintptr, error) {
	if !loaded {
		return 0, ErrNotLoaded
	}
	initShutdownCallback()

	id := handles.Register(onShutdown)
	shutdown := calloc(shutdownOptionsSize)
	opts := calloc(resolverOptionsSize)
	defer free(shutdown)
	defer free(opts)
	if shutdown == 0 || opts == 0 {
		handles.Unregister(id)
		return 0, lastError("aws_mem_calloc")
	}
	putUintptr(shutdown, shutdownOptionsFn, shutdownCBPtr)
	putUintptr(shutdown, shutdownOptionsUserDa, id)
	putUintptr(opts, resolverOptionsMaxEntries, uintptr(maxEntries))
	putUintptr(opts, resolverOptionsELG, elg)
	putUintptr(opts, resolverOptionsShutdown, shutdown)

	resolver := awsHostResolverNewDefault(allocator, opts)
	if resolver == 0 {
		handles.Unregister(id)
		return 0, lastError("aws_host_resolver_new_default")
	}
	return resolver, nil
}

// HostResolverRelease calls aws_host_resolver_release.
func (Runtime) HostResolverRelease(resolver uintptr) error {
	if !loaded {
		return ErrNotLoaded
	}
	awsHostResolverRelease(resolver)
	return nil
}

// ClientBootstrapNew calls aws_client_bootstrap_new.
func (Runtime) ClientBootstrapNew(elg, resolver uintptr, onShutdown func()) (uintptr, error) {
	if !loaded {
		return 0, ErrNotLoaded
	}
	initShutdownCallback()

	id := handles.Register(onShutdown)
	opts := calloc(bootstrapOptionsSize)
	if opts == 0 {
		handles.Unregister(id)
		return 0, lastError("aws_mem_calloc")
	}
	defer free(opts)
	putUintptr(opts, bootstrapOptionsELG, elg)
	putUintptr(opts, bootstrapOptionsResolver, resolver)
	putUintptr(opts, bootstrapOptionsOnShutdown, shutdownCBPtr)
	putUintptr(opts, bootstrapOptionsUserData, id)

	bootstrap := awsClientBootstrapNew(allocator, opts)
	if bootstrap == 0 {
		handles.Unregister(id)
		return 0, lastError("aws_client_bootstrap_new")
	}
	return bootstrap, nil
}

// ClientBootstrapRelease calls aws_client_bootstrap_release.
func (Runtime) ClientBootstrapRelease(bootstrap uintptr) error {
	if !loaded {
		return ErrNotLoaded
	}
	awsClientBootstrapRelease(bootstrap)
	return nil
}

// SocketOptionsNew allocates and fills a struct aws_socket_options.
func (Runtime) SocketOptionsNew(o native.SocketOptions) (uintptr, error) {
	if !loaded {
		return 0, ErrNotLoaded
	}
	p := calloc(socketOptionsSize)
	if p == 0 {
		return 0, lastError("aws_mem_calloc")
	}
	*(*int32)(unsafe.Pointer(p + socketOptionsType)) = int32(o.Type)
	*(*int32)(unsafe.Pointer(p + socketOptionsDomain)) = int32(o.Domain)
	*(*uint32)(unsafe.Pointer(p + socketOptionsConnectTimeoutMs)) = uint32(o.ConnectTimeout / time.Millisecond)
	*(*uint16)(unsafe.Pointer(p + socketOptionsKeepAliveInterval)) = uint16(o.KeepAliveInterval / time.Second)
	*(*uint16)(unsafe.Pointer(p + socketOptionsKeepAliveTimeout)) = uint16(o.KeepAliveTimeout / time.Second)
	*(*uint16)(unsafe.Pointer(p + socketOptionsKeepAliveProbes)) = o.KeepAliveMaxFailedProbes
	*(*bool)(unsafe.Pointer(p + socketOptionsKeepAlive)) = o.KeepAlive
	return p, nil
}

// SocketOptionsRelease frees memory obtained from SocketOptionsNew.
func (Runtime) SocketOptionsRelease(p uintptr) error {
	if !loaded {
		return ErrNotLoaded
	}
	free(p)
	return nil
}

func calloc(size uintptr) uintptr {
	return awsMemCalloc(allocator, 1, size)
}

func free(p uintptr) {
	if p != 0 {
		awsMemRelease(allocator, p)
	}
}

func putUintptr(base, off, v uintptr) {
	*(*uintptr)(unsafe.Pointer(base + off)) = v
}

// lastError decodes aws_last_error for the primitive that just failed.
func lastError(op string) error {
	code := awsLastError()
	return &native.Error{
		Op:      op,
		Code:    code,
		Name:    awsErrorName(code),
		Message: awsErrorStr(code),
	}
}
