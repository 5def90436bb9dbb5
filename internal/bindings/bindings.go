//go:build !ios && !android && (amd64 || arm64)

// Package bindings loads the AWS Common Runtime I/O libraries with purego
// and exposes them as a native.Runtime.
package bindings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/crtgo/internal/platform"
)

// ErrNotLoaded is returned when native functions are called before Load().
var ErrNotLoaded = errors.New("crtgo: CRT libraries not loaded; call crtgo.Init() first")

// ErrLibraryNotFound is returned when a required CRT library cannot be found.
var ErrLibraryNotFound = errors.New("crtgo: CRT library not found")

// soversions tried for every CRT library, newest first.
var soversions = []string{"1.0.0", "1", ""}

// Library handles
var (
	libAWSCCommon uintptr
	libAWSCIO     uintptr
	ioPath        string

	loaded   bool
	loadOnce sync.Once
	loadErr  error

	allocator uintptr
)

// aws-c-common
var (
	awsDefaultAllocator func() uintptr
	awsMemCalloc        func(alloc uintptr, num, size uintptr) uintptr
	awsMemRelease       func(alloc uintptr, ptr uintptr)
	awsLastError        func() int32
	awsErrorName        func(code int32) string
	awsErrorStr         func(code int32) string
)

// aws-c-io
var (
	awsIOLibraryInit            func(alloc uintptr)
	awsEventLoopGroupNewDefault func(alloc uintptr, maxThreads uint16, shutdownOptions uintptr) uintptr
	awsEventLoopGroupRelease    func(elg uintptr)
	awsHostResolverNewDefault   func(alloc uintptr, options uintptr) uintptr
	awsHostResolverRelease      func(resolver uintptr)
	awsClientBootstrapNew       func(alloc uintptr, options uintptr) uintptr
	awsClientBootstrapRelease   func(bootstrap uintptr)
)

// IsLoaded returns true if the CRT libraries have been successfully loaded.
func IsLoaded() bool {
	return loaded
}

// LibraryPath returns the path aws-c-io was loaded from, or "" if the
// dynamic loader resolved it by bare name or nothing is loaded.
func LibraryPath() string {
	return ioPath
}

// Load loads the CRT libraries and registers all function bindings.
// It is safe to call multiple times; subsequent calls are no-ops.
func Load() error {
	loadOnce.Do(func() {
		loadErr = doLoad()
		if loadErr == nil {
			loaded = true
		}
	})
	return loadErr
}

func doLoad() error {
	var err error

	// aws-c-common first; aws-c-io resolves its symbols against it.
	libAWSCCommon, _, err = loadLibrary("aws-c-common")
	if err != nil {
		return fmt.Errorf("loading aws-c-common: %w", err)
	}
	libAWSCIO, ioPath, err = loadLibrary("aws-c-io")
	if err != nil {
		return fmt.Errorf("loading aws-c-io: %w", err)
	}

	purego.RegisterLibFunc(&awsDefaultAllocator, libAWSCCommon, "aws_default_allocator")
	purego.RegisterLibFunc(&awsMemCalloc, libAWSCCommon, "aws_mem_calloc")
	purego.RegisterLibFunc(&awsMemRelease, libAWSCCommon, "aws_mem_release")
	purego.RegisterLibFunc(&awsLastError, libAWSCCommon, "aws_last_error")
	purego.RegisterLibFunc(&awsErrorName, libAWSCCommon, "aws_error_name")
	purego.RegisterLibFunc(&awsErrorStr, libAWSCCommon, "aws_error_str")

	purego.RegisterLibFunc(&awsIOLibraryInit, libAWSCIO, "aws_io_library_init")
	purego.RegisterLibFunc(&awsEventLoopGroupNewDefault, libAWSCIO, "aws_event_loop_group_new_default")
	purego.RegisterLibFunc(&awsEventLoopGroupRelease, libAWSCIO, "aws_event_loop_group_release")
	purego.RegisterLibFunc(&awsHostResolverNewDefault, libAWSCIO, "aws_host_resolver_new_default")
	purego.RegisterLibFunc(&awsHostResolverRelease, libAWSCIO, "aws_host_resolver_release")
	purego.RegisterLibFunc(&awsClientBootstrapNew, libAWSCIO, "aws_client_bootstrap_new")
	purego.RegisterLibFunc(&awsClientBootstrapRelease, libAWSCIO, "aws_client_bootstrap_release")

	allocator = awsDefaultAllocator()
	awsIOLibraryInit(allocator)
	return nil
}

// loadLibrary tries every search path with every soversion, then falls back
// to letting the dynamic loader find the library by name.
func loadLibrary(name string) (uintptr, string, error) {
	for _, dir := range platform.SearchPaths() {
		for _, ver := range soversions {
			fullPath := filepath.Join(dir, platform.FormatLibraryName(name, ver))
			if _, err := os.Stat(fullPath); err != nil {
				continue
			}
			if lib, err := tryOpen(fullPath); err == nil {
				return lib, fullPath, nil
			}
		}
	}

	for _, ver := range soversions {
		if lib, err := tryOpen(platform.FormatLibraryName(name, ver)); err == nil {
			return lib, "", nil
		}
	}

	return 0, "", fmt.Errorf("%w: %s", ErrLibraryNotFound, name)
}

// tryOpen opens a library with RTLD_NOW | RTLD_GLOBAL. The CRT libraries
// cross-reference each other's symbols, so they must be global.
func tryOpen(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

// FindLibrary searches for a CRT library and returns its full path.
// This is useful for diagnostics.
func FindLibrary(name string) (string, error) {
	for _, dir := range platform.SearchPaths() {
		for _, ver := range soversions {
			fullPath := filepath.Join(dir, platform.FormatLibraryName(name, ver))
			if _, err := os.Stat(fullPath); err == nil {
				return fullPath, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrLibraryNotFound, name)
}
