//go:build !ios && !android && (amd64 || arm64)

// Package platform knows how the AWS Common Runtime shared libraries are
// named and where they are usually installed on each operating system.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"unsafe"
)

// Is64Bit indicates whether the platform is 64-bit.
// Native identifiers are carried as uintptr and purego requires 64-bit.
const Is64Bit = unsafe.Sizeof(uintptr(0)) == 8

// LibraryPathEnv names the environment variable holding extra directories
// to search before the platform defaults.
const LibraryPathEnv = "CRTGO_LIBRARY_PATH"

// LibraryExtension is the file extension for shared libraries on this platform.
var LibraryExtension string

// LibraryPrefix is the prefix for shared library names on this platform.
var LibraryPrefix string

func init() {
	switch runtime.GOOS {
	case "darwin":
		LibraryExtension = ".dylib"
		LibraryPrefix = "lib"
	case "windows":
		LibraryExtension = ".dll"
		LibraryPrefix = ""
	default: // linux, freebsd, etc.
		LibraryExtension = ".so"
		LibraryPrefix = "lib"
	}
}

// FormatLibraryName returns the platform-specific library filename for a
// CRT library built with the given SOVERSION. An empty soversion yields the
// unversioned development name. Windows DLLs are never versioned.
//
// Examples:
//   - Linux:   FormatLibraryName("aws-c-io", "1.0.0") -> "libaws-c-io.so.1.0.0"
//   - macOS:   FormatLibraryName("aws-c-io", "1.0.0") -> "libaws-c-io.1.0.0.dylib"
//   - Windows: FormatLibraryName("aws-c-io", "1.0.0") -> "aws-c-io.dll"
func FormatLibraryName(name, soversion string) string {
	switch runtime.GOOS {
	case "darwin":
		if soversion != "" {
			return LibraryPrefix + name + "." + soversion + LibraryExtension
		}
		return LibraryPrefix + name + LibraryExtension
	case "windows":
		return LibraryPrefix + name + LibraryExtension
	default: // linux, freebsd
		if soversion != "" {
			return LibraryPrefix + name + LibraryExtension + "." + soversion
		}
		return LibraryPrefix + name + LibraryExtension
	}
}

// SearchPaths returns the directories to probe for CRT libraries, most
// specific first: CRTGO_LIBRARY_PATH, the loader's own path variable, then
// well-known install prefixes.
func SearchPaths() []string {
	var paths []string

	if p := os.Getenv(LibraryPathEnv); p != "" {
		paths = append(paths, filepath.SplitList(p)...)
	}

	switch runtime.GOOS {
	case "linux", "freebsd":
		if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
			paths = append(paths, filepath.SplitList(ldPath)...)
		}
		paths = append(paths,
			"/usr/local/lib",
			"/usr/local/lib64",
			"/usr/lib/x86_64-linux-gnu",
			"/usr/lib/aarch64-linux-gnu",
			"/usr/lib64",
			"/usr/lib",
		)

	case "darwin":
		if dyldPath := os.Getenv("DYLD_LIBRARY_PATH"); dyldPath != "" {
			paths = append(paths, filepath.SplitList(dyldPath)...)
		}
		paths = append(paths,
			"/opt/homebrew/lib", // Apple Silicon
			"/usr/local/lib",    // Intel
		)

	case "windows":
		if exe, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Dir(exe))
		}
		if winPath := os.Getenv("PATH"); winPath != "" {
			paths = append(paths, filepath.SplitList(winPath)...)
		}
	}

	return paths
}
