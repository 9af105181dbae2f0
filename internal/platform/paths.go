// Package platform provides OS-specific path defaults for the launcher.
//
// GUI-launched processes often inherit a minimal environment lacking the
// user's shell-configured PATH, so the sidecar is handed an augmented one:
// a fixed prefix of system binary directories, user-local binary
// directories under the home directory, and the inherited PATH last.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// SystemBinDirs returns the fixed prefix of common system binary
// directories for the current platform.
func SystemBinDirs() []string {
	return systemBinDirs(runtime.GOOS)
}

func systemBinDirs(goos string) []string {
	switch goos {
	case "darwin":
		// App-bundle launch env often lacks Homebrew/user bins.
		return []string{
			"/opt/homebrew/bin",
			"/usr/local/bin",
			"/usr/bin",
			"/bin",
			"/usr/sbin",
			"/sbin",
		}
	default:
		return []string{
			"/usr/local/bin",
			"/usr/bin",
			"/bin",
			"/usr/sbin",
			"/sbin",
		}
	}
}

// UserBinDirs returns binary directories derived from the home directory.
// Returns nil when home is empty.
func UserBinDirs(home string) []string {
	if home == "" {
		return nil
	}
	return []string{
		filepath.Join(home, ".local", "bin"),
		filepath.Join(home, ".bun", "bin"),
	}
}

// SearchPath assembles the augmented PATH value: system dirs, then user
// dirs for home, then the inherited path appended last so explicitly
// configured entries still resolve.
func SearchPath(home, inherited string) string {
	segments := SystemBinDirs()
	segments = append(segments, UserBinDirs(home)...)
	if inherited != "" {
		segments = append(segments, inherited)
	}
	return strings.Join(segments, string(os.PathListSeparator))
}
