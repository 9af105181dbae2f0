// Package process provides the sidecar execution environment and launcher.
package process

import (
	"os"
	"strconv"
	"strings"

	"github.com/Rave28/openchamber/internal/platform"
)

// NoProxyHosts is injected as NO_PROXY/no_proxy so the sidecar never
// routes loopback traffic through an inherited HTTP proxy.
const NoProxyHosts = "localhost,127.0.0.1"

// SpawnEnvironment holds the argument list and environment variables for
// the sidecar process. Env entries are ordered and keys are unique; setting
// an existing key overwrites it in place.
type SpawnEnvironment struct {
	Args []string

	keys   []string
	values map[string]string
}

// NewSpawnEnvironment creates an empty environment with the given arguments.
func NewSpawnEnvironment(args ...string) *SpawnEnvironment {
	return &SpawnEnvironment{
		Args:   args,
		values: make(map[string]string),
	}
}

// Set adds or overwrites an environment variable, preserving first-set order.
func (e *SpawnEnvironment) Set(key, value string) {
	if _, ok := e.values[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.values[key] = value
}

// Get returns the value for key and whether it is present.
func (e *SpawnEnvironment) Get(key string) (string, bool) {
	v, ok := e.values[key]
	return v, ok
}

// Environ returns the variables as KEY=VALUE strings in insertion order.
func (e *SpawnEnvironment) Environ() []string {
	out := make([]string, 0, len(e.keys))
	for _, k := range e.keys {
		out = append(out, k+"="+e.values[k])
	}
	return out
}

// MergeEnviron overlays e's variables onto an inherited environment.
// Inherited entries keep their position; overridden keys take e's value;
// keys absent from inherited are appended in insertion order.
func MergeEnviron(inherited []string, e *SpawnEnvironment) []string {
	merged := make([]string, 0, len(inherited)+len(e.keys))
	seen := make(map[string]bool, len(e.keys))

	for _, entry := range inherited {
		key, _, ok := strings.Cut(entry, "=")
		if !ok {
			merged = append(merged, entry)
			continue
		}
		if v, override := e.values[key]; override {
			merged = append(merged, key+"="+v)
			seen[key] = true
			continue
		}
		merged = append(merged, entry)
	}

	for _, k := range e.keys {
		if !seen[k] {
			merged = append(merged, k+"="+e.values[k])
		}
	}

	return merged
}

// BuildEnvironment constructs the sidecar's arguments and environment for
// the allocated port and resolved asset directory. Pure value construction
// apart from reading the current home directory and PATH.
func BuildEnvironment(port int, distDir string) *SpawnEnvironment {
	home, _ := os.UserHomeDir()
	return buildEnvironment(port, distDir, home, os.Getenv("PATH"))
}

func buildEnvironment(port int, distDir, home, inheritedPath string) *SpawnEnvironment {
	env := NewSpawnEnvironment("--port", strconv.Itoa(port))

	env.Set("OPENCHAMBER_HOST", "127.0.0.1")
	env.Set("OPENCHAMBER_DIST_DIR", distDir)
	env.Set("PATH", platform.SearchPath(home, inheritedPath))
	env.Set("NO_PROXY", NoProxyHosts)
	env.Set("no_proxy", NoProxyHosts)

	return env
}

// FormatCommand renders the invocation for diagnostics: injected variables
// followed by the executable and its arguments.
func FormatCommand(executable string, env *SpawnEnvironment) string {
	parts := append(env.Environ(), executable)
	parts = append(parts, env.Args...)
	return strings.Join(parts, " ")
}
