// Package preflight provides startup validation checks.
package preflight

import (
	"fmt"
	"net"
	"os"

	"github.com/Rave28/openchamber/internal/assets"
	"github.com/Rave28/openchamber/internal/process"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name    string // Name of the check
	Passed  bool   // Whether the check passed
	Warning bool   // True if it's a warning (non-fatal)
	Message string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks.
func RunAll(executable, resourceRoot string) *Result {
	result := &Result{
		Checks: make([]Check, 0, 3),
		Passed: true,
	}

	for _, check := range []Check{
		checkExecutable(executable),
		checkWebAssets(resourceRoot),
		checkLoopback(),
	} {
		result.Checks = append(result.Checks, check)
		if !check.Passed {
			result.Passed = false
		}
	}

	return result
}

// checkExecutable verifies the backend binary resolves on the augmented
// search path the sidecar will be spawned with.
func checkExecutable(executable string) Check {
	path, err := process.ResolveOnSearchPath(executable)
	if err != nil {
		return Check{
			Name:    "backend_executable",
			Passed:  false,
			Message: fmt.Sprintf("%q not found on search path: %v", executable, err),
		}
	}

	return Check{
		Name:    "backend_executable",
		Passed:  true,
		Message: fmt.Sprintf("found at %s", path),
	}
}

// checkWebAssets verifies the bundled web assets resolve under the
// resource root.
func checkWebAssets(resourceRoot string) Check {
	if resourceRoot == "" {
		if wd, err := os.Getwd(); err == nil {
			resourceRoot = wd
		}
	}

	dir, err := assets.Resolve(resourceRoot)
	if err != nil {
		return Check{
			Name:    "web_assets",
			Passed:  false,
			Message: fmt.Sprintf("no web assets under %s", resourceRoot),
		}
	}

	return Check{
		Name:    "web_assets",
		Passed:  true,
		Message: fmt.Sprintf("found at %s", dir),
	}
}

// checkLoopback verifies an ephemeral loopback port can be bound.
func checkLoopback() Check {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return Check{
			Name:    "loopback_bind",
			Passed:  false,
			Message: fmt.Sprintf("cannot bind 127.0.0.1: %v", err),
		}
	}
	ln.Close()

	return Check{
		Name:    "loopback_bind",
		Passed:  true,
		Message: "ephemeral port bindable",
	}
}

// PrintResults prints the preflight check results to stdout.
func PrintResults(result *Result) {
	fmt.Println("Preflight checks:")
	for _, check := range result.Checks {
		fmt.Println(check.String())
		if !check.Passed {
			fmt.Printf("    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Println()
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "backend_executable":
		return "install the backend binary or pass -executable with its path"
	case "web_assets":
		return "place web-dist/ next to the launcher or pass -resources"
	case "loopback_bind":
		return "check local firewall / sandbox policy for loopback access"
	default:
		return "see documentation"
	}
}
