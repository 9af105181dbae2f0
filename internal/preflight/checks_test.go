package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func makeResourceRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dist := filepath.Join(root, "web-dist")
	if err := os.MkdirAll(dist, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dist, "index.html"), []byte("<html></html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestCheckExecutable(t *testing.T) {
	script := writeExecutable(t, t.TempDir(), "backend")

	tests := []struct {
		name       string
		executable string
		wantPass   bool
	}{
		{"explicit path", script, true},
		{"missing binary", "openchamber-preflight-no-such-binary", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := checkExecutable(tt.executable)
			if check.Passed != tt.wantPass {
				t.Errorf("Passed = %v, want %v (%s)", check.Passed, tt.wantPass, check.Message)
			}
		})
	}
}

func TestCheckWebAssets(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		check := checkWebAssets(makeResourceRoot(t))
		if !check.Passed {
			t.Errorf("check failed: %s", check.Message)
		}
	})

	t.Run("missing", func(t *testing.T) {
		check := checkWebAssets(t.TempDir())
		if check.Passed {
			t.Error("check should fail without web-dist")
		}
	})
}

func TestCheckLoopback(t *testing.T) {
	check := checkLoopback()
	if !check.Passed {
		t.Errorf("loopback bind failed: %s", check.Message)
	}
}

func TestRunAll(t *testing.T) {
	script := writeExecutable(t, t.TempDir(), "backend")
	root := makeResourceRoot(t)

	result := RunAll(script, root)
	if !result.Passed {
		for _, c := range result.Checks {
			t.Log(c.String())
		}
		t.Fatal("RunAll() should pass with valid executable and assets")
	}
	if len(result.Checks) != 3 {
		t.Errorf("got %d checks, want 3", len(result.Checks))
	}
}

func TestRunAll_FailurePropagates(t *testing.T) {
	result := RunAll("openchamber-preflight-no-such-binary", t.TempDir())
	if result.Passed {
		t.Error("RunAll() should fail with missing executable and assets")
	}
}

func TestCheck_String(t *testing.T) {
	tests := []struct {
		check Check
		want  string
	}{
		{Check{Name: "a", Passed: true, Message: "ok"}, "✓"},
		{Check{Name: "b", Passed: false, Message: "bad"}, "✗"},
		{Check{Name: "c", Passed: true, Warning: true, Message: "hmm"}, "⚠"},
	}
	for _, tt := range tests {
		if got := tt.check.String(); !strings.Contains(got, tt.want) {
			t.Errorf("String() = %q, want marker %q", got, tt.want)
		}
	}
}
