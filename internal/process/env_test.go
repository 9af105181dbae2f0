package process

import (
	"strings"
	"testing"

	"github.com/Rave28/openchamber/internal/platform"
)

func TestSpawnEnvironment_SetOverwrites(t *testing.T) {
	env := NewSpawnEnvironment()
	env.Set("KEY", "first")
	env.Set("OTHER", "x")
	env.Set("KEY", "second")

	got := env.Environ()
	want := []string{"KEY=second", "OTHER=x"}
	if len(got) != len(want) {
		t.Fatalf("Environ() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Environ()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMergeEnviron(t *testing.T) {
	env := NewSpawnEnvironment()
	env.Set("PATH", "/override")
	env.Set("NEW_KEY", "added")

	inherited := []string{"HOME=/home/alex", "PATH=/usr/bin", "TERM=xterm"}
	merged := MergeEnviron(inherited, env)

	byKey := make(map[string]string)
	for _, entry := range merged {
		key, value, _ := strings.Cut(entry, "=")
		byKey[key] = value
	}

	if byKey["PATH"] != "/override" {
		t.Errorf("PATH = %q, want /override (later entry wins)", byKey["PATH"])
	}
	if byKey["HOME"] != "/home/alex" {
		t.Errorf("HOME = %q, want inherited value preserved", byKey["HOME"])
	}
	if byKey["NEW_KEY"] != "added" {
		t.Errorf("NEW_KEY = %q, want added", byKey["NEW_KEY"])
	}

	// Overridden keys must not appear twice
	count := 0
	for _, entry := range merged {
		if strings.HasPrefix(entry, "PATH=") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("PATH appears %d times, want 1", count)
	}
}

func TestBuildEnvironment(t *testing.T) {
	env := buildEnvironment(4567, "/opt/app/web-dist", "/home/alex", "/usr/bin")

	if len(env.Args) != 2 || env.Args[0] != "--port" || env.Args[1] != "4567" {
		t.Errorf("Args = %v, want [--port 4567]", env.Args)
	}

	tests := []struct {
		key  string
		want string
	}{
		{"OPENCHAMBER_HOST", "127.0.0.1"},
		{"OPENCHAMBER_DIST_DIR", "/opt/app/web-dist"},
		{"NO_PROXY", NoProxyHosts},
		{"no_proxy", NoProxyHosts},
	}
	for _, tt := range tests {
		got, ok := env.Get(tt.key)
		if !ok {
			t.Errorf("%s not set", tt.key)
			continue
		}
		if got != tt.want {
			t.Errorf("%s = %q, want %q", tt.key, got, tt.want)
		}
	}

	path, ok := env.Get("PATH")
	if !ok {
		t.Fatal("PATH not set")
	}
	if path != platform.SearchPath("/home/alex", "/usr/bin") {
		t.Errorf("PATH = %q, want augmented search path", path)
	}
	if !strings.HasSuffix(path, "/usr/bin") {
		t.Errorf("PATH = %q, want inherited PATH appended last", path)
	}
}

func TestBuildEnvironment_Deterministic(t *testing.T) {
	a := buildEnvironment(8080, "/dist", "/home/alex", "/usr/bin")
	b := buildEnvironment(8080, "/dist", "/home/alex", "/usr/bin")

	ea, eb := a.Environ(), b.Environ()
	if len(ea) != len(eb) {
		t.Fatalf("environ lengths differ: %d vs %d", len(ea), len(eb))
	}
	for i := range ea {
		if ea[i] != eb[i] {
			t.Errorf("environ[%d] differs: %q vs %q", i, ea[i], eb[i])
		}
	}
}

func TestFormatCommand(t *testing.T) {
	env := NewSpawnEnvironment("--port", "3000")
	env.Set("OPENCHAMBER_HOST", "127.0.0.1")

	got := FormatCommand("openchamber-server", env)
	want := "OPENCHAMBER_HOST=127.0.0.1 openchamber-server --port 3000"
	if got != want {
		t.Errorf("FormatCommand() = %q, want %q", got, want)
	}
}

func TestMergeEnviron_MalformedInheritedEntry(t *testing.T) {
	env := NewSpawnEnvironment()
	env.Set("KEY", "v")

	merged := MergeEnviron([]string{"MALFORMED"}, env)
	found := false
	for _, entry := range merged {
		if entry == "MALFORMED" {
			found = true
		}
	}
	if !found {
		t.Error("malformed inherited entry should pass through untouched")
	}
}
