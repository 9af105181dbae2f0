package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Rave28/openchamber/internal/assets"
)

// =============================================================================
// Fake sidecar: the test binary re-executes itself as the backend
// =============================================================================

const (
	sidecarModeEnv = "OPENCHAMBER_TEST_SIDECAR_MODE"

	sidecarModeHealthy = "healthy"
	sidecarModeDelayed = "delayed"
	sidecarModeSilent  = "silent"
)

func TestMain(m *testing.M) {
	if mode := os.Getenv(sidecarModeEnv); mode != "" {
		runFakeSidecar(mode)
		return
	}
	os.Exit(m.Run())
}

// runFakeSidecar acts as the backend binary. It reads --port from its
// arguments and, depending on mode, serves /health immediately, after a
// delay, or never.
func runFakeSidecar(mode string) {
	port := ""
	for i, arg := range os.Args {
		if arg == "--port" && i+1 < len(os.Args) {
			port = os.Args[i+1]
		}
	}
	if port == "" {
		os.Exit(2)
	}

	switch mode {
	case sidecarModeSilent:
		time.Sleep(time.Hour)
	case sidecarModeDelayed:
		time.Sleep(600 * time.Millisecond)
		fallthrough
	case sidecarModeHealthy:
		ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", port))
		if err != nil {
			os.Exit(3)
		}
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		http.Serve(ln, mux)
	}
	os.Exit(0)
}

// =============================================================================
// Test Helpers
// =============================================================================

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// makeResourceRoot creates a resource directory with bundled web assets.
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

// newSidecarSupervisor configures a supervisor that spawns the test binary
// as its backend in the given mode.
func newSidecarSupervisor(t *testing.T, mode string, cfg Config) *Supervisor {
	t.Helper()
	t.Setenv(sidecarModeEnv, mode)

	cfg.Executable = os.Args[0]
	if cfg.ResourceRoot == "" {
		cfg.ResourceRoot = makeResourceRoot(t)
	}
	if cfg.HealthTimeout == 0 {
		cfg.HealthTimeout = 10 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	cfg.Logger = newTestLogger()

	return New(cfg)
}

// =============================================================================
// Table-Driven Tests: State
// =============================================================================

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateNotStarted, "not_started"},
		{StatePortAllocated, "port_allocated"},
		{StateSpawned, "spawned"},
		{StateHealthy, "healthy"},
		{StateFailed, "failed"},
		{StateTerminated, "terminated"},
		{State(99), "unknown"},
		{State(-1), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
			}
		})
	}
}

func TestState_IsActive(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateNotStarted, false},
		{StatePortAllocated, true},
		{StateSpawned, true},
		{StateHealthy, true},
		{StateFailed, false},
		{StateTerminated, false},
		{State(99), false},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if got := tt.state.IsActive(); got != tt.want {
				t.Errorf("State(%d).IsActive() = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateNotStarted, false},
		{StatePortAllocated, false},
		{StateSpawned, false},
		{StateHealthy, false},
		{StateFailed, true},
		{StateTerminated, true},
		{State(99), false},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.want {
				t.Errorf("State(%d).IsTerminal() = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Tests: External and Dev Backends
// =============================================================================

func TestEnsureRunning_ExternalServerURL(t *testing.T) {
	sup := New(Config{
		ServerURL: "http://127.0.0.1:9999",
		Logger:    newTestLogger(),
	})

	url, err := sup.EnsureRunning(context.Background())
	if err != nil {
		t.Fatalf("EnsureRunning() error: %v", err)
	}
	if url != "http://127.0.0.1:9999" {
		t.Errorf("url = %q, want configured server URL verbatim", url)
	}
	if sup.Pid() != 0 {
		t.Errorf("Pid() = %d, want 0 (nothing spawned)", sup.Pid())
	}
	if sup.State() != StateHealthy {
		t.Errorf("state = %v, want StateHealthy", sup.State())
	}

	// Terminate must not disturb an external backend.
	sup.Terminate()
	if sup.State() != StateHealthy {
		t.Errorf("state after Terminate = %v, want StateHealthy (no child)", sup.State())
	}
}

func TestEnsureRunning_DevModeUsesRunningDevServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sup := New(Config{
		DevMode:       true,
		DevURL:        srv.URL,
		HealthTimeout: 5 * time.Second,
		PollInterval:  100 * time.Millisecond,
		Logger:        newTestLogger(),
	})

	url, err := sup.EnsureRunning(context.Background())
	if err != nil {
		t.Fatalf("EnsureRunning() error: %v", err)
	}
	if url != srv.URL {
		t.Errorf("url = %q, want dev server URL %q", url, srv.URL)
	}
	if sup.Pid() != 0 {
		t.Errorf("Pid() = %d, want 0 (dev server reused, not spawned)", sup.Pid())
	}
}

// =============================================================================
// Tests: Spawn Path (end to end against the fake sidecar)
// =============================================================================

func TestEnsureRunning_SpawnsHealthyBackend(t *testing.T) {
	sup := newSidecarSupervisor(t, sidecarModeHealthy, Config{})
	defer sup.Terminate()

	url, err := sup.EnsureRunning(context.Background())
	if err != nil {
		t.Fatalf("EnsureRunning() error: %v", err)
	}

	// The published URL must actually answer.
	resp, err := http.Get(url + "/health")
	if err != nil {
		t.Fatalf("GET %s/health: %v", url, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	if sup.State() != StateHealthy {
		t.Errorf("state = %v, want StateHealthy", sup.State())
	}
	if !sup.Running() {
		t.Error("Running() = false for healthy sidecar")
	}
	if sup.BaseURL() != url {
		t.Errorf("BaseURL() = %q, want %q", sup.BaseURL(), url)
	}
}

func TestEnsureRunning_DelayedBackendBecomesHealthy(t *testing.T) {
	sup := newSidecarSupervisor(t, sidecarModeDelayed, Config{})
	defer sup.Terminate()

	url, err := sup.EnsureRunning(context.Background())
	if err != nil {
		t.Fatalf("EnsureRunning() error for slow-starting backend: %v", err)
	}
	if url == "" {
		t.Fatal("EnsureRunning() returned empty URL")
	}
}

func TestEnsureRunning_HealthTimeoutKillsChild(t *testing.T) {
	sup := newSidecarSupervisor(t, sidecarModeSilent, Config{
		HealthTimeout: 800 * time.Millisecond,
		PollInterval:  100 * time.Millisecond,
	})

	_, err := sup.EnsureRunning(context.Background())
	if !errors.Is(err, ErrHealthCheckTimeout) {
		t.Fatalf("error = %v, want ErrHealthCheckTimeout", err)
	}

	// Failure must leave no child behind.
	if sup.Running() {
		t.Error("Running() = true after failed launch")
	}
	if sup.Pid() != 0 {
		t.Errorf("Pid() = %d, want 0 after failed launch", sup.Pid())
	}
	if sup.BaseURL() != "" {
		t.Errorf("BaseURL() = %q, want empty after failed launch", sup.BaseURL())
	}
	if sup.State() != StateFailed {
		t.Errorf("state = %v, want StateFailed", sup.State())
	}
}

func TestEnsureRunning_SpawnFailure(t *testing.T) {
	sup := New(Config{
		Executable:    "openchamber-no-such-binary",
		ResourceRoot:  makeResourceRoot(t),
		HealthTimeout: time.Second,
		PollInterval:  100 * time.Millisecond,
		Logger:        newTestLogger(),
	})

	_, err := sup.EnsureRunning(context.Background())
	if err == nil {
		t.Fatal("EnsureRunning() with missing executable should error")
	}
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("error = %v, want *SpawnError", err)
	}
	if spawnErr.Executable != "openchamber-no-such-binary" {
		t.Errorf("SpawnError.Executable = %q", spawnErr.Executable)
	}
	if sup.State() != StateFailed {
		t.Errorf("state = %v, want StateFailed", sup.State())
	}
}

func TestEnsureRunning_AssetsMissing(t *testing.T) {
	sup := New(Config{
		Executable:    os.Args[0],
		ResourceRoot:  t.TempDir(), // no web-dist anywhere
		HealthTimeout: time.Second,
		PollInterval:  100 * time.Millisecond,
		Logger:        newTestLogger(),
	})

	_, err := sup.EnsureRunning(context.Background())
	if !errors.Is(err, assets.ErrAssetsMissing) {
		t.Fatalf("error = %v, want ErrAssetsMissing", err)
	}
	if sup.Running() {
		t.Error("nothing should be spawned when assets are missing")
	}
}

func TestEnsureRunning_Idempotent(t *testing.T) {
	sup := newSidecarSupervisor(t, sidecarModeHealthy, Config{})
	defer sup.Terminate()

	first, err := sup.EnsureRunning(context.Background())
	if err != nil {
		t.Fatalf("first EnsureRunning() error: %v", err)
	}

	second, err := sup.EnsureRunning(context.Background())
	if err != nil {
		t.Fatalf("second EnsureRunning() error: %v", err)
	}
	if second != first {
		t.Errorf("second call returned %q, want same URL %q", second, first)
	}
	if pid := sup.Pid(); pid == 0 {
		t.Error("sidecar should still be attached after second call")
	}
}

// =============================================================================
// Tests: Terminate
// =============================================================================

func TestTerminate_KillsSidecar(t *testing.T) {
	sup := newSidecarSupervisor(t, sidecarModeHealthy, Config{})

	url, err := sup.EnsureRunning(context.Background())
	if err != nil {
		t.Fatalf("EnsureRunning() error: %v", err)
	}

	sup.Terminate()

	if sup.State() != StateTerminated {
		t.Errorf("state = %v, want StateTerminated", sup.State())
	}
	if sup.Running() {
		t.Error("Running() = true after Terminate")
	}
	if sup.BaseURL() != "" {
		t.Errorf("BaseURL() = %q after Terminate, want empty", sup.BaseURL())
	}

	// The backend should stop answering shortly after the kill.
	client := &http.Client{Timeout: 500 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url + "/health")
		if err != nil {
			return // port is dead, done
		}
		resp.Body.Close()
		time.Sleep(100 * time.Millisecond)
	}
	t.Error("backend still answering after Terminate")
}

func TestTerminate_Idempotent(t *testing.T) {
	sup := newSidecarSupervisor(t, sidecarModeHealthy, Config{})

	if _, err := sup.EnsureRunning(context.Background()); err != nil {
		t.Fatalf("EnsureRunning() error: %v", err)
	}

	sup.Terminate()
	sup.Terminate()
	sup.Terminate()

	if sup.State() != StateTerminated {
		t.Errorf("state = %v, want StateTerminated", sup.State())
	}
}

func TestTerminate_BeforeAnyLaunch(t *testing.T) {
	sup := New(Config{Logger: newTestLogger()})

	sup.Terminate()

	if sup.State() != StateNotStarted {
		t.Errorf("state = %v, want StateNotStarted (nothing to tear down)", sup.State())
	}
}

// =============================================================================
// Tests: Callbacks
// =============================================================================

func TestSupervisor_Callbacks(t *testing.T) {
	var (
		mu           sync.Mutex
		stateChanges []State
		spawnedPid   int
		spawnedPort  int
		healthyURL   string
	)

	sup := newSidecarSupervisor(t, sidecarModeHealthy, Config{
		Callbacks: Callbacks{
			OnStateChange: func(oldState, newState State) {
				mu.Lock()
				stateChanges = append(stateChanges, newState)
				mu.Unlock()
			},
			OnSpawn: func(pid, port int) {
				mu.Lock()
				spawnedPid, spawnedPort = pid, port
				mu.Unlock()
			},
			OnHealthy: func(baseURL string, startupTime time.Duration) {
				mu.Lock()
				healthyURL = baseURL
				mu.Unlock()
			},
		},
	})
	defer sup.Terminate()

	url, err := sup.EnsureRunning(context.Background())
	if err != nil {
		t.Fatalf("EnsureRunning() error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	want := []State{StatePortAllocated, StateSpawned, StateHealthy}
	if len(stateChanges) != len(want) {
		t.Fatalf("state changes = %v, want %v", stateChanges, want)
	}
	for i := range want {
		if stateChanges[i] != want[i] {
			t.Errorf("state change[%d] = %v, want %v", i, stateChanges[i], want[i])
		}
	}

	if spawnedPid <= 0 {
		t.Errorf("OnSpawn pid = %d, want > 0", spawnedPid)
	}
	if wantURL := fmt.Sprintf("http://127.0.0.1:%d", spawnedPort); wantURL != url {
		t.Errorf("OnSpawn port %d does not match URL %q", spawnedPort, url)
	}
	if healthyURL != url {
		t.Errorf("OnHealthy url = %q, want %q", healthyURL, url)
	}
}

// =============================================================================
// Tests: Concurrent Access
// =============================================================================

func TestSupervisor_ConcurrentAccess(t *testing.T) {
	sup := New(Config{Logger: newTestLogger()})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sup.State()
			_ = sup.BaseURL()
			_ = sup.Pid()
			_ = sup.Running()
			sup.Terminate()
		}()
	}
	wg.Wait()
}
