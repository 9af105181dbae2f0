package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Rave28/openchamber/internal/assets"
	"github.com/Rave28/openchamber/internal/health"
	"github.com/Rave28/openchamber/internal/netutil"
	"github.com/Rave28/openchamber/internal/process"
)

// devProbeTimeout bounds the opportunistic check of an already-running
// dev server. It is deliberately short: a missing dev server should not
// delay the spawn path noticeably.
const devProbeTimeout = 2 * time.Second

// Callbacks contains optional callback functions for supervisor events.
type Callbacks struct {
	// OnStateChange is called when the sidecar state changes.
	OnStateChange func(oldState, newState State)

	// OnSpawn is called when the sidecar process starts.
	OnSpawn func(pid int, port int)

	// OnHealthy is called when the sidecar answers its readiness probe.
	OnHealthy func(baseURL string, startupTime time.Duration)
}

// Config holds configuration for creating a new Supervisor.
type Config struct {
	// Executable is the sidecar binary name or path.
	Executable string

	// ResourceRoot is the directory searched for bundled web assets.
	ResourceRoot string

	// ServerURL, when set, points at an externally managed backend.
	// EnsureRunning returns it verbatim without spawning anything.
	ServerURL string

	// DevMode enables the opportunistic probe of DevURL before spawning.
	DevMode bool
	DevURL  string

	HealthTimeout time.Duration
	PollInterval  time.Duration

	Logger    *slog.Logger
	Callbacks Callbacks
}

// Supervisor owns at most one sidecar process at a time. It allocates a
// loopback port, spawns the backend with a built environment, polls its
// readiness endpoint, and guarantees teardown of anything it spawned.
type Supervisor struct {
	cfg      Config
	launcher *process.Launcher
	prober   *health.Prober
	logger   *slog.Logger

	state   State
	stateMu sync.RWMutex

	// Current child and its published base URL.
	mu      sync.Mutex
	child   *process.Child
	baseURL string
}

// New creates a Supervisor. The sidecar is not launched until
// EnsureRunning is called.
func New(cfg Config) *Supervisor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Supervisor{
		cfg:      cfg,
		launcher: process.NewLauncher(cfg.Logger),
		prober:   health.NewProber(cfg.Logger),
		logger:   cfg.Logger,
		state:    StateNotStarted,
	}
}

// Prober exposes the readiness prober so callers can attach latency
// observers before the first launch.
func (s *Supervisor) Prober() *health.Prober {
	return s.prober
}

// EnsureRunning makes sure a reachable backend exists and returns its
// base URL. An explicit ServerURL short-circuits everything; dev mode
// first probes the dev server; otherwise a sidecar is spawned and polled
// until healthy. On any failure after a spawn, the child is torn down
// before the error is returned, so no orphan survives an error path.
func (s *Supervisor) EnsureRunning(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.child != nil && s.baseURL != "" {
		url := s.baseURL
		s.mu.Unlock()
		return url, nil
	}
	s.mu.Unlock()

	if s.cfg.ServerURL != "" {
		s.logger.Info("using_external_backend", "url", s.cfg.ServerURL)
		s.setBaseURL(s.cfg.ServerURL)
		s.setState(StateHealthy)
		return s.cfg.ServerURL, nil
	}

	if s.cfg.DevMode && s.cfg.DevURL != "" {
		if s.probeDevServer(ctx) {
			s.logger.Info("using_dev_backend", "url", s.cfg.DevURL)
			s.setBaseURL(s.cfg.DevURL)
			s.setState(StateHealthy)
			return s.cfg.DevURL, nil
		}
		s.logger.Debug("dev_backend_unreachable", "url", s.cfg.DevURL)
	}

	return s.launch(ctx)
}

// launch runs the full spawn path: port, assets, environment, process,
// readiness.
func (s *Supervisor) launch(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.child != nil {
		s.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	s.mu.Unlock()

	start := time.Now()

	port, err := netutil.AllocatePort()
	if err != nil {
		s.setState(StateFailed)
		return "", fmt.Errorf("allocate port: %w", err)
	}
	s.setState(StatePortAllocated)

	distDir, err := assets.Resolve(s.cfg.ResourceRoot)
	if err != nil {
		s.setState(StateFailed)
		return "", err
	}

	env := process.BuildEnvironment(port, distDir)

	child, err := s.launcher.Spawn(s.cfg.Executable, env)
	if err != nil {
		s.setState(StateFailed)
		return "", &SpawnError{Executable: s.cfg.Executable, Err: err}
	}

	s.mu.Lock()
	if s.child != nil {
		s.mu.Unlock()
		child.Kill()
		return "", ErrAlreadyRunning
	}
	s.child = child
	s.mu.Unlock()

	s.setState(StateSpawned)
	if s.cfg.Callbacks.OnSpawn != nil {
		s.cfg.Callbacks.OnSpawn(child.Pid(), port)
	}

	baseURL := netutil.BaseURL(port)
	ready := s.prober.AwaitReady(ctx, health.CheckConfig{
		BaseURL:      baseURL,
		Timeout:      s.cfg.HealthTimeout,
		PollInterval: s.cfg.PollInterval,
	})
	if !ready {
		s.logger.Error("backend_never_ready",
			"url", baseURL,
			"timeout", s.cfg.HealthTimeout.String(),
		)
		s.detachAndKill()
		s.setState(StateFailed)
		return "", ErrHealthCheckTimeout
	}

	startupTime := time.Since(start)

	// The base URL is only published once the probe succeeded.
	s.setBaseURL(baseURL)
	s.setState(StateHealthy)

	s.logger.Info("backend_ready",
		"url", baseURL,
		"pid", child.Pid(),
		"startup_time", startupTime.String(),
	)
	if s.cfg.Callbacks.OnHealthy != nil {
		s.cfg.Callbacks.OnHealthy(baseURL, startupTime)
	}

	return baseURL, nil
}

// probeDevServer checks whether a dev backend already answers on DevURL.
func (s *Supervisor) probeDevServer(ctx context.Context) bool {
	interval := s.cfg.PollInterval
	if interval <= 0 || interval >= devProbeTimeout {
		interval = 250 * time.Millisecond
	}
	return s.prober.AwaitReady(ctx, health.CheckConfig{
		BaseURL:      s.cfg.DevURL,
		Timeout:      devProbeTimeout,
		PollInterval: interval,
	})
}

// Terminate tears down the spawned sidecar, if any. It is idempotent and
// best effort: kill failures are logged, never returned, and a second
// call finds nothing to do. External and dev backends are never touched.
func (s *Supervisor) Terminate() {
	if child := s.detachAndKill(); child != nil {
		s.setState(StateTerminated)
	}
}

// detachAndKill removes the current child from the handle and kills it.
// Returns the detached child, or nil if nothing was attached.
func (s *Supervisor) detachAndKill() *process.Child {
	s.mu.Lock()
	child := s.child
	s.child = nil
	s.baseURL = ""
	s.mu.Unlock()

	if child == nil {
		return nil
	}

	s.logger.Info("terminating_backend", "pid", child.Pid())
	child.Kill()
	return child
}

// BaseURL returns the published backend URL, or "" before the sidecar
// is confirmed healthy.
func (s *Supervisor) BaseURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseURL
}

// Pid returns the sidecar process ID, or 0 when nothing is attached.
func (s *Supervisor) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.child == nil {
		return 0
	}
	return s.child.Pid()
}

// Running reports whether a spawned sidecar is attached and alive.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	child := s.child
	s.mu.Unlock()
	return child != nil && child.Running()
}

// State returns the current state of the supervisor.
func (s *Supervisor) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// setState updates the state and calls the callback if registered.
func (s *Supervisor) setState(newState State) {
	s.stateMu.Lock()
	oldState := s.state
	s.state = newState
	s.stateMu.Unlock()

	if s.cfg.Callbacks.OnStateChange != nil && oldState != newState {
		s.cfg.Callbacks.OnStateChange(oldState, newState)
	}
}

func (s *Supervisor) setBaseURL(url string) {
	s.mu.Lock()
	s.baseURL = url
	s.mu.Unlock()
}
