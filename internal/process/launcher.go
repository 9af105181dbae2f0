package process

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/Rave28/openchamber/internal/logging"
	"github.com/Rave28/openchamber/internal/platform"
)

// Child is an owned handle to a running sidecar process. It supports
// best-effort forced termination and never blocks on the process exiting.
type Child struct {
	cmd    *exec.Cmd
	pid    int
	logger *slog.Logger

	done     chan struct{}
	waitErr  error
	waitOnce sync.Once
}

// Pid returns the process ID of the child.
func (c *Child) Pid() int {
	return c.pid
}

// Done is closed once the child has been reaped.
func (c *Child) Done() <-chan struct{} {
	return c.done
}

// Running reports whether the child has not yet exited.
func (c *Child) Running() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Kill forcibly terminates the child. Best-effort: kill errors are logged,
// never returned, and the call does not wait for exit confirmation.
// The process group is targeted first so sidecar-spawned helpers go too.
func (c *Child) Kill() {
	if pgid, err := syscall.Getpgid(c.pid); err == nil {
		if err := syscall.Kill(-pgid, syscall.SIGKILL); err == nil {
			return
		}
	}

	if err := c.cmd.Process.Kill(); err != nil {
		c.logger.Warn("sidecar_kill_failed", "pid", c.pid, "error", err)
	}
}

// reap waits for the process in the background so it never becomes a zombie.
func (c *Child) reap() {
	c.waitOnce.Do(func() {
		go func() {
			c.waitErr = c.cmd.Wait()
			close(c.done)
			c.logger.Debug("sidecar_reaped", "pid", c.pid)
		}()
	})
}

// Launcher resolves and spawns the sidecar executable.
type Launcher struct {
	logger *slog.Logger
}

// NewLauncher creates a Launcher.
func NewLauncher(logger *slog.Logger) *Launcher {
	return &Launcher{logger: logger}
}

// Spawn resolves executable against env's augmented PATH, starts it with
// the merged environment, and returns an owned handle. It does not wait
// for the child; spawn failure is reported immediately.
func (l *Launcher) Spawn(executable string, env *SpawnEnvironment) (*Child, error) {
	path, err := resolveExecutable(executable, env)
	if err != nil {
		return nil, fmt.Errorf("resolve sidecar %q: %w", executable, err)
	}

	cmd := exec.Command(path, env.Args...)
	cmd.Env = MergeEnviron(os.Environ(), env)

	// Own process group for clean teardown
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn sidecar %q: %w", executable, err)
	}

	go logging.NewServerLogHandler("stdout", l.logger).HandleReader(stdout)
	go logging.NewServerLogHandler("stderr", l.logger).HandleReader(stderr)

	child := &Child{
		cmd:    cmd,
		pid:    cmd.Process.Pid,
		logger: l.logger,
		done:   make(chan struct{}),
	}
	child.reap()

	l.logger.Info("sidecar_started",
		"executable", path,
		"pid", child.pid,
		"args", strings.Join(env.Args, " "),
	)

	return child, nil
}

// ResolveOnSearchPath locates the named executable along the same
// augmented search path a spawned sidecar would see. Used by preflight
// to report resolution problems before any launch attempt.
func ResolveOnSearchPath(name string) (string, error) {
	home, _ := os.UserHomeDir()
	env := NewSpawnEnvironment()
	env.Set("PATH", platform.SearchPath(home, os.Getenv("PATH")))
	return resolveExecutable(name, env)
}

// resolveExecutable locates the named executable. Names containing a path
// separator are used as-is; bare names are searched along env's augmented
// PATH rather than the caller's, so the lookup matches what the child sees.
func resolveExecutable(name string, env *SpawnEnvironment) (string, error) {
	if strings.ContainsRune(name, os.PathSeparator) {
		if err := checkExecutable(name); err != nil {
			return "", err
		}
		return name, nil
	}

	searchPath, ok := env.Get("PATH")
	if !ok {
		searchPath = os.Getenv("PATH")
	}

	for _, dir := range filepath.SplitList(searchPath) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if err := checkExecutable(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", exec.ErrNotFound
}

// checkExecutable verifies the path exists, is a regular file, and has an
// execute bit set.
func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}
