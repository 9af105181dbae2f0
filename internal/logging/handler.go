package logging

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single log line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the maximum number of recent lines retained.
	MaxBufferedLines = 100
)

// ServerLogHandler handles stdout/stderr output from the sidecar process.
// It buffers recent lines for failure diagnostics and logs them.
type ServerLogHandler struct {
	stream string // "stdout" or "stderr"
	logger *slog.Logger

	// Circular buffer for recent lines
	buffer []string
	bufIdx int
	mu     sync.Mutex
}

// NewServerLogHandler creates a handler for one of the sidecar's output streams.
func NewServerLogHandler(stream string, logger *slog.Logger) *ServerLogHandler {
	return &ServerLogHandler{
		stream: stream,
		logger: logger,
		buffer: make([]string, MaxBufferedLines),
	}
}

// HandleReader reads from an io.Reader and processes each line.
// This should be run in a goroutine; it returns when the reader is exhausted.
func (h *ServerLogHandler) HandleReader(r io.Reader) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, MaxLineLength)
	scanner.Buffer(buf, MaxLineLength)

	for scanner.Scan() {
		h.HandleLine(scanner.Text())
	}
}

// HandleLine processes a single line of sidecar output.
func (h *ServerLogHandler) HandleLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	h.mu.Unlock()

	h.logger.Log(nil, h.classifyLine(line), "sidecar_output",
		"stream", h.stream,
		"line", line,
	)
}

// classifyLine determines the log level for a line based on content.
func (h *ServerLogHandler) classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	if strings.Contains(lower, "panic") ||
		strings.Contains(lower, "fatal") ||
		strings.Contains(lower, "error") {
		return slog.LevelWarn
	}

	if strings.Contains(lower, "warn") {
		return slog.LevelWarn
	}

	return slog.LevelDebug
}

// RecentLines returns up to n of the most recent lines, oldest first.
// Used to annotate spawn and health-check failures.
func (h *ServerLogHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		if h.buffer[idx] != "" {
			lines = append(lines, h.buffer[idx])
		}
	}

	return lines
}
