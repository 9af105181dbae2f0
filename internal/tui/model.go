package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Rave28/openchamber/internal/health"
	"github.com/Rave28/openchamber/internal/metrics"
	"github.com/Rave28/openchamber/internal/supervisor"
	"github.com/Rave28/openchamber/internal/updater"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to refresh the display.
type TickMsg time.Time

// UpdateProgressMsg carries an update-download progress event.
type UpdateProgressMsg struct {
	Event updater.Event
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Sources
// =============================================================================

// StatusSource reports the supervised sidecar's current status.
// *supervisor.Supervisor satisfies this.
type StatusSource interface {
	State() supervisor.State
	BaseURL() string
	Pid() int
}

// LatencySource reports probe latency percentiles.
// *health.LatencyTracker satisfies this.
type LatencySource interface {
	Snapshot() health.LatencyStats
}

// =============================================================================
// Model
// =============================================================================

// Model represents the TUI state.
type Model struct {
	// Configuration
	version     string
	metricsAddr string

	// Sources polled on every tick
	status  StatusSource
	latency LatencySource
	scraper *metrics.BackendScraper

	// Latest readings
	state      supervisor.State
	baseURL    string
	pid        int
	probeStats health.LatencyStats
	backend    *metrics.BackendSnapshot

	// Update download progress
	updateTotal      int64
	updateDownloaded int64
	updateActive     bool
	updateDone       bool

	startTime  time.Time
	lastUpdate time.Time

	width  int
	height int

	quitting bool
}

// Config holds TUI configuration.
type Config struct {
	Version     string
	MetricsAddr string
	Status      StatusSource
	Latency     LatencySource
	Scraper     *metrics.BackendScraper
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		version:     cfg.Version,
		metricsAddr: cfg.MetricsAddr,
		status:      cfg.Status,
		latency:     cfg.Latency,
		scraper:     cfg.Scraper,
		startTime:   time.Now(),
		lastUpdate:  time.Now(),
		width:       80,
		height:      24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, tickCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		if m.status != nil {
			m.state = m.status.State()
			m.baseURL = m.status.BaseURL()
			m.pid = m.status.Pid()
		}
		if m.latency != nil {
			m.probeStats = m.latency.Snapshot()
		}
		if m.scraper != nil {
			m.backend = m.scraper.Snapshot()
		}
		m.lastUpdate = time.Now()
		return m, tickCmd()

	case UpdateProgressMsg:
		switch e := msg.Event.(type) {
		case updater.Started:
			m.updateActive = true
			m.updateDone = false
			m.updateTotal = e.ContentLength
			m.updateDownloaded = 0
		case updater.Progress:
			m.updateDownloaded = e.Downloaded
			m.updateTotal = e.Total
		case updater.Finished:
			m.updateActive = false
			m.updateDone = true
		}
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderDashboard()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the launcher started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// UpdateFraction returns download progress in 0.0..1.0, or -1 when the
// total size is unknown.
func (m Model) UpdateFraction() float64 {
	if m.updateTotal <= 0 {
		return -1
	}
	return float64(m.updateDownloaded) / float64(m.updateTotal)
}

// =============================================================================
// Helpers for external use
// =============================================================================

// SendUpdateEvent forwards an update progress event to the TUI.
func SendUpdateEvent(p *tea.Program, e updater.Event) {
	if p != nil {
		p.Send(UpdateProgressMsg{Event: e})
	}
}

// SendQuit asks the TUI to exit.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}
