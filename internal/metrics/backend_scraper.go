package metrics

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// BackendSnapshot contains metrics scraped from the sidecar's own
// /metrics endpoint.
type BackendSnapshot struct {
	Goroutines     int
	ResidentMemory int64
	CPURate        float64 // cores, derived from successive scrapes

	LastUpdate time.Time
	Healthy    bool
	Error      string
}

// BackendScraper periodically scrapes the sidecar's Prometheus endpoint
// and keeps the latest snapshot. Uses atomic.Value for lock-free reads.
type BackendScraper struct {
	interval  time.Duration
	logger    *slog.Logger
	collector *Collector
	client    *http.Client

	// baseURL is set once the sidecar is healthy; empty disables scraping.
	baseURL atomic.Value // string

	snapshot atomic.Value // *BackendSnapshot

	// CPU rate calculation state; only touched from the Run goroutine.
	lastCPUSeconds float64
	lastCPUTime    time.Time
}

// NewBackendScraper creates a scraper that runs every interval once a
// base URL is set. The collector may be nil when Prometheus export is
// disabled; snapshots are still available via Snapshot.
func NewBackendScraper(interval time.Duration, collector *Collector, logger *slog.Logger) *BackendScraper {
	s := &BackendScraper{
		interval:  interval,
		logger:    logger,
		collector: collector,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
	s.baseURL.Store("")
	s.snapshot.Store(&BackendSnapshot{
		Healthy: false,
		Error:   "not yet scraped",
	})
	return s
}

// SetBaseURL points the scraper at a healthy backend. An empty string
// pauses scraping.
func (s *BackendScraper) SetBaseURL(url string) {
	s.baseURL.Store(url)
}

// Snapshot returns the latest scrape result (thread-safe, lock-free).
func (s *BackendScraper) Snapshot() *BackendSnapshot {
	if s == nil {
		return nil
	}
	return s.snapshot.Load().(*BackendSnapshot)
}

// Run scrapes on a ticker until the context is cancelled.
func (s *BackendScraper) Run(ctx context.Context) {
	if s == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scrape()
		}
	}
}

// scrape fetches and decodes the backend's /metrics once.
func (s *BackendScraper) scrape() {
	base, _ := s.baseURL.Load().(string)
	if base == "" {
		return
	}

	snap, err := s.scrapeOnce(base)
	if err != nil {
		s.logger.Debug("backend_scrape_error", "error", err)
		snap = &BackendSnapshot{
			LastUpdate: time.Now(),
			Healthy:    false,
			Error:      err.Error(),
		}
	}

	s.snapshot.Store(snap)
	if s.collector != nil {
		s.collector.UpdateBackend(snap)
	}
}

func (s *BackendScraper) scrapeOnce(base string) (*BackendSnapshot, error) {
	url := strings.TrimRight(base, "/") + "/metrics"

	resp, err := s.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	families, err := decodeFamilies(resp.Body)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	snap := &BackendSnapshot{
		LastUpdate: now,
		Healthy:    true,
	}

	snap.Goroutines = int(gaugeValue(families, "go_goroutines"))
	snap.ResidentMemory = int64(gaugeValue(families, "process_resident_memory_bytes"))
	snap.CPURate = s.cpuRate(counterValue(families, "process_cpu_seconds_total"), now)

	return snap, nil
}

// decodeFamilies parses a Prometheus text exposition into metric families.
func decodeFamilies(r io.Reader) (map[string]*dto.MetricFamily, error) {
	decoder := expfmt.NewDecoder(r, expfmt.FmtText)
	families := make(map[string]*dto.MetricFamily)

	for {
		var mf dto.MetricFamily
		if err := decoder.Decode(&mf); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("decode error: %w", err)
		}
		families[mf.GetName()] = &mf
	}

	return families, nil
}

// gaugeValue extracts the first gauge value for a family, 0 if absent.
func gaugeValue(families map[string]*dto.MetricFamily, name string) float64 {
	mf, ok := families[name]
	if !ok || len(mf.GetMetric()) == 0 {
		return 0
	}
	return mf.GetMetric()[0].GetGauge().GetValue()
}

// counterValue extracts the first counter value for a family, 0 if absent.
func counterValue(families map[string]*dto.MetricFamily, name string) float64 {
	mf, ok := families[name]
	if !ok || len(mf.GetMetric()) == 0 {
		return 0
	}
	return mf.GetMetric()[0].GetCounter().GetValue()
}

// cpuRate derives a usage rate from successive process_cpu_seconds_total
// readings. The first reading yields 0.
func (s *BackendScraper) cpuRate(cpuSeconds float64, now time.Time) float64 {
	var rate float64
	if !s.lastCPUTime.IsZero() {
		deltaTime := now.Sub(s.lastCPUTime).Seconds()
		if deltaTime > 0 && cpuSeconds >= s.lastCPUSeconds {
			rate = (cpuSeconds - s.lastCPUSeconds) / deltaTime
		}
	}

	s.lastCPUSeconds = cpuSeconds
	s.lastCPUTime = now

	return rate
}
