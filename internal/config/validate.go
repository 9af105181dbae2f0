package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Executable == "" && cfg.ServerURL == "" {
		errs = append(errs, ValidationError{
			Field:   "executable",
			Message: "backend executable name is required unless server_url is set",
		})
	}

	// Validate server URL if provided
	if cfg.ServerURL != "" {
		if _, err := NormalizeServerURL(cfg.ServerURL); err != nil {
			errs = append(errs, ValidationError{
				Field:   "server_url",
				Message: err.Error(),
			})
		}
	}

	if cfg.DevMode {
		if _, err := NormalizeServerURL(cfg.DevURL); err != nil {
			errs = append(errs, ValidationError{
				Field:   "dev_url",
				Message: err.Error(),
			})
		}
	}

	// Probe timings: interval must be strictly below the deadline,
	// otherwise the loop never gets a second attempt.
	if cfg.HealthTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "health_timeout",
			Message: "must be positive",
		})
	}
	if cfg.PollInterval <= 0 {
		errs = append(errs, ValidationError{
			Field:   "poll_interval",
			Message: "must be positive",
		})
	}
	if cfg.PollInterval > 0 && cfg.HealthTimeout > 0 && cfg.PollInterval >= cfg.HealthTimeout {
		errs = append(errs, ValidationError{
			Field:   "poll_interval",
			Message: fmt.Sprintf("must be shorter than health_timeout (%v >= %v)", cfg.PollInterval, cfg.HealthTimeout),
		})
	}

	// Log format must be valid
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	if cfg.BackendScrapeInterval <= 0 {
		errs = append(errs, ValidationError{
			Field:   "backend_scrape_interval",
			Message: "must be positive",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// NormalizeServerURL validates a server URL and returns its canonical form:
// trimmed, scheme http or https, trailing slashes stripped.
func NormalizeServerURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("URL must not be empty")
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https (got %q)", u.Scheme)
	}

	if u.Host == "" {
		return "", errors.New("URL must have a host")
	}

	return strings.TrimRight(trimmed, "/"), nil
}
