package updater

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// chunkSize is the read granularity for progress reporting.
const chunkSize = 64 * 1024

// Downloader fetches update payloads over HTTP, writing them to a sink
// and emitting progress events along the way.
type Downloader struct {
	client *http.Client
	logger *slog.Logger

	// OnEvent receives the progress stream. Nil disables reporting.
	OnEvent func(Event)
}

// NewDownloader creates a Downloader with a generous transfer timeout.
func NewDownloader(logger *slog.Logger) *Downloader {
	return &Downloader{
		client: &http.Client{
			Timeout: 30 * time.Minute,
		},
		logger: logger,
	}
}

// Download fetches url into w, emitting Started, Progress per chunk, and
// Finished once the body is fully written. Any error aborts the stream
// without a Finished event.
func (d *Downloader) Download(ctx context.Context, url string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch update: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch update: http status %d", resp.StatusCode)
	}

	total := resp.ContentLength // -1 when unknown
	d.emit(Started{ContentLength: total})
	d.logger.Info("update_download_started", "url", url, "content_length", total)

	var downloaded int64
	buf := make([]byte, chunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return fmt.Errorf("write update: %w", err)
			}
			downloaded += int64(n)
			d.emit(Progress{ChunkLength: n, Downloaded: downloaded, Total: total})
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read update: %w", readErr)
		}
	}

	if total >= 0 && downloaded != total {
		return fmt.Errorf("short download: got %d of %d bytes", downloaded, total)
	}

	d.emit(Finished{})
	d.logger.Info("update_download_finished", "bytes", downloaded)

	return nil
}

func (d *Downloader) emit(e Event) {
	if d.OnEvent != nil {
		d.OnEvent(e)
	}
}
