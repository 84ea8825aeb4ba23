// Package perfclient is an HTTP client for the perfwatch consumer surface.
// Dashboards and automated alerting poll insights through it.
package perfclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"perfwatch.sh/internal/compression"
	"perfwatch.sh/pkg/perf"
)

// Client talks to a perfwatchd instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
}

// Record reports one completed unit of work.
func (c *Client) Record(ctx context.Context, subject string, durationMs float64, fingerprint string) error {
	body, err := json.Marshal(map[string]any{
		"subject":     subject,
		"duration_ms": durationMs,
		"fingerprint": fingerprint,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/samples", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("record sample: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Samples fetches stored samples, optionally filtered by subject.
func (c *Client) Samples(ctx context.Context, subject string) ([]perf.Sample, error) {
	url := c.baseURL + "/api/v1/samples"
	if subject != "" {
		url += "?subject=" + subject
	}

	var samples []perf.Sample
	if err := c.getJSON(ctx, url, &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

// Insights fetches the current derived analytics.
func (c *Client) Insights(ctx context.Context) (perf.Insights, error) {
	var ins perf.Insights
	err := c.getJSON(ctx, c.baseURL+"/api/v1/insights", &ins)
	return ins, err
}

// Export fetches the whole-state snapshot. The transfer is gzip-compressed
// when the server supports it.
func (c *Client) Export(ctx context.Context) (perf.Snapshot, error) {
	var snap perf.Snapshot

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/export", nil)
	if err != nil {
		return snap, err
	}
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return snap, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("export snapshot: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return snap, err
	}
	if coding := resp.Header.Get("Content-Encoding"); coding != "" {
		codec, err := compression.ForEncoding(coding)
		if err != nil {
			return snap, err
		}
		if data, err = codec.Decompress(data); err != nil {
			return snap, fmt.Errorf("decompress snapshot: %w", err)
		}
	}

	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// Clear empties the remote collector.
func (c *Client) Clear(ctx context.Context) error {
	return c.post(ctx, "/api/v1/clear")
}

// Optimize triggers the remote compaction pass.
func (c *Client) Optimize(ctx context.Context) error {
	return c.post(ctx, "/api/v1/optimize")
}

func (c *Client) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
