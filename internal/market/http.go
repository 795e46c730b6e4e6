package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"trustscan/internal/logging"
)

// HTTPOptions parameterise the HTTP snapshot source.
type HTTPOptions struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// HTTPSource pulls a JSON snapshot list from a quote endpoint.
type HTTPSource struct {
	opts   HTTPOptions
	logger zerolog.Logger
	client *http.Client
}

// NewHTTPSource constructs an HTTP snapshot source.
func NewHTTPSource(opts HTTPOptions, logger zerolog.Logger) *HTTPSource {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPSource{
		opts:   opts,
		logger: logging.Component(logger, "snapshot_http"),
		client: &http.Client{Timeout: timeout},
	}
}

// FetchSnapshots issues a GET and decodes either a bare list or an `instruments` document.
func (h *HTTPSource) FetchSnapshots(ctx context.Context) ([]Snapshot, error) {
	if strings.TrimSpace(h.opts.URL) == "" {
		return nil, fmt.Errorf("snapshot url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.opts.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "trustscan/1.0")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	snapshots, err := decodeJSON(payload)
	if err != nil {
		return nil, err
	}

	h.logger.Debug().Int("instruments", len(snapshots)).Msg("snapshots fetched")
	return snapshots, nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("snapshot api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("snapshot api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("snapshot api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("snapshot api error (%d)", status)
}

var _ SnapshotSource = (*HTTPSource)(nil)
