// ABOUTME: HTTP client for the voice synthesis status endpoint
// ABOUTME: Fetches GET /audio_status/{taskId} and resolves clip URLs against the base URL

package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Status values reported by the backend. The backend reports "processing"
// for jobs that are still running; both it and "pending" count as not ready.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// StatusResult is one status response. Status and URL are only populated
// when HTTPStatus is 200.
type StatusResult struct {
	HTTPStatus int
	Status     string `json:"status"`
	URL        string `json:"url,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Fetcher retrieves the status of a voice task. A returned error means the
// request could not be made or the body could not be parsed.
type Fetcher interface {
	Fetch(ctx context.Context, taskID string) (StatusResult, error)
}

// HTTPFetcher implements Fetcher against the backend's HTTP API.
type HTTPFetcher struct {
	base   *url.URL
	header http.Header
	client *http.Client
}

// NewHTTPFetcher creates a fetcher for the given base URL (e.g.
// http://localhost:8000). header is added to every request; client may be nil.
func NewHTTPFetcher(baseURL string, header http.Header, client *http.Client) (*HTTPFetcher, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must use http or https scheme, got %q", u.Scheme)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{base: u, header: header, client: client}, nil
}

// Fetch performs one status request.
func (f *HTTPFetcher) Fetch(ctx context.Context, taskID string) (StatusResult, error) {
	endpoint := f.base.JoinPath("audio_status", taskID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return StatusResult{}, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range f.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return StatusResult{}, fmt.Errorf("fetching audio status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return StatusResult{HTTPStatus: resp.StatusCode}, nil
	}

	var result StatusResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return StatusResult{}, fmt.Errorf("parsing audio status: %w", err)
	}
	result.HTTPStatus = resp.StatusCode
	if result.URL != "" {
		result.URL = f.resolve(result.URL)
	}
	return result, nil
}

// resolve turns a server-relative clip path into an absolute URL.
func (f *HTTPFetcher) resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return f.base.ResolveReference(u).String()
}
