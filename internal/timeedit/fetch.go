package timeedit

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appLog "pulsesync/internal/log"
)

// DefaultTimeout bounds a single TimeEdit request. There are no retries.
const DefaultTimeout = 10 * time.Second

// FetchResult contains the raw feed body and the URL that produced it.
type FetchResult struct {
	URL  string
	Body []byte
}

// Fetcher performs the HTTP GET against TimeEdit and classifies failures
// into Kind values.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher with the given request timeout. A zero
// timeout means DefaultTimeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewFetcherWithClient is used by tests and callers that need a custom
// transport.
func NewFetcherWithClient(client *http.Client) *Fetcher {
	if client == nil {
		return NewFetcher(0)
	}
	return &Fetcher{client: client}
}

// Fetch performs a single GET. Any connection level failure (DNS, refused,
// timeout, cancelled context, body read error) is KindUnreachable; a status
// outside [200,300) is KindUpstreamError with HTTPStatus set and the body
// discarded.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (FetchResult, error) {
	if strings.TrimSpace(rawURL) == "" {
		return FetchResult{}, invalidURL("URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return FetchResult{}, invalidURL("URL format is invalid: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return FetchResult{}, invalidURL("URL format is invalid: scheme must be http or https")
	}
	if u.Host == "" {
		return FetchResult{}, invalidURL("URL format is invalid: host is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return FetchResult{}, invalidURL("URL format is invalid: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	appLog.Debug("timeedit fetch start", "url", redactURL(rawURL))

	resp, err := f.client.Do(req)
	if err != nil {
		appLog.Error("timeedit fetch failed", err, "url", redactURL(rawURL))
		return FetchResult{}, unreachable("Cannot connect to TimeEdit host: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		appLog.Warn("timeedit fetch non-2xx", "url", redactURL(rawURL), "status", resp.StatusCode)
		return FetchResult{}, &Error{
			Kind:       KindUpstreamError,
			Message:    "TimeEdit returned HTTP " + resp.Status,
			HTTPStatus: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		appLog.Error("timeedit body read failed", err, "url", redactURL(rawURL))
		return FetchResult{}, unreachable("Network error: %v", err)
	}

	appLog.Info("timeedit fetch success", "url", redactURL(rawURL), "status", resp.StatusCode, "bytes", len(body))

	return FetchResult{
		URL:  rawURL,
		Body: body,
	}, nil
}

// redactURL hides the path and query of a URL for logging purposes.
//
//	https://cloud.timeedit.net/uni/web/s/ri1.json?sid=3 -> https://cloud.timeedit.net/...(redacted)
func redactURL(raw string) string {
	const redactedSuffix = "/...(redacted)"

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "timeedit://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + redactedSuffix
}
