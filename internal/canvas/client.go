package canvas

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	appLog "pulsesync/internal/log"
)

const (
	profilePath        = "/api/v1/users/self/profile"
	calendarEventsPath = "/api/v1/calendar_events"

	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 5.0
	DefaultRateBurst = 1

	// MaxEchoedBody caps any body excerpt placed in logs or errors.
	MaxEchoedBody = 500
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL is the Canvas instance root, e.g. https://canvas.example.edu.
	BaseURL string
	// Token is the static bearer token. It is never logged.
	Token string

	Timeout time.Duration

	// RateLimit is the outbound request rate in requests per second.
	RateLimit float64
	RateBurst int

	// Transport allows injecting a custom HTTP transport (for tests/stubs).
	Transport http.RoundTripper

	// Observe, if set, receives the duration of every completed round trip.
	Observe func(time.Duration)
}

// BearerToken applies an Authorization header to outgoing requests.
type BearerToken string

func (t BearerToken) Apply(req *http.Request) {
	if t != "" {
		req.Header.Set("Authorization", "Bearer "+string(t))
	}
}

// Identity is the authenticated Canvas user.
type Identity struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// ContextID is the calendar context of the user's personal calendar.
func (i Identity) ContextID() string {
	return "user_" + strconv.FormatInt(i.ID, 10)
}

// CalendarEventRequest is one event to create. Location and Description
// are omitted from the form when empty.
type CalendarEventRequest struct {
	ContextCode string
	Title       string
	Start       time.Time
	End         time.Time
	Location    string
	Description string
}

// RemoteEvent is the created Canvas calendar event.
type RemoteEvent struct {
	ID      int64  `json:"id"`
	HTMLURL string `json:"html_url"`
}

// Client performs authenticated calls against the Canvas REST API. One
// attempt per call; there are no retries.
type Client struct {
	baseURL    string
	token      BearerToken
	httpClient *http.Client
	limiter    *rate.Limiter
	observe    func(time.Duration)
}

// NewClient creates a Client. Missing base URL or token is not an error here;
// every call reports it as CodeConfig instead.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = DefaultRateBurst
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:   BearerToken(strings.TrimSpace(cfg.Token)),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		observe: cfg.Observe,
	}
}

// Configured reports whether both base URL and token are present.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.token != ""
}

type profileResponse struct {
	ID      *int64 `json:"id"`
	LoginID string `json:"login_id"`
	Login   string `json:"login"`
}

// ResolveIdentity looks up the token owner's profile.
func (c *Client) ResolveIdentity(ctx context.Context) (Identity, error) {
	status, body, err := c.do(ctx, http.MethodGet, profilePath, nil)
	if err != nil {
		return Identity{}, err
	}
	if err := classifyStatus(status, body, false); err != nil {
		appLog.Warn("canvas profile lookup failed", "status", status, "code", err.Code.String())
		return Identity{}, err
	}

	var p profileResponse
	if err := json.Unmarshal(body, &p); err != nil || p.ID == nil {
		return Identity{}, &Error{
			Code:       CodeInvalidResponse,
			Message:    "Canvas profile response could not be decoded",
			HTTPStatus: status,
			Detail:     Truncate(string(body), MaxEchoedBody),
		}
	}

	login := p.LoginID
	if login == "" {
		login = p.Login
	}
	id := Identity{ID: *p.ID, Login: login}
	appLog.Info("canvas identity resolved", "user_id", id.ID)
	return id, nil
}

// CreateCalendarEvent creates one calendar event.
func (c *Client) CreateCalendarEvent(ctx context.Context, ev CalendarEventRequest) (RemoteEvent, error) {
	form := url.Values{}
	form.Set("calendar_event[context_code]", ev.ContextCode)
	form.Set("calendar_event[title]", ev.Title)
	form.Set("calendar_event[start_at]", ev.Start.Format(time.RFC3339))
	form.Set("calendar_event[end_at]", ev.End.Format(time.RFC3339))
	if ev.Location != "" {
		form.Set("calendar_event[location_name]", ev.Location)
	}
	if ev.Description != "" {
		form.Set("calendar_event[description]", ev.Description)
	}
	encoded := form.Encode()

	status, body, err := c.do(ctx, http.MethodPost, calendarEventsPath, strings.NewReader(encoded))
	if err != nil {
		return RemoteEvent{}, err
	}
	if err := classifyStatus(status, body, true); err != nil {
		appLog.Warn("canvas create event failed",
			"status", status,
			"code", err.Code.String(),
			"request", Truncate(encoded, MaxEchoedBody),
			"response", err.Detail,
		)
		return RemoteEvent{}, err
	}

	var created RemoteEvent
	if err := json.Unmarshal(body, &created); err != nil {
		// A 2xx means the event exists remotely, so it counts as created.
		appLog.Warn("canvas event created but response could not be decoded",
			"status", status,
			"context", ev.ContextCode,
			"reason", err.Error(),
			"response", Truncate(string(body), MaxEchoedBody),
		)
		return RemoteEvent{}, nil
	}
	appLog.Debug("canvas event created", "id", created.ID, "context", ev.ContextCode)
	return created, nil
}

// do executes one rate limited request and returns the status and body.
// Only CodeConfig and CodeUnreachable are produced here.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (int, []byte, *Error) {
	if c.baseURL == "" {
		return 0, nil, newError(CodeConfig, "Canvas base URL is not configured")
	}
	if c.token == "" {
		return 0, nil, newError(CodeConfig, "Canvas token is not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, newError(CodeUnreachable, "Canvas request not sent: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, newError(CodeConfig, "Canvas base URL is invalid: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	c.token.Apply(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.observe != nil {
		c.observe(time.Since(start))
	}
	if err != nil {
		appLog.Error("canvas request failed", err, "method", method, "path", path)
		return 0, nil, newError(CodeUnreachable, "Cannot connect to Canvas: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, newError(CodeUnreachable, "Network error reading Canvas response: %v", err)
	}
	return resp.StatusCode, data, nil
}

// classifyStatus maps a non-2xx status to an Error. rejectable marks calls
// where 400 and 422 concern a single event rather than the whole batch.
func classifyStatus(status int, body []byte, rejectable bool) *Error {
	if status >= 200 && status < 300 {
		return nil
	}
	e := &Error{
		HTTPStatus: status,
		Detail:     Truncate(string(body), MaxEchoedBody),
	}
	switch {
	case status == http.StatusUnauthorized:
		e.Code = CodeUnauthorized
		e.Message = "Canvas rejected the access token"
	case rejectable && (status == http.StatusBadRequest || status == http.StatusUnprocessableEntity):
		e.Code = CodeRejected
		e.Message = "Canvas rejected the calendar event"
	default:
		e.Code = CodeUpstreamError
		e.Message = "Canvas returned HTTP " + strconv.Itoa(status)
	}
	return e
}

// Truncate shortens s to at most n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
