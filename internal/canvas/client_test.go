package canvas

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		BaseURL:   srv.URL + "/",
		Token:     "secret-token",
		Timeout:   time.Second,
		RateLimit: 1000,
		RateBurst: 10,
	})
}

func asCanvasError(t *testing.T, err error) *Error {
	t.Helper()
	var cErr *Error
	if !errors.As(err, &cErr) {
		t.Fatalf("expected *canvas.Error, got %v", err)
	}
	return cErr
}

func TestResolveIdentity(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/users/self/profile" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("unexpected auth header %q", got)
		}
		_, _ = w.Write([]byte(`{"id":4711,"name":"Ada","login_id":"ada@example.edu","avatar_url":"x"}`))
	})

	id, err := c.ResolveIdentity(context.Background())
	if err != nil {
		t.Fatalf("ResolveIdentity: %v", err)
	}
	if id.ID != 4711 || id.Login != "ada@example.edu" {
		t.Fatalf("unexpected identity %+v", id)
	}
	if id.ContextID() != "user_4711" {
		t.Fatalf("unexpected context id %q", id.ContextID())
	}
}

func TestResolveIdentityLoginFallback(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":1,"login":"ada"}`))
	})
	id, err := c.ResolveIdentity(context.Background())
	if err != nil {
		t.Fatalf("ResolveIdentity: %v", err)
	}
	if id.Login != "ada" {
		t.Fatalf("expected login fallback, got %q", id.Login)
	}
}

func TestResolveIdentityErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		wantCode Code
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"errors":[]}`, wantCode: CodeUnauthorized},
		{name: "server error", status: http.StatusInternalServerError, body: "oops", wantCode: CodeUpstreamError},
		{name: "bad request is not rejected for profile", status: http.StatusBadRequest, body: "", wantCode: CodeUpstreamError},
		{name: "garbage body", status: http.StatusOK, body: "<html>", wantCode: CodeInvalidResponse},
		{name: "missing id", status: http.StatusOK, body: `{"login":"x"}`, wantCode: CodeInvalidResponse},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.ResolveIdentity(context.Background())
			cErr := asCanvasError(t, err)
			if cErr.Code != tt.wantCode {
				t.Fatalf("code = %s, want %s", cErr.Code, tt.wantCode)
			}
			if tt.status != http.StatusOK && cErr.HTTPStatus != tt.status {
				t.Fatalf("status = %d, want %d", cErr.HTTPStatus, tt.status)
			}
		})
	}
}

func TestMissingConfig(t *testing.T) {
	t.Parallel()

	for _, cfg := range []ClientConfig{
		{Token: "t"},
		{BaseURL: "https://canvas.example.edu"},
		{BaseURL: "  ", Token: "  "},
	} {
		c := NewClient(cfg)
		if c.Configured() {
			t.Fatalf("expected unconfigured client for %+v", cfg)
		}
		_, err := c.ResolveIdentity(context.Background())
		if cErr := asCanvasError(t, err); cErr.Code != CodeConfig {
			t.Fatalf("expected config error, got %s", cErr.Code)
		}
		_, err = c.CreateCalendarEvent(context.Background(), CalendarEventRequest{})
		if cErr := asCanvasError(t, err); cErr.Code != CodeConfig {
			t.Fatalf("expected config error, got %s", cErr.Code)
		}
	}
}

func TestUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := NewClient(ClientConfig{BaseURL: base, Token: "t", Timeout: time.Second})
	_, err := c.ResolveIdentity(context.Background())
	if cErr := asCanvasError(t, err); cErr.Code != CodeUnreachable {
		t.Fatalf("expected unreachable, got %s", cErr.Code)
	}
}

func TestCreateCalendarEvent(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("CET", 3600)
	start := time.Date(2026, 1, 20, 8, 15, 0, 0, loc)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/calendar_events" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		want := map[string]string{
			"calendar_event[context_code]":  "course_42",
			"calendar_event[title]":         "Lecture",
			"calendar_event[start_at]":      "2026-01-20T08:15:00+01:00",
			"calendar_event[end_at]":        "2026-01-20T10:00:00+01:00",
			"calendar_event[location_name]": "Room 1",
		}
		for k, v := range want {
			if got := r.PostForm.Get(k); got != v {
				t.Errorf("%s = %q, want %q", k, got, v)
			}
		}
		if _, ok := r.PostForm["calendar_event[description]"]; ok {
			t.Error("empty description should be omitted")
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":99,"html_url":"https://canvas.example.edu/calendar?event_id=99","title":"Lecture"}`))
	})

	remote, err := c.CreateCalendarEvent(context.Background(), CalendarEventRequest{
		ContextCode: "course_42",
		Title:       "Lecture",
		Start:       start,
		End:         start.Add(105 * time.Minute),
		Location:    "Room 1",
	})
	if err != nil {
		t.Fatalf("CreateCalendarEvent: %v", err)
	}
	if remote.ID != 99 || !strings.Contains(remote.HTMLURL, "event_id=99") {
		t.Fatalf("unexpected remote event %+v", remote)
	}
}

func TestCreateCalendarEventUndecodableSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("not json"))
	})
	remote, err := c.CreateCalendarEvent(context.Background(), CalendarEventRequest{ContextCode: "user_1", Title: "t"})
	if err != nil {
		t.Fatalf("a 2xx must count as created, got %v", err)
	}
	if remote.ID != 0 || calls != 1 {
		t.Fatalf("remote = %+v, calls = %d", remote, calls)
	}
}

func TestCreateCalendarEventErrors(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 800)
	tests := []struct {
		name      string
		status    int
		body      string
		wantCode  Code
		wantFatal bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantCode: CodeUnauthorized, wantFatal: true},
		{name: "bad request", status: http.StatusBadRequest, body: long, wantCode: CodeRejected},
		{name: "unprocessable", status: http.StatusUnprocessableEntity, wantCode: CodeRejected},
		{name: "forbidden", status: http.StatusForbidden, wantCode: CodeUpstreamError, wantFatal: true},
		{name: "bad gateway", status: http.StatusBadGateway, wantCode: CodeUpstreamError, wantFatal: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.CreateCalendarEvent(context.Background(), CalendarEventRequest{ContextCode: "user_1", Title: "t"})
			cErr := asCanvasError(t, err)
			if cErr.Code != tt.wantCode {
				t.Fatalf("code = %s, want %s", cErr.Code, tt.wantCode)
			}
			if cErr.Code.Fatal() != tt.wantFatal {
				t.Fatalf("fatal = %v, want %v", cErr.Code.Fatal(), tt.wantFatal)
			}
			if n := len([]rune(cErr.Detail)); n > MaxEchoedBody+3 {
				t.Fatalf("detail not truncated: %d runes", n)
			}
		})
	}
}

func TestCodesFatalSet(t *testing.T) {
	t.Parallel()

	fatal := map[Code]bool{
		CodeConfig:          true,
		CodeUnauthorized:    true,
		CodeUnreachable:     true,
		CodeUpstreamError:   true,
		CodeRejected:        false,
		CodeInvalidResponse: false,
	}
	if len(fatal) != len(Codes()) {
		t.Fatalf("fatal table covers %d codes, Codes() has %d", len(fatal), len(Codes()))
	}
	for _, c := range Codes() {
		want, ok := fatal[c]
		if !ok {
			t.Fatalf("code %s missing from table", c)
		}
		if c.Fatal() != want {
			t.Errorf("%s.Fatal() = %v, want %v", c, c.Fatal(), want)
		}
		if strings.HasPrefix(c.String(), "code(") {
			t.Errorf("code %d has no name", int(c))
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := Truncate("short", 500); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	got := Truncate(strings.Repeat("å", 501), 500)
	if !strings.HasSuffix(got, "...") || len([]rune(got)) != 503 {
		t.Fatalf("unexpected truncation: %d runes", len([]rune(got)))
	}
	if got := Truncate(strings.Repeat("a", 500), 500); strings.HasSuffix(got, "...") {
		t.Fatal("exactly n runes should not be cut")
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	t.Parallel()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Token: "t", RateLimit: 0.001, RateBurst: 1})
	if _, err := c.ResolveIdentity(context.Background()); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.ResolveIdentity(ctx)
	if cErr := asCanvasError(t, err); cErr.Code != CodeUnreachable {
		t.Fatalf("expected unreachable when limiter wait is cut short, got %s", cErr.Code)
	}
	if calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls)
	}
}
