package publish

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	ev := func(id, title, start, end string) *RequestEvent {
		return &RequestEvent{ExternalID: id, Title: title, Start: start, End: end}
	}
	const (
		s = "2026-01-20T08:00:00+01:00"
		e = "2026-01-20T09:00:00+01:00"
	)
	withEvents := func(events ...*RequestEvent) *Request {
		return &Request{ContextID: "course_42", Schedule: &RequestSchedule{Events: events}}
	}

	tests := []struct {
		name      string
		req       *Request
		wantField string
		wantMsg   string
	}{
		{name: "valid course", req: withEvents(ev("TE-1", "x", s, e))},
		{name: "valid user", req: &Request{ContextID: "user_1", Schedule: &RequestSchedule{Events: []*RequestEvent{ev("TE-1", "x", s, e)}}}},
		{name: "nil request", req: nil, wantMsg: "null"},
		{name: "blank context", req: &Request{ContextID: "  ", Schedule: &RequestSchedule{}}, wantField: "contextId", wantMsg: "required"},
		{name: "classroom context", req: &Request{ContextID: "classroom_7"}, wantField: "contextId", wantMsg: "canvasContext"},
		{name: "course without digits", req: &Request{ContextID: "course_"}, wantField: "contextId"},
		{name: "group context", req: &Request{ContextID: "group_3"}, wantField: "contextId"},
		{name: "missing schedule", req: &Request{ContextID: "course_42"}, wantField: "schedule"},
		{name: "empty events", req: withEvents(), wantField: "schedule.events"},
		{name: "nil event", req: withEvents(ev("TE-1", "x", s, e), nil), wantField: "schedule.events", wantMsg: "index 1"},
		{name: "blank title", req: withEvents(ev("TE-9", " ", s, e)), wantField: "title", wantMsg: "externalId=TE-9"},
		{name: "missing start", req: withEvents(ev("TE-9", "x", "", e)), wantField: "start", wantMsg: "externalId=TE-9"},
		{name: "bad start", req: withEvents(ev("TE-9", "x", "20 Jan 2026", e)), wantField: "start"},
		{name: "start without offset", req: withEvents(ev("TE-9", "x", "2026-01-20T08:00:00", e)), wantField: "start"},
		{name: "bad end", req: withEvents(ev("TE-9", "x", s, "tomorrow")), wantField: "end"},
		{name: "end equals start", req: withEvents(ev("TE-9", "x", s, s)), wantField: "end", wantMsg: "after start"},
		{name: "end before start", req: withEvents(ev("", "x", e, s)), wantField: "end", wantMsg: "externalId=)"},
		{name: "first violation wins", req: withEvents(ev("TE-1", "", s, s)), wantField: "title"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tt.req)
			if tt.wantField == "" && tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if tt.wantField != "" && vErr.Field != tt.wantField {
				t.Fatalf("field = %q, want %q (%s)", vErr.Field, tt.wantField, vErr.Message)
			}
			if !strings.Contains(vErr.Message, tt.wantMsg) {
				t.Fatalf("message %q does not contain %q", vErr.Message, tt.wantMsg)
			}
		})
	}
}
