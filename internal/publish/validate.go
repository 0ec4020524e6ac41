package publish

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var contextIDPattern = regexp.MustCompile(`^(course|user)_\d+$`)

// ValidationError reports the first violated request-shape rule.
type ValidationError struct {
	Field      string
	ExternalID string
	Message    string
}

func (e *ValidationError) Error() string {
	return "invalid publish request: " + e.Message
}

func invalid(field, externalID, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, ExternalID: externalID, Message: fmt.Sprintf(format, args...)}
}

// Validate checks a request before any remote call is made. The first
// violation wins.
func Validate(req *Request) error {
	if req == nil {
		return invalid("", "", "Publish request is null")
	}

	ctxID := strings.TrimSpace(req.ContextID)
	if ctxID == "" {
		return invalid("contextId", "", "contextId (canvasContext) is required")
	}
	if !contextIDPattern.MatchString(ctxID) {
		return invalid("contextId", "", "Invalid contextId (canvasContext) format: %q, expected course_<id> or user_<id>", req.ContextID)
	}

	if req.Schedule == nil {
		return invalid("schedule", "", "schedule is required")
	}
	if len(req.Schedule.Events) == 0 {
		return invalid("schedule.events", "", "schedule.events must not be empty")
	}

	for i, ev := range req.Schedule.Events {
		if ev == nil {
			return invalid("schedule.events", "", "Event at index %d is null (externalId=)", i)
		}
		if _, _, err := ev.validate(); err != nil {
			return err
		}
	}
	return nil
}

// validate checks one event and returns its parsed start and end.
func (ev *RequestEvent) validate() (time.Time, time.Time, error) {
	id := ev.ExternalID
	if strings.TrimSpace(ev.Title) == "" {
		return time.Time{}, time.Time{}, invalid("title", id, "Event title is required (externalId=%s)", id)
	}
	start, err := parseTimestamp(ev.Start)
	if err != nil {
		return time.Time{}, time.Time{}, invalid("start", id, "Event start is missing or invalid (externalId=%s)", id)
	}
	end, err := parseTimestamp(ev.End)
	if err != nil {
		return time.Time{}, time.Time{}, invalid("end", id, "Event end is missing or invalid (externalId=%s)", id)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, invalid("end", id, "Event end must be after start (externalId=%s)", id)
	}
	return start, end, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	return time.Parse(time.RFC3339, s)
}
