package publish

import (
	"encoding/json"
	"strings"
	"time"

	"pulsesync/internal/model"
)

// Request is an inbound publish request. It is built per call and never
// retained.
type Request struct {
	ContextID string           `json:"contextId"`
	Schedule  *RequestSchedule `json:"schedule"`
}

// UnmarshalJSON accepts the legacy "canvasContext" key when "contextId" is
// absent or blank.
func (r *Request) UnmarshalJSON(data []byte) error {
	type plain Request
	var aux struct {
		plain
		CanvasContext string `json:"canvasContext"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Request(aux.plain)
	if strings.TrimSpace(r.ContextID) == "" {
		r.ContextID = aux.CanvasContext
	}
	return nil
}

type RequestSchedule struct {
	Events []*RequestEvent `json:"events"`
}

// RequestEvent carries start and end as ISO-8601 strings with offset; they
// are parsed during validation.
type RequestEvent struct {
	ExternalID  string `json:"externalId"`
	Title       string `json:"title"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// FromSchedule builds a Request for every event of s.
func FromSchedule(contextID string, s *model.Schedule) *Request {
	req := &Request{ContextID: contextID, Schedule: &RequestSchedule{}}
	if s == nil {
		return req
	}
	req.Schedule.Events = make([]*RequestEvent, 0, len(s.Events))
	for _, ev := range s.Events {
		if ev == nil {
			req.Schedule.Events = append(req.Schedule.Events, nil)
			continue
		}
		req.Schedule.Events = append(req.Schedule.Events, &RequestEvent{
			ExternalID:  ev.ExternalID,
			Title:       ev.Title,
			Start:       ev.Start.Format(time.RFC3339),
			End:         ev.End.Format(time.RFC3339),
			Location:    ev.Location,
			Description: ev.Description,
		})
	}
	return req
}

// Failure is one event that could not be published.
type Failure struct {
	ExternalID string `json:"externalId"`
	Reason     string `json:"reason"`
}

// Result is produced only when the batch ran to completion:
// Published + len(Failures) equals the number of requested events.
type Result struct {
	Published int       `json:"published"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures,omitempty"`
}
