package model

import "time"

// SourceTimeEdit is the fixed Schedule.Source label for TimeEdit feeds.
const SourceTimeEdit = "TimeEdit"

// Event is the canonical representation of a single reservation, independent
// of both the TimeEdit and the Canvas schema.
type Event struct {
	// ExternalID is stable across fetches, e.g. "TE-1106056".
	ExternalID string `json:"externalId"`

	Title       string `json:"title"`
	Location    string `json:"location"`
	Description string `json:"description"`

	// Start / End carry the timezone offset they were composed in.
	// Invariant after validation: End is strictly after Start.
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Summary is derived from Schedule.Events. RangeStart and RangeEnd are nil
// when there are no events.
type Summary struct {
	EventCount int        `json:"eventCount"`
	RangeStart *time.Time `json:"rangeStart"`
	RangeEnd   *time.Time `json:"rangeEnd"`
}

// Schedule is created fresh on every fetch. Events keep source order.
type Schedule struct {
	Source      string    `json:"source"`
	SourceURL   string    `json:"sourceUrl"`
	GeneratedAt time.Time `json:"generatedAt"`
	Events      []*Event  `json:"events"`
	Summary     Summary   `json:"summary"`
}

// Summarize computes the summary over events: count, earliest start and
// latest end.
func Summarize(events []*Event) Summary {
	s := Summary{EventCount: len(events)}
	for _, ev := range events {
		if ev == nil {
			continue
		}
		if !ev.Start.IsZero() && (s.RangeStart == nil || ev.Start.Before(*s.RangeStart)) {
			start := ev.Start
			s.RangeStart = &start
		}
		if !ev.End.IsZero() && (s.RangeEnd == nil || ev.End.After(*s.RangeEnd)) {
			end := ev.End
			s.RangeEnd = &end
		}
	}
	return s
}
