package timeedit

import (
	"time"

	"pulsesync/internal/model"
)

// ValidateSchedule checks the temporal invariants of a parsed schedule: every
// event is present, has a start and an end, and ends strictly after it
// starts. Violations are reported as KindParseError.
func ValidateSchedule(s *model.Schedule) error {
	if s == nil {
		return parseError("Schedule is null")
	}
	if s.Events == nil {
		return parseError("Schedule events is null")
	}

	for _, ev := range s.Events {
		if ev == nil {
			return parseError("Schedule contains null event")
		}
		if ev.Start.IsZero() || ev.End.IsZero() {
			return parseError("Event has missing start/end: externalId=%s", ev.ExternalID)
		}
		if !ev.End.After(ev.Start) {
			return parseError("Invalid event time range: externalId=%s, start=%s, end=%s",
				ev.ExternalID, ev.Start.Format(time.RFC3339), ev.End.Format(time.RFC3339))
		}
	}
	return nil
}
