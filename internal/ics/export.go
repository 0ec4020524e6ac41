package ics

import (
	"errors"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "pulsesync/internal/log"
	"pulsesync/internal/model"
)

// ProductID identifies calendars produced by this service.
const ProductID = "-//pulsesync//TimeEdit export//EN"

// ContentType is the media type of Export output.
const ContentType = "text/calendar; charset=utf-8"

// Export serializes a Schedule as an iCalendar document with one VEVENT per
// event. The event's externalId is used as UID so repeated exports of the
// same feed update rather than duplicate entries in subscribing clients.
func Export(s *model.Schedule, name string) (string, error) {
	if s == nil {
		return "", errors.New("schedule is nil")
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	stamp := s.GeneratedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}

	for _, ev := range s.Events {
		if ev == nil {
			continue
		}
		vev := cal.AddEvent(ev.ExternalID)
		vev.SetDtStampTime(stamp)
		vev.SetStartAt(ev.Start)
		vev.SetEndAt(ev.End)
		vev.SetSummary(ev.Title)
		if ev.Location != "" {
			vev.SetLocation(ev.Location)
		}
		if ev.Description != "" {
			vev.SetDescription(ev.Description)
		}
	}

	out := cal.Serialize()
	appLog.Debug("ics export completed", "event_count", len(s.Events), "bytes", len(out))
	return out, nil
}
