package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pulsesync/internal/canvas"
	appLog "pulsesync/internal/log"
	"pulsesync/internal/metrics"
)

// EventCreator is the part of canvas.Client the publisher needs.
type EventCreator interface {
	CreateCalendarEvent(ctx context.Context, ev canvas.CalendarEventRequest) (canvas.RemoteEvent, error)
}

// Publisher creates one Canvas calendar event per request event, strictly in
// request order.
type Publisher struct {
	creator EventCreator
	metrics *metrics.Metrics
}

func NewPublisher(creator EventCreator, m *metrics.Metrics) *Publisher {
	return &Publisher{creator: creator, metrics: m}
}

// Publish validates req and publishes its events one at a time.
//
// A failure whose canvas.Code is fatal aborts the batch: the wrapped
// *canvas.Error is returned, no Result is produced and events after the
// failing one are never attempted. Any other failure is recorded in
// Result.Failures and the loop continues.
func (p *Publisher) Publish(ctx context.Context, req *Request) (*Result, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	contextID := strings.TrimSpace(req.ContextID)
	res := &Result{}

	for i, ev := range req.Schedule.Events {
		start, end, err := ev.validate()
		if err != nil {
			return nil, err
		}

		_, err = p.creator.CreateCalendarEvent(ctx, canvas.CalendarEventRequest{
			ContextCode: contextID,
			Title:       strings.TrimSpace(ev.Title),
			Start:       start,
			End:         end,
			Location:    strings.TrimSpace(ev.Location),
			Description: strings.TrimSpace(ev.Description),
		})
		if err == nil {
			res.Published++
			p.metrics.PublishEvent(metrics.OutcomeSuccess)
			continue
		}

		var cErr *canvas.Error
		if errors.As(err, &cErr) && cErr.Code.Fatal() {
			appLog.Error("publish aborted", err,
				"context", contextID,
				"external_id", ev.ExternalID,
				"published", res.Published,
				"not_attempted", len(req.Schedule.Events)-i-1,
			)
			p.metrics.PublishEvent(metrics.OutcomeFailure)
			p.metrics.PublishBatch(metrics.OutcomeAborted)
			return nil, fmt.Errorf("publish aborted at externalId=%s: %w", ev.ExternalID, err)
		}

		appLog.Warn("publish event failed", "external_id", ev.ExternalID, "reason", err.Error())
		p.metrics.PublishEvent(metrics.OutcomeRejected)
		res.Failures = append(res.Failures, Failure{ExternalID: ev.ExternalID, Reason: failureReason(err)})
	}

	res.Failed = len(res.Failures)
	if res.Failed == 0 {
		p.metrics.PublishBatch(metrics.OutcomeSuccess)
	} else {
		p.metrics.PublishBatch(metrics.OutcomePartial)
	}
	appLog.Info("publish completed", "context", contextID, "published", res.Published, "failed", res.Failed)
	return res, nil
}

func failureReason(err error) string {
	var cErr *canvas.Error
	if errors.As(err, &cErr) {
		return cErr.Message
	}
	return err.Error()
}
