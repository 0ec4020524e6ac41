package pipeline

import (
	"context"
	"errors"
	"time"

	"pulsesync/internal/metrics"
	"pulsesync/internal/model"
	"pulsesync/internal/timeedit"
)

// SourceFetcher is the part of timeedit.Fetcher the pipeline needs.
type SourceFetcher interface {
	Fetch(ctx context.Context, rawURL string) (timeedit.FetchResult, error)
}

// Fetcher composes URL normalization, fetch, parse and validation.
type Fetcher struct {
	source  SourceFetcher
	metrics *metrics.Metrics
}

func NewFetcher(source SourceFetcher, m *metrics.Metrics) *Fetcher {
	return &Fetcher{source: source, metrics: m}
}

// FetchAndNormalize turns a user supplied TimeEdit URL into a validated
// Schedule with times in loc. It stops at the first failure and returns that
// *timeedit.Error unchanged.
func (f *Fetcher) FetchAndNormalize(ctx context.Context, rawURL string, loc *time.Location) (*model.Schedule, error) {
	schedule, err := f.fetchAndNormalize(ctx, rawURL, loc)
	f.metrics.SourceFetch(fetchOutcome(err))
	return schedule, err
}

func (f *Fetcher) fetchAndNormalize(ctx context.Context, rawURL string, loc *time.Location) (*model.Schedule, error) {
	normalized, err := timeedit.NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := f.source.Fetch(ctx, normalized)
	f.metrics.ObserveUpstream(metrics.UpstreamTimeEdit, time.Since(start))
	if err != nil {
		return nil, err
	}

	schedule, err := timeedit.Parse(res.Body, res.URL, loc)
	if err != nil {
		return nil, err
	}
	if err := timeedit.ValidateSchedule(schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

func fetchOutcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var teErr *timeedit.Error
	if errors.As(err, &teErr) {
		return teErr.Kind.String()
	}
	return metrics.OutcomeFailure
}
