package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pulsesync/internal/canvas"
	appLog "pulsesync/internal/log"
	"pulsesync/internal/publish"
)

// IdentityResolver is the part of canvas.Client used to derive a personal
// calendar context.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context) (canvas.Identity, error)
}

// Job is one configured TimeEdit to Canvas sync.
type Job struct {
	ID  string
	URL string
	// ContextID is the Canvas calendar context. Empty means the token
	// owner's personal calendar.
	ContextID string
	Location  *time.Location
}

// SyncRunner runs a Job end to end: fetch and normalize, resolve the context,
// build and publish the request.
type SyncRunner struct {
	fetcher   *Fetcher
	identity  IdentityResolver
	publisher *publish.Publisher
}

func NewSyncRunner(fetcher *Fetcher, identity IdentityResolver, publisher *publish.Publisher) *SyncRunner {
	return &SyncRunner{fetcher: fetcher, identity: identity, publisher: publisher}
}

// Run executes job once. Errors keep their *timeedit.Error, *canvas.Error
// or *publish.ValidationError type.
func (r *SyncRunner) Run(ctx context.Context, job Job) (*publish.Result, error) {
	runID := uuid.NewString()
	started := time.Now()
	appLog.Info("sync run start", "job", job.ID, "run_id", runID)

	loc := job.Location
	if loc == nil {
		loc = time.UTC
	}

	schedule, err := r.fetcher.FetchAndNormalize(ctx, job.URL, loc)
	if err != nil {
		appLog.Error("sync fetch failed", err, "job", job.ID, "run_id", runID)
		return nil, err
	}
	if len(schedule.Events) == 0 {
		appLog.Info("sync run skipped, schedule is empty", "job", job.ID, "run_id", runID)
		return &publish.Result{}, nil
	}

	contextID := strings.TrimSpace(job.ContextID)
	if contextID == "" {
		id, err := r.identity.ResolveIdentity(ctx)
		if err != nil {
			appLog.Error("sync identity lookup failed", err, "job", job.ID, "run_id", runID)
			return nil, fmt.Errorf("resolve calendar context: %w", err)
		}
		contextID = id.ContextID()
	}

	res, err := r.publisher.Publish(ctx, publish.FromSchedule(contextID, schedule))
	if err != nil {
		appLog.Error("sync publish failed", err, "job", job.ID, "run_id", runID)
		return nil, err
	}

	appLog.Info("sync run completed",
		"job", job.ID,
		"run_id", runID,
		"event_count", len(schedule.Events),
		"published", res.Published,
		"failed", res.Failed,
		"duration", time.Since(started).String(),
	)
	return res, nil
}
