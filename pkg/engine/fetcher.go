package engine

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/DrSkyle/fleetledger/pkg/engine/lifecycle"
	"github.com/DrSkyle/fleetledger/pkg/engine/normalize"
	"github.com/DrSkyle/fleetledger/pkg/engine/report"
	"github.com/DrSkyle/fleetledger/pkg/engine/source"
)

// auditRegion fetches, normalizes, and commits one region's contribution.
// All three sources must complete before anything reaches the correlator; a
// region that fails mid-way contributes nothing at all. The returned error is
// the raw fetch failure (throttle feedback for the pool); degradation is
// captured in the status, never escalated.
func (e *Engine) auditRegion(ctx context.Context, region string, corr *lifecycle.Correlator) (report.RegionStatus, error) {
	ctx, span := e.Tracer.Start(ctx, "Engine.AuditRegion",
		trace.WithAttributes(attribute.String("region", region)))
	defer span.End()

	if e.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.FetchTimeout)
		defer cancel()
	}

	status := report.RegionStatus{Region: region, State: report.RegionComplete}

	var (
		rawLaunches []source.RawEvent
		rawTerms    []source.RawEvent
		rawRunning  []source.RawInstance
	)
	steps := []struct {
		name  string
		fetch func(ctx context.Context) error
	}{
		{"launch-events", func(ctx context.Context) error {
			var err error
			rawLaunches, err = e.launches.LaunchEvents(ctx, region, e.config.Window)
			return err
		}},
		{"termination-events", func(ctx context.Context) error {
			var err error
			rawTerms, err = e.terminations.TerminationEvents(ctx, region, e.config.Window)
			return err
		}},
		{"running-snapshot", func(ctx context.Context) error {
			var err error
			rawRunning, err = e.snapshots.RunningInstances(ctx, region)
			return err
		}},
	}

	for _, step := range steps {
		if err := e.fetchWithRetry(ctx, step.fetch); err != nil {
			e.Logger.Error("Region fetch failed, excluding region",
				"region", region, "source", step.name, "error", err)
			span.SetStatus(codes.Error, "region fetch failed")
			status.State = report.RegionFailed
			status.Error = err.Error()
			return status, err
		}
	}

	collector := normalize.NewCollector(e.Logger)
	norm := normalize.Normalizer{Window: e.config.Window, Collector: collector}

	events := norm.LaunchEvents(region, rawLaunches)
	events = append(events, norm.TerminationEvents(region, rawTerms)...)
	running := norm.Running(region, rawRunning)

	// A cancelled run must never see a partial commit; bail out before
	// touching shared state.
	if err := ctx.Err(); err != nil {
		status.State = report.RegionFailed
		status.Error = err.Error()
		return status, err
	}

	if err := corr.Commit(events, running); err != nil {
		status.State = report.RegionFailed
		status.Error = err.Error()
		return status, err
	}

	status.Malformed = collector.Count()
	if status.Malformed > 0 {
		status.State = report.RegionPartial
		span.SetAttributes(attribute.Int("region.malformed", status.Malformed))
	}

	e.Logger.Info("Region committed",
		"region", region,
		"events", len(events),
		"running", len(running),
		"malformed_skipped", status.Malformed)
	return status, nil
}

// fetchWithRetry runs one source fetch under the configured retry budget and
// the region's timeout context.
func (e *Engine) fetchWithRetry(ctx context.Context, fetch func(ctx context.Context) error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(e.config.FetchRetries)),
		ctx,
	)
	return backoff.Retry(func() error {
		return fetch(ctx)
	}, policy)
}
