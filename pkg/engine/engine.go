// Package engine orchestrates one lifecycle-audit run: regional fan-out,
// normalization, correlation, and report assembly.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	internalconfig "github.com/DrSkyle/fleetledger/pkg/config"
	"github.com/DrSkyle/fleetledger/pkg/engine/aws"
	"github.com/DrSkyle/fleetledger/pkg/engine/lifecycle"
	"github.com/DrSkyle/fleetledger/pkg/engine/report"
	"github.com/DrSkyle/fleetledger/pkg/engine/source"
	"github.com/DrSkyle/fleetledger/pkg/engine/swarm"
	"github.com/DrSkyle/fleetledger/pkg/storage"
	"github.com/DrSkyle/fleetledger/pkg/telemetry"
	"github.com/DrSkyle/fleetledger/pkg/version"
)

// ErrPartialResult indicates the run completed but one or more regions
// degraded. Strict mode turns this into a non-zero exit.
var ErrPartialResult = errors.New("audit completed with partial results")

// Config holds engine settings.
type Config struct {
	// Regions pins the region set; empty means discover via the lister.
	Regions []string

	// Window is the inclusive reporting range, already expanded to day
	// boundaries by the caller.
	Window lifecycle.Window

	MaxConcurrency int
	FetchRetries   int
	FetchTimeout   time.Duration

	// StrictMode forces a non-zero exit code on partial results.
	StrictMode bool

	JsonLogs bool
	Verbose  bool

	// Telemetry config.
	OtelEndpoint  string
	SkipTelemetry bool

	// Dependencies.
	Logger *slog.Logger
}

// Engine is the runtime core. A fresh correlator is created per Run; nothing
// survives across invocations.
type Engine struct {
	Logger *slog.Logger
	Tracer trace.Tracer

	config Config

	launches     source.LaunchSource
	terminations source.TerminationSource
	snapshots    source.SnapshotSource
	regions      source.RegionLister
	store        storage.BlobStore
}

// Option defines a functional configuration override.
type Option func(*Engine)

// New initializes the Engine.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: redactSensitiveData,
	})
	e := &Engine{
		Logger: slog.New(handler),
		Tracer: otel.Tracer("fleetledger/engine"),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.config.MaxConcurrency <= 0 {
		e.config.MaxConcurrency = internalconfig.DefaultConcurrency
	}
	if e.config.FetchRetries <= 0 {
		e.config.FetchRetries = internalconfig.DefaultFetchRetries
	}
	if e.config.FetchTimeout <= 0 {
		e.config.FetchTimeout = internalconfig.DefaultFetchTimeout
	}

	if !e.config.SkipTelemetry {
		if _, err := telemetry.Init(ctx, version.AppName, version.Current, e.config.OtelEndpoint); err != nil {
			e.Logger.Warn("Telemetry failed", "error", err)
		}
	}

	return e, nil
}

// WithConfig sets raw config.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.config = cfg
		if cfg.Logger != nil {
			e.Logger = cfg.Logger
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.Logger = l
	}
}

// WithSources sets the retrieval collaborators.
func WithSources(l source.LaunchSource, t source.TerminationSource, s source.SnapshotSource) Option {
	return func(e *Engine) {
		e.launches = l
		e.terminations = t
		e.snapshots = s
	}
}

// WithRegionLister sets the region enumerator used when no explicit region
// set is configured.
func WithRegionLister(r source.RegionLister) Option {
	return func(e *Engine) {
		e.regions = r
	}
}

// WithStore sets the artifact backend.
func WithStore(s storage.BlobStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// Run executes one full reconstruction pass and returns the report. On
// ErrPartialResult the report is still valid, just flagged incomplete.
func (e *Engine) Run(ctx context.Context) (*report.Report, error) {
	ctx, span := e.Tracer.Start(ctx, "Engine.Run")
	defer span.End()

	// The only fatal contract violation; checked before any fetch.
	if err := e.config.Window.Validate(); err != nil {
		return nil, fmt.Errorf("invalid window: %w", err)
	}
	if e.launches == nil || e.terminations == nil || e.snapshots == nil {
		return nil, errors.New("engine: sources not configured")
	}

	regions := e.config.Regions
	if len(regions) == 0 {
		if e.regions == nil {
			return nil, errors.New("engine: no regions configured and no region lister")
		}
		var err error
		regions, err = e.regions.Regions(ctx)
		if err != nil {
			return nil, fmt.Errorf("region discovery: %w", err)
		}
	}

	e.Logger.Info("Starting lifecycle audit",
		"regions", len(regions),
		"window_start", e.config.Window.Start,
		"window_end", e.config.Window.End,
		"concurrency", e.config.MaxConcurrency)

	corr := lifecycle.NewCorrelator()
	pool := swarm.NewPool(e.config.MaxConcurrency, aws.IsThrottle)

	statuses := make([]report.RegionStatus, len(regions))
	for i, region := range regions {
		pool.Go(ctx, func(ctx context.Context) error {
			status, err := e.auditRegion(ctx, region, corr)
			statuses[i] = status
			return err
		})
	}

	// Finalization must not run while any region's commit is outstanding.
	pool.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := corr.Finalize()
	rep := &report.Report{
		Window:      e.config.Window,
		GeneratedAt: time.Now().UTC(),
		Records:     result.Records,
		Orphans:     result.Orphans,
		Regions:     statuses,
	}

	span.SetAttributes(
		attribute.Int("audit.records", len(rep.Records)),
		attribute.Int("audit.orphans", len(rep.Orphans)),
		attribute.Bool("audit.partial", !rep.Complete()),
	)

	if !rep.Complete() {
		if e.config.StrictMode {
			e.Logger.Error("Strict Mode: failing due to partial results")
			return rep, ErrPartialResult
		}
		e.Logger.Warn("Audit finished with degraded regions (StrictMode=false)")
	}

	return rep, nil
}

// Export renders the report artifacts and writes them to the configured
// backend.
func (e *Engine) Export(ctx context.Context, rep *report.Report) error {
	if e.store == nil {
		return nil
	}

	stamp := rep.GeneratedAt.Format("20060102-150405")

	jsonBytes, err := report.RenderJSON(rep)
	if err != nil {
		return fmt.Errorf("render json: %w", err)
	}
	if err := e.store.Put(ctx, fmt.Sprintf("lifecycle-%s.json", stamp), jsonBytes); err != nil {
		return err
	}

	csvBytes, err := report.RenderCSV(rep)
	if err != nil {
		return fmt.Errorf("render csv: %w", err)
	}
	if err := e.store.Put(ctx, fmt.Sprintf("lifecycle-%s.csv", stamp), csvBytes); err != nil {
		return err
	}

	e.Logger.Info("Report exported", "records", len(rep.Records), "orphans", len(rep.Orphans))
	return nil
}

// redactSensitiveData scrubs sensitive keys from logs.
func redactSensitiveData(groups []string, a slog.Attr) slog.Attr {
	sensitiveKeys := map[string]bool{
		"account": true, "access_key": true, "token": true, "secret": true,
		"credential": true, "session_token": true, "signature": true,
	}

	if sensitiveKeys[a.Key] {
		return slog.Attr{
			Key:   a.Key,
			Value: slog.StringValue("[REDACTED]"),
		}
	}
	return a
}
