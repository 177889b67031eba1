package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrSkyle/fleetledger/pkg/engine/lifecycle"
	"github.com/DrSkyle/fleetledger/pkg/engine/report"
	"github.com/DrSkyle/fleetledger/pkg/engine/source"
)

var auditWindow = lifecycle.Window{
	Start: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2026, time.January, 31, 23, 59, 59, 0, time.UTC),
}

// fakeSource serves canned per-region data and optionally fails whole regions.
type fakeSource struct {
	launches     map[string][]source.RawEvent
	terminations map[string][]source.RawEvent
	running      map[string][]source.RawInstance
	failRegions  map[string]error
}

func (f *fakeSource) LaunchEvents(ctx context.Context, region string, w lifecycle.Window) ([]source.RawEvent, error) {
	if err := f.failRegions[region]; err != nil {
		return nil, err
	}
	return f.launches[region], nil
}

func (f *fakeSource) TerminationEvents(ctx context.Context, region string, w lifecycle.Window) ([]source.RawEvent, error) {
	if err := f.failRegions[region]; err != nil {
		return nil, err
	}
	return f.terminations[region], nil
}

func (f *fakeSource) RunningInstances(ctx context.Context, region string) ([]source.RawInstance, error) {
	if err := f.failRegions[region]; err != nil {
		return nil, err
	}
	return f.running[region], nil
}

func (f *fakeSource) Regions(ctx context.Context) ([]string, error) {
	return []string{"eu-west-1", "us-east-1"}, nil
}

// memStore keeps artifacts in memory for assertions.
type memStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func (m *memStore) Put(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blobs == nil {
		m.blobs = map[string][]byte{}
	}
	m.blobs[key] = data
	return nil
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blobs[key], nil
}

func newTestEngine(t *testing.T, cfg Config, src *fakeSource) *Engine {
	t.Helper()
	cfg.SkipTelemetry = true
	if cfg.FetchRetries == 0 {
		cfg.FetchRetries = 1
	}
	cfg.Logger = slog.New(slog.DiscardHandler)

	e, err := New(context.Background(),
		WithConfig(cfg),
		WithSources(src, src, src),
		WithRegionLister(src),
	)
	require.NoError(t, err)
	return e
}

func twoRegionFixture() *fakeSource {
	return &fakeSource{
		launches: map[string][]source.RawEvent{
			"us-east-1": {
				{InstanceID: "i-1", InstanceType: "t3.micro", OccurredAt: "2026-01-01T10:00:00Z"},
			},
		},
		terminations: map[string][]source.RawEvent{
			"us-east-1": {
				{InstanceID: "i-1", OccurredAt: "2026-01-05T10:00:00Z"},
			},
			"eu-west-1": {
				{InstanceID: "i-9", OccurredAt: "2026-01-02T10:00:00Z"},
			},
		},
		running: map[string][]source.RawInstance{
			"us-east-1": {
				{InstanceID: "i-2", InstanceType: "m5.large", LaunchedAt: "2025-12-01T00:00:00Z"},
			},
		},
		failRegions: map[string]error{},
	}
}

func TestRunTwoRegionScenario(t *testing.T) {
	e := newTestEngine(t, Config{
		Regions: []string{"us-east-1", "eu-west-1"},
		Window:  auditWindow,
	}, twoRegionFixture())

	rep, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rep)

	require.Len(t, rep.Records, 2)
	terminated := rep.Records[0]
	assert.Equal(t, "i-1", terminated.Key.InstanceID)
	assert.Equal(t, lifecycle.OriginEvent, terminated.LaunchOrigin)
	assert.Equal(t, time.Date(2026, time.January, 5, 10, 0, 0, 0, time.UTC), terminated.TerminatedAt)

	survivor := rep.Records[1]
	assert.Equal(t, "i-2", survivor.Key.InstanceID)
	assert.Equal(t, lifecycle.OriginSnapshot, survivor.LaunchOrigin)
	assert.True(t, survivor.StillRunning())

	require.Len(t, rep.Orphans, 1)
	assert.Equal(t, "eu-west-1/i-9", rep.Orphans[0].String())

	assert.True(t, rep.Complete())
	assert.Equal(t, 1, rep.StillRunning())
}

func TestRunDiscoversRegionsWhenUnpinned(t *testing.T) {
	e := newTestEngine(t, Config{Window: auditWindow}, twoRegionFixture())

	rep, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Regions, 2)
}

func TestRunFailedRegionExcludedEntirely(t *testing.T) {
	src := twoRegionFixture()
	src.failRegions["eu-west-1"] = errors.New("api unavailable")

	e := newTestEngine(t, Config{
		Regions: []string{"us-east-1", "eu-west-1"},
		Window:  auditWindow,
	}, src)

	rep, err := e.Run(context.Background())
	require.NoError(t, err)

	// The healthy region's evidence survives; the failed one contributed
	// nothing, so the eu-west-1 orphan is absent.
	require.Len(t, rep.Records, 2)
	assert.Empty(t, rep.Orphans)
	assert.False(t, rep.Complete())

	var failed report.RegionStatus
	for _, st := range rep.Regions {
		if st.Region == "eu-west-1" {
			failed = st
		}
	}
	assert.Equal(t, report.RegionFailed, failed.State)
	assert.Contains(t, failed.Error, "api unavailable")
}

func TestRunStrictModeFailsOnPartial(t *testing.T) {
	src := twoRegionFixture()
	src.failRegions["eu-west-1"] = errors.New("api unavailable")

	e := newTestEngine(t, Config{
		Regions:    []string{"us-east-1", "eu-west-1"},
		Window:     auditWindow,
		StrictMode: true,
	}, src)

	rep, err := e.Run(context.Background())
	assert.ErrorIs(t, err, ErrPartialResult)
	require.NotNil(t, rep, "the report is still usable under strict mode")
	assert.Len(t, rep.Records, 2)
}

func TestRunMalformedRecordsYieldPartialRegion(t *testing.T) {
	src := twoRegionFixture()
	src.launches["us-east-1"] = append(src.launches["us-east-1"],
		source.RawEvent{InstanceID: "", OccurredAt: "2026-01-03T00:00:00Z"})

	e := newTestEngine(t, Config{
		Regions: []string{"us-east-1"},
		Window:  auditWindow,
	}, src)

	rep, err := e.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Regions, 1)
	assert.Equal(t, report.RegionPartial, rep.Regions[0].State)
	assert.Equal(t, 1, rep.Regions[0].Malformed)
	assert.Len(t, rep.Records, 2)
}

func TestRunInvalidWindowIsFatal(t *testing.T) {
	e := newTestEngine(t, Config{
		Regions: []string{"us-east-1"},
		Window:  lifecycle.Window{Start: auditWindow.End, End: auditWindow.Start},
	}, twoRegionFixture())

	_, err := e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid window")
}

func TestRunCancelledContext(t *testing.T) {
	e := newTestEngine(t, Config{
		Regions: []string{"us-east-1", "eu-west-1"},
		Window:  auditWindow,
	}, twoRegionFixture())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExportWritesBothArtifacts(t *testing.T) {
	store := &memStore{}
	e := newTestEngine(t, Config{
		Regions: []string{"us-east-1", "eu-west-1"},
		Window:  auditWindow,
	}, twoRegionFixture())
	WithStore(store)(e)

	rep, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.Export(context.Background(), rep))

	stamp := rep.GeneratedAt.Format("20060102-150405")
	jsonBlob, err := store.Get(context.Background(), "lifecycle-"+stamp+".json")
	require.NoError(t, err)
	assert.Contains(t, string(jsonBlob), `"orphan_terminations"`)

	csvBlob, err := store.Get(context.Background(), "lifecycle-"+stamp+".csv")
	require.NoError(t, err)
	assert.Contains(t, string(csvBlob), report.StillRunningMarker)
}
