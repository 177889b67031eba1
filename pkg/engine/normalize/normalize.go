// Package normalize converts raw source records into typed, validated units.
// Failures are scoped to the single record: it is skipped and reported via a
// collector, never aborting the batch.
package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DrSkyle/fleetledger/pkg/engine/lifecycle"
	"github.com/DrSkyle/fleetledger/pkg/engine/source"
)

// ErrMalformed is the sentinel every per-record rejection unwraps to.
var ErrMalformed = errors.New("malformed record")

// RecordError describes one rejected source record.
type RecordError struct {
	Region     string
	Source     string // "launch-event", "termination-event", "running-snapshot"
	InstanceID string
	Reason     string
}

func (e *RecordError) Error() string {
	id := e.InstanceID
	if id == "" {
		id = "<missing>"
	}
	return fmt.Sprintf("malformed %s record %s/%s: %s", e.Source, e.Region, id, e.Reason)
}

func (e *RecordError) Unwrap() error { return ErrMalformed }

// Collector gathers per-record rejections for one region's batch.
type Collector struct {
	logger *slog.Logger
	errs   []*RecordError
}

func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{logger: logger}
}

func (c *Collector) reject(err *RecordError) {
	c.errs = append(c.errs, err)
	c.logger.Warn("Skipping malformed record",
		"region", err.Region, "source", err.Source, "instance_id", err.InstanceID, "reason", err.Reason)
}

// Count returns the number of records rejected so far.
func (c *Collector) Count() int { return len(c.errs) }

// Errors returns the rejections in arrival order.
func (c *Collector) Errors() []*RecordError { return c.errs }

// Normalizer validates one region's raw batches against the reporting window.
type Normalizer struct {
	Window    lifecycle.Window
	Collector *Collector
}

// LaunchEvents normalizes a batch of raw launch records, skipping and
// collecting malformed entries.
func (n *Normalizer) LaunchEvents(region string, raws []source.RawEvent) []lifecycle.Event {
	return n.events(region, lifecycle.KindLaunch, raws)
}

// TerminationEvents normalizes a batch of raw termination records.
func (n *Normalizer) TerminationEvents(region string, raws []source.RawEvent) []lifecycle.Event {
	return n.events(region, lifecycle.KindTerminate, raws)
}

func (n *Normalizer) events(region string, kind lifecycle.EventKind, raws []source.RawEvent) []lifecycle.Event {
	out := make([]lifecycle.Event, 0, len(raws))
	for _, raw := range raws {
		ev, err := Event(region, kind, raw)
		if err != nil {
			var rerr *RecordError
			if errors.As(err, &rerr) {
				n.Collector.reject(rerr)
			}
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Running normalizes a batch of running-snapshot records. Entries launched
// inside the window are silently dropped: those instances must arrive via a
// launch event instead, or the same lifecycle would be counted twice.
func (n *Normalizer) Running(region string, raws []source.RawInstance) []lifecycle.Running {
	out := make([]lifecycle.Running, 0, len(raws))
	for _, raw := range raws {
		r, ok, err := RunningInstance(region, raw, n.Window)
		if err != nil {
			var rerr *RecordError
			if errors.As(err, &rerr) {
				n.Collector.reject(rerr)
			}
			continue
		}
		if !ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Event normalizes a single raw audit record.
func Event(region string, kind lifecycle.EventKind, raw source.RawEvent) (lifecycle.Event, error) {
	src := "launch-event"
	if kind == lifecycle.KindTerminate {
		src = "termination-event"
	}

	if raw.InstanceID == "" {
		return lifecycle.Event{}, &RecordError{Region: region, Source: src, Reason: "missing instance id"}
	}
	ts, err := parseTime(raw.OccurredAt)
	if err != nil {
		return lifecycle.Event{}, &RecordError{Region: region, Source: src, InstanceID: raw.InstanceID, Reason: err.Error()}
	}

	ev := lifecycle.Event{
		Key:       lifecycle.Key{Region: region, InstanceID: raw.InstanceID},
		Kind:      kind,
		Timestamp: ts,
	}
	if kind == lifecycle.KindLaunch {
		ev.InstanceType = raw.InstanceType
	}
	return ev, nil
}

// RunningInstance normalizes a single snapshot record. The boolean is false
// when the record is valid but excluded by the window filter.
func RunningInstance(region string, raw source.RawInstance, w lifecycle.Window) (lifecycle.Running, bool, error) {
	if raw.InstanceID == "" {
		return lifecycle.Running{}, false, &RecordError{Region: region, Source: "running-snapshot", Reason: "missing instance id"}
	}
	ts, err := parseTime(raw.LaunchedAt)
	if err != nil {
		return lifecycle.Running{}, false, &RecordError{Region: region, Source: "running-snapshot", InstanceID: raw.InstanceID, Reason: err.Error()}
	}
	if !ts.Before(w.Start) {
		return lifecycle.Running{}, false, nil
	}
	return lifecycle.Running{
		Key:          lifecycle.Key{Region: region, InstanceID: raw.InstanceID},
		InstanceType: raw.InstanceType,
		LaunchTime:   ts,
	}, true, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
	}
	return ts, nil
}
