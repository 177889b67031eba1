// Package source defines the contracts for the retrieval collaborators the
// engine consumes. Pagination, credentials, and API mechanics live behind
// these interfaces; the engine only sees raw records.
package source

import (
	"context"

	"github.com/DrSkyle/fleetledger/pkg/engine/lifecycle"
)

// RawEvent is one audit log entry as handed over by a retrieval collaborator.
// Timestamps stay strings (RFC3339) until the normalizer has vetted them, so
// corrupted source records can be skipped instead of reconstructed.
type RawEvent struct {
	InstanceID   string
	InstanceType string
	OccurredAt   string
}

// RawInstance is one entry from a running-instance listing.
type RawInstance struct {
	InstanceID   string
	InstanceType string
	LaunchedAt   string
}

// LaunchSource retrieves instance launch evidence for one region, bounded to
// the window.
type LaunchSource interface {
	LaunchEvents(ctx context.Context, region string, w lifecycle.Window) ([]RawEvent, error)
}

// TerminationSource retrieves instance termination evidence for one region.
type TerminationSource interface {
	TerminationEvents(ctx context.Context, region string, w lifecycle.Window) ([]RawEvent, error)
}

// SnapshotSource lists the instances currently running in one region.
type SnapshotSource interface {
	RunningInstances(ctx context.Context, region string) ([]RawInstance, error)
}

// RegionLister enumerates the account's enabled regions, supplied once per
// run when the caller does not pin an explicit set.
type RegionLister interface {
	Regions(ctx context.Context) ([]string, error)
}
