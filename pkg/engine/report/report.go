// Package report defines the logical output of one audit run and its
// renderings. The engine hands over records and statuses; encodings live
// here, never in the correlator.
package report

import (
	"time"

	"github.com/DrSkyle/fleetledger/pkg/engine/lifecycle"
)

// RegionState classifies one region's contribution to the run.
type RegionState string

const (
	// RegionComplete means every fetched record was ingested.
	RegionComplete RegionState = "complete"
	// RegionPartial means the region committed but some records were
	// rejected as malformed.
	RegionPartial RegionState = "partial"
	// RegionFailed means the region exhausted its fetch budget or timed out
	// and contributed zero records.
	RegionFailed RegionState = "failed"
)

// RegionStatus records how one region fared, so consumers cannot mistake an
// incomplete report for a complete one.
type RegionStatus struct {
	Region    string      `json:"region"`
	State     RegionState `json:"state"`
	Error     string      `json:"error,omitempty"`
	Malformed int         `json:"malformed_records,omitempty"`
}

// Report is the consolidated output of one correlation pass.
type Report struct {
	Window      lifecycle.Window
	GeneratedAt time.Time
	Records     []lifecycle.Record
	Orphans     []lifecycle.Key
	Regions     []RegionStatus
}

// Complete reports whether every region contributed fully.
func (r *Report) Complete() bool {
	for _, st := range r.Regions {
		if st.State != RegionComplete {
			return false
		}
	}
	return true
}

// StillRunning counts records with no termination evidence.
func (r *Report) StillRunning() int {
	n := 0
	for _, rec := range r.Records {
		if rec.StillRunning() {
			n++
		}
	}
	return n
}
