// Package lifecycle reconstructs per-instance lifecycles from independently
// retrieved launch evidence, termination evidence, and running snapshots.
package lifecycle

import (
	"fmt"
	"time"
)

// Key identifies one instance within an account. EC2 instance ids are only
// unique per region, so the region always travels with the id.
type Key struct {
	Region     string `json:"region"`
	InstanceID string `json:"instance_id"`
}

func (k Key) String() string {
	return k.Region + "/" + k.InstanceID
}

// Less orders keys by (region, instance id).
func (k Key) Less(o Key) bool {
	if k.Region != o.Region {
		return k.Region < o.Region
	}
	return k.InstanceID < o.InstanceID
}

// Window is the inclusive historical range being reconstructed. Callers
// expand it to day boundaries before handing it to the engine.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate rejects an inverted window. This is the only fatal contract
// violation in the system and is checked before any fetch begins.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("window boundaries must be set")
	}
	if w.End.Before(w.Start) {
		return fmt.Errorf("window end %s precedes start %s", w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}
	return nil
}
