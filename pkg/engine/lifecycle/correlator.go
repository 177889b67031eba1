package lifecycle

import (
	"errors"
	"sync"
	"time"
)

// ErrSealed indicates a commit arrived after finalization.
var ErrSealed = errors.New("correlator already finalized")

type launchEntry struct {
	instanceType string
	at           time.Time
	origin       Origin
}

// Correlator accumulates normalized units from all regions and resolves them
// into one lifecycle per instance key. One instance per run; commits are
// atomic per region and ingestion is commutative, so the final state does not
// depend on arrival order.
type Correlator struct {
	mu           sync.Mutex
	launches     map[Key]launchEntry
	terminations map[Key]time.Time
	sealed       bool
}

func NewCorrelator() *Correlator {
	return &Correlator{
		launches:     make(map[Key]launchEntry),
		terminations: make(map[Key]time.Time),
	}
}

// Commit ingests one region's full contribution under a single exclusive
// section. Callers must have finished fetching and normalizing the region
// before calling; a partially-fetched region must never reach this point.
func (c *Correlator) Commit(events []Event, running []Running) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sealed {
		return ErrSealed
	}

	for _, ev := range events {
		switch ev.Kind {
		case KindLaunch:
			c.ingestLaunch(ev)
		case KindTerminate:
			c.ingestTermination(ev)
		}
	}
	for _, r := range running {
		c.ingestRunning(r)
	}
	return nil
}

func (c *Correlator) ingestLaunch(ev Event) {
	cur, ok := c.launches[ev.Key]
	switch {
	case !ok:
		c.launches[ev.Key] = launchEntry{ev.InstanceType, ev.Timestamp, OriginEvent}
	case cur.origin == OriginSnapshot:
		// An explicit audit event supersedes the inferred snapshot entry.
		c.launches[ev.Key] = launchEntry{ev.InstanceType, ev.Timestamp, OriginEvent}
	case ev.Timestamp.Before(cur.at):
		// Replayed or duplicated audit entries collapse to the earliest.
		c.launches[ev.Key] = launchEntry{ev.InstanceType, ev.Timestamp, OriginEvent}
	}
}

func (c *Correlator) ingestTermination(ev Event) {
	if cur, ok := c.terminations[ev.Key]; !ok || ev.Timestamp.Before(cur) {
		c.terminations[ev.Key] = ev.Timestamp
	}
}

func (c *Correlator) ingestRunning(r Running) {
	// Never overwrite an existing entry of either origin.
	if _, ok := c.launches[r.Key]; ok {
		return
	}
	c.launches[r.Key] = launchEntry{r.InstanceType, r.LaunchTime, OriginSnapshot}
}

// Result is the finalized output of one correlation pass.
type Result struct {
	Records []Record
	Orphans []Key
}

// Finalize seals the correlator and assembles its state. Every key with a
// resolvable launch origin yields a record; keys present only in termination
// evidence are reported as orphans, never fabricated into records. Missing
// termination evidence is a first-class state, not a failure.
func (c *Correlator) Finalize() Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sealed = true
	return assemble(c.launches, c.terminations)
}
