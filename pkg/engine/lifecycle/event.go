package lifecycle

import "time"

// EventKind tags audit evidence. There are exactly two kinds; anything else
// is filtered out before normalization.
type EventKind int

const (
	KindLaunch EventKind = iota
	KindTerminate
)

func (k EventKind) String() string {
	if k == KindTerminate {
		return "terminate"
	}
	return "launch"
}

// Origin records where launch evidence came from. An explicit audit event
// always supersedes an entry inferred from the running snapshot.
type Origin int

const (
	OriginEvent Origin = iota
	OriginSnapshot
)

func (o Origin) String() string {
	if o == OriginSnapshot {
		return "snapshot"
	}
	return "event"
}

// Event is one normalized audit record. Immutable; InstanceType is only
// populated for launches.
type Event struct {
	Key          Key
	Kind         EventKind
	Timestamp    time.Time
	InstanceType string
}

// Running is one normalized entry from the running-instance snapshot. It
// describes observed state at snapshot time, not an event.
type Running struct {
	Key          Key
	InstanceType string
	LaunchTime   time.Time
}

// Record is the consolidated lifecycle of a single instance. A zero
// TerminatedAt means no termination evidence exists for the key.
type Record struct {
	Key          Key
	InstanceType string
	LaunchedAt   time.Time
	TerminatedAt time.Time
	LaunchOrigin Origin
}

// StillRunning reports whether the instance had no observed termination as of
// snapshot time.
func (r Record) StillRunning() bool {
	return r.TerminatedAt.IsZero()
}
