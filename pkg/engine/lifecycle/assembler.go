package lifecycle

import (
	"sort"
	"time"
)

// assemble is a pure function over the finalized correlator state. Identical
// inputs always yield identically ordered output regardless of the order
// regions or events arrived in, which is what keeps historical reports
// diffable.
func assemble(launches map[Key]launchEntry, terminations map[Key]time.Time) Result {
	records := make([]Record, 0, len(launches))
	for key, entry := range launches {
		rec := Record{
			Key:          key,
			InstanceType: entry.instanceType,
			LaunchedAt:   entry.at,
			LaunchOrigin: entry.origin,
		}
		if term, ok := terminations[key]; ok {
			rec.TerminatedAt = term
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Key.Less(records[j].Key)
	})

	var orphans []Key
	for key := range terminations {
		if _, ok := launches[key]; !ok {
			orphans = append(orphans, key)
		}
	}
	sort.Slice(orphans, func(i, j int) bool {
		return orphans[i].Less(orphans[j])
	})

	return Result{Records: records, Orphans: orphans}
}
