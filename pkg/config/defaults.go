// Package config defines default tuning values and window helpers.
package config

import "time"

// Defaults.
const (
	DefaultRegion = "us-east-1"

	// DefaultWindowDays is the reporting window when the caller gives no
	// explicit boundaries.
	DefaultWindowDays = 30

	// DefaultConcurrency bounds concurrent region fetches; CloudTrail's
	// LookupEvents quota punishes anything greedier.
	DefaultConcurrency = 8

	// DefaultFetchRetries is the retry budget per regional fetch.
	DefaultFetchRetries = 3

	// DefaultFetchTimeout caps one region's whole fetch phase.
	DefaultFetchTimeout = 5 * time.Minute
)

// DayBounds expands a window to inclusive UTC day boundaries: start snaps
// back to midnight, end forward to the last second of its day. The engine
// expects windows already expanded this way.
func DayBounds(start, end time.Time) (time.Time, time.Time) {
	start = start.UTC()
	end = end.UTC()
	lo := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	hi := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, time.UTC)
	return lo, hi
}
