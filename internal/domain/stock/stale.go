package stock

import "time"

const (
	DefaultHorizonDays = 30
	MinHorizonDays     = 1
	MaxHorizonDays     = 365
)

const day = 24 * time.Hour

// ClampHorizon keeps a configured horizon within 1..365 days; zero or
// negative values fall back to the default.
func ClampHorizon(days int) int {
	switch {
	case days <= 0:
		return DefaultHorizonDays
	case days > MaxHorizonDays:
		return MaxHorizonDays
	}
	return days
}

// FindStale selects active products whose snapshot was never touched or was
// last touched at least horizonDays ago. Days are fixed 24h spans compared as
// a time delta, not calendar dates. Archived products are always skipped.
func FindStale(entries []Entry, horizonDays int, now time.Time) []Entry {
	horizon := time.Duration(horizonDays) * day
	var out []Entry
	for _, e := range entries {
		if e.Product.Archived {
			continue
		}
		if e.Snapshot == nil || e.Snapshot.LastUpdated == nil {
			out = append(out, e)
			continue
		}
		if now.Sub(*e.Snapshot.LastUpdated) >= horizon {
			out = append(out, e)
		}
	}
	return out
}
