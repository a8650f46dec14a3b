package metrics

import "time"

// Trailing windows for downtime accounting.
const (
	Window7d  = 7 * 24 * time.Hour
	Window30d = 30 * 24 * time.Hour
)

// WindowedDowntime sums the downtime of an entity strictly within the
// trailing 7-day and 30-day windows ending at asOf. Each reconstructed
// interval is clamped to [asOf-W, asOf]; clamped pieces with
// non-positive duration are discarded, and only status=0 pieces count.
//
// Computed directly from raw intervals rather than from EntityMetrics:
// the full recording span may exceed 30 days, so re-clamping would be
// required either way.
func WindowedDowntime(intervals []Interval, asOf time.Time) Downtime {
	var d Downtime
	d.Minutes7d = clampedDowntime(intervals, asOf, Window7d)
	d.Minutes30d = clampedDowntime(intervals, asOf, Window30d)
	return d
}

func clampedDowntime(intervals []Interval, asOf time.Time, window time.Duration) float64 {
	lower := asOf.Add(-window)

	var minutes float64
	for _, iv := range intervals {
		if iv.Status != 0 {
			continue
		}
		start := iv.Start
		if start.Before(lower) {
			start = lower
		}
		end := iv.End
		if end.After(asOf) {
			end = asOf
		}
		if !end.After(start) {
			continue
		}
		minutes += end.Sub(start).Minutes()
	}
	return minutes
}

// AllWindowedDowntimes computes the windowed downtime of every entity
// with at least one sample, keyed by entity id.
func AllWindowedDowntimes(timelines []Timeline, asOf time.Time) map[string]Downtime {
	out := make(map[string]Downtime, len(timelines))
	for _, tl := range timelines {
		if len(tl.Samples) == 0 {
			continue
		}
		out[tl.Entity] = WindowedDowntime(Reconstruct(tl.Samples, asOf), asOf)
	}
	return out
}
