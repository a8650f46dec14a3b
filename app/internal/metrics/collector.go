package metrics

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RecordingStats describes the span and size of the recorded history.
type RecordingStats struct {
	Earliest time.Time
	Latest   time.Time
	Count    int64
}

// Source is the sample-store query surface the collector depends on.
// Implemented by database.Store.
type Source interface {
	EntityTimelines() ([]Timeline, error)
	RecordingStats() (RecordingStats, error)
	SizeBytes() (int64, error)
}

// Collector computes reports and windowed downtimes from a Source at a
// fixed as-of time. It is stateless; every call reads fresh data.
//
// On store failure the collector still returns a fully-shaped zero
// value alongside the error, so callers can distinguish "no data"
// (zero value, nil error) from "query failed" (zero value, error) while
// downstream consumers always see every field present.
type Collector struct {
	Source Source
	Log    zerolog.Logger
}

// Report builds the global availability report as of asOf.
func (c *Collector) Report(asOf time.Time) (Report, error) {
	timelines, err := c.Source.EntityTimelines()
	if err != nil {
		c.Log.Error().Err(err).Msg("loading entity timelines failed")
		return NewReport(), fmt.Errorf("load timelines: %w", err)
	}

	r := BuildReport(timelines, asOf)

	rec, err := c.Source.RecordingStats()
	if err != nil {
		c.Log.Error().Err(err).Msg("loading recording stats failed")
		return NewReport(), fmt.Errorf("recording stats: %w", err)
	}
	r.TotalDatapoints = rec.Count
	r.EarliestTimestamp = rec.Earliest
	r.LatestTimestamp = rec.Latest
	if rec.Count > 0 {
		r.TotalRecordingMinutes = rec.Latest.Sub(rec.Earliest).Minutes()
	}

	if size, err := c.Source.SizeBytes(); err != nil {
		// Size is informational; keep the report usable.
		c.Log.Warn().Err(err).Msg("store size query failed")
	} else {
		r.StoreSizeMB = float64(size) / (1024 * 1024)
	}

	return r, nil
}

// Downtimes computes per-entity trailing 7d/30d downtime as of asOf.
func (c *Collector) Downtimes(asOf time.Time) (map[string]Downtime, error) {
	timelines, err := c.Source.EntityTimelines()
	if err != nil {
		c.Log.Error().Err(err).Msg("loading entity timelines failed")
		return map[string]Downtime{}, fmt.Errorf("load timelines: %w", err)
	}
	return AllWindowedDowntimes(timelines, asOf), nil
}

// Incidents returns the most recent incidents as of asOf, bounded by
// limit.
func (c *Collector) Incidents(asOf time.Time, limit int) ([]Incident, error) {
	timelines, err := c.Source.EntityTimelines()
	if err != nil {
		c.Log.Error().Err(err).Msg("loading entity timelines failed")
		return []Incident{}, fmt.Errorf("load timelines: %w", err)
	}
	return RecentIncidents(timelines, asOf, limit), nil
}
