package metrics

import "time"

// Sample is one timestamped boolean status observation for an entity.
// Status is 1 (up) or 0 (down).
type Sample struct {
	At     time.Time
	Status int
}

// Timeline is the full ordered sample history of one entity, together
// with its display metadata.
type Timeline struct {
	Entity       string
	Name         string
	Organization string
	Samples      []Sample // ascending by At
}

// Interval is a derived right-open time span [Start, End) during which
// an entity's status is constant. Intervals are never persisted.
type Interval struct {
	Start  time.Time
	End    time.Time
	Status int
}

// Duration returns the interval length.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// EntityMetrics holds full-history availability metrics for one entity.
// Always recomputed from scratch, never incrementally mutated.
type EntityMetrics struct {
	UptimeMinutes   float64 `json:"uptime_minutes"`
	DowntimeMinutes float64 `json:"downtime_minutes"`
	Availability    float64 `json:"availability_percentage"`
	Incidents       int     `json:"incidents"`
	MTTRMinutes     float64 `json:"mttr_minutes"`
	MTBFMinutes     float64 `json:"mtbf_minutes"`
	Name            string  `json:"name"`
	Organization    string  `json:"organization"`
}

// RankedEntity is one row of a top-N ranking.
type RankedEntity struct {
	Entity          string  `json:"ci"`
	Incidents       int     `json:"incidents,omitempty"`
	DowntimeMinutes float64 `json:"downtime_minutes,omitempty"`
	Availability    float64 `json:"availability_percentage"`
	Name            string  `json:"name"`
	Organization    string  `json:"organization"`
}

// Report is the global rollup over all entities.
type Report struct {
	TotalEntities         int     `json:"total_cis"`
	CurrentlyAvailable    int     `json:"currently_available"`
	CurrentlyUnavailable  int     `json:"currently_unavailable"`
	OverallUptimeMinutes  float64 `json:"overall_uptime_minutes"`
	OverallDowntimeMins   float64 `json:"overall_downtime_minutes"`
	OverallAvailability   float64 `json:"overall_availability_percentage"`
	TotalIncidents        int     `json:"total_incidents"`
	MTTRMinutesMean       float64 `json:"mttr_minutes_mean"`
	MTBFMinutesMean       float64 `json:"mtbf_minutes_mean"`
	TotalRecordingMinutes float64 `json:"total_recording_minutes"`
	TotalDatapoints       int64   `json:"total_datapoints"`
	StoreSizeMB           float64 `json:"database_size_mb"`

	// Zero time means no samples recorded yet.
	EarliestTimestamp time.Time `json:"-"`
	LatestTimestamp   time.Time `json:"-"`

	TopUnstable []RankedEntity           `json:"top_unstable_cis_by_incidents"`
	TopDowntime []RankedEntity           `json:"top_downtime_cis"`
	PerEntity   map[string]EntityMetrics `json:"per_ci_metrics"`
}

// NewReport returns a fully-shaped zero report: every field present,
// zero-valued, with empty (non-nil) maps and lists. Used both as the
// starting point of aggregation and as the degraded result on store
// failure.
func NewReport() Report {
	return Report{
		TopUnstable: []RankedEntity{},
		TopDowntime: []RankedEntity{},
		PerEntity:   map[string]EntityMetrics{},
	}
}

// Downtime holds per-entity downtime within trailing windows, computed
// from raw intervals clamped to the windows rather than derived from
// EntityMetrics.
type Downtime struct {
	Minutes7d  float64 `json:"downtime_7d_min"`
	Minutes30d float64 `json:"downtime_30d_min"`
}

// Incident is a 1->0 transition, with its duration extended to the
// as-of time while unresolved.
type Incident struct {
	Entity          string    `json:"ci"`
	Start           time.Time `json:"incident_start"`
	End             time.Time `json:"incident_end"` // zero while ongoing
	DurationMinutes float64   `json:"duration_minutes"`
	Status          string    `json:"status"` // "ongoing" or "resolved"
	Name            string    `json:"name"`
	Organization    string    `json:"organization"`
}
