package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cimon/app/internal/metrics"
)

// Artifact file names under the data directory.
const (
	StatisticsFile = "statistics.json"
	DowntimesFile  = "downtimes.json"
)

// timeFallback replaces timestamps that do not exist (empty store,
// ongoing incident) so an edge value never fails a whole write.
const timeFallback = "unknown"

// Snapshot is the combined statistics artifact: the global report, the
// recent incident list and the moment it was computed. Each hourly
// refresh produces a fresh snapshot that fully replaces the previous
// one.
type Snapshot struct {
	metrics.Report
	EarliestTimestamp string           `json:"earliest_timestamp"`
	LatestTimestamp   string           `json:"latest_timestamp"`
	RecentIncidents   []IncidentRecord `json:"recent_incidents"`
	LastUpdated       string           `json:"last_updated"`
}

// IncidentRecord is the serialized form of a metrics.Incident.
type IncidentRecord struct {
	Entity          string  `json:"ci"`
	IncidentStart   string  `json:"incident_start"`
	IncidentEnd     string  `json:"incident_end"`
	DurationMinutes float64 `json:"duration_minutes"`
	Status          string  `json:"status"`
	Name            string  `json:"name"`
	Organization    string  `json:"organization"`
}

// New assembles a snapshot from a report and incident list, coercing
// absent timestamps to a textual fallback.
func New(report metrics.Report, incidents []metrics.Incident, asOf time.Time) Snapshot {
	records := make([]IncidentRecord, 0, len(incidents))
	for _, inc := range incidents {
		records = append(records, IncidentRecord{
			Entity:          inc.Entity,
			IncidentStart:   fmtTime(inc.Start),
			IncidentEnd:     fmtTime(inc.End),
			DurationMinutes: inc.DurationMinutes,
			Status:          inc.Status,
			Name:            inc.Name,
			Organization:    inc.Organization,
		})
	}

	return Snapshot{
		Report:            report,
		EarliestTimestamp: fmtTime(report.EarliestTimestamp),
		LatestTimestamp:   fmtTime(report.LatestTimestamp),
		RecentIncidents:   records,
		LastUpdated:       asOf.UTC().Format(time.RFC3339),
	}
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return timeFallback
	}
	return t.UTC().Format(time.RFC3339)
}

// Writer publishes artifacts into a directory with full replacement:
// each write lands in a temporary file first and is renamed over the
// previous version, so consumers never observe a partial document.
type Writer struct {
	Dir string
}

// WriteStatistics publishes the statistics snapshot.
func (w *Writer) WriteStatistics(s Snapshot) error {
	return w.writeJSON(StatisticsFile, s)
}

// WriteDowntimes publishes the per-entity windowed downtime artifact.
func (w *Writer) WriteDowntimes(d map[string]metrics.Downtime) error {
	if d == nil {
		d = map[string]metrics.Downtime{}
	}
	return w.writeJSON(DowntimesFile, d)
}

func (w *Writer) writeJSON(name string, v any) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	final := filepath.Join(w.Dir, name)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", final, err)
	}
	return nil
}
