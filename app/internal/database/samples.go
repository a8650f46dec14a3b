package database

import (
	"database/sql"
	"fmt"
	"time"

	"cimon/app/internal/metrics"
)

// SampleWrite is one observation to append to the store.
type SampleWrite struct {
	Entity string
	At     time.Time
	Status int
}

// Metadata is the descriptive record kept per entity, refreshed on
// every ingest pass.
type Metadata struct {
	Entity       string
	Name         string
	Organization string
	Product      string
	BU           string
	TID          string
	PDT          string
	Comment      string
}

// InsertSamples appends a batch of samples. Duplicate (entity, ts)
// pairs are dropped; the returned count is the number actually written.
func (s *Store) InsertSamples(batch []SampleWrite) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO samples (entity, ts, status)
		VALUES (?, ?, ?) ON CONFLICT DO NOTHING`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var written int64
	for _, row := range batch {
		if row.Status != 0 && row.Status != 1 {
			return written, fmt.Errorf("sample %s@%s: status %d out of range",
				row.Entity, row.At.Format(tsLayout), row.Status)
		}
		res, err := stmt.Exec(row.Entity, formatTS(row.At), row.Status)
		if err != nil {
			return written, err
		}
		if n, err := res.RowsAffected(); err == nil {
			written += n
		}
	}

	return written, tx.Commit()
}

// UpsertMetadata refreshes entity metadata records.
func (s *Store) UpsertMetadata(batch []Metadata) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO entity_metadata
		(entity, name, organization, product, bu, tid, pdt, comment, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity) DO UPDATE SET
			name=excluded.name, organization=excluded.organization,
			product=excluded.product, bu=excluded.bu, tid=excluded.tid,
			pdt=excluded.pdt, comment=excluded.comment,
			updated_at=excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := formatTS(time.Now())
	for _, m := range batch {
		if _, err := stmt.Exec(m.Entity, m.Name, m.Organization, m.Product,
			m.BU, m.TID, m.PDT, m.Comment, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// EntityTimelines returns every entity's full ordered sample history
// joined with its metadata. Rows are validated once at this boundary;
// rows with an unparsable timestamp or an out-of-range status are
// rejected here instead of leaking into aggregation.
func (s *Store) EntityTimelines() ([]metrics.Timeline, error) {
	rows, err := s.db.Query(`
		SELECT s.entity, s.ts, s.status,
		       COALESCE(m.name, ''), COALESCE(m.organization, '')
		FROM samples s
		LEFT JOIN entity_metadata m ON m.entity = s.entity
		ORDER BY s.entity, s.ts`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var timelines []metrics.Timeline
	var cur *metrics.Timeline
	for rows.Next() {
		var entity, ts, name, org string
		var status int
		if err := rows.Scan(&entity, &ts, &status, &name, &org); err != nil {
			return nil, err
		}

		at, err := parseTS(ts)
		if err != nil || (status != 0 && status != 1) {
			continue // malformed row, rejected at the boundary
		}

		if cur == nil || cur.Entity != entity {
			timelines = append(timelines, metrics.Timeline{
				Entity:       entity,
				Name:         name,
				Organization: org,
			})
			cur = &timelines[len(timelines)-1]
		}
		cur.Samples = append(cur.Samples, metrics.Sample{At: at, Status: status})
	}

	return timelines, rows.Err()
}

// StatusChange is a latest-vs-previous status transition for one
// entity, used by the notification dispatcher.
type StatusChange struct {
	Entity       string
	Name         string
	Organization string
	From         int
	To           int
	At           time.Time
}

// StatusChanges returns the entities whose most recent sample differs
// from the one before it. Entities with fewer than two samples have no
// last-known status to compare against and are skipped.
func (s *Store) StatusChanges() ([]StatusChange, error) {
	rows, err := s.db.Query(`
		SELECT t.entity, t.ts, t.status,
		       COALESCE(m.name, ''), COALESCE(m.organization, '')
		FROM (
			SELECT entity, ts, status,
			       ROW_NUMBER() OVER (PARTITION BY entity ORDER BY ts DESC) AS rn
			FROM samples
		) t
		LEFT JOIN entity_metadata m ON m.entity = t.entity
		WHERE t.rn <= 2
		ORDER BY t.entity, t.ts`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type pair struct {
		entity, name, org string
		statuses          []int
		latest            time.Time
	}

	var pairs []pair
	var cur *pair
	for rows.Next() {
		var entity, ts, name, org string
		var status int
		if err := rows.Scan(&entity, &ts, &status, &name, &org); err != nil {
			return nil, err
		}
		at, err := parseTS(ts)
		if err != nil {
			continue
		}

		if cur == nil || cur.entity != entity {
			pairs = append(pairs, pair{entity: entity, name: name, org: org})
			cur = &pairs[len(pairs)-1]
		}
		cur.statuses = append(cur.statuses, status)
		cur.latest = at
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var changes []StatusChange
	for _, p := range pairs {
		if len(p.statuses) < 2 || p.statuses[0] == p.statuses[1] {
			continue
		}
		changes = append(changes, StatusChange{
			Entity:       p.entity,
			Name:         p.name,
			Organization: p.org,
			From:         p.statuses[0],
			To:           p.statuses[1],
			At:           p.latest,
		})
	}
	return changes, nil
}

// RecordingStats returns the recording span and total sample count.
// An empty store yields the zero value with no error.
func (s *Store) RecordingStats() (metrics.RecordingStats, error) {
	var stats metrics.RecordingStats
	var minTS, maxTS sql.NullString

	err := s.db.QueryRow(`SELECT MIN(ts), MAX(ts), COUNT(*) FROM samples`).
		Scan(&minTS, &maxTS, &stats.Count)
	if err != nil {
		return metrics.RecordingStats{}, err
	}
	if stats.Count == 0 {
		return metrics.RecordingStats{}, nil
	}

	if stats.Earliest, err = parseTS(minTS.String); err != nil {
		return metrics.RecordingStats{}, fmt.Errorf("earliest timestamp: %w", err)
	}
	if stats.Latest, err = parseTS(maxTS.String); err != nil {
		return metrics.RecordingStats{}, fmt.Errorf("latest timestamp: %w", err)
	}
	return stats, nil
}

// SizeBytes reports the store file size.
func (s *Store) SizeBytes() (int64, error) {
	var size int64
	err := s.db.QueryRow(`SELECT page_count * page_size
		FROM pragma_page_count(), pragma_page_size()`).Scan(&size)
	return size, err
}

// ApplyRetention deletes samples older than the horizon and returns the
// number of rows removed.
func (s *Store) ApplyRetention(horizon time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM samples WHERE ts < ?`, formatTS(horizon))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
