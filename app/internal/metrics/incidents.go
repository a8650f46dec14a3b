package metrics

import (
	"sort"
	"time"
)

// RecentIncidents extracts the most recent incidents across all
// timelines, newest first, bounded by limit. An incident opens at a
// down sample whose predecessor was up; it lasts until the next sample
// or, while unresolved, until asOf.
func RecentIncidents(timelines []Timeline, asOf time.Time, limit int) []Incident {
	var incidents []Incident

	for _, tl := range timelines {
		for i := 1; i < len(tl.Samples); i++ {
			if tl.Samples[i-1].Status != 1 || tl.Samples[i].Status != 0 {
				continue
			}

			inc := Incident{
				Entity:       tl.Entity,
				Start:        tl.Samples[i].At,
				Name:         tl.Name,
				Organization: tl.Organization,
			}
			if i+1 < len(tl.Samples) {
				inc.End = tl.Samples[i+1].At
				inc.Status = "resolved"
				inc.DurationMinutes = inc.End.Sub(inc.Start).Minutes()
			} else {
				inc.Status = "ongoing"
				inc.DurationMinutes = asOf.Sub(inc.Start).Minutes()
			}
			incidents = append(incidents, inc)
		}
	}

	sort.SliceStable(incidents, func(i, j int) bool {
		if incidents[i].Start.Equal(incidents[j].Start) {
			return incidents[i].Entity < incidents[j].Entity
		}
		return incidents[i].Start.After(incidents[j].Start)
	})

	if limit > 0 && len(incidents) > limit {
		incidents = incidents[:limit]
	}
	return incidents
}
