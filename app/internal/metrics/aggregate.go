package metrics

import (
	"sort"
	"time"
)

// ComputeEntity folds one entity's timeline into full-history metrics.
//
// Uptime/downtime come from the reconstructed intervals; incidents are
// counted on adjacent raw sample pairs (previous up, current down), not
// on interval boundaries. MTTR approximates total downtime divided by
// incident count; MTBF is total uptime divided by incident count and
// only reported with more than one incident.
func ComputeEntity(tl Timeline, asOf time.Time) EntityMetrics {
	m := EntityMetrics{
		Name:         tl.Name,
		Organization: tl.Organization,
	}

	for _, iv := range Reconstruct(tl.Samples, asOf) {
		if iv.Status == 1 {
			m.UptimeMinutes += iv.Duration().Minutes()
		} else {
			m.DowntimeMinutes += iv.Duration().Minutes()
		}
	}

	for i := 1; i < len(tl.Samples); i++ {
		if tl.Samples[i-1].Status == 1 && tl.Samples[i].Status == 0 {
			m.Incidents++
		}
	}

	if total := m.UptimeMinutes + m.DowntimeMinutes; total > 0 {
		m.Availability = m.UptimeMinutes / total * 100
	}
	if m.Incidents > 0 {
		m.MTTRMinutes = m.DowntimeMinutes / float64(m.Incidents)
	}
	if m.Incidents > 1 {
		m.MTBFMinutes = m.UptimeMinutes / float64(m.Incidents)
	}

	return m
}

// BuildReport aggregates all timelines into the global rollup.
//
// The overall MTTR mean averages only entities whose MTTR is greater
// than zero; entities without incidents do not drag the mean down. The
// global MTBF rollup is always zero, MTBF is a per-entity figure only.
func BuildReport(timelines []Timeline, asOf time.Time) Report {
	r := NewReport()

	var mttrValues []float64
	for _, tl := range timelines {
		if len(tl.Samples) == 0 {
			continue
		}

		m := ComputeEntity(tl, asOf)
		r.PerEntity[tl.Entity] = m

		r.TotalEntities++
		if tl.Samples[len(tl.Samples)-1].Status == 1 {
			r.CurrentlyAvailable++
		} else {
			r.CurrentlyUnavailable++
		}

		r.OverallUptimeMinutes += m.UptimeMinutes
		r.OverallDowntimeMins += m.DowntimeMinutes
		r.TotalIncidents += m.Incidents
		if m.MTTRMinutes > 0 {
			mttrValues = append(mttrValues, m.MTTRMinutes)
		}
	}

	if total := r.OverallUptimeMinutes + r.OverallDowntimeMins; total > 0 {
		r.OverallAvailability = r.OverallUptimeMinutes / total * 100
	}
	if len(mttrValues) > 0 {
		var sum float64
		for _, v := range mttrValues {
			sum += v
		}
		r.MTTRMinutesMean = sum / float64(len(mttrValues))
	}

	r.TopUnstable = rankByIncidents(r.PerEntity, 10)
	r.TopDowntime = rankByDowntime(r.PerEntity, 10)

	return r
}

// rankByIncidents returns the top-n entities by incident count,
// descending. Ties break on entity id ascending so recomputations are
// deterministic.
func rankByIncidents(perEntity map[string]EntityMetrics, n int) []RankedEntity {
	ids := sortedIDs(perEntity)
	sort.SliceStable(ids, func(i, j int) bool {
		return perEntity[ids[i]].Incidents > perEntity[ids[j]].Incidents
	})

	ranked := make([]RankedEntity, 0, n)
	for _, id := range ids {
		if len(ranked) == n {
			break
		}
		m := perEntity[id]
		ranked = append(ranked, RankedEntity{
			Entity:       id,
			Incidents:    m.Incidents,
			Availability: m.Availability,
			Name:         m.Name,
			Organization: m.Organization,
		})
	}
	return ranked
}

// rankByDowntime returns the top-n entities by downtime minutes,
// descending, with the same tie-break rule.
func rankByDowntime(perEntity map[string]EntityMetrics, n int) []RankedEntity {
	ids := sortedIDs(perEntity)
	sort.SliceStable(ids, func(i, j int) bool {
		return perEntity[ids[i]].DowntimeMinutes > perEntity[ids[j]].DowntimeMinutes
	})

	ranked := make([]RankedEntity, 0, n)
	for _, id := range ids {
		if len(ranked) == n {
			break
		}
		m := perEntity[id]
		ranked = append(ranked, RankedEntity{
			Entity:          id,
			DowntimeMinutes: m.DowntimeMinutes,
			Availability:    m.Availability,
			Name:            m.Name,
			Organization:    m.Organization,
		})
	}
	return ranked
}

func sortedIDs(perEntity map[string]EntityMetrics) []string {
	ids := make([]string, 0, len(perEntity))
	for id := range perEntity {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
