package metrics

import "time"

// Reconstruct converts an ordered sample sequence into contiguous,
// non-overlapping right-open status intervals covering
// [first sample, asOf). Each interval carries the status of the sample
// that opened it; the interval opened by the last sample is extended to
// asOf. A single sample yields one interval from its timestamp to asOf.
//
// asOf is a single reference time shared across a whole computation
// pass so that aggregation, windowing and incident accounting stay
// mutually consistent even as wall-clock time advances mid-pass.
func Reconstruct(samples []Sample, asOf time.Time) []Interval {
	if len(samples) == 0 {
		return nil
	}

	intervals := make([]Interval, 0, len(samples))
	for i, s := range samples {
		end := asOf
		if i+1 < len(samples) {
			end = samples[i+1].At
		}
		intervals = append(intervals, Interval{
			Start:  s.At,
			End:    end,
			Status: s.Status,
		})
	}
	return intervals
}
