package pricing

import (
	"math"
	"sort"
	"time"
)

// Normalize converts raw points into a canonical series at the target
// resolution. Malformed points (zero timestamps, non-finite values,
// start >= end) are discarded; the dropped count is returned so the caller
// can log it. Normalize never fails: an all-invalid input yields an empty
// series. It is idempotent when the source already matches the target.
func Normalize(points []Point, target Interval) (Series, int) {
	series := make(Series, 0, len(points))
	dropped := 0
	for _, p := range points {
		if !p.valid() {
			dropped++
			continue
		}
		series = append(series, p)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Start.Before(series[j].Start) })

	if len(series) == 0 {
		return series, dropped
	}
	if DetectInterval(series) == target {
		return series, dropped
	}
	if target == IntervalHour {
		return aggregateToHourly(series), dropped
	}
	return expandToQuarterHour(series), dropped
}

// DetectInterval infers the resolution from the gap between the first two
// points, rounded to minutes. When the gap is inconclusive it falls back to a
// count heuristic: more than 48 entries cannot be an hourly day.
func DetectInterval(series Series) Interval {
	if len(series) >= 2 {
		switch series[1].Start.Sub(series[0].Start).Round(time.Minute) {
		case 15 * time.Minute:
			return IntervalQuarter
		case time.Hour:
			return IntervalHour
		}
	}
	if len(series) > 48 {
		return IntervalQuarter
	}
	return IntervalHour
}

// aggregateToHourly buckets quarter-hour points by truncated hour. The bucket
// value is the arithmetic mean of the contributing values, the window spans
// min start to max end, and the currency is the first non-empty one.
func aggregateToHourly(series Series) Series {
	type bucket struct {
		start    time.Time
		end      time.Time
		sum      float64
		count    int
		currency string
	}

	buckets := make(map[time.Time]*bucket)
	for _, p := range series {
		hour := p.Start.Truncate(time.Hour)
		b, ok := buckets[hour]
		if !ok {
			b = &bucket{start: p.Start, end: p.End}
			buckets[hour] = b
		}
		if p.Start.Before(b.start) {
			b.start = p.Start
		}
		if p.End.After(b.end) {
			b.end = p.End
		}
		b.sum += p.Value
		b.count++
		if b.currency == "" && p.Currency != "" {
			b.currency = p.Currency
		}
	}

	out := make(Series, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, Point{
			Start:    b.start,
			End:      b.end,
			Value:    b.sum / float64(b.count),
			Currency: b.currency,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// expandToQuarterHour slices each point into consecutive 15-minute windows,
// distributing the value evenly across the slices.
func expandToQuarterHour(series Series) Series {
	out := make(Series, 0, len(series)*4)
	for _, p := range series {
		minutes := p.End.Sub(p.Start).Minutes()
		slices := int(math.Round(minutes / 15))
		if slices < 1 {
			slices = 1
		}
		value := p.Value / float64(slices)
		for i := range slices {
			start := p.Start.Add(time.Duration(i) * 15 * time.Minute)
			out = append(out, Point{
				Start:    start,
				End:      start.Add(15 * time.Minute),
				Value:    value,
				Currency: p.Currency,
			})
		}
	}
	return out
}
