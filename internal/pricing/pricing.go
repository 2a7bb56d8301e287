package pricing

import (
	"fmt"
	"math"
	"time"
)

const DateFormat = "2006-01-02"

// Interval is the temporal resolution of a price series.
type Interval string

const (
	IntervalHour    Interval = "1h"
	IntervalQuarter Interval = "15m"
)

func (i Interval) Duration() time.Duration {
	if i == IntervalQuarter {
		return 15 * time.Minute
	}
	return time.Hour
}

func ParseInterval(s string) (Interval, error) {
	switch s {
	case "1h", "60m", "hourly":
		return IntervalHour, nil
	case "15m", "quarterly":
		return IntervalQuarter, nil
	default:
		return "", fmt.Errorf("unknown interval: %q", s)
	}
}

// Point is a single raw price window as delivered by an upstream market.
type Point struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Value    float64   `json:"value"`
	Currency string    `json:"currency"`
}

func (p Point) valid() bool {
	if p.Start.IsZero() || p.End.IsZero() {
		return false
	}
	if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
		return false
	}
	return p.Start.Before(p.End)
}

// Series is an ordered sequence of points: sorted ascending by start, windows
// non-overlapping, and uniform in duration once normalized.
type Series []Point
