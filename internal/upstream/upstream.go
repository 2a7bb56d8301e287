package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gridwatch/dayahead/internal/apperror"
	"github.com/gridwatch/dayahead/internal/pricing"
)

// Result is a fetched raw series plus the metadata of the provider that
// produced it.
type Result struct {
	Points   []pricing.Point
	Provider string
}

// Provider fetches raw day-ahead points for one calendar day. The interval is
// a hint; providers deliver their native resolution and the normalizer
// reconciles it.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, date time.Time, interval pricing.Interval) ([]pricing.Point, error)
}

// Source is the upstream contract the coordinator consumes.
type Source interface {
	Fetch(ctx context.Context, date time.Time, interval pricing.Interval, preferred string) (*Result, error)
}

// Registry holds the known providers and tries the preferred one first,
// falling back through the rest in registration order.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string
}

var _ Source = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[p.Name()]; !ok {
		r.order = append(r.order, p.Name())
	}
	r.providers[p.Name()] = p
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

func (r *Registry) Fetch(ctx context.Context, date time.Time, interval pricing.Interval, preferred string) (*Result, error) {
	r.mu.RLock()
	candidates := make([]Provider, 0, len(r.order))
	if p, ok := r.providers[preferred]; ok {
		candidates = append(candidates, p)
	}
	for _, name := range r.order {
		if name != preferred {
			candidates = append(candidates, r.providers[name])
		}
	}
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return nil, apperror.New(apperror.Provider, "no upstream providers registered")
	}

	var lastErr error
	for _, p := range candidates {
		points, err := p.Fetch(ctx, date, interval)
		if err != nil {
			slog.Warn("upstream fetch failed", "provider", p.Name(), "date", date.Format(pricing.DateFormat), "error", err)
			lastErr = err
			continue
		}
		if len(points) == 0 {
			lastErr = fmt.Errorf("%s returned no points", p.Name())
			continue
		}
		return &Result{Points: points, Provider: p.Name()}, nil
	}
	return nil, apperror.New(apperror.Provider,
		fmt.Sprintf("all providers failed for %s: %v", date.Format(pricing.DateFormat), lastErr))
}

// dayRange returns the [start, end) window of the calendar day in its own
// location.
func dayRange(date time.Time) (time.Time, time.Time) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return start, start.AddDate(0, 0, 1)
}
