package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gridwatch/dayahead/internal/apperror"
	"github.com/gridwatch/dayahead/internal/cache"
	"github.com/gridwatch/dayahead/internal/pricing"
	"github.com/gridwatch/dayahead/internal/rates"
	"github.com/gridwatch/dayahead/internal/upstream"
)

// Coordinator owns all traffic to the object cache: fetch-or-reuse for day
// objects, currency-rate memoization, and the retention sweep. Concurrent
// fetches for the same date are collapsed into one upstream round trip.
type Coordinator struct {
	cache     cache.ObjectCache
	source    upstream.Source
	rateSrc   rates.Source
	calc      *pricing.Calculator
	interval  pricing.Interval
	preferred string
	keepDays  int
	now       func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	rateTable map[string]float64
}

type Options struct {
	Interval  pricing.Interval
	Preferred string
	KeepDays  int
	Now       func() time.Time
}

func New(objCache cache.ObjectCache, source upstream.Source, rateSrc rates.Source, opts Options) *Coordinator {
	if opts.Interval == "" {
		opts.Interval = pricing.IntervalHour
	}
	if opts.KeepDays <= 0 {
		opts.KeepDays = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		cache:     objCache,
		source:    source,
		rateSrc:   rateSrc,
		interval:  opts.Interval,
		preferred: opts.Preferred,
		keepDays:  opts.KeepDays,
		now:       opts.Now,
	}
}

// SetCalculator wires the tariff calculator. Set once at startup; the
// calculator's rate lookup points back at CurrencyRate.
func (c *Coordinator) SetCalculator(calc *pricing.Calculator) { c.calc = calc }

// FetchOrRetrieve returns the day object for date, fetching, normalizing,
// calculating and persisting it only when the cache has no entry. A cached
// object is returned verbatim and never overwritten. Concurrent callers for
// the same date share a single in-flight operation.
func (c *Coordinator) FetchOrRetrieve(ctx context.Context, date time.Time) (*pricing.DayObject, error) {
	key := cache.PriceKey(date)
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.fetchOrRetrieve(ctx, key, date)
	})
	if err != nil {
		return nil, err
	}
	return v.(*pricing.DayObject), nil
}

func (c *Coordinator) fetchOrRetrieve(ctx context.Context, key string, date time.Time) (*pricing.DayObject, error) {
	exists, err := c.cache.Has(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("cache lookup %s: %w", key, err)
	}
	if exists {
		raw, ok, err := c.cache.RetrieveObject(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("cache retrieve %s: %w", key, err)
		}
		if !ok {
			return nil, fmt.Errorf("cache retrieve %s: object vanished", key)
		}
		var obj pricing.DayObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("decode cached %s: %w", key, err)
		}
		return &obj, nil
	}

	result, err := c.source.Fetch(ctx, date, c.interval, c.preferred)
	if err != nil {
		return nil, err
	}

	series, dropped := pricing.Normalize(result.Points, c.interval)
	if dropped > 0 {
		slog.Warn("dropped malformed price points", "provider", result.Provider,
			"date", date.Format(pricing.DateFormat), "dropped", dropped)
	}
	if len(series) == 0 {
		return nil, apperror.New(apperror.Provider,
			fmt.Sprintf("no usable points for %s from %s", date.Format(pricing.DateFormat), result.Provider))
	}

	obj, err := c.calc.Compute(ctx, series, date, result.Provider)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.cache.CreateObject(ctx, key, raw, false); err != nil {
		return nil, fmt.Errorf("persist %s: %w", key, err)
	}

	slog.Info("fetched day-ahead prices", "date", obj.PriceDate, "provider", result.Provider,
		"interval", obj.Interval, "entries", obj.Daily.Count)
	return obj, nil
}

// RetrieveRaw returns the cached payload for date without triggering a fetch.
func (c *Coordinator) RetrieveRaw(ctx context.Context, date time.Time) (json.RawMessage, bool, error) {
	return c.cache.RetrieveObject(ctx, cache.PriceKey(date))
}

// CurrencyRate resolves an exchange rate from the in-process table. EUR short
// circuits to 1. A miss triggers one refetch before failing.
func (c *Coordinator) CurrencyRate(ctx context.Context, code string) (float64, error) {
	if code == "EUR" {
		return 1, nil
	}

	if err := c.ensureRates(ctx, false); err != nil {
		return 0, err
	}
	if r, ok := c.lookupRate(code); ok {
		return r, nil
	}

	// Retry once with a forced refetch; the code may have been added upstream.
	if err := c.ensureRates(ctx, true); err != nil {
		return 0, err
	}
	if r, ok := c.lookupRate(code); ok {
		return r, nil
	}
	return 0, apperror.New(apperror.Rate, fmt.Sprintf("no exchange rate for %s", code))
}

func (c *Coordinator) lookupRate(code string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rateTable[code]
	return r, ok
}

// ensureRates makes the in-process rate table current. The stored latest
// record is reused while its date matches today; otherwise a fresh record is
// fetched and persisted only when it structurally differs from the stored one
// (fetch timestamp excluded), keeping repeated identical fetches write-free.
func (c *Coordinator) ensureRates(ctx context.Context, force bool) error {
	today := c.now().Format(pricing.DateFormat)

	stored, err := c.latestRecord(ctx)
	if err != nil {
		return err
	}
	if !force && stored != nil && stored.Date == today {
		c.mu.Lock()
		if c.rateTable == nil {
			c.rateTable = stored.Rates
		}
		c.mu.Unlock()
		return nil
	}

	fresh, err := c.rateSrc.Fetch(ctx)
	if err != nil {
		if stored != nil {
			slog.Warn("rate refetch failed, serving stored record", "date", stored.Date, "error", err)
			c.mu.Lock()
			c.rateTable = stored.Rates
			c.mu.Unlock()
			return nil
		}
		return apperror.New(apperror.Rate, fmt.Sprintf("fetch exchange rates: %v", err))
	}

	changed := true
	if stored != nil {
		oldSig, oldErr := signature(stripFetchedAt(stored))
		newSig, newErr := signature(stripFetchedAt(fresh))
		if oldErr == nil && newErr == nil && oldSig == newSig {
			changed = false
		}
	}

	if changed {
		raw, err := json.Marshal(fresh)
		if err != nil {
			return fmt.Errorf("encode rate record: %w", err)
		}
		if err := c.cache.CreateObject(ctx, cache.CurrencyKey(c.now()), raw, false); err != nil {
			return fmt.Errorf("persist dated rate record: %w", err)
		}
		if err := c.cache.CreateObject(ctx, cache.CurrencyLatestKey, raw, false); err != nil {
			return fmt.Errorf("persist latest rate record: %w", err)
		}
		slog.Info("exchange rates updated", "date", fresh.Date, "currencies", len(fresh.Rates))
	}

	// Invalidate wholesale, not per entry.
	c.mu.Lock()
	c.rateTable = fresh.Rates
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) latestRecord(ctx context.Context) (*rates.Record, error) {
	raw, ok, err := c.cache.RetrieveObject(ctx, cache.CurrencyLatestKey)
	if err != nil {
		return nil, fmt.Errorf("retrieve latest rates: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var rec rates.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode latest rates: %w", err)
	}
	return &rec, nil
}

func stripFetchedAt(rec *rates.Record) any {
	return struct {
		Date  string             `json:"date"`
		Rates map[string]float64 `json:"rates"`
	}{Date: rec.Date, Rates: rec.Rates}
}

// Sweep deletes dated cache entries older than the keep window. Undated keys,
// including the latest rate pointer, are never touched.
func (c *Coordinator) Sweep(ctx context.Context) error {
	keys, err := c.cache.Keys(ctx)
	if err != nil {
		return fmt.Errorf("list cache keys: %w", err)
	}

	cutoff := c.now().AddDate(0, 0, -c.keepDays)
	removed := 0
	for _, key := range keys {
		date, ok := cache.KeyDate(key)
		if !ok || !date.Before(cutoff) {
			continue
		}
		if err := c.cache.DeleteObject(ctx, key, false); err != nil {
			return fmt.Errorf("sweep %s: %w", key, err)
		}
		removed++
	}
	if removed > 0 {
		slog.Info("retention sweep", "removed", removed, "keepDays", c.keepDays)
	}
	return nil
}
