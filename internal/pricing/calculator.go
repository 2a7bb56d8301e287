package pricing

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RateLookup resolves a currency code to its EUR exchange rate.
type RateLookup func(ctx context.Context, code string) (float64, error)

// TariffConfig holds the fixed price components applied on top of the market
// price. All components are in ct/kWh before VAT.
type TariffConfig struct {
	GridFee   float64
	Surcharge float64
	VATRate   float64
	Currency  string
}

// Calculator turns a normalized series into a complete day object: per-interval
// tariff-inclusive prices plus the daily summary block.
type Calculator struct {
	cfg   TariffConfig
	rates RateLookup
}

func NewCalculator(cfg TariffConfig, rates RateLookup) *Calculator {
	if cfg.Currency == "" {
		cfg.Currency = "EUR"
	}
	return &Calculator{cfg: cfg, rates: rates}
}

// Compute builds the day object for the given date. Series values are market
// prices in ct/kWh (EUR); the total adds grid fee and surcharge, applies VAT,
// and converts to the configured display currency.
func (c *Calculator) Compute(ctx context.Context, series Series, date time.Time, provider string) (*DayObject, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("compute day object: empty series for %s", date.Format(DateFormat))
	}

	rate := 1.0
	if c.cfg.Currency != "EUR" {
		r, err := c.rates(ctx, c.cfg.Currency)
		if err != nil {
			return nil, fmt.Errorf("rate for %s: %w", c.cfg.Currency, err)
		}
		rate = r
	}

	interval := DetectInterval(series)
	entries := make([]Entry, len(series))
	sum := 0.0
	minIdx, maxIdx := 0, 0
	for i, p := range series {
		market := round4(p.Value * rate)
		total := round4((p.Value + c.cfg.GridFee + c.cfg.Surcharge) * (1 + c.cfg.VATRate) * rate)
		entries[i] = Entry{
			Start:       p.Start,
			End:         p.End,
			MarketPrice: market,
			TotalPrice:  total,
		}
		sum += total
		if total < entries[minIdx].TotalPrice {
			minIdx = i
		}
		if total > entries[maxIdx].TotalPrice {
			maxIdx = i
		}
	}

	obj := &DayObject{
		PriceDate: date.Format(DateFormat),
		Interval:  string(interval),
		Provider:  provider,
		Currency:  c.cfg.Currency,
		Unit:      "ct/kWh",
		Daily: Summary{
			AvgPrice:     round4(sum / float64(len(entries))),
			MinPrice:     entries[minIdx].TotalPrice,
			MaxPrice:     entries[maxIdx].TotalPrice,
			MinPriceTime: entries[minIdx].Start.Format("15:04"),
			MaxPriceTime: entries[maxIdx].Start.Format("15:04"),
			Count:        len(entries),
		},
	}
	if interval == IntervalQuarter {
		obj.Quarterly = entries
	} else {
		obj.Hourly = entries
	}
	return obj, nil
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
