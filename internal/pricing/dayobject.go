package pricing

import "time"

// DayObject is the cached, immutable per-day price object. It carries either
// an hourly or a quarterly entry list depending on the configured interval.
type DayObject struct {
	PriceDate string  `json:"priceDate"`
	Interval  string  `json:"interval"`
	Provider  string  `json:"provider,omitempty"`
	Currency  string  `json:"currency"`
	Unit      string  `json:"unit"`
	Daily     Summary `json:"daily"`
	Hourly    []Entry `json:"hourly,omitempty"`
	Quarterly []Entry `json:"quarterly,omitempty"`
}

// Summary is the daily block: aggregates over the total (tariff-inclusive)
// prices of the day.
type Summary struct {
	AvgPrice     float64 `json:"avgPrice"`
	MinPrice     float64 `json:"minPrice"`
	MaxPrice     float64 `json:"maxPrice"`
	MinPriceTime string  `json:"minPriceTime"`
	MaxPriceTime string  `json:"maxPriceTime"`
	Count        int     `json:"count"`
}

// Entry is one priced interval of the day.
type Entry struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	MarketPrice float64   `json:"marketPrice"`
	TotalPrice  float64   `json:"totalPrice"`
}

// Entries returns whichever interval list the object carries.
func (d *DayObject) Entries() []Entry {
	if d.Interval == string(IntervalQuarter) {
		return d.Quarterly
	}
	return d.Hourly
}
