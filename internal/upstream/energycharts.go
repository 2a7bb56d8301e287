package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gridwatch/dayahead/internal/pricing"
)

const defaultEnergyChartsEndpoint = "https://api.energy-charts.info/price"

// EnergyCharts fetches day-ahead prices from the Energy-Charts API. The API
// delivers quarter-hourly data for recent dates and hourly data historically;
// the window duration is derived from the timestamp spacing.
type EnergyCharts struct {
	client   *http.Client
	endpoint string
	zone     string
}

type EnergyChartsOption func(*EnergyCharts)

func WithEnergyChartsClient(c *http.Client) EnergyChartsOption {
	return func(e *EnergyCharts) { e.client = c }
}

func WithEnergyChartsEndpoint(ep string) EnergyChartsOption {
	return func(e *EnergyCharts) { e.endpoint = ep }
}

func WithBiddingZone(zone string) EnergyChartsOption {
	return func(e *EnergyCharts) { e.zone = zone }
}

func NewEnergyCharts(opts ...EnergyChartsOption) *EnergyCharts {
	e := &EnergyCharts{
		client:   http.DefaultClient,
		endpoint: defaultEnergyChartsEndpoint,
		zone:     "DE-LU",
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *EnergyCharts) Name() string { return "energycharts" }

type priceResponse struct {
	UnixSeconds []int64   `json:"unix_seconds"`
	Price       []float64 `json:"price"`
	Unit        string    `json:"unit"`
}

func (e *EnergyCharts) Fetch(ctx context.Context, date time.Time, _ pricing.Interval) ([]pricing.Point, error) {
	start, end := dayRange(date)
	url := fmt.Sprintf("%s?bzn=%s&start=%d&end=%d", e.endpoint, e.zone, start.Unix(), end.Unix())

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	res, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("energy-charts returned HTTP %d", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	var pr priceResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("parse price response: %w", err)
	}
	if len(pr.UnixSeconds) != len(pr.Price) {
		return nil, fmt.Errorf("energy-charts returned %d timestamps for %d prices", len(pr.UnixSeconds), len(pr.Price))
	}

	window := time.Hour
	if len(pr.UnixSeconds) >= 2 {
		window = time.Duration(pr.UnixSeconds[1]-pr.UnixSeconds[0]) * time.Second
	}

	points := make([]pricing.Point, 0, len(pr.UnixSeconds))
	for i, ts := range pr.UnixSeconds {
		pointStart := time.Unix(ts, 0).In(date.Location())
		points = append(points, pricing.Point{
			Start: pointStart,
			End:   pointStart.Add(window),
			// EUR/MWh to ct/kWh.
			Value:    pr.Price[i] / 10,
			Currency: "EUR",
		})
	}
	return points, nil
}
