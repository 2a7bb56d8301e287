package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gridwatch/dayahead/internal/pricing"
)

const defaultAwattarEndpoint = "https://api.awattar.de/v1/marketdata"

// Awattar fetches hourly day-ahead prices from the aWATTar market data API.
type Awattar struct {
	client   *http.Client
	endpoint string
}

type AwattarOption func(*Awattar)

func WithAwattarClient(c *http.Client) AwattarOption {
	return func(a *Awattar) { a.client = c }
}

func WithAwattarEndpoint(ep string) AwattarOption {
	return func(a *Awattar) { a.endpoint = ep }
}

func NewAwattar(opts ...AwattarOption) *Awattar {
	a := &Awattar{
		client:   http.DefaultClient,
		endpoint: defaultAwattarEndpoint,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Awattar) Name() string { return "awattar" }

// marketdataResponse is the minimal aWATTar response structure.
type marketdataResponse struct {
	Data []struct {
		StartTimestamp int64   `json:"start_timestamp"`
		EndTimestamp   int64   `json:"end_timestamp"`
		Marketprice    float64 `json:"marketprice"`
		Unit           string  `json:"unit"`
	} `json:"data"`
}

func (a *Awattar) Fetch(ctx context.Context, date time.Time, _ pricing.Interval) ([]pricing.Point, error) {
	start, end := dayRange(date)
	url := fmt.Sprintf("%s?start=%s&end=%s", a.endpoint,
		strconv.FormatInt(start.UnixMilli(), 10),
		strconv.FormatInt(end.UnixMilli(), 10))

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	res, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("awattar returned HTTP %d", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	var mr marketdataResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return nil, fmt.Errorf("parse marketdata response: %w", err)
	}

	points := make([]pricing.Point, 0, len(mr.Data))
	for _, d := range mr.Data {
		points = append(points, pricing.Point{
			Start: time.UnixMilli(d.StartTimestamp).In(date.Location()),
			End:   time.UnixMilli(d.EndTimestamp).In(date.Location()),
			// aWATTar quotes EUR/MWh; store as ct/kWh.
			Value:    d.Marketprice / 10,
			Currency: "EUR",
		})
	}
	return points, nil
}
