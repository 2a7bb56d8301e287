package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultEndpoint = "https://api.frankfurter.app/latest?base=EUR"

// Record is one day's EUR-based exchange rate table.
type Record struct {
	Date      string             `json:"date"`
	Rates     map[string]float64 `json:"rates"`
	FetchedAt time.Time          `json:"fetchedAt"`
}

// Source fetches the current rate table.
type Source interface {
	Fetch(ctx context.Context) (*Record, error)
}

// Frankfurter fetches EUR reference rates from the Frankfurter API.
type Frankfurter struct {
	client   *http.Client
	endpoint string
	now      func() time.Time
}

var _ Source = (*Frankfurter)(nil)

type Option func(*Frankfurter)

func WithClient(c *http.Client) Option {
	return func(f *Frankfurter) { f.client = c }
}

func WithEndpoint(ep string) Option {
	return func(f *Frankfurter) { f.endpoint = ep }
}

func New(opts ...Option) *Frankfurter {
	f := &Frankfurter{
		client:   http.DefaultClient,
		endpoint: defaultEndpoint,
		now:      time.Now,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

type latestResponse struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

func (f *Frankfurter) Fetch(ctx context.Context) (*Record, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", f.endpoint, nil)
	if err != nil {
		return nil, err
	}

	res, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("frankfurter returned HTTP %d", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	var lr latestResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, fmt.Errorf("parse rates response: %w", err)
	}
	if len(lr.Rates) == 0 {
		return nil, fmt.Errorf("frankfurter returned no rates")
	}

	now := f.now()
	return &Record{
		Date:      now.Format("2006-01-02"),
		Rates:     lr.Rates,
		FetchedAt: now,
	}, nil
}
