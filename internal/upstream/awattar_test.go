package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gridwatch/dayahead/internal/pricing"
)

func TestAwattar_Fetch(t *testing.T) {
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	start := date.UnixMilli()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") == "" || r.URL.Query().Get("end") == "" {
			t.Error("missing start/end query parameters")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"start_timestamp": start, "end_timestamp": start + 3600_000, "marketprice": 82.5, "unit": "Eur/MWh"},
				{"start_timestamp": start + 3600_000, "end_timestamp": start + 7200_000, "marketprice": 90.0, "unit": "Eur/MWh"},
			},
		})
	}))
	defer ts.Close()

	a := NewAwattar(WithAwattarClient(ts.Client()), WithAwattarEndpoint(ts.URL))
	points, err := a.Fetch(context.Background(), date, pricing.IntervalHour)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	// 82.5 EUR/MWh = 8.25 ct/kWh
	if points[0].Value != 8.25 {
		t.Errorf("value = %v, want 8.25", points[0].Value)
	}
	if points[0].Currency != "EUR" {
		t.Errorf("currency = %q", points[0].Currency)
	}
	if points[0].End.Sub(points[0].Start) != time.Hour {
		t.Errorf("window = %v", points[0].End.Sub(points[0].Start))
	}
}

func TestAwattar_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	a := NewAwattar(WithAwattarClient(ts.Client()), WithAwattarEndpoint(ts.URL))
	if _, err := a.Fetch(context.Background(), time.Now(), pricing.IntervalHour); err == nil {
		t.Fatal("expected error on HTTP 502")
	}
}

func TestEnergyCharts_Fetch(t *testing.T) {
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("bzn") != "AT" {
			t.Errorf("bzn = %q, want AT", r.URL.Query().Get("bzn"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"unix_seconds": []int64{date.Unix(), date.Unix() + 900, date.Unix() + 1800},
			"price":        []float64{100, 110, 120},
			"unit":         "EUR/MWh",
		})
	}))
	defer ts.Close()

	e := NewEnergyCharts(
		WithEnergyChartsClient(ts.Client()),
		WithEnergyChartsEndpoint(ts.URL),
		WithBiddingZone("AT"),
	)
	points, err := e.Fetch(context.Background(), date, pricing.IntervalQuarter)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if points[0].End.Sub(points[0].Start) != 15*time.Minute {
		t.Errorf("window = %v, want 15m", points[0].End.Sub(points[0].Start))
	}
	if points[0].Value != 10 {
		t.Errorf("value = %v, want 10", points[0].Value)
	}
}
