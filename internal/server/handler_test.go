package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gridwatch/dayahead/internal/pricing"
	"github.com/gridwatch/dayahead/internal/window"
)

type fakeDays struct {
	objects map[string]json.RawMessage
	fail    bool
}

func (f *fakeDays) RetrieveRaw(_ context.Context, date time.Time) (json.RawMessage, bool, error) {
	if f.fail {
		return nil, false, fmt.Errorf("cache down")
	}
	raw, ok := f.objects[date.Format(pricing.DateFormat)]
	return raw, ok, nil
}

func newTestAPI(t *testing.T, days *fakeDays) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(NewHandler(days, window.NewStore(time.Now)))
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer func() { _ = res.Body.Close() }()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res.StatusCode, string(body)
}

func seedDay() *fakeDays {
	hourly := `[`
	for i := range 24 {
		if i > 0 {
			hourly += ","
		}
		hourly += fmt.Sprintf(`{"totalPrice":%d}`, i)
	}
	hourly += `]`

	return &fakeDays{objects: map[string]json.RawMessage{
		"2025-03-10": json.RawMessage(`{"priceDate":"2025-03-10","daily":{"avgPrice":1.23},"hourly":` + hourly + `}`),
	}}
}

func TestGetPrices_WholeDay(t *testing.T) {
	ts := newTestAPI(t, seedDay())

	status, body := get(t, ts.URL+"/api/v1/prices/2025-03-10")
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %s", status, body)
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if obj["priceDate"] != "2025-03-10" {
		t.Errorf("priceDate = %v", obj["priceDate"])
	}
}

func TestGetPrices_DailyField(t *testing.T) {
	ts := newTestAPI(t, seedDay())

	status, body := get(t, ts.URL+"/api/v1/prices/2025-03-10/daily/avgPrice")
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %s", status, body)
	}
	if body != "1.23\n" {
		t.Errorf("body = %q, want 1.23", body)
	}
}

func TestGetPrices_HourShorthand(t *testing.T) {
	ts := newTestAPI(t, seedDay())

	status, body := get(t, ts.URL+"/api/v1/prices/2025-03-10/7/totalPrice")
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %s", status, body)
	}
	if body != "7\n" {
		t.Errorf("body = %q, want 7", body)
	}
}

func TestGetPrices_InvalidDate(t *testing.T) {
	ts := newTestAPI(t, seedDay())

	status, body := get(t, ts.URL+"/api/v1/prices/2025-3-10")
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", status, body)
	}
	var eb errorBody
	if err := json.Unmarshal([]byte(body), &eb); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if eb.Status != http.StatusBadRequest || eb.Error == "" {
		t.Errorf("error body = %+v", eb)
	}
}

func TestGetPrices_HourOutOfRange(t *testing.T) {
	ts := newTestAPI(t, seedDay())

	status, _ := get(t, ts.URL+"/api/v1/prices/2025-03-10/99")
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
}

func TestGetPrices_PathNotFound(t *testing.T) {
	ts := newTestAPI(t, seedDay())

	status, body := get(t, ts.URL+"/api/v1/prices/2025-03-10/hourly/99")
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", status, body)
	}
	var eb errorBody
	if err := json.Unmarshal([]byte(body), &eb); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if eb.Error != "Path not found: /hourly/99" {
		t.Errorf("error = %q", eb.Error)
	}
}

func TestGetPrices_MissingDay(t *testing.T) {
	ts := newTestAPI(t, seedDay())

	status, body := get(t, ts.URL+"/api/v1/prices/2025-03-12")
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", status, body)
	}
	var eb errorBody
	_ = json.Unmarshal([]byte(body), &eb)
	if eb.Error != "no prices for 2025-03-12" {
		t.Errorf("error = %q", eb.Error)
	}
}

func TestGetPrices_CacheUnreachable(t *testing.T) {
	ts := newTestAPI(t, &fakeDays{fail: true})

	status, _ := get(t, ts.URL+"/api/v1/prices/2025-03-10")
	if status != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", status)
	}
}

func TestWindowEndpoints(t *testing.T) {
	days := seedDay()
	win := window.NewStore(func() time.Time {
		return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	})
	win.Ingest(&pricing.DayObject{
		PriceDate: "2025-03-10",
		Interval:  "1h",
		Daily:     pricing.Summary{AvgPrice: 4.2, Count: 24},
		Hourly:    make([]pricing.Entry, 24),
	})

	ts := httptest.NewServer(NewHandler(days, win))
	t.Cleanup(ts.Close)

	status, body := get(t, ts.URL+"/api/v1/window")
	if status != http.StatusOK {
		t.Fatalf("window status = %d", status)
	}
	var state map[string]any
	if err := json.Unmarshal([]byte(body), &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state["current"] != true || state["next"] != false {
		t.Errorf("window state = %v", state)
	}

	status, body = get(t, ts.URL+"/api/v1/window/summary")
	if status != http.StatusOK {
		t.Fatalf("summary status = %d", status)
	}
	var summary pricing.Summary
	if err := json.Unmarshal([]byte(body), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.AvgPrice != 4.2 {
		t.Errorf("avgPrice = %v", summary.AvgPrice)
	}

	status, _ = get(t, ts.URL+"/api/v1/window/next")
	if status != http.StatusNotFound {
		t.Errorf("next slot status = %d, want 404", status)
	}

	status, _ = get(t, ts.URL+"/api/v1/window/current")
	if status != http.StatusOK {
		t.Errorf("current slot status = %d", status)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestAPI(t, seedDay())
	status, _ := get(t, ts.URL+"/health")
	if status != http.StatusOK {
		t.Errorf("health status = %d", status)
	}
}
