package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

type fakeCache struct {
	objects map[string]json.RawMessage
}

func (f *fakeCache) Has(_ context.Context, key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeCache) RetrieveObject(_ context.Context, key string) (json.RawMessage, bool, error) {
	v, ok := f.objects[key]
	return v, ok, nil
}

func (f *fakeCache) CreateObject(_ context.Context, key string, value json.RawMessage, _ bool) error {
	f.objects[key] = value
	return nil
}

func (f *fakeCache) DeleteObject(_ context.Context, key string, _ bool) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeCache) Keys(_ context.Context) ([]string, error) { return nil, nil }

type publishCall struct {
	topic   string
	payload []byte
	retain  bool
	qos     byte
}

type fakeTransport struct {
	calls  []publishCall
	failAt int // 1-based call index that fails; 0 = never
}

func (f *fakeTransport) Publish(_ context.Context, topic string, payload []byte, retain bool, qos byte) error {
	f.calls = append(f.calls, publishCall{topic: topic, payload: payload, retain: retain, qos: qos})
	if f.failAt > 0 && len(f.calls) == f.failAt {
		return fmt.Errorf("broker gone")
	}
	return nil
}

func fixedNow() time.Time {
	return time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
}

func seed(dates ...string) *fakeCache {
	fc := &fakeCache{objects: make(map[string]json.RawMessage)}
	for _, d := range dates {
		fc.objects["prices-"+d] = json.RawMessage(`{"priceDate":"` + d + `"}`)
	}
	return fc
}

func TestRunCycle_TomorrowPresent(t *testing.T) {
	fc := seed("2025-03-09", "2025-03-10", "2025-03-11")
	ft := &fakeTransport{}
	ctrl := NewController(fc, ft, "dayahead/prices", fixedNow)

	if err := ctrl.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	if len(ft.calls) != 3 {
		t.Fatalf("expected 3 publishes, got %d", len(ft.calls))
	}

	wantTopics := []string{
		"dayahead/prices/2025-03-10",
		"dayahead/prices/2025-03-11",
		"dayahead/prices/2025-03-09",
	}
	for i, want := range wantTopics {
		if ft.calls[i].topic != want {
			t.Errorf("call %d: topic %q, want %q", i, ft.calls[i].topic, want)
		}
		if !ft.calls[i].retain || ft.calls[i].qos != 1 {
			t.Errorf("call %d: retain=%v qos=%d", i, ft.calls[i].retain, ft.calls[i].qos)
		}
	}

	// First two carry payloads, the last is the retraction.
	if len(ft.calls[0].payload) == 0 || len(ft.calls[1].payload) == 0 {
		t.Error("publishes must carry the day object")
	}
	if len(ft.calls[2].payload) != 0 {
		t.Error("retraction must carry an empty payload")
	}
}

func TestRunCycle_TomorrowAbsent(t *testing.T) {
	fc := seed("2025-03-08", "2025-03-09", "2025-03-10")
	ft := &fakeTransport{}
	ctrl := NewController(fc, ft, "dayahead/prices", fixedNow)

	if err := ctrl.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	wantTopics := []string{
		"dayahead/prices/2025-03-09",
		"dayahead/prices/2025-03-10",
		"dayahead/prices/2025-03-08",
	}
	if len(ft.calls) != 3 {
		t.Fatalf("expected 3 publishes, got %d", len(ft.calls))
	}
	for i, want := range wantTopics {
		if ft.calls[i].topic != want {
			t.Errorf("call %d: topic %q, want %q", i, ft.calls[i].topic, want)
		}
	}
	if len(ft.calls[2].payload) != 0 {
		t.Error("retraction must carry an empty payload")
	}
}

func TestRunCycle_AbortsBeforeRetractionOnFailure(t *testing.T) {
	fc := seed("2025-03-09", "2025-03-10", "2025-03-11")
	ft := &fakeTransport{failAt: 2}
	ctrl := NewController(fc, ft, "dayahead/prices", fixedNow)

	if err := ctrl.RunCycle(context.Background()); err == nil {
		t.Fatal("expected cycle to fail")
	}

	if len(ft.calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(ft.calls))
	}
	for _, call := range ft.calls {
		if len(call.payload) == 0 {
			t.Error("retraction was attempted after a failed publish")
		}
	}
}

func TestRunCycle_SkipsUncachedDays(t *testing.T) {
	// Only tomorrow is cached: today's publish is skipped, tomorrow goes out,
	// yesterday is still retracted.
	fc := seed("2025-03-11")
	ft := &fakeTransport{}
	ctrl := NewController(fc, ft, "dayahead/prices", fixedNow)

	if err := ctrl.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	if len(ft.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(ft.calls))
	}
	if ft.calls[0].topic != "dayahead/prices/2025-03-11" || len(ft.calls[0].payload) == 0 {
		t.Errorf("first call = %+v", ft.calls[0])
	}
	if ft.calls[1].topic != "dayahead/prices/2025-03-09" || len(ft.calls[1].payload) != 0 {
		t.Errorf("second call = %+v", ft.calls[1])
	}
}
