package window

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gridwatch/dayahead/internal/pricing"
)

// Slot identifies one of the three day positions of the rolling window.
type Slot int

const (
	SlotPrevious Slot = iota
	SlotCurrent
	SlotNext
)

func (s Slot) String() string {
	switch s {
	case SlotPrevious:
		return "previous"
	case SlotNext:
		return "next"
	default:
		return "current"
	}
}

type EventKind string

const (
	EventNewPrices   EventKind = "newPrices"
	EventDayRollover EventKind = "dayRollover"
)

// Event is delivered to subscribers on ingestion and on calendar rollover.
type Event struct {
	Kind EventKind
	Date string
}

// ErrIndexOutOfRange is returned by HourlyData for indices outside the slot's
// interval array.
var ErrIndexOutOfRange = errors.New("index out of range")

// Store holds the rolling previous/current/next day objects. Every external
// access first checks whether the wall-clock date has advanced past the
// current slot and shifts the window if so. Missing data is absence, not an
// error.
type Store struct {
	mu       sync.Mutex
	previous *pricing.DayObject
	current  *pricing.DayObject
	next     *pricing.DayObject
	anchor   time.Time // midnight of the date the current slot is tagged with
	now      func() time.Time

	subMu sync.Mutex
	subs  []chan Event
}

func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	s := &Store{now: now}
	s.anchor = midnight(now())
	return s
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Subscribe registers a new event listener. Delivery is non-blocking: a
// subscriber that falls behind loses events, never stalls the store.
func (s *Store) Subscribe() <-chan Event {
	ch := make(chan Event, 8)
	s.subMu.Lock()
	s.subs = append(s.subs, ch)
	s.subMu.Unlock()
	return ch
}

func (s *Store) Unsubscribe(ch <-chan Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for i, sub := range s.subs {
		if sub == ch {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			close(sub)
			return
		}
	}
}

func (s *Store) notify(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, sub := range s.subs {
		select {
		case sub <- ev:
		default:
		}
	}
}

// Ingest places a freshly built day object into the slot matching its date
// relative to today. Objects outside the three-day window are dropped.
func (s *Store) Ingest(obj *pricing.DayObject) {
	s.mu.Lock()
	s.rollIfNeeded()

	switch obj.PriceDate {
	case s.anchor.AddDate(0, 0, -1).Format(pricing.DateFormat):
		s.previous = obj
	case s.anchor.Format(pricing.DateFormat):
		s.current = obj
	case s.anchor.AddDate(0, 0, 1).Format(pricing.DateFormat):
		s.next = obj
	default:
		s.mu.Unlock()
		slog.Warn("ingest: date outside window", "priceDate", obj.PriceDate,
			"today", s.anchor.Format(pricing.DateFormat))
		return
	}
	s.mu.Unlock()

	s.notify(Event{Kind: EventNewPrices, Date: obj.PriceDate})
}

// rollIfNeeded shifts the window while the wall-clock date is ahead of the
// anchor. Old data is never discarded proactively; the previous slot is simply
// overwritten by the shift. Callers must hold mu.
func (s *Store) rollIfNeeded() {
	today := midnight(s.now())
	for s.anchor.Before(today) {
		s.previous = s.current
		s.current = s.next
		s.next = nil
		s.anchor = s.anchor.AddDate(0, 0, 1)

		date := s.anchor.Format(pricing.DateFormat)
		slog.Info("day rollover", "date", date)
		s.notify(Event{Kind: EventDayRollover, Date: date})
	}
}

func (s *Store) slot(slot Slot) *pricing.DayObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollIfNeeded()
	switch slot {
	case SlotPrevious:
		return s.previous
	case SlotNext:
		return s.next
	default:
		return s.current
	}
}

// PreviousDayObject returns the previous day's object, or nil when absent.
func (s *Store) PreviousDayObject() *pricing.DayObject { return s.slot(SlotPrevious) }

// CurrentDayObject returns the current day's object, or nil when absent.
func (s *Store) CurrentDayObject() *pricing.DayObject { return s.slot(SlotCurrent) }

// NextDayObject returns the next day's object, or nil when absent.
func (s *Store) NextDayObject() *pricing.DayObject { return s.slot(SlotNext) }

// IsNextDayAvailable reports whether the next slot is populated.
func (s *Store) IsNextDayAvailable() bool { return s.slot(SlotNext) != nil }

// CurrentDate returns the ISO date the current slot is tagged with.
func (s *Store) CurrentDate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollIfNeeded()
	return s.anchor.Format(pricing.DateFormat)
}

// CurrentDaySummary returns the daily block of the current slot.
func (s *Store) CurrentDaySummary() (pricing.Summary, bool) {
	obj := s.slot(SlotCurrent)
	if obj == nil {
		return pricing.Summary{}, false
	}
	return obj.Daily, true
}

// HourlyData indexes the chosen slot's interval array.
func (s *Store) HourlyData(index int, slot Slot) (pricing.Entry, error) {
	obj := s.slot(slot)
	if obj == nil {
		return pricing.Entry{}, fmt.Errorf("no data in %s slot", slot)
	}
	entries := obj.Entries()
	if index < 0 || index >= len(entries) {
		return pricing.Entry{}, fmt.Errorf("%w: %d of %d entries", ErrIndexOutOfRange, index, len(entries))
	}
	return entries[index], nil
}

// ObjectFor returns the slot object whose date matches the given ISO date, if
// the window currently holds one.
func (s *Store) ObjectFor(date string) (*pricing.DayObject, bool) {
	for _, obj := range []*pricing.DayObject{s.slot(SlotCurrent), s.slot(SlotNext), s.slot(SlotPrevious)} {
		if obj != nil && obj.PriceDate == date {
			return obj, true
		}
	}
	return nil, false
}
