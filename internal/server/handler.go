package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/gridwatch/dayahead/internal/apperror"
	"github.com/gridwatch/dayahead/internal/pricing"
	"github.com/gridwatch/dayahead/internal/query"
	"github.com/gridwatch/dayahead/internal/window"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// DayReader serves cached day objects without triggering upstream fetches.
type DayReader interface {
	RetrieveRaw(ctx context.Context, date time.Time) (json.RawMessage, bool, error)
}

type handler struct {
	days   DayReader
	window *window.Store
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getPrices resolves a path-shaped query against one cached day object. The
// live window is consulted first; a restart with warm cache still answers.
func (h *handler) getPrices(w http.ResponseWriter, r *http.Request) {
	dateStr := r.PathValue("date")
	if !datePattern.MatchString(dateStr) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", dateStr))
		return
	}
	date, err := time.Parse(pricing.DateFormat, dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", dateStr))
		return
	}

	root, err := h.dayObject(r.Context(), date)
	if err != nil {
		writeFailure(w, err)
		return
	}

	result, err := query.ResolveDay(root, r.PathValue("path"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) dayObject(ctx context.Context, date time.Time) (any, error) {
	if obj, ok := h.window.ObjectFor(date.Format(pricing.DateFormat)); ok {
		return query.ToGeneric(obj)
	}

	raw, ok, err := h.days.RetrieveRaw(ctx, date)
	if err != nil {
		return nil, apperror.New(apperror.Unavailable, "price cache unreachable")
	}
	if !ok {
		return nil, apperror.New(apperror.NotFound,
			fmt.Sprintf("no prices for %s", date.Format(pricing.DateFormat)))
	}
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, apperror.New(apperror.Unavailable, "corrupt cached object")
	}
	return root, nil
}

func (h *handler) getWindow(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"currentDate":   h.window.CurrentDate(),
		"previous":      h.window.PreviousDayObject() != nil,
		"current":       h.window.CurrentDayObject() != nil,
		"next":          h.window.NextDayObject() != nil,
		"nextAvailable": h.window.IsNextDayAvailable(),
	})
}

func (h *handler) getWindowSlot(w http.ResponseWriter, r *http.Request) {
	var obj *pricing.DayObject
	slot := r.PathValue("slot")
	switch slot {
	case "previous":
		obj = h.window.PreviousDayObject()
	case "current":
		obj = h.window.CurrentDayObject()
	case "next":
		obj = h.window.NextDayObject()
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown slot %q", slot))
		return
	}
	if obj == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no data in %s slot", slot))
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

func (h *handler) getWindowSummary(w http.ResponseWriter, _ *http.Request) {
	summary, ok := h.window.CurrentDaySummary()
	if !ok {
		writeError(w, http.StatusNotFound, "no data for the current day")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
