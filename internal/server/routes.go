package server

import (
	"net/http"

	"github.com/gridwatch/dayahead/internal/window"
)

// NewHandler builds the full HTTP handler with routes and middleware.
// Exported for tests (httptest.NewServer).
func NewHandler(days DayReader, win *window.Store) http.Handler {
	h := &handler{days: days, window: win}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /api/v1/prices/{date}", h.getPrices)
	mux.HandleFunc("GET /api/v1/prices/{date}/{path...}", h.getPrices)
	mux.HandleFunc("GET /api/v1/window", h.getWindow)
	mux.HandleFunc("GET /api/v1/window/summary", h.getWindowSummary)
	mux.HandleFunc("GET /api/v1/window/{slot}", h.getWindowSlot)

	// Middleware stack: recovery -> requestID -> logging
	var handler http.Handler = mux
	handler = logging(handler)
	handler = requestID(handler)
	handler = recovery(handler)

	return handler
}
