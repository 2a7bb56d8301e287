package server

import (
	"encoding/json"
	"net/http"

	"github.com/gridwatch/dayahead/internal/apperror"
)

type errorBody struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

// writeJSON emits the value itself; query results are plain JSON values, not
// envelopes.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Status: status, Error: message})
}

// writeFailure maps an error to the API error shape. Anything that is not an
// AppError is an unexpected internal failure and surfaces as unavailable.
func writeFailure(w http.ResponseWriter, err error) {
	if ae, ok := err.(*apperror.AppError); ok {
		writeError(w, ae.HTTPStatus(), ae.Message())
		return
	}
	writeError(w, http.StatusServiceUnavailable, "service unavailable")
}
