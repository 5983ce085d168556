package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"evoplan/internal/pipeline"
)

// Sentinel errors the handlers map to HTTP status codes.
var (
	ErrRunNotFound   = errors.New("run not found")
	ErrStageNotFound = errors.New("stage not found")
	ErrNotAwaiting   = errors.New("run is not awaiting input")
	ErrInvalidInput  = errors.New("invalid input")
)

type errorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrRunNotFound), errors.Is(err, ErrStageNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotAwaiting), errors.Is(err, pipeline.ErrNotAwaiting):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, err error) {
	respondJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
