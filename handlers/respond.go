package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"cinescope/services/explore"
	"cinescope/services/metadata"
	"cinescope/services/sessions"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps service errors onto HTTP codes. Anything unrecognised is
// an upstream failure.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, metadata.ErrInvalidMediaType):
		return http.StatusBadRequest
	case errors.Is(err, metadata.ErrNotFound),
		errors.Is(err, explore.ErrUnknownCategory),
		errors.Is(err, sessions.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, metadata.ErrNotConfigured):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	msg := err.Error()
	var apiErr *metadata.APIError
	if errors.As(err, &apiErr) && apiErr.StatusMessage() != "" {
		msg = apiErr.StatusMessage()
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// queryInt parses a positive integer query parameter, returning def when it
// is missing or malformed.
func queryInt(r *http.Request, key string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func queryBool(r *http.Request, key string) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(key))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// decodeBody reads a small JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
