package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// maxLimit caps a single page of events. A request without a limit is not
// paged at all.
const maxLimit = 1000

// errorResponse is the body of every JSON error: {"error": "..."}.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes data as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode json response", "error", err)
	}
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: msg}); err != nil {
		slog.Error("failed to encode json error response", "error", err)
	}
}

// writeText writes a 200 plain-text body. An empty body is a valid response.
func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if body == "" {
		return
	}
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Debug("failed to write text response", "error", err)
	}
}

// pagination is the parsed limit/offset pair. Limit 0 means unbounded.
type pagination struct {
	Limit  int
	Offset int
}

// parsePagination reads the optional limit and offset query parameters.
// It returns an error message suitable for a 400 response.
func parsePagination(r *http.Request) (pagination, string) {
	var p pagination
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, "limit must be a positive integer"
		}
		p.Limit = min(n, maxLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, "offset must be a non-negative integer"
		}
		p.Offset = n
	}
	return p, ""
}
