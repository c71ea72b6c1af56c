package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Error codes carried in ErrorResponse.Code.
const (
	ErrBadRequest   = "bad_request"
	ErrInvalidBody  = "invalid_body"
	ErrValidation   = "validation_failed"
	ErrNotFound     = "not_found"
	ErrConflict     = "conflict"
	ErrUpstream     = "upstream_error"
	ErrTooLarge     = "payload_too_large"
	ErrUnauthorized = "unauthorized"
	ErrInternal     = "internal_error"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
	Code   string `json:"code,omitempty"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// WriteErrorWithCode writes a JSON error response with a machine-readable code.
func WriteErrorWithCode(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

// WriteErrorDetail writes a JSON error response with detail.
func WriteErrorDetail(w http.ResponseWriter, status int, code, msg, detail string) {
	WriteJSON(w, status, ErrorResponse{Error: msg, Detail: detail, Code: code})
}

// ParseLimit reads ?limit=, defaulting to def and capping at max.
func ParseLimit(r *http.Request, def, max int) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q: must be an integer", v)
	}
	if n < 1 {
		return 0, fmt.Errorf("invalid limit %d: must be >= 1", n)
	}
	if n > max {
		n = max
	}
	return n, nil
}

// PathInt extracts an integer from a chi URL parameter.
func PathInt(r *http.Request, name string) (int, error) {
	v := chi.URLParam(r, name)
	if v == "" {
		return 0, fmt.Errorf("missing path parameter: %s", name)
	}
	return strconv.Atoi(v)
}

// PathUUID extracts a UUID from a chi URL parameter.
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	v := chi.URLParam(r, name)
	if v == "" {
		return uuid.Nil, fmt.Errorf("missing path parameter: %s", name)
	}
	return uuid.Parse(v)
}

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

// DecodeJSON reads and decodes a JSON request body into v.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("missing request body")
	}
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v)
}
