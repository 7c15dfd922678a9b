package handler

// RESPONSE HELPERS:
// Every handler writes JSON through writeJSON and every failure through
// writeError. A handler body then reads as "decode, call the service, write":
//
//	game, err := h.games.Create(r.Context(), in)
//	if err != nil {
//	    writeError(w, h.logger, err)
//	    return
//	}
//	writeJSON(w, http.StatusCreated, game)
//
// CONSISTENT ERROR FORMAT:
// All error bodies share one shape, including the gate's 401/403 and the
// rate limiter's 429:
//
//	{"error": "validation_error", "message": "title must be at least 3 characters",
//	 "fields": [{"field": "title", "message": "..."}]}
//
// "fields" is present only for validation failures, one entry per rejected
// field, so a form can mark all of them at once.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/green-gaming/internal/apperror"
	"github.com/sakif/green-gaming/internal/repository"
)

// maxBodyBytes caps request bodies. Nothing this API accepts comes close.
const maxBodyBytes = 1 << 20

// ErrorResponse is the error body returned by every endpoint.
type ErrorResponse struct {
	Error   string                `json:"error"`   // machine-readable kind, e.g. "not_found"
	Message string                `json:"message"` // human-readable description
	Fields  []apperror.FieldError `json:"fields,omitempty"`
}

// writeJSON sends data with the given status.
//
// HEADER ORDER MATTERS:
//  1. w.Header().Set(...)    set headers
//  2. w.WriteHeader(status)  sends status and headers
//  3. json Encode            sends the body
//
// A header set after step 2 is silently dropped.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are gone already; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error onto a status code.
//
//	ErrValidation   → 400
//	ErrUnauthorized → 401
//	ErrForbidden    → 403
//	ErrNotFound     → 404
//	ErrConflict     → 409
//	anything else   → 500, logged here, opaque to the client
//
// WHY HERE AND NOT IN THE SERVICE?
// Services speak apperror, never HTTP status codes, so the cart session in
// internal/cart and the API client can reuse the same sentinels.
//
// errors.As/errors.Is walk the whole chain, so services can wrap freely:
//
//	service returns: fmt.Errorf("adding to cart: %w", apperror.Conflict(...))
//	which wraps:     AppError{Err: ErrConflict, Message: "..."}
//	errors.Is walks: outer error → AppError → ErrConflict, so 409
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, kind := classify(err)
		if status != http.StatusInternalServerError {
			writeJSON(w, status, ErrorResponse{
				Error:   kind,
				Message: appErr.Message,
				Fields:  appErr.Fields,
			})
			return
		}
	}

	// The raw message may contain SQL or file paths; it stays in the log.
	logger.Error("internal error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "an internal error occurred",
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeJSON reads a JSON body into v.
//
// STRICT DECODING:
//   - bodies over maxBodyBytes are cut off by MaxBytesReader
//   - unknown fields are rejected, so {"role":"ADMIN"} at registration is
//     a 400 rather than silently ignored
//   - a second JSON value after the first is rejected
//
// Every failure is a validation error on the "body" field.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "request body is required")
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("body", "request body is too large")
		default:
			return apperror.ValidationFailed("body", fmt.Sprintf("invalid JSON body: %v", err))
		}
	}
	if dec.More() {
		return apperror.ValidationFailed("body", "request body must contain a single JSON object")
	}
	return nil
}

// listOptions reads ?limit= and ?offset=. Bad numbers are a 400 rather than
// silently ignored.
func listOptions(r *http.Request) (repository.ListOptions, error) {
	var opts repository.ListOptions
	q := r.URL.Query()

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return opts, apperror.ValidationFailed("limit", "limit must be a non-negative integer")
		}
		opts.Limit = n
	}
	if s := q.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return opts, apperror.ValidationFailed("offset", "offset must be a non-negative integer")
		}
		opts.Offset = n
	}
	return opts, nil
}
