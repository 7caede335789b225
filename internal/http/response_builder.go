// Package http serves the finey JSON API.
//
// This file implements the Builder Pattern for constructing enveloped
// responses. Every body leaves as {status, statusCode, data, traceId}, where
// the trace id is the request id assigned by the trace middleware.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"finey/internal/core"
	"finey/internal/middleware/trace"
)

// Envelope status values.
const (
	StatusSuccess         = "SUCCESS"
	StatusError           = "ERROR"
	StatusValidationError = "VALIDATION_ERROR"
	StatusInvalidRange    = "INVALID_RANGE"
	StatusUnavailable     = "SERVICE_UNAVAILABLE"
	StatusRateLimited     = "RATE_LIMITED"
)

// upstreamRetryAfter is the Retry-After hint, in seconds, on 503 responses.
const upstreamRetryAfter = 5

// Envelope wraps every response body.
type Envelope struct {
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	TraceID    string `json:"traceId"`
}

// ErrorData is the data of a failed response.
type ErrorData struct {
	Message string              `json:"message"`
	Errors  []core.FieldProblem `json:"errors,omitempty"`
}

// ResponseBuilder provides a fluent API for building enveloped responses.
type ResponseBuilder struct {
	status     string
	statusCode int
	data       any
	headers    map[string]string
}

// NewResponse creates a builder for a 200 SUCCESS response.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		status:     StatusSuccess,
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code and the envelope status label.
func (b *ResponseBuilder) Status(code int, label string) *ResponseBuilder {
	b.statusCode = code
	b.status = label
	return b
}

// Data sets the envelope payload.
func (b *ResponseBuilder) Data(v any) *ResponseBuilder {
	b.data = v
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// Write encodes the envelope. The trace id comes from ctx.
func (b *ResponseBuilder) Write(ctx context.Context, w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)

	env := Envelope{
		Status:     b.status,
		StatusCode: b.statusCode,
		Data:       b.data,
		TraceID:    trace.GetRequestID(ctx),
	}
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.WarnContext(ctx, "Failed to write response", "error", err)
	}
}

// ErrorResponse creates an error envelope with a client-facing message.
func ErrorResponse(statusCode int, label, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode, label).
		Data(ErrorData{Message: message})
}

// BadRequestError creates a 400 response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, StatusValidationError, message)
}

// NotFoundError creates a 404 response.
func NotFoundError() *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, StatusError, "resource not found")
}

// MethodNotAllowedError creates a 405 response.
func MethodNotAllowedError(allowed string) *ResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, StatusError, "method not allowed").
		Header("Allow", allowed)
}

// RateLimitedError creates a 429 response.
func RateLimitedError() *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, StatusRateLimited, "rate limit exceeded, please try again later").
		Header("Retry-After", "60")
}

// ErrorFor maps an error onto its response. Crypto and internal failures
// never echo the underlying error to the client.
func ErrorFor(err error) *ResponseBuilder {
	var (
		validation *core.ValidationError
		invalid    *core.InvalidRangeError
		cryptoErr  *core.CryptoError
		upstream   *core.UpstreamUnavailableError
		tooLarge   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &validation):
		return NewResponse().
			Status(http.StatusBadRequest, StatusValidationError).
			Data(ErrorData{Message: "request validation failed", Errors: validation.Problems})
	case errors.As(err, &invalid):
		return ErrorResponse(http.StatusUnprocessableEntity, StatusInvalidRange, invalid.Error())
	case errors.As(err, &tooLarge):
		return ErrorResponse(http.StatusRequestEntityTooLarge, StatusValidationError, "request body too large")
	case errors.As(err, &cryptoErr):
		return ErrorResponse(http.StatusInternalServerError, StatusError, "could not process sealed fields")
	case errors.As(err, &upstream), errors.Is(err, context.DeadlineExceeded):
		return ErrorResponse(http.StatusServiceUnavailable, StatusUnavailable, "a dependency is unavailable, retry later").
			Header("Retry-After", strconv.Itoa(upstreamRetryAfter))
	}
	return ErrorResponse(http.StatusInternalServerError, StatusError, "internal error")
}

// writeError logs err at a level matching its class and writes the mapped
// response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorFor(err)
	ctx := r.Context()
	if resp.statusCode >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "Request failed",
			"path", r.URL.Path,
			"status_code", resp.statusCode,
			"error", err)
	} else {
		slog.InfoContext(ctx, "Request rejected",
			"path", r.URL.Path,
			"status_code", resp.statusCode,
			"error", err)
	}
	resp.Write(ctx, w)
}

func writeData(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	NewResponse().Status(statusCode, StatusSuccess).Data(data).Write(r.Context(), w)
}
