// Package http provides the JSON API server and its handlers.
//
// This file implements a small builder for JSON responses and the mapping
// from domain errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"finansheet/internal/core"
	"finansheet/internal/log"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode JSON response", log.FieldComponent, log.ComponentHTTP, log.FieldError, err)
	}
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(ErrorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// ValidationError creates a 422 response listing the offending fields.
func ValidationError(errs validator.ValidationErrors) *JSONResponseBuilder {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fe.Namespace()] = fe.Tag()
	}
	return NewJSONResponse().
		Status(http.StatusUnprocessableEntity).
		Body(ErrorBody{Error: "validation failed", Details: details})
}

// conflictErrors change the term history in a way it cannot accept.
var conflictErrors = []error{
	core.ErrTermOrder,
	core.ErrTermOverlap,
	core.ErrNothingToPause,
	core.ErrNothingToResume,
	core.ErrNotPaused,
}

// invalidErrors are domain validation failures.
var invalidErrors = []error{
	core.ErrInvalidDate,
	core.ErrInvalidPeriod,
	core.ErrInvalidAmount,
	core.ErrInvalidDueDay,
	core.ErrInvalidFrequency,
	core.ErrInvalidFlowType,
	core.ErrInvalidCurrency,
	core.ErrEmptyName,
	core.ErrTermRange,
}

// StatusForError maps a service error to its HTTP status and the error
// type used in logs.
func StatusForError(err error) (int, string) {
	var verrs validator.ValidationErrors
	var berr *BodyError
	switch {
	case errors.As(err, &berr):
		return http.StatusBadRequest, log.ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, log.ErrorTypeNotFound
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity, log.ErrorTypeValidation
	case isAny(err, conflictErrors):
		return http.StatusConflict, log.ErrorTypeConflict
	case isAny(err, invalidErrors):
		return http.StatusUnprocessableEntity, log.ErrorTypeValidation
	default:
		return http.StatusInternalServerError, log.ErrorTypeInternal
	}
}

// FromError builds the response for a service error. Internal errors are
// not echoed to the client.
func FromError(err error) *JSONResponseBuilder {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return ValidationError(verrs)
	}
	status, _ := StatusForError(err)
	if status == http.StatusInternalServerError {
		return InternalServerError("internal error")
	}
	return ErrorResponse(status, err.Error())
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
