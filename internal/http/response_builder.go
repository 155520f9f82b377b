// Package http serves the ledger and summary over a JSON API.
//
// This file implements the Builder Pattern for constructing JSON responses
// and the mapping from domain errors to status codes.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	payload    any
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

// Created sets 201 and the Location of the new resource.
func (b *JSONResponseBuilder) Created(location string) *JSONResponseBuilder {
	return b.Status(http.StatusCreated).Header("Location", location)
}

// JSON sets the value encoded as the body.
func (b *JSONResponseBuilder) JSON(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	body, err := json.Marshal(b.payload)
	if err != nil {
		b.statusCode = http.StatusInternalServerError
		body = []byte(`{"error":"failed to encode response"}`)
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(body, '\n'))
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message, field string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		JSON(ErrorBody{Error: message, Field: field})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message, field string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message, field)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message, "")
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal server error", "")
}

// writeError maps err onto a status. Unexpected errors are logged with the
// request logger and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, entity string, err error) {
	if ve, ok := core.AsValidation(err); ok {
		BadRequestError(ve.Message, ve.Field).Write(w)
		return
	}
	if errors.Is(err, core.ErrNotFound) {
		NotFoundError(entity + " not found").Write(w)
		return
	}
	if errors.Is(err, context.Canceled) {
		// Client went away; nobody reads the body.
		w.WriteHeader(499)
		return
	}

	log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), "Request failed", err,
		log.ComponentHTTP, r.Method, log.NewFields().With(log.FieldEntity, entity))
	InternalServerError().Write(w)
}
