// Package http serves the JSON API.
//
// This file builds the response envelope shared by every endpoint:
// {"success": bool, "data": ..., "error": {...}}.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"savvycent/internal/core"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	CodeUnauthorized     = "unauthorized"
	CodeNotFound         = "not_found"
	CodeValidation       = "validation_error"
	CodeUpstream         = "upstream_error"
	CodeRateLimited      = "rate_limited"
	CodeBadRequest       = "bad_request"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeInternal         = "internal_error"
)

// ResponseBuilder assembles an API response.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	envelope   Envelope
}

func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
		envelope:   Envelope{Success: true},
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *ResponseBuilder) Data(data any) *ResponseBuilder {
	b.envelope.Data = data
	return b
}

// Fail marks the response as failed with the given code and message.
func (b *ResponseBuilder) Fail(code, message string) *ResponseBuilder {
	b.envelope.Success = false
	b.envelope.Data = nil
	b.envelope.Error = &APIError{Code: code, Message: message}
	return b
}

func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.envelope); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// OK returns a 200 response carrying data.
func OK(data any) *ResponseBuilder {
	return NewResponse().Data(data)
}

// Created returns a 201 response carrying data.
func Created(data any) *ResponseBuilder {
	return NewResponse().Status(http.StatusCreated).Data(data)
}

// ErrorResponse builds a failed response with an explicit status.
func ErrorResponse(statusCode int, code, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).Fail(code, message)
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, CodeBadRequest, message)
}

func MethodNotAllowedError(allowed string) *ResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed").Header("Allow", allowed)
}

// FromError maps a service error onto status, code and message. Internal
// errors hide their text from the client.
func FromError(err error) *ResponseBuilder {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		return ErrorResponse(http.StatusUnauthorized, CodeUnauthorized, "authentication required")
	case errors.Is(err, core.ErrNotFound):
		return ErrorResponse(http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, core.ErrValidation):
		return ErrorResponse(http.StatusUnprocessableEntity, CodeValidation, err.Error())
	case errors.Is(err, core.ErrRateLimited):
		return ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "too many requests, please try again later")
	case errors.Is(err, core.ErrUpstream):
		return ErrorResponse(http.StatusBadGateway, CodeUpstream, "an external service failed, please try again later")
	default:
		return ErrorResponse(http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}
