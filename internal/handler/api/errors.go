// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Error codes.
const (
	CodeUnauthorized       = "unauthorized"
	CodeForbidden          = "forbidden"
	CodeRateLimitExceeded  = "rate_limit_exceeded"
	CodeValidation         = "validation_error"
	CodeNotFound           = "not_found"
	CodeUpstream           = "upstream_error"
	CodeServiceUnavailable = "service_unavailable"
	CodeInternal           = "internal_error"
)

// Error is an error that knows its HTTP status and JSON representation.
// Err is the underlying cause; it is logged but never sent to clients.
type Error struct {
	Status     int
	Code       string
	Message    string
	Details    any
	RetryAfter int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Unauthorized is returned when credentials are missing or wrong.
func Unauthorized(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: message}
}

// Forbidden is returned when the caller is known but lacks the role.
func Forbidden(message string) *Error {
	return &Error{Status: http.StatusForbidden, Code: CodeForbidden, Message: message}
}

// RateLimited is returned when a client exceeded its window.
func RateLimited(retryAfter int) *Error {
	return &Error{
		Status:     http.StatusTooManyRequests,
		Code:       CodeRateLimitExceeded,
		Message:    "Rate limit exceeded. Please slow down.",
		RetryAfter: retryAfter,
	}
}

// Validation carries one message per failing field.
func Validation(messages []string) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeValidation,
		Message: "Validation failed",
		Details: messages,
	}
}

// BadRequest is a validation error with a single message, used as the
// top-level message as well.
func BadRequest(message string) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeValidation,
		Message: message,
		Details: []string{message},
	}
}

// NotFound is returned for unknown slugs and ids.
func NotFound(message string) *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: message}
}

// UpstreamDetails describes a failed downstream call.
type UpstreamDetails struct {
	UpstreamStatus int    `json:"upstream_status,omitempty"`
	UpstreamBody   string `json:"upstream_body,omitempty"`
}

// Upstream wraps a failure of an external dependency as 502.
func Upstream(message string, details *UpstreamDetails, cause error) *Error {
	e := &Error{Status: http.StatusBadGateway, Code: CodeUpstream, Message: message, Err: cause}
	if details != nil {
		e.Details = details
	}
	return e
}

// Unavailable is returned when a dependency is not configured or is
// temporarily refusing calls.
func Unavailable(message string, cause error) *Error {
	return &Error{Status: http.StatusServiceUnavailable, Code: CodeServiceUnavailable, Message: message, Err: cause}
}

// Internal hides cause behind a generic message.
func Internal(cause error) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternal,
		Message: "An internal error occurred",
		Err:     cause,
	}
}

// DecodeError converts a JSON decoding failure into a 400.
func DecodeError(err error) *Error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		maxErr    *http.MaxBytesError
	)
	switch {
	case errors.As(err, &maxErr):
		return BadRequest(fmt.Sprintf("request body must not exceed %d bytes", maxErr.Limit))
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return BadRequest(fmt.Sprintf("%s must be a %s", typeErr.Field, jsonKind(typeErr.Type.Kind().String())))
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return BadRequest("request body is not valid JSON")
	case errors.Is(err, io.EOF):
		return BadRequest("request body is empty")
	default:
		return BadRequest("request body is not valid JSON")
	}
}

func jsonKind(goKind string) string {
	switch goKind {
	case "string":
		return "string"
	case "bool":
		return "boolean"
	case "slice", "array":
		return "list"
	case "int", "int64", "float64":
		return "number"
	default:
		return "valid value"
	}
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// WriteError writes an error envelope with explicit fields.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details any) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message, Details: details},
	})
}

// WriteErr writes err as an error envelope. Errors that are not *Error
// become a generic 500.
func WriteErr(w http.ResponseWriter, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = Internal(err)
	}
	if apiErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(apiErr.RetryAfter))
	}
	WriteError(w, apiErr.Status, apiErr.Code, apiErr.Message, apiErr.Details)
}
