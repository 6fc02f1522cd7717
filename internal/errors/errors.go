// Package errors provides custom error types for the chat service client.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors for common cases
var (
	ErrInvalidResponse = errors.New("invalid response format")
	ErrNoChatSession   = errors.New("no chat session found")
	ErrAlreadyLoading  = errors.New("a response is already streaming")
	ErrEmptyMessage    = errors.New("message cannot be empty")
	ErrFeedbackExists  = errors.New("feedback already provided for this message")
	ErrNoRunID         = errors.New("message has no run id")
	ErrNotFound        = errors.New("message not found")
)

// APIError represents a non-success HTTP status from the service
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error [%d] at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("API error at %s: %s", e.Endpoint, e.Message)
}

// NewAPIError creates a new APIError
func NewAPIError(statusCode int, endpoint, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Message:    message,
	}
}

// NewAPIErrorWithBody creates an APIError that keeps a response body excerpt
func NewAPIErrorWithBody(statusCode int, endpoint, message, body string) *APIError {
	e := NewAPIError(statusCode, endpoint, message)
	e.Body = body
	return e
}

// NetworkError wraps a transport failure
type NetworkError struct {
	Operation string
	Endpoint  string
	Err       error
}

func (e *NetworkError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("network error during %s (%s): %v", e.Operation, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("network error during %s: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new NetworkError
func NewNetworkError(operation string, err error) *NetworkError {
	return &NetworkError{Operation: operation, Err: err}
}

// NewNetworkErrorWithEndpoint creates a NetworkError tagged with the endpoint
func NewNetworkErrorWithEndpoint(operation, endpoint string, err error) *NetworkError {
	return &NetworkError{Operation: operation, Endpoint: endpoint, Err: err}
}

// ParseError represents a response parsing error
type ParseError struct {
	Message string
	Input   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s", e.Message)
}

// Is matches ErrInvalidResponse and other ParseErrors
func (e *ParseError) Is(target error) bool {
	if target == ErrInvalidResponse {
		return true
	}
	_, ok := target.(*ParseError)
	return ok
}

// NewParseError creates a new ParseError
func NewParseError(message, input string) *ParseError {
	return &ParseError{Message: message, Input: input}
}

// FeedbackError is returned when the service does not acknowledge feedback
type FeedbackError struct {
	Code   int
	Result string
}

func (e *FeedbackError) Error() string {
	if e.Result == "" {
		return fmt.Sprintf("feedback rejected (code %d)", e.Code)
	}
	return fmt.Sprintf("feedback rejected (code %d): %s", e.Code, e.Result)
}

// NewFeedbackError creates a new FeedbackError
func NewFeedbackError(code int, result string) *FeedbackError {
	return &FeedbackError{Code: code, Result: result}
}

// IsNetworkError reports whether err is a transport failure
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// IsTimeoutError reports whether err is a deadline or timeout
func IsTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// IsParseError reports whether err came from decoding a response
func IsParseError(err error) bool {
	return errors.Is(err, ErrInvalidResponse)
}

// IsFeedbackError reports whether err is a rejected feedback submission
func IsFeedbackError(err error) bool {
	var fbErr *FeedbackError
	return errors.As(err, &fbErr)
}

// GetHTTPStatus extracts the HTTP status from an APIError, or 0
func GetHTTPStatus(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// GetEndpoint extracts the endpoint from structured errors
func GetEndpoint(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Endpoint
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.Endpoint
	}
	return ""
}

// GetResponseBody extracts the response body excerpt from an APIError
func GetResponseBody(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body
	}
	return ""
}
