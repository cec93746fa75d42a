package api

import (
	"encoding/json"
	"errors"

	"github.com/go-resty/resty/v2"
)

// ErrorKind classifies API failures so callers branch on structure, never on
// message text.
type ErrorKind string

const (
	// KindHTTP is any non-success response without a more specific meaning.
	KindHTTP ErrorKind = "http"
	// KindNetwork is a transport-level failure before any response arrived.
	KindNetwork ErrorKind = "network"
	// KindPaymentUnconfigured means the backend reports its payment subsystem
	// is not set up. The orchestrator falls back to unpaid analysis.
	KindPaymentUnconfigured ErrorKind = "payment_unconfigured"
)

// Error is the normalized failure shape returned by all API clients.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// IsPaymentUnconfigured reports whether err carries the unconfigured-payment
// condition that triggers the direct-analysis fallback.
func IsPaymentUnconfigured(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindPaymentUnconfigured
}

// errorBody is the structured error payload the backend returns on failure.
type errorBody struct {
	Detail string `json:"detail"`
}

// decodeError turns a non-success response into an *Error, preferring the
// backend's human-readable detail field and falling back to the caller's
// generic message when the body is not parseable.
func decodeError(resp *resty.Response, fallback string) *Error {
	apiErr := &Error{
		Kind:       KindHTTP,
		StatusCode: resp.StatusCode(),
		Message:    fallback,
	}

	var body errorBody
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Detail != "" {
		apiErr.Message = body.Detail
	}

	return apiErr
}

// networkError wraps a transport failure that produced no response.
func networkError(fallback string, err error) *Error {
	msg := fallback
	if err != nil {
		msg = fallback + ": " + err.Error()
	}
	return &Error{Kind: KindNetwork, Message: msg}
}
