package gateway

import (
	"context"
	"errors"
	"fmt"
)

// TransportError means no HTTP response was received: DNS failure, refused
// connection, reset, or the per-attempt timeout elapsed.
type TransportError struct {
	Method   string
	URL      string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	msg := "Network request failed"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, msg)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the last attempt failed because it ran out of time.
func (e *TransportError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// ApiError means the API answered with a non-2xx status. Message is the
// normalised human-readable text; Payload is the decoded body as received
// (a map, slice, string, or nil).
type ApiError struct {
	Method  string
	URL     string
	Status  int
	Message string
	Payload any
}

func (e *ApiError) Error() string {
	return e.Message
}

// IsStatus reports whether err is an ApiError carrying one of the statuses.
func IsStatus(err error, statuses ...int) bool {
	var apiErr *ApiError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, s := range statuses {
		if apiErr.Status == s {
			return true
		}
	}
	return false
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// normalizeMessage extracts a message from an error payload: a plain string,
// a "detail" string, a "message" string, or the "msg" of the first item of a
// "detail" list. Anything else yields fallback.
func normalizeMessage(payload any, fallback string) string {
	switch p := payload.(type) {
	case nil:
		return fallback
	case string:
		if p == "" {
			return fallback
		}
		return p
	case map[string]any:
		if d, ok := p["detail"].(string); ok {
			return d
		}
		if m, ok := p["message"].(string); ok {
			return m
		}
		if list, ok := p["detail"].([]any); ok && len(list) > 0 {
			if first, ok := list[0].(map[string]any); ok {
				if msg, ok := first["msg"].(string); ok {
					return msg
				}
			}
		}
	}
	return fallback
}
