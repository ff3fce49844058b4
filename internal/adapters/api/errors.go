package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"smartcheck/internal/core/domain/ports"
)

// ErrAuthExpired is returned when the API rejects the session token.
var ErrAuthExpired = ports.ErrAuthExpired

// HTTPError is a non-2xx API response.
type HTTPError struct {
	StatusCode int
	Detail     string
}

func (e *HTTPError) Error() string {
	return e.Detail
}

// NetworkError wraps a failure to reach the API at all.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsStatus reports whether err is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == code
}

func newHTTPError(status int, body []byte) *HTTPError {
	detail := errorDetail(body)
	if detail == "" {
		detail = fmt.Sprintf("HTTP error! status: %d", status)
	}
	return &HTTPError{StatusCode: status, Detail: detail}
}

// errorDetail extracts the "detail" member of an error body. Validation errors
// carry a list of {loc, msg} objects instead of a string.
func errorDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err != nil {
		return ""
	}
	msgs := make([]string, 0, len(items))
	for _, it := range items {
		if it.Msg == "" {
			continue
		}
		if len(it.Loc) > 0 {
			msgs = append(msgs, fmt.Sprintf("%v: %s", it.Loc[len(it.Loc)-1], it.Msg))
		} else {
			msgs = append(msgs, it.Msg)
		}
	}
	return strings.Join(msgs, "; ")
}
