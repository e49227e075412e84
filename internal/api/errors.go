package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fragmede/shelf/internal/render"
)

// ErrMalformed marks a 2xx response whose body does not have the expected shape.
var ErrMalformed = errors.New("malformed response")

// ErrTokenMismatch marks an access and refresh token issued for different
// sessions. It wraps ErrMalformed.
var ErrTokenMismatch = fmt.Errorf("token jti mismatch: %w", ErrMalformed)

// ErrNoRefreshToken is returned by Refresh when the jar holds no refresh token.
var ErrNoRefreshToken = errors.New("no refresh token")

// Error is a non-2xx response from the backend.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("HTTP %d from %s %s: %s", e.StatusCode, e.Method, e.Path, e.Detail)
	}
	return fmt.Sprintf("HTTP %d from %s %s", e.StatusCode, e.Method, e.Path)
}

// StatusCode returns the HTTP status carried by err, or 0 if no response was received.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Detail returns the backend's error detail carried by err, if any.
func Detail(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

// IsNoResponse reports whether err means the request never got a response
// (network failure, timeout, cancellation).
func IsNoResponse(err error) bool {
	return err != nil && StatusCode(err) == 0 && !errors.Is(err, ErrMalformed)
}

// maxHTMLDetail bounds the text kept from an HTML error page.
const maxHTMLDetail = 200

// errorDetail extracts a human readable detail from an error body. Gateways
// in front of the backend answer with HTML pages rather than JSON.
func errorDetail(contentType string, raw []byte) string {
	if strings.HasPrefix(contentType, "text/html") {
		return render.Truncate(render.PlainText(string(raw)), maxHTMLDetail)
	}
	return parseDetail(raw)
}

// parseDetail extracts FastAPI's {"detail": ...}. Validation errors come as a
// list of objects with a "msg" field; those are joined.
func parseDetail(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
