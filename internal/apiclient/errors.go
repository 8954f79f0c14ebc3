package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// APIError is a non-2xx backend response.
type APIError struct {
	Status  int
	Code    string
	Message string
	Method  string
	Route   string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Route, e.Status, msg)
}

// parseError reads either {"error":{"code","message"}} or
// {"code","message","error"} from body, falling back to its text.
func parseError(cl call, status int, body []byte) *APIError {
	e := &APIError{Status: status, Method: cl.method, Route: cl.route}

	var nested struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &nested) == nil && nested.Error.Message != "" {
		e.Code = nested.Error.Code
		e.Message = nested.Error.Message
		return e
	}

	var flat struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &flat) == nil && flat.Message != "" {
		e.Code = rawString(flat.Code)
		e.Message = flat.Message
		return e
	}

	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	if text != "" && !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "<") {
		e.Message = text
	}
	return e
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n float64
	if json.Unmarshal(raw, &n) == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

func statusOf(err error) int {
	var e *APIError
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	return statusOf(err) == http.StatusUnauthorized
}

// IsForbidden reports whether err is a 403 from the backend.
func IsForbidden(err error) bool {
	return statusOf(err) == http.StatusForbidden
}

// IsAuthFailure reports a 401 or 403, meaning the session cannot do what
// was asked.
func IsAuthFailure(err error) bool {
	return IsUnauthorized(err) || IsForbidden(err)
}

// IsValidation reports a rejected payload: 400, 409 or 422.
func IsValidation(err error) bool {
	switch statusOf(err) {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// Message returns the text to show a user for err: the backend's message
// when it sent one, otherwise a generic description.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *APIError
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		return http.StatusText(e.Status)
	}
	return err.Error()
}
