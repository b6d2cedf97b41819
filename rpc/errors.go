package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var ErrFunctionNotAllowed = errors.New("rpc function is not allowed")

// Error is a failure reported by the backend function itself.
type Error struct {
	Function string `json:"-"`
	Status   int    `json:"-"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Details  string `json:"details"`
	Hint     string `json:"hint"`
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("rpc %s failed with status %d", e.Function, e.Status)
}

// parseError reads the backend error body. Bodies that are not the usual
// {code, message, details, hint} object become the message verbatim.
func parseError(function string, status int, body []byte) *Error {
	e := &Error{Function: function, Status: status}

	var raw struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
		Hint    json.RawMessage `json:"hint"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		e.Message = strings.TrimSpace(string(body))
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
		return e
	}

	e.Code = raw.Code
	e.Message = raw.Message
	if e.Message == "" {
		e.Message = raw.Error
	}
	e.Details = rawText(raw.Details)
	e.Hint = rawText(raw.Hint)
	return e
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
