// Package apierr carries the typed API failure returned by the HTTP client
// and the classifier that turns any failure into a presentation-ready notice.
package apierr

import (
	"encoding/json"
	"fmt"
)

// Error is an HTTP-level failure reported by the backend.
type Error struct {
	Status int
	// Code is an optional machine-readable identifier sent by newer backend
	// versions; empty when the server only sends prose.
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// FromBody builds an Error from a response status and its JSON body. The
// server message is taken from the "msg" or "error" field, in that order,
// defaulting to "Request failed" when neither is present or the body is not
// an object.
func FromBody(status int, body []byte) *Error {
	var payload struct {
		Msg  string `json:"msg"`
		Err  string `json:"error"`
		Code string `json:"code"`
	}
	_ = json.Unmarshal(body, &payload)

	message := payload.Msg
	if message == "" {
		message = payload.Err
	}
	if message == "" {
		message = "Request failed"
	}
	return &Error{Status: status, Code: payload.Code, Message: message}
}
