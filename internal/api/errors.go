package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PredictionFailedMessage is the only text a user sees for a failed prediction
const PredictionFailedMessage = "Error fetching prediction. Please try again."

// StatusError is a network failure or a non-2xx response. Status is 0 when
// no response arrived.
type StatusError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *StatusError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
}

func (e *StatusError) Unwrap() error { return e.Err }

// AuthError is a failed login or register. Message is the server's own text
// and is safe to show to the user.
type AuthError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

// serverMessage pulls "error" or "message" out of a JSON error body
func serverMessage(body string) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(payload.Message)
}
