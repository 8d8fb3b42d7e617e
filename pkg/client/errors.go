package client

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthExpired means the session could not be refreshed. The
	// session has been torn down and the user must log in again.
	ErrAuthExpired = errors.New("authenticated session expired")

	// ErrConfirmInFlight rejects a confirm while the first appointment
	// create call is still outstanding.
	ErrConfirmInFlight = errors.New("confirmation already in flight")

	// ErrNoSession means an authenticated call was attempted without
	// a logged-in session.
	ErrNoSession = errors.New("no active session")
)

// ValidationError blocks a wizard step transition. It is handled
// locally and never reaches the network layer.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NetworkError is a transient transport failure. Safe to retry.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// GatewayError means the payment provider or the API explicitly
// rejected the request. Terminal for the attempt; the appointment
// stays pending and the user may retry once the intent is terminal.
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway rejected request (%d): %s", e.StatusCode, e.Message)
}

// APIError carries a non-2xx response that is neither transport
// trouble nor a gateway rejection.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}
