package yclients

import "fmt"

// ConfigError means the client is missing credentials or another
// construction-time setting. Never retried.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("yclients: configuration error: %s", e.Reason)
}

// RateLimitError is an HTTP 429 from the API. Surfaced immediately; the
// caller decides whether to back off further.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("yclients: rate limited: %s", e.Message)
}

// ServerError is an HTTP 500 that survived the retry budget.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("yclients: server error %d: %s", e.Status, e.Message)
}

// ClientError is any other 4xx. Carries the remote-provided message when
// the response body had one. Never retried.
type ClientError struct {
	Status  int
	Message string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("yclients: client error %d: %s", e.Status, e.Message)
}

// TransportError is a connection or timeout failure that survived the
// retry budget.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("yclients: transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
