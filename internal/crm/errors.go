package crm

import "fmt"

// AuthError reports a rejected or failed OAuth2 token request.
type AuthError struct {
	Detail string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("crm authentication failed: %s", e.Detail)
}

// APIError reports a non-2xx response from the CRM with whatever detail its
// error body carried.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("crm api error (status %d): %s", e.StatusCode, e.Detail)
}

// TransportError reports a network-level failure (connection refused, timeout)
// before any CRM response was received.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("crm %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
