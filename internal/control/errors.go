package control

import "fmt"

// ProtocolError means the control API returned something that is not a
// valid response envelope (no body, or a body that does not decode).
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("control api protocol error: %s", e.Reason)
}

// APIError is a failure the control API itself reported through its
// envelope. Message is the server-supplied text.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("control api error: %s", e.Message)
}

// ValidationError means the caller supplied arguments that fail local
// checks; it is raised before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
