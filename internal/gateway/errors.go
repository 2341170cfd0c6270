package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies a failed catalog API call.
type Kind int

const (
	// KindAuthRequired: the server rejected the credential. The session has
	// already been cleared by the time the caller sees this; do not retry.
	KindAuthRequired Kind = iota
	// KindTransport: no response was obtained at all.
	KindTransport
	// KindApplication: a response arrived with a non-success status. Body
	// holds the server's message verbatim.
	KindApplication
)

// Error is the failure type every gateway call returns.
type Error struct {
	Kind   Kind
	Status int    // HTTP status for application failures, 0 otherwise
	Body   string // server message (application) or transport detail
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindAuthRequired:
		return "authentication required"
	case KindTransport:
		return fmt.Sprintf("cannot reach the library server: %s", e.Body)
	default:
		return e.Body
	}
}

// IsAuthRequired reports whether err is a credential rejection.
func IsAuthRequired(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == KindAuthRequired
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == KindTransport
}

// IsApplication reports whether err is a non-success application response.
func IsApplication(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == KindApplication
}

// StatusOf returns the application status of err, or 0.
func StatusOf(err error) int {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Status
	}
	return 0
}
