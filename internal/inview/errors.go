package inview

import (
	"errors"
	"fmt"
)

// Sentinel errors for the controller.
var (
	// ErrInert is returned by lifecycle calls on a controller built without an environment.
	ErrInert = errors.New("inview: controller has no viewport environment")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("inview: controller already started")

	// ErrNotStarted is returned when Stop is called before Start.
	ErrNotStarted = errors.New("inview: controller not started")
)

// HandlerError wraps a failure returned by an enter/exit handler.
type HandlerError struct {
	// Event is the event being emitted.
	Event Event

	// ElementID identifies the element the event was emitted for.
	ElementID string

	// Err is the handler's error.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s handler for element %q: %v", e.Event, e.ElementID, e.Err)
}

// Unwrap returns the handler's error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}
