// Package apperr defines the error taxonomy shared by the gate, the upload
// pipeline, route modules and the central error handler. Every error carries
// the HTTP status it maps to and the call stack captured at construction, so
// the error handler can print a trace when stack logging is enabled.
package apperr

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// Kind classifies an error.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindInternal      Kind = "internal"
	KindBind          Kind = "bind"
)

// Error is an error with a kind, an HTTP status and a captured stack.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
	pcs     []uintptr
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// StackPCs returns the program counters captured when the error was built.
func (e *Error) StackPCs() []uintptr { return e.pcs }

func newError(kind Kind, status int, err error, message string) *Error {
	const maxDepth = 32
	pcs := make([]uintptr, maxDepth)
	// skip runtime.Callers, newError and the exported constructor
	n := runtime.Callers(3, pcs)
	return &Error{Kind: kind, Status: status, Message: message, Err: err, pcs: pcs[:n]}
}

// Configuration reports a server-side misconfiguration (500).
func Configuration(format string, args ...any) *Error {
	return newError(KindConfiguration, fiber.StatusInternalServerError, nil, fmt.Sprintf(format, args...))
}

// Validation reports a client error such as an oversized or malformed upload (400).
func Validation(format string, args ...any) *Error {
	return newError(KindValidation, fiber.StatusBadRequest, nil, fmt.Sprintf(format, args...))
}

// NotFound reports an unmatched route (404).
func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, fiber.StatusNotFound, nil, fmt.Sprintf(format, args...))
}

// Internal wraps an unexpected failure (500).
func Internal(err error, message string) *Error {
	return newError(KindInternal, fiber.StatusInternalServerError, err, message)
}

// Bind wraps a listener failure. It never reaches an HTTP client.
func Bind(err error, message string) *Error {
	return newError(KindBind, 0, err, message)
}

// StatusOf resolves the HTTP status carried by err, defaulting to 500.
func StatusOf(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Status > 0 {
		return appErr.Status
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) && fiberErr.Code > 0 {
		return fiberErr.Code
	}
	return fiber.StatusInternalServerError
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Message returns the user-visible message of err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) && fiberErr.Message != "" {
		return fiberErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Internal Server Error"
}

// Stack renders the captured frames of err, one "function\n\tfile:line" pair
// per frame. It returns "" when err carries no stack.
func Stack(err error) string {
	type hasStack interface{ StackPCs() []uintptr }
	var hs hasStack
	if !errors.As(err, &hs) || len(hs.StackPCs()) == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(hs.StackPCs())
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return b.String()
}
