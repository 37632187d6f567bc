// Package errors classifies job failures into short labels for metric tags and notifications.
package errors

import (
	"context"
	goerrors "errors"
	"os/exec"
	"reflect"
	"strings"
)

// Well-known classes.
const (
	ClassCanceled    = "canceled"
	ClassTimeout     = "timeout"
	ClassProcessExit = "process_exit"
	ClassPanic       = "panic"
	ClassUnknown     = "unknown"
)

// Classifier lets an error report its own class.
type Classifier interface {
	ErrorClass() string
}

// Classify returns a normalized error class suitable for tagging metrics/logs.
// Errors that implement Classifier win; otherwise the innermost concrete type name
// is converted to snake_case.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var c Classifier
	if goerrors.As(err, &c) {
		return c.ErrorClass()
	}
	switch {
	case goerrors.Is(err, context.Canceled):
		return ClassCanceled
	case goerrors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	}
	var exitErr *exec.ExitError
	if goerrors.As(err, &exitErr) {
		return ClassProcessExit
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.String() == "" {
		return ClassUnknown
	}
	return strings.ReplaceAll(strings.ToLower(t.String()), ".", "_")
}
