package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{name: "message only", err: NotFound("Job not found"), want: "Job not found"},
		{name: "with cause", err: Wrap(errors.New("dial tcp"), ErrCodeUnavailable, "history unavailable"), want: "history unavailable: dial tcp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root")
	err := fmt.Errorf("outer: %w", Wrap(cause, ErrCodeInternal, "wrapped"))
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause through AppError")
	}
	if !IsInternal(err) {
		t.Error("IsInternal should see through fmt wrapping")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, ErrCodeInternal, "x") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"not found", NotFound("x"), IsNotFound},
		{"conflict", Conflict("x"), IsConflict},
		{"validation", Validation("x"), IsValidation},
		{"validationf", Validationf("bad %s", "since"), IsValidation},
		{"internal", Internal("x"), IsInternal},
		{"unavailable", Unavailable("x"), IsUnavailable},
		{"timeout", Wrap(errors.New("x"), ErrCodeTimeout, "t"), IsTimeout},
		{"canceled", Wrap(errors.New("x"), ErrCodeCanceled, "c"), IsCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(tt.err) {
				t.Errorf("predicate returned false for %v", tt.err)
			}
			if tt.check(errors.New("plain")) {
				t.Error("predicate returned true for a plain error")
			}
		})
	}
}

func TestGetCodeAndField(t *testing.T) {
	err := ValidationField("since", "since must be a non-negative integer")
	if GetCode(err) != ErrCodeValidation {
		t.Errorf("GetCode() = %v", GetCode(err))
	}
	if GetField(err) != "since" {
		t.Errorf("GetField() = %q", GetField(err))
	}
	if GetCode(errors.New("plain")) != "" || GetField(nil) != "" {
		t.Error("plain errors have no code or field")
	}
	if Wrapf(errors.New("x"), ErrCodeConflict, "job %s", "1").Message != "job 1" {
		t.Error("Wrapf should format the message")
	}
}
