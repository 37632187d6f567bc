package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
)

type classified struct{}

func (classified) Error() string      { return "custom" }
func (classified) ErrorClass() string { return "custom_class" }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "self classified wrapped", err: fmt.Errorf("run: %w", classified{}), want: "custom_class"},
		{name: "canceled", err: fmt.Errorf("wait: %w", context.Canceled), want: ClassCanceled},
		{name: "deadline", err: context.DeadlineExceeded, want: ClassTimeout},
		{name: "exit", err: fmt.Errorf("train.py: %w", &exec.ExitError{}), want: ClassProcessExit},
		{name: "plain", err: goerrors.New("boom"), want: "errors_errorstring"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
