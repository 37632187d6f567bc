package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/qlora-pipeline/controlplane/internal/errors"
)

// statusForCode maps the application error taxonomy onto HTTP statuses.
var statusForCode = map[apperrors.ErrorCode]int{ //nolint:gochecknoglobals // read-only lookup table
	apperrors.ErrCodeNotFound:    http.StatusNotFound,
	apperrors.ErrCodeValidation:  http.StatusBadRequest,
	apperrors.ErrCodeConflict:    http.StatusConflict,
	apperrors.ErrCodeUnavailable: http.StatusServiceUnavailable,
	apperrors.ErrCodeTimeout:     http.StatusGatewayTimeout,
	apperrors.ErrCodeCanceled:    http.StatusRequestTimeout,
	apperrors.ErrCodeInternal:    http.StatusInternalServerError,
}

// WriteServiceError renders an error returned by the service layer.
// Internal errors are logged and their details withheld from the client.
func WriteServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := apperrors.GetCode(err)
	if code == "" {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			code = apperrors.ErrCodeTimeout
		case errors.Is(err, context.Canceled):
			code = apperrors.ErrCodeCanceled
		default:
			code = apperrors.ErrCodeInternal
		}
	}

	status, ok := statusForCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		if logger != nil {
			logger.ErrorContext(r.Context(), "request failed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"error", err,
			)
		}
		if code == apperrors.ErrCodeInternal {
			msg = "internal server error"
		}
	}

	WriteError(w, ErrorParams{
		Code:    status,
		ErrCode: string(code),
		Err:     errors.New(msg),
		Field:   apperrors.GetField(err),
	})
}
