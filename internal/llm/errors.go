package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
)

// transportError classifies a failure to reach the backend.
func transportError(model string, err error) error {
	if errors.Is(err, context.Canceled) {
		return apperrors.NewModelUnavailable(model, 0, false, err)
	}
	return apperrors.NewModelUnavailable(model, 0, true, err)
}

// statusError classifies a non-2xx backend response.
func statusError(model string, status int, body string) error {
	msg := strings.TrimSpace(body)
	if len(msg) > 512 {
		msg = msg[:512]
	}
	switch {
	case status == http.StatusNotFound:
		return &apperrors.ModelError{Kind: apperrors.ErrModelUnavailable, Model: model, StatusCode: status, Message: orDefault(msg, "model not installed")}
	case apperrors.IsTransientHTTPStatus(status):
		return &apperrors.ModelError{Kind: apperrors.ErrModelUnavailable, Model: model, StatusCode: status, Retryable: true, Message: msg}
	default:
		return apperrors.NewGenerationFailed(model, status, msg, nil)
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
