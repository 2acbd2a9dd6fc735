package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/darrellrafa/Nutribot/internal/domain"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
)

// Apologies returned in place of a reply when generation fails.
const (
	apologyIndonesian = "Maaf, terjadi kesalahan. Coba lagi ya! 🙏"
	apologyEnglish    = "Sorry, something went wrong. Please try again! 🙏"
)

func apology(lang domain.Language) string {
	if lang == domain.LanguageEnglish {
		return apologyEnglish
	}
	return apologyIndonesian
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string         `json:"error"`
	Kind  apperrors.Kind `json:"kind"`
	Reply string         `json:"reply,omitempty"`
}

// statusForKind maps failure kinds to HTTP status codes.
func statusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation, apperrors.KindExtractionParse:
		return http.StatusBadRequest
	case apperrors.KindUnauthorized:
		return http.StatusUnauthorized
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindModelUnavailable, apperrors.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.KindGenerationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage returns text safe to show a client. Messages built by the
// application's own validation are passed through; everything else is
// replaced by a fixed description of the kind.
func publicMessage(err error) string {
	kind := apperrors.KindOf(err)
	switch kind {
	case apperrors.KindValidation, apperrors.KindNotFound, apperrors.KindConflict:
		return trimSentinel(err)
	case apperrors.KindUnauthorized:
		return "authentication required"
	case apperrors.KindModelUnavailable:
		return "language model unavailable"
	case apperrors.KindGenerationFailed:
		return "language model failed to generate a reply"
	case apperrors.KindStoreUnavailable:
		return "Food database not available. Please run data ingestion first."
	default:
		return "internal server error"
	}
}

// trimSentinel turns "validation failed: username is required" into
// "username is required".
func trimSentinel(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{apperrors.ErrValidation, apperrors.ErrNotFound, apperrors.ErrConflict} {
		if errors.Is(err, sentinel) {
			prefix := sentinel.Error() + ": "
			if idx := strings.Index(msg, prefix); idx >= 0 {
				return msg[idx+len(prefix):]
			}
		}
	}
	return msg
}

func (s *Server) abortWithError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	status := statusForKind(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	} else {
		s.logger.Debug("%s %s rejected: %v", c.Request.Method, c.FullPath(), err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{Error: publicMessage(err), Kind: kind})
}

func (s *Server) badRequest(c *gin.Context, format string, args ...any) {
	s.abortWithError(c, apperrors.Validationf(format, args...))
}
