package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
	"github.com/darrellrafa/Nutribot/internal/logging"
	"github.com/darrellrafa/Nutribot/internal/observability"
	"github.com/darrellrafa/Nutribot/internal/utils/id"
)

const (
	headerRequestID  = "X-Request-ID"
	ctxUserID        = "user_id"
	ctxTokenRejected = "token_rejected"
)

// corsMiddleware allows the configured frontend origins on every route.
func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", headerRequestID}
	cfg.ExposeHeaders = []string{headerRequestID}
	cfg.AllowWebSockets = true
	cfg.MaxAge = 12 * time.Hour
	return cors.New(cfg)
}

// requestIDMiddleware propagates or assigns a request id.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if requestID == "" || len(requestID) > 128 {
			requestID = id.NewRequestID()
		}
		c.Header(headerRequestID, requestID)
		c.Request = c.Request.WithContext(observability.ContextWithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// accessLogMiddleware writes one line per request.
func accessLogMiddleware(logger logging.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		logger.Info(
			"route=%s method=%s status=%d latency_ms=%.2f bytes=%d request_id=%s",
			route,
			c.Request.Method,
			c.Writer.Status(),
			float64(time.Since(start).Microseconds())/1000.0,
			c.Writer.Size(),
			observability.RequestIDFromContext(c.Request.Context()),
		)
	}
}

// recoveryMiddleware converts panics into a JSON 500 without leaking the
// panic value.
func recoveryMiddleware(logger logging.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
			Error: "internal server error",
			Kind:  apperrors.KindUnknown,
		})
	})
}

// authenticate resolves the bearer token when one is present. A missing or
// invalid token leaves the request anonymous; requireUser enforces login.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}
		claims, err := s.tokens.Parse(token)
		if err != nil {
			s.logger.Debug("rejected bearer token: %v", err)
			c.Set(ctxTokenRejected, true)
			c.Next()
			return
		}
		c.Set(ctxUserID, claims.UserID)
		c.Request = c.Request.WithContext(id.WithUserID(c.Request.Context(), claims.UserID))
		c.Next()
	}
}

// requireUser rejects anonymous requests.
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := currentUserID(c); ok {
			c.Next()
			return
		}
		msg := "Authorization header required"
		if c.GetBool(ctxTokenRejected) {
			msg = "invalid token"
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: msg, Kind: apperrors.KindUnauthorized})
	}
}

// bearerToken reads the Authorization header, falling back to a token query
// parameter for websocket clients that cannot set headers.
func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if c.IsWebsocket() {
		return strings.TrimSpace(c.Query("token"))
	}
	return ""
}

// currentUserID returns the authenticated user, if any.
func currentUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	userID, ok := v.(int64)
	return userID, ok
}
