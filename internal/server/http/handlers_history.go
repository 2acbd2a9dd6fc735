package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/darrellrafa/Nutribot/internal/chatstore"
	"github.com/darrellrafa/Nutribot/internal/utils/id"
)

// maxBatchMessages bounds one batch save.
const maxBatchMessages = 500

// messageRequest is one message posted by the client. Timestamp is
// optional and accepts RFC 3339 with or without a zone.
type messageRequest struct {
	Message   string `json:"message"`
	Sender    string `json:"sender"`
	ModelUsed string `json:"model_used"`
	SessionID string `json:"session_id"`
	Timestamp string `json:"timestamp"`
}

var clientTimestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseClientTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, true
	}
	for _, layout := range clientTimestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func (r messageRequest) toMessage(sessionID string) (chatstore.Message, string) {
	if strings.TrimSpace(r.Message) == "" {
		return chatstore.Message{}, "message is required"
	}
	sender, ok := chatstore.ParseSender(r.Sender)
	if !ok {
		return chatstore.Message{}, "sender must be user or ai"
	}
	ts, ok := parseClientTimestamp(r.Timestamp)
	if !ok {
		return chatstore.Message{}, "timestamp must be ISO 8601"
	}
	if sessionID == "" {
		sessionID = strings.TrimSpace(r.SessionID)
	}
	return chatstore.Message{
		Message:   r.Message,
		Sender:    sender,
		ModelUsed: strings.TrimSpace(r.ModelUsed),
		SessionID: sessionID,
		Timestamp: ts,
	}, ""
}

func (s *Server) handleGetHistory(c *gin.Context) {
	userID, _ := currentUserID(c)
	limit := chatstore.DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.badRequest(c, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	messages, err := s.chats.History(c.Request.Context(), userID, strings.TrimSpace(c.Query("session_id")), limit)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if messages == nil {
		messages = []chatstore.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messages": messages, "count": len(messages)})
}

func (s *Server) handleSaveMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" || strings.TrimSpace(req.Sender) == "" {
		s.badRequest(c, "message and sender are required")
		return
	}
	msg, problem := req.toMessage("")
	if problem != "" {
		s.badRequest(c, "%s", problem)
		return
	}
	userID, _ := currentUserID(c)
	saved, err := s.chats.AppendMessages(c.Request.Context(), userID, []chatstore.Message{msg})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": saved[0]})
}

type batchRequest struct {
	SessionID string           `json:"session_id"`
	Messages  []messageRequest `json:"messages"`
}

func (s *Server) handleSaveBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}
	if req.Messages == nil {
		s.badRequest(c, "messages array is required")
		return
	}
	if len(req.Messages) > maxBatchMessages {
		s.badRequest(c, "at most %d messages per batch", maxBatchMessages)
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = id.NewSessionID()
	}

	messages := make([]chatstore.Message, 0, len(req.Messages))
	for i, m := range req.Messages {
		msg, problem := m.toMessage(sessionID)
		if problem != "" {
			s.badRequest(c, "messages[%d]: %s", i, problem)
			return
		}
		messages = append(messages, msg)
	}

	userID, _ := currentUserID(c)
	saved, err := s.chats.AppendMessages(c.Request.Context(), userID, messages)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if saved == nil {
		saved = []chatstore.Message{}
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"session_id": sessionID,
		"messages":   saved,
		"count":      len(saved),
	})
}

func (s *Server) handleSessions(c *gin.Context) {
	userID, _ := currentUserID(c)
	sessions, err := s.chats.Sessions(c.Request.Context(), userID)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if sessions == nil {
		sessions = []chatstore.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sessions": sessions})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	userID, _ := currentUserID(c)
	deleted, err := s.chats.DeleteSession(c.Request.Context(), userID, c.Param("session_id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted_count": deleted})
}

func (s *Server) handleClearHistory(c *gin.Context) {
	userID, _ := currentUserID(c)
	deleted, err := s.chats.ClearHistory(c.Request.Context(), userID)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted_count": deleted})
}
