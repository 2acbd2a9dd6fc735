package http

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/darrellrafa/Nutribot/internal/async"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
	"github.com/darrellrafa/Nutribot/internal/rag"
)

const (
	streamWriteWait    = 10 * time.Second
	streamPongWait     = 60 * time.Second
	streamPingInterval = 25 * time.Second
	streamMaxMessage   = 64 << 10
)

// Frame types sent on /api/chat/stream.
const (
	frameDelta = "delta"
	frameDone  = "done"
	frameError = "error"
)

// streamFrame is one server-to-client websocket message. A turn produces
// zero or more delta frames followed by exactly one done or error frame.
type streamFrame struct {
	Type    string         `json:"type"`
	Content string         `json:"content,omitempty"`
	Result  *chatResponse  `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
	Kind    apperrors.Kind `json:"kind,omitempty"`
	Reply   string         `json:"reply,omitempty"`
}

// streamConn serializes writes; the keepalive goroutine and the reply
// stream share the connection.
type streamConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *streamConn) write(frame streamFrame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return w.conn.WriteJSON(frame)
}

func (w *streamConn) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.Lock()
			err := w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait))
			w.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// handleChatStream upgrades to a websocket and answers each chatRequest
// frame the client sends, streaming reply tokens as they arrive.
func (s *Server) handleChatStream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("chat stream upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	defer s.metrics.streamOpened()()

	conn.SetReadLimit(streamMaxMessage)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	w := &streamConn{conn: conn}
	async.Go(s.logger, "chat-stream-keepalive", func() { w.keepAlive(ctx) })

	for {
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("chat stream closed: %v", err)
			}
			return
		}
		if err := s.streamTurn(c, w, req); err != nil {
			s.logger.Debug("chat stream write failed: %v", err)
			return
		}
	}
}

// streamTurn answers one request. It returns an error only when the
// connection can no longer be written.
func (s *Server) streamTurn(c *gin.Context, w *streamConn, req chatRequest) error {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return w.write(streamFrame{Type: frameError, Error: "Message is required", Kind: apperrors.KindValidation})
	}

	genReq, sessionID := s.prepareGeneration(c, req)
	var writeErr error
	result, err := s.assistant.GenerateReplyStream(c.Request.Context(), genReq, func(delta string) {
		if writeErr == nil && delta != "" {
			writeErr = w.write(streamFrame{Type: frameDelta, Content: delta})
		}
	})
	if writeErr != nil {
		return writeErr
	}
	if err != nil {
		s.logger.Error("chat stream generation failed: %v", err)
		return w.write(streamFrame{
			Type:  frameError,
			Error: publicMessage(err),
			Kind:  apperrors.KindOf(err),
			Reply: apology(rag.DetectLanguage(message)),
		})
	}
	s.persistTurn(c, sessionID, message, result)
	return w.write(streamFrame{Type: frameDone, Result: &chatResponse{GenerationResult: result, SessionID: sessionID}})
}
