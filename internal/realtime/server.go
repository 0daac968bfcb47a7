// internal/realtime/server.go
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"notification-engine/internal/common/config"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
)

var upgrader = &websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// TokenResolver validates an authentication token and returns the recipient
// it belongs to.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// clientMessage is the only client-to-server frame the protocol accepts.
type clientMessage struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}

// serverEnvelope is the server-to-client fan-out frame.
type serverEnvelope struct {
	Type string              `json:"type"`
	Data models.Notification `json:"data"`
}

// EncodeNotification renders the fan-out payload for a notification.
func EncodeNotification(n models.Notification) ([]byte, error) {
	return json.Marshal(serverEnvelope{Type: "notification", Data: n})
}

// Server upgrades HTTP requests to live notification sessions. The first
// client frame must be an authenticate message; the session is registered
// only after the token resolves.
type Server struct {
	registry *Registry
	resolver TokenResolver
	cfg      config.RealtimeConfig
	logger   logger.Logger
}

func NewServer(registry *Registry, resolver TokenResolver, cfg config.RealtimeConfig, log logger.Logger) *Server {
	return &Server{
		registry: registry,
		resolver: resolver,
		cfg:      cfg,
		logger:   log,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	recipientID, err := s.authenticate(r.Context(), ws)
	if err != nil {
		s.logger.Info("websocket authentication failed", map[string]interface{}{
			"remote_addr": ws.RemoteAddr().String(),
			"error":       err.Error(),
		})
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed"),
			time.Now().Add(time.Second))
		_ = ws.Close()
		return
	}

	conn := NewConnection(ws, s.cfg.SendBufferSize, s.cfg.WriteTimeoutDuration(), s.logger)
	s.registry.Register(recipientID, conn)
	defer func() {
		s.registry.Unregister(recipientID, conn)
		conn.Close()
	}()

	go conn.writer()
	s.reader(ws)
}

// authenticate reads the first frame under a deadline and resolves its token.
func (s *Server) authenticate(ctx context.Context, ws *websocket.Conn) (string, error) {
	deadline := time.Now().Add(s.cfg.AuthTimeoutDuration())
	if err := ws.SetReadDeadline(deadline); err != nil {
		return "", err
	}
	defer func() { _ = ws.SetReadDeadline(time.Time{}) }()

	_, frame, err := ws.ReadMessage()
	if err != nil {
		return "", err
	}

	var msg clientMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return "", err
	}
	if msg.Type != "authenticate" || msg.Token == "" {
		return "", errInvalidAuthFrame
	}

	authCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	return s.resolver.Resolve(authCtx, msg.Token)
}

// reader drains inbound frames until the peer goes away. The protocol has no
// client messages after authenticate, so everything here is discarded.
func (s *Server) reader(ws *websocket.Conn) {
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
