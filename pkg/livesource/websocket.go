package livesource

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

const (
	frameConnected = "connected"
	frameChat      = "chat"
)

type frame struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId,omitempty"`
	UniqueID string `json:"uniqueId,omitempty"`
	UserID   string `json:"userId,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

type WebSocketConfig struct {
	URL       string
	ReadLimit int64
}

// WebSocketSource reads chat from a relay that pushes JSON frames, such as a
// TikTok live bridge.
type WebSocketSource struct {
	cfg    WebSocketConfig
	logger *logrus.Logger
}

func NewWebSocketSource(cfg WebSocketConfig, logger *logrus.Logger) *WebSocketSource {
	if logger == nil {
		logger = logrus.New()
	}
	return &WebSocketSource{cfg: cfg, logger: logger}
}

func (s *WebSocketSource) Name() string {
	return "websocket"
}

func (s *WebSocketSource) Run(ctx context.Context, h Handler) error {
	if s.cfg.URL == "" {
		return fmt.Errorf("websocket source URL is required")
	}

	conn, _, err := websocket.Dial(ctx, s.cfg.URL, nil)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to dial %s: %w", s.cfg.URL, err)
	}
	defer func() { _ = conn.CloseNow() }()

	if s.cfg.ReadLimit > 0 {
		conn.SetReadLimit(s.cfg.ReadLimit)
	}

	s.logger.WithField("url", s.cfg.URL).Info("Connected to websocket chat relay")

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "shutting down")
				return ctx.Err()
			}
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return fmt.Errorf("websocket relay closed the connection")
			}
			return fmt.Errorf("websocket read failed: %w", err)
		}
		if msgType != websocket.MessageText {
			continue
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.logger.WithError(err).Warn("Skipping malformed websocket frame")
			continue
		}

		switch f.Type {
		case frameConnected:
			h.OnConnected(f.RoomID)
		case frameChat:
			h.OnChat(ctx, ChatEvent{UniqueID: f.UniqueID, UserID: f.UserID, Comment: f.Comment})
		default:
			s.logger.WithField("frame_type", f.Type).Debug("Ignoring websocket frame")
		}
	}
}
