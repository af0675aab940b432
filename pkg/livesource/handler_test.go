package livesource

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

type recordingHandler struct {
	mu     sync.Mutex
	rooms  []string
	events []ChatEvent
	chatCh chan ChatEvent
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{chatCh: make(chan ChatEvent, 16)}
}

func (h *recordingHandler) OnConnected(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rooms = append(h.rooms, roomID)
}

func (h *recordingHandler) OnChat(_ context.Context, evt ChatEvent) {
	h.mu.Lock()
	h.events = append(h.events, evt)
	h.mu.Unlock()
	h.chatCh <- evt
}

func (h *recordingHandler) Rooms() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.rooms...)
}

func (h *recordingHandler) Events() []ChatEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ChatEvent(nil), h.events...)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}
