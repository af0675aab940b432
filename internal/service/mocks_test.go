package service

import (
	"bytes"
	"context"

	"chatrelay/internal/models"
	"chatrelay/pkg/completion"
	"chatrelay/pkg/livesource"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

type mockQueueStore struct {
	mock.Mock
}

func (m *mockQueueStore) PeekOldest(ctx context.Context) (*models.QueuedMessage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueuedMessage), args.Error(1)
}

func (m *mockQueueStore) DeleteByID(ctx context.Context, id int64) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockQueueStore) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockQueueStore) Enqueue(ctx context.Context, uniqueID, userID, comment string, capacity int) (int64, bool, error) {
	args := m.Called(ctx, uniqueID, userID, comment, capacity)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *mockQueueStore) CountRows(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockCompletionClient struct {
	mock.Mock
}

func (m *mockCompletionClient) Complete(ctx context.Context, req completion.Request) (*completion.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*completion.Response), args.Error(1)
}

type mockHandler struct {
	mock.Mock
}

func (m *mockHandler) OnConnected(roomID string) {
	m.Called(roomID)
}

func (m *mockHandler) OnChat(ctx context.Context, evt livesource.ChatEvent) {
	m.Called(ctx, evt)
}

// scriptedSource returns one scripted result per Run call. A run marked
// connected reports a room before returning.
type scriptedSource struct {
	runs  []sourceRun
	calls int
}

type sourceRun struct {
	connected bool
	err       error
	// block until ctx is done instead of returning err
	block bool
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) Run(ctx context.Context, h livesource.Handler) error {
	run := sourceRun{block: true}
	if s.calls < len(s.runs) {
		run = s.runs[s.calls]
	}
	s.calls++

	if run.connected {
		h.OnConnected("room-1")
	}
	if run.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return run.err
}

func newTestLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.DebugLevel)
	return logger, &buf
}
