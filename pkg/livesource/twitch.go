package livesource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/sirupsen/logrus"
)

type ircClient interface {
	OnPrivateMessage(callback func(message twitch.PrivateMessage))
	OnRoomStateMessage(callback func(message twitch.RoomStateMessage))
	Join(channels ...string)
	Connect() error
	Disconnect() error
}

// disconnectGrace bounds how long Run waits for the IRC client to close after
// cancellation. The client ignores Disconnect until the server welcome
// arrives, so a stalled handshake is abandoned once this elapses.
const disconnectGrace = 2 * time.Second

// disconnectRetryInterval paces Disconnect retries while the handshake is pending.
const disconnectRetryInterval = 100 * time.Millisecond

type TwitchConfig struct {
	Channel    string
	Username   string
	OAuthToken string
}

// TwitchSource reads a channel's chat over Twitch IRC. Without credentials it
// joins anonymously, which is enough to read.
type TwitchSource struct {
	cfg       TwitchConfig
	logger    *logrus.Logger
	newClient func() ircClient
	grace     time.Duration
}

func NewTwitchSource(cfg TwitchConfig, logger *logrus.Logger) *TwitchSource {
	if logger == nil {
		logger = logrus.New()
	}
	s := &TwitchSource{cfg: cfg, logger: logger, grace: disconnectGrace}
	s.newClient = func() ircClient {
		if cfg.Username == "" || cfg.OAuthToken == "" {
			return twitch.NewAnonymousClient()
		}
		return twitch.NewClient(cfg.Username, cfg.OAuthToken)
	}
	return s
}

func (s *TwitchSource) Name() string {
	return "twitch"
}

func (s *TwitchSource) Run(ctx context.Context, h Handler) error {
	if s.cfg.Channel == "" {
		return fmt.Errorf("twitch channel is required")
	}

	client := s.newClient()

	// stopped silences callbacks from a client abandoned after Run returned.
	var stopped atomic.Bool
	defer stopped.Store(true)

	var connected sync.Once
	client.OnRoomStateMessage(func(msg twitch.RoomStateMessage) {
		if stopped.Load() {
			return
		}
		connected.Do(func() {
			h.OnConnected(msg.RoomID)
		})
	})

	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		if stopped.Load() {
			return
		}
		h.OnChat(ctx, ChatEvent{
			UniqueID: msg.User.Name,
			UserID:   msg.User.ID,
			Comment:  msg.Message,
		})
	})

	client.Join(s.cfg.Channel)
	s.logger.WithField("channel", s.cfg.Channel).Info("Connecting to Twitch chat")

	connErr := make(chan error, 1)
	go func() {
		connErr <- client.Connect()
	}()

	select {
	case err := <-connErr:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil || errors.Is(err, twitch.ErrClientDisconnected) {
			return fmt.Errorf("twitch connection closed")
		}
		return fmt.Errorf("twitch connection failed: %w", err)
	case <-ctx.Done():
	}

	s.shutdown(client, connErr)
	return ctx.Err()
}

// shutdown asks the client to disconnect and waits up to the grace period for
// Connect to return, retrying Disconnect while the handshake is still pending.
func (s *TwitchSource) shutdown(client ircClient, connErr <-chan error) {
	deadline := time.NewTimer(s.grace)
	defer deadline.Stop()
	ticker := time.NewTicker(disconnectRetryInterval)
	defer ticker.Stop()

	for {
		err := client.Disconnect()
		if err == nil {
			break
		}
		s.logger.WithError(err).Debug("Twitch disconnect returned error")
		select {
		case <-connErr:
			return
		case <-deadline.C:
			s.logger.Warn("Twitch connection did not close after cancel; abandoning it")
			return
		case <-ticker.C:
		}
	}

	select {
	case <-connErr:
	case <-deadline.C:
		s.logger.Warn("Twitch connection did not close after cancel; abandoning it")
	}
}
