package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// SlackConfig is the channel config blob for the slack type.
type SlackConfig struct {
	BotToken string `json:"botToken"`
	AppToken string `json:"appToken"`
}

// SlackConnector maintains a socket-mode connection to one workspace.
type SlackConnector struct {
	cfg SlackConfig
	log *slog.Logger

	api    *slack.Client
	sock   *socketmode.Client
	cancel context.CancelFunc

	mu        sync.Mutex
	handler   MessageHandler
	connected bool
	botUserID string
}

// NewSlackConnector parses the channel's config blob into a connector.
func NewSlackConnector(configJSON string, log *slog.Logger) (*SlackConnector, error) {
	if log == nil {
		log = slog.Default()
	}
	var cfg SlackConfig
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		return nil, fmt.Errorf("bad slack channel config: %w", err)
	}
	if cfg.BotToken == "" || cfg.AppToken == "" {
		return nil, fmt.Errorf("slack channel config requires botToken and appToken")
	}
	return &SlackConnector{cfg: cfg, log: log}, nil
}

// Connect validates the bot token and starts the socket-mode event loop.
func (c *SlackConnector) Connect(ctx context.Context) error {
	c.api = slack.New(c.cfg.BotToken, slack.OptionAppLevelToken(c.cfg.AppToken))

	auth, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth failed: %w", err)
	}

	c.sock = socketmode.New(c.api)
	runCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.cancel = cancel
	c.connected = true
	c.botUserID = auth.UserID
	c.mu.Unlock()

	go c.eventLoop()
	go func() {
		if err := c.sock.RunContext(runCtx); err != nil && runCtx.Err() == nil {
			c.log.Error("slack socket loop exited", "error", err)
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
		}
	}()

	c.log.Info("slack connected", "bot_user", auth.UserID, "team", auth.Team)
	return nil
}

func (c *SlackConnector) eventLoop() {
	for evt := range c.sock.Events {
		if evt.Type != socketmode.EventTypeEventsAPI {
			continue
		}
		if evt.Request != nil {
			c.sock.Ack(*evt.Request)
		}
		ev, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok || ev.Type != slackevents.CallbackEvent {
			continue
		}
		switch in := ev.InnerEvent.Data.(type) {
		case *slackevents.MessageEvent:
			if in == nil || in.BotID != "" || in.SubType != "" {
				continue
			}
			c.dispatch(InboundMessage{
				ExternalGroupID:   in.Channel,
				ExternalMessageID: in.TimeStamp,
				SenderID:          in.User,
				SenderName:        in.User,
				Text:              in.Text,
			})
		case *slackevents.AppMentionEvent:
			if in == nil {
				continue
			}
			c.dispatch(InboundMessage{
				ExternalGroupID:   in.Channel,
				ExternalMessageID: in.TimeStamp,
				SenderID:          in.User,
				SenderName:        in.User,
				Text:              in.Text,
			})
		}
	}
}

func (c *SlackConnector) dispatch(msg InboundMessage) {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	if handler != nil {
		handler(msg)
	}
}

// Disconnect stops the socket loop.
func (c *SlackConnector) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.connected = false
	return nil
}

// IsConnected reports whether the socket loop is live.
func (c *SlackConnector) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// SendMessage posts text to a workspace channel.
func (c *SlackConnector) SendMessage(ctx context.Context, externalGroupID, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, externalGroupID, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack post failed: %w", err)
	}
	return nil
}

// OnMessage registers the single inbound handler.
func (c *SlackConnector) OnMessage(handler MessageHandler) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}
