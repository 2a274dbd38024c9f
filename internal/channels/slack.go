package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/zapdesk/zapdesk/internal/bus"
	"github.com/zapdesk/zapdesk/internal/config"
)

// SlackChannel connects over Socket Mode. Slack has no per-conversation
// composing indicator for bots, so the transport presence calls are no-ops.
type SlackChannel struct {
	BaseChannel
	config config.SlackConfig
	api    *slack.Client
	socket *socketmode.Client
	cancel context.CancelFunc
}

func NewSlackChannel(cfg config.SlackConfig, messageBus *bus.MessageBus) *SlackChannel {
	return &SlackChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		config:      cfg,
	}
}

func (c *SlackChannel) Name() string { return "slack" }

func (c *SlackChannel) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}
	botToken := strings.TrimSpace(c.config.BotToken)
	appToken := strings.TrimSpace(c.config.AppToken)
	if botToken == "" || appToken == "" {
		return fmt.Errorf("slack channel requires bot_token and app_token")
	}

	c.api = slack.New(botToken, slack.OptionAppLevelToken(appToken))
	c.socket = socketmode.New(c.api)

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go c.eventLoop(runCtx)
	go func() {
		if err := c.socket.RunContext(runCtx); err != nil && runCtx.Err() == nil {
			slog.Error("Slack socket mode stopped", "error", err)
		}
	}()

	c.Bus.Subscribe(c.Name(), func(msg *bus.OutboundMessage) {
		if err := c.Send(context.Background(), msg); err != nil {
			slog.Error("Slack outbound send failed", "chat_id", msg.ChatID, "error", err)
		}
	})

	slog.Info("Slack channel started")
	return nil
}

func (c *SlackChannel) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *SlackChannel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	return c.SendText(ctx, msg.ChatID, msg.Content)
}

func (c *SlackChannel) SendText(ctx context.Context, chatID, content string) error {
	if c.api == nil {
		return fmt.Errorf("client not initialized")
	}
	_, _, err := c.api.PostMessageContext(ctx, chatID, slack.MsgOptionText(content, false))
	return err
}

// Transport returns the pipeline transport for this channel.
func (c *SlackChannel) Transport() *SlackTransport {
	return &SlackTransport{channel: c}
}

type SlackTransport struct {
	channel *SlackChannel
}

func (t *SlackTransport) Send(ctx context.Context, chatID, content string) error {
	return t.channel.SendText(ctx, chatID, content)
}

func (t *SlackTransport) SetComposing(ctx context.Context, chatID string) error { return nil }

func (t *SlackTransport) ClearComposing(ctx context.Context, chatID string) error { return nil }

func (c *SlackChannel) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-c.socket.Events:
			if !ok {
				return
			}
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			if evt.Request != nil {
				c.socket.Ack(*evt.Request)
			}
			apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok || apiEvent.Type != slackevents.CallbackEvent {
				continue
			}
			if msg, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent); ok && msg != nil {
				c.handleMessage(msg)
			}
		}
	}
}

func (c *SlackChannel) handleMessage(msg *slackevents.MessageEvent) {
	// Ignore edits, joins and other subtypes; replies target fresh messages.
	if msg.SubType != "" {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" && len(msg.Message.Files) == 0 {
		return
	}

	ts := time.Now()
	if sec, err := parseSlackTimestamp(msg.TimeStamp); err == nil {
		ts = sec
	}

	c.Bus.PublishInbound(&bus.InboundMessage{
		Channel:    c.Name(),
		SenderID:   msg.Channel,
		SenderName: msg.User,
		ChatID:     msg.Channel,
		TraceID:    "slack:" + msg.TimeStamp,
		Content:    text,
		IsGroup:    msg.ChannelType != "im",
		FromSelf:   msg.BotID != "",
		HasMedia:   len(msg.Message.Files) > 0,
		Timestamp:  ts,
	})
}

// parseSlackTimestamp converts a Slack "1712345678.000100" ts to a time.
func parseSlackTimestamp(ts string) (time.Time, error) {
	var sec, frac int64
	if _, err := fmt.Sscanf(ts, "%d.%d", &sec, &frac); err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0), nil
}
