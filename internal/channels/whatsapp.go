package channels

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/skip2/go-qrcode"

	_ "modernc.org/sqlite"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/zapdesk/zapdesk/internal/bus"
	"github.com/zapdesk/zapdesk/internal/config"
)

// WhatsAppChannel implements a native WhatsApp client.
type WhatsAppChannel struct {
	BaseChannel
	client    *whatsmeow.Client
	config    config.WhatsAppConfig
	dataDir   string
	container *sqlstore.Container
}

// NewWhatsAppChannel creates a new WhatsApp channel. Session state is kept
// under dataDir.
func NewWhatsAppChannel(cfg config.WhatsAppConfig, dataDir string, messageBus *bus.MessageBus) *WhatsAppChannel {
	return &WhatsAppChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		config:      cfg,
		dataDir:     dataDir,
	}
}

func (c *WhatsAppChannel) Name() string { return "whatsapp" }

func (c *WhatsAppChannel) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	dbLog := waLog.Stdout("Database", "WARN", true)
	clientLog := waLog.Stdout("Client", "INFO", true)

	dbPath := filepath.Join(c.dataDir, "whatsapp.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	container, err := sqlstore.New(ctx, "sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbLog)
	if err != nil {
		return fmt.Errorf("failed to init whatsapp db: %w", err)
	}
	c.container = container

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get device: %w", err)
	}

	c.client = whatsmeow.NewClient(deviceStore, clientLog)
	c.client.AddEventHandler(c.eventHandler)

	if c.client.Store.ID == nil {
		// No session yet, pair via QR.
		qrChan, _ := c.client.GetQRChannel(ctx)
		if err := c.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}

		fmt.Println("WhatsApp: scan this QR code to login:")
		for evt := range qrChan {
			if evt.Event == "code" {
				qrPath := filepath.Join(c.dataDir, "whatsapp-qr.png")
				if err := qrcode.WriteFile(evt.Code, qrcode.Medium, 512, qrPath); err == nil {
					fmt.Printf("WhatsApp: login QR code saved to %s\n", qrPath)
					fmt.Println("Open this file and scan it with your phone.")
				}
			} else {
				fmt.Println("WhatsApp: login event:", evt.Event)
			}
		}
	} else {
		if err := c.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		slog.Info("WhatsApp connected")
	}

	// Fallback delivery path for outbound bus messages.
	c.Bus.Subscribe(c.Name(), func(msg *bus.OutboundMessage) {
		if err := c.Send(context.Background(), msg); err != nil {
			slog.Error("WhatsApp outbound send failed", "chat_id", msg.ChatID, "error", err)
		}
	})

	return nil
}

func (c *WhatsAppChannel) Stop() error {
	if c.client != nil {
		c.client.Disconnect()
	}
	if c.container != nil {
		c.container.Close()
	}
	return nil
}

// Send sends a message via the outbound bus contract.
func (c *WhatsAppChannel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	return c.SendText(ctx, msg.ChatID, msg.Content)
}

// SendText sends a plain text message to a chat JID.
func (c *WhatsAppChannel) SendText(ctx context.Context, chatID, content string) error {
	if c.client == nil {
		return fmt.Errorf("client not initialized")
	}
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("invalid JID: %w", err)
	}
	waMsg := &waE2E.Message{
		Conversation: proto.String(content),
	}
	_, err = c.client.SendMessage(ctx, jid, waMsg)
	return err
}

// Transport returns the direct transport used by the reply pipeline,
// including the typing presence signal.
func (c *WhatsAppChannel) Transport() *WhatsAppTransport {
	return &WhatsAppTransport{channel: c}
}

// WhatsAppTransport adapts the channel to the pipeline's transport
// capability.
type WhatsAppTransport struct {
	channel *WhatsAppChannel
}

func (t *WhatsAppTransport) Send(ctx context.Context, chatID, content string) error {
	return t.channel.SendText(ctx, chatID, content)
}

func (t *WhatsAppTransport) SetComposing(ctx context.Context, chatID string) error {
	return t.channel.chatPresence(ctx, chatID, types.ChatPresenceComposing)
}

func (t *WhatsAppTransport) ClearComposing(ctx context.Context, chatID string) error {
	return t.channel.chatPresence(ctx, chatID, types.ChatPresencePaused)
}

func (c *WhatsAppChannel) chatPresence(ctx context.Context, chatID string, state types.ChatPresence) error {
	if c.client == nil {
		return fmt.Errorf("client not initialized")
	}
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("invalid JID: %w", err)
	}
	return c.client.SendChatPresence(ctx, jid, state, types.ChatPresenceMediaText)
}

func (c *WhatsAppChannel) eventHandler(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		content := ""
		hasMedia := false

		switch {
		case v.Message.GetConversation() != "":
			content = v.Message.GetConversation()
		case v.Message.GetExtendedTextMessage().GetText() != "":
			content = v.Message.GetExtendedTextMessage().GetText()
		case v.Message.GetImageMessage() != nil:
			content = v.Message.GetImageMessage().GetCaption()
			hasMedia = true
		case v.Message.GetAudioMessage() != nil:
			hasMedia = true
		case v.Message.GetDocumentMessage() != nil:
			content = v.Message.GetDocumentMessage().GetCaption()
			hasMedia = true
		default:
			// Reactions, receipts, protocol messages: nothing to reply to.
			return
		}

		chat := v.Info.Chat
		c.Bus.PublishInbound(&bus.InboundMessage{
			Channel:    c.Name(),
			SenderID:   chat.String(),
			SenderName: v.Info.PushName,
			ChatID:     chat.String(),
			TraceID:    "wa:" + v.Info.ID,
			Content:    content,
			IsGroup:    v.Info.IsGroup,
			FromSelf:   v.Info.IsFromMe,
			IsStatus:   chat == types.StatusBroadcastJID,
			HasMedia:   hasMedia,
			Timestamp:  v.Info.Timestamp,
		})
	}
}
