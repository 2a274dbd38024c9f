package bus

import (
	"context"
	"testing"
	"time"
)

func TestPublishConsumeInbound(t *testing.T) {
	b := NewMessageBus()
	b.PublishInbound(&InboundMessage{Channel: "test", Content: "hi"})

	msg, err := b.ConsumeInbound(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if msg.Content != "hi" {
		t.Fatalf("content = %q", msg.Content)
	}
	if msg.Timestamp.IsZero() {
		t.Fatal("publish should stamp the message")
	}
}

func TestConsumeInboundHonoursCancel(t *testing.T) {
	b := NewMessageBus()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.ConsumeInbound(ctx)
	if err == nil {
		t.Fatal("expected context error on empty bus")
	}
}

func TestDispatchOutboundRoutesBySubscription(t *testing.T) {
	b := NewMessageBus()
	got := make(chan string, 1)
	b.Subscribe("whatsapp", func(msg *OutboundMessage) {
		got <- msg.Content
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	b.PublishOutbound(&OutboundMessage{Channel: "slack", Content: "wrong channel"})
	b.PublishOutbound(&OutboundMessage{Channel: "whatsapp", Content: "right channel"})

	select {
	case content := <-got:
		if content != "right channel" {
			t.Fatalf("delivered %q", content)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the message")
	}
}
