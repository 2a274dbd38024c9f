package humanize

import (
	"context"
	"strings"
	"testing"
	"time"
)

type fakeTransport struct {
	sent      []string
	composing int
	cleared   int
	failSend  bool
}

func (f *fakeTransport) Send(ctx context.Context, chatID, content string) error {
	if f.failSend {
		return context.DeadlineExceeded
	}
	f.sent = append(f.sent, content)
	return nil
}

func (f *fakeTransport) SetComposing(ctx context.Context, chatID string) error {
	f.composing++
	return nil
}

func (f *fakeTransport) ClearComposing(ctx context.Context, chatID string) error {
	f.cleared++
	return nil
}

func instantSimulator(p Params) *Simulator {
	s := NewSimulator(p)
	s.sleepFn = func(ctx context.Context, d time.Duration) error {
		return ctx.Err()
	}
	return s
}

func TestTypingDurationClamped(t *testing.T) {
	s := NewSimulator(Params{TypingSpeedMin: 180, TypingSpeedMax: 350})
	for i := 0; i < 200; i++ {
		short := s.TypingDuration("hi")
		if short < time.Second || short > 10*time.Second {
			t.Fatalf("short text duration %v outside [1s, 10s]", short)
		}
		long := s.TypingDuration(strings.Repeat("long message text ", 500))
		if long != 10*time.Second {
			t.Fatalf("very long text should clamp to 10s, got %v", long)
		}
	}
}

func TestReadingDurationClamped(t *testing.T) {
	s := NewSimulator(Params{})
	for i := 0; i < 200; i++ {
		short := s.ReadingDuration("hi")
		if short < 500*time.Millisecond || short > 5*time.Second {
			t.Fatalf("duration %v outside [500ms, 5s]", short)
		}
		long := s.ReadingDuration(strings.Repeat("word ", 5000))
		if long != 5*time.Second {
			t.Fatalf("very long text should clamp to 5s, got %v", long)
		}
	}
}

func TestChunkSentenceBoundaries(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   []string
	}{
		{
			name:   "short text stays whole",
			text:   "Hello there. How can I help?",
			maxLen: 280,
			want:   []string{"Hello there. How can I help?"},
		},
		{
			name:   "splits on sentence boundaries",
			text:   "First sentence here. Second sentence here. Third one.",
			maxLen: 25,
			want:   []string{"First sentence here.", "Second sentence here.", "Third one."},
		},
		{
			name:   "packs sentences up to the limit",
			text:   "One. Two. Three.",
			maxLen: 10,
			want:   []string{"One. Two.", "Three."},
		},
		{
			name:   "oversized sentence stays whole",
			text:   "This single sentence is much longer than the limit allows. Ok.",
			maxLen: 20,
			want:   []string{"This single sentence is much longer than the limit allows.", "Ok."},
		},
		{
			name:   "terminator runs stay attached",
			text:   "Really?! Yes... Fine.",
			maxLen: 10,
			want:   []string{"Really?!", "Yes...", "Fine."},
		},
		{
			name:   "empty input",
			text:   "   ",
			maxLen: 10,
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Chunk(tt.text, tt.maxLen)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d chunks %q, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestChunkPreservesContent(t *testing.T) {
	text := "Alpha beta. Gamma delta epsilon. Zeta eta theta iota. Kappa."
	chunks := Chunk(text, 25)
	joined := strings.Join(chunks, " ")
	if joined != text {
		t.Fatalf("rejoined chunks differ:\n got %q\nwant %q", joined, text)
	}
}

func TestDeliverSendsAllChunksInOrder(t *testing.T) {
	s := instantSimulator(Params{})
	ft := &fakeTransport{}

	chunks := []string{"one", "two", "three"}
	if err := s.Deliver(context.Background(), ft, "chat", chunks); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(ft.sent) != 3 {
		t.Fatalf("sent %d chunks, want 3", len(ft.sent))
	}
	for i, c := range chunks {
		if ft.sent[i] != c {
			t.Errorf("chunk %d = %q, want %q", i, ft.sent[i], c)
		}
	}
	// Composing is signalled and cleared once per chunk.
	if ft.composing != 3 || ft.cleared != 3 {
		t.Errorf("composing=%d cleared=%d, want 3/3", ft.composing, ft.cleared)
	}
}

func TestDeliverStopsOnCancel(t *testing.T) {
	s := NewSimulator(Params{})
	sends := 0
	ctx, cancel := context.WithCancel(context.Background())
	s.sleepFn = func(c context.Context, d time.Duration) error {
		if sends >= 1 {
			cancel()
		}
		return c.Err()
	}
	ft := &fakeTransport{}
	wrapped := &countingTransport{inner: ft, counter: &sends}

	err := s.Deliver(ctx, wrapped, "chat", []string{"one", "two", "three"})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if len(ft.sent) != 1 {
		t.Fatalf("sent %d chunks after cancel, want 1", len(ft.sent))
	}
}

type countingTransport struct {
	inner   Transport
	counter *int
}

func (c *countingTransport) Send(ctx context.Context, chatID, content string) error {
	if err := c.inner.Send(ctx, chatID, content); err != nil {
		return err
	}
	*c.counter++
	return nil
}

func (c *countingTransport) SetComposing(ctx context.Context, chatID string) error {
	return c.inner.SetComposing(ctx, chatID)
}

func (c *countingTransport) ClearComposing(ctx context.Context, chatID string) error {
	return c.inner.ClearComposing(ctx, chatID)
}

func TestDeliverSurfacesSendError(t *testing.T) {
	s := instantSimulator(Params{})
	ft := &fakeTransport{failSend: true}
	if err := s.Deliver(context.Background(), ft, "chat", []string{"one"}); err == nil {
		t.Fatal("expected send error to surface")
	}
}
