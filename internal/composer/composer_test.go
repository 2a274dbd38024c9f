package composer

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zapdesk/zapdesk/internal/provider"
	"github.com/zapdesk/zapdesk/internal/settings"
	"github.com/zapdesk/zapdesk/internal/store"
)

type fakeProvider struct {
	reply      string
	err        error
	lastPrompt string
}

func (f *fakeProvider) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	f.lastPrompt = req.Prompt
	if f.err != nil {
		return nil, f.err
	}
	return &provider.CompletionResponse{Text: f.reply}, nil
}

func (f *fakeProvider) DefaultModel() string { return "fake" }

func setupComposer(t *testing.T, prov provider.CompletionProvider) (*Composer, *store.Store) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	st, err := store.New(db)
	if err != nil {
		t.Fatal(err)
	}
	return New(st, prov), st
}

func testSnapshot() *settings.Snapshot {
	return &settings.Snapshot{
		SystemPrompt:     "You are the shop assistant.",
		IncludeKnowledge: true,
		IncludeHistory:   true,
		MaxKnowledge:     2,
		MaxHistory:       5,
		Timezone:         "UTC",
		Model:            "test-model",
	}
}

func TestComposeSectionOrder(t *testing.T) {
	c, st := setupComposer(t, &fakeProvider{})
	contact, err := st.CreateContact("addr", "Ana", false, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := st.AddKnowledge(&store.KnowledgeEntry{Title: "Shipping", Content: "2 days", Active: true}); err != nil {
		t.Fatal(err)
	}
	if err := st.InsertMessage(&store.Message{ContactID: contact.ID, Direction: store.DirectionInbound, Body: "earlier question", Timestamp: time.Now().Add(-time.Hour)}); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 3, 9, 14, 30, 0, 0, time.UTC) // a Monday
	prompt, err := c.Compose(contact, "what about shipping?", testSnapshot(), now)
	if err != nil {
		t.Fatal(err)
	}

	wantInOrder := []string{
		"You are the shop assistant.",
		"Relevant business information:",
		"- Shipping: 2 days",
		"Recent conversation:",
		"Customer: earlier question",
		"You are talking to Ana. The current local time is Monday 14:30.",
		"New message from the customer:\nwhat about shipping?",
	}
	pos := 0
	for _, want := range wantInOrder {
		idx := strings.Index(prompt[pos:], want)
		if idx < 0 {
			t.Fatalf("prompt missing or out of order: %q\nprompt:\n%s", want, prompt)
		}
		pos += idx + len(want)
	}
}

func TestComposeRespectsToggles(t *testing.T) {
	c, st := setupComposer(t, &fakeProvider{})
	contact, err := st.CreateContact("addr", "", false, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := st.AddKnowledge(&store.KnowledgeEntry{Title: "Shipping", Content: "2 days", Active: true}); err != nil {
		t.Fatal(err)
	}
	if err := st.InsertMessage(&store.Message{ContactID: contact.ID, Direction: store.DirectionInbound, Body: "hi", Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}

	snap := testSnapshot()
	snap.IncludeKnowledge = false
	snap.IncludeHistory = false
	prompt, err := c.Compose(contact, "shipping?", snap, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(prompt, "Relevant business information") {
		t.Error("knowledge section present despite toggle off")
	}
	if strings.Contains(prompt, "Recent conversation") {
		t.Error("history section present despite toggle off")
	}
}

func TestComposeHistoryOldestFirst(t *testing.T) {
	c, st := setupComposer(t, &fakeProvider{})
	contact, err := st.CreateContact("addr", "", false, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	base := time.Now().Add(-time.Hour)
	bodies := []string{"first", "second", "third"}
	for i, b := range bodies {
		if err := st.InsertMessage(&store.Message{ContactID: contact.ID, Direction: store.DirectionInbound, Body: b, Timestamp: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatal(err)
		}
	}

	prompt, err := c.Compose(contact, "next", testSnapshot(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	iFirst := strings.Index(prompt, "Customer: first")
	iThird := strings.Index(prompt, "Customer: third")
	if iFirst < 0 || iThird < 0 || iFirst > iThird {
		t.Fatalf("history not oldest-first:\n%s", prompt)
	}
}

func TestRankKnowledgeScoringAndBounds(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []store.KnowledgeEntry{
		// Listed most-recently-updated first, as the store returns them.
		{Title: "Returns policy", Content: "30 day returns", UpdatedAt: older.Add(2 * time.Hour)},
		{Title: "Shipping times", Content: "shipping takes 2 days", UpdatedAt: older.Add(time.Hour)},
		{Title: "Shipping costs", Content: "shipping is free over $50", UpdatedAt: older},
	}

	got := rankKnowledge(entries, "how much is shipping?", 2)
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	// Both shipping entries match one token each; the tie keeps the
	// most-recently-updated first and the returns entry is excluded.
	if got[0].Title != "Shipping times" || got[1].Title != "Shipping costs" {
		t.Fatalf("wrong selection: %q, %q", got[0].Title, got[1].Title)
	}
}

func TestRankKnowledgeNoTokens(t *testing.T) {
	entries := []store.KnowledgeEntry{{Title: "A", Content: "b"}}
	if got := rankKnowledge(entries, "ok", 3); got != nil {
		t.Fatalf("short-token message should match nothing, got %v", got)
	}
}

func TestGenerateEmptyReply(t *testing.T) {
	prov := &fakeProvider{reply: "   \n "}
	c, st := setupComposer(t, prov)
	contact, err := st.CreateContact("addr", "", false, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Generate(context.Background(), contact, "hello there", testSnapshot())
	if !errors.Is(err, ErrNoReply) {
		t.Fatalf("expected ErrNoReply, got %v", err)
	}
}

func TestGenerateTrimsReply(t *testing.T) {
	prov := &fakeProvider{reply: "  Sure, we ship in 2 days.  "}
	c, st := setupComposer(t, prov)
	contact, err := st.CreateContact("addr", "", false, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	text, err := c.Generate(context.Background(), contact, "shipping time?", testSnapshot())
	if err != nil {
		t.Fatal(err)
	}
	if text != "Sure, we ship in 2 days." {
		t.Fatalf("reply = %q", text)
	}
	if !strings.Contains(prov.lastPrompt, "shipping time?") {
		t.Fatal("prompt missing the customer message")
	}
}
