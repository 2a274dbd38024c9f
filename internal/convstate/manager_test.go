package convstate

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zapdesk/zapdesk/internal/store"
)

func setupManager(t *testing.T) (*Manager, *store.Store) {
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
	return NewManager(st), st
}

func TestUpsertContactCreatesThenTouches(t *testing.T) {
	m, st := setupManager(t)

	first, err := m.UpsertContact("addr", "Ana", false)
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.UpsertContact("addr", "Ana Maria", false)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatal("upsert created a duplicate contact")
	}
	if second.DisplayName != "Ana Maria" {
		t.Fatalf("display name = %q", second.DisplayName)
	}

	conv, err := st.GetConversation(first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if conv.MessageCount != 2 {
		t.Fatalf("message_count = %d, want 2", conv.MessageCount)
	}
}

func TestStopListRoundTrip(t *testing.T) {
	m, _ := setupManager(t)
	c, err := m.UpsertContact("addr", "", false)
	if err != nil {
		t.Fatal(err)
	}

	listed, err := m.IsStopListed(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if listed {
		t.Fatal("fresh contact should not be stop-listed")
	}

	if err := m.AddToStopList(c.ID); err != nil {
		t.Fatal(err)
	}
	// Adding twice stays a single entry.
	if err := m.AddToStopList(c.ID); err != nil {
		t.Fatal(err)
	}
	ids, err := m.StopList()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != c.ID {
		t.Fatalf("stop-list = %v", ids)
	}

	if err := m.RemoveFromStopList(c.ID); err != nil {
		t.Fatal(err)
	}
	listed, err = m.IsStopListed(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if listed {
		t.Fatal("contact still stop-listed after removal")
	}
}

func TestSetTakeoverTogglesStopList(t *testing.T) {
	m, st := setupManager(t)
	c, err := m.UpsertContact("addr", "", false)
	if err != nil {
		t.Fatal(err)
	}
	// Unrelated metadata must survive takeover writes.
	if err := st.UpdateContactMetadata(c.ID, `{"note":"vip"}`); err != nil {
		t.Fatal(err)
	}

	if err := m.SetTakeover(c.ID, "op-7", true); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetContact(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	state := TakeoverState(got)
	if !state.Enabled || state.OperatorID != "op-7" {
		t.Fatalf("takeover state = %+v", state)
	}
	listed, err := m.IsStopListed(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !listed {
		t.Fatal("takeover should stop-list the contact")
	}

	if err := m.SetTakeover(c.ID, "", false); err != nil {
		t.Fatal(err)
	}
	got, err = st.GetContact(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if TakeoverState(got).Enabled {
		t.Fatal("takeover still enabled after release")
	}
	listed, err = m.IsStopListed(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if listed {
		t.Fatal("contact still stop-listed after release")
	}

	var meta map[string]any
	if err := json.Unmarshal([]byte(got.Metadata), &meta); err != nil {
		t.Fatal(err)
	}
	if meta["note"] != "vip" {
		t.Fatalf("unrelated metadata lost: %s", got.Metadata)
	}
}

func TestRepliesTodayCountsSinceMidnight(t *testing.T) {
	m, st := setupManager(t)
	c, err := m.UpsertContact("addr", "", false)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	insert := func(at time.Time) {
		t.Helper()
		if err := st.InsertMessage(&store.Message{ContactID: c.ID, Direction: store.DirectionOutbound, Timestamp: at}); err != nil {
			t.Fatal(err)
		}
	}
	insert(now.Add(-20 * time.Hour)) // yesterday
	insert(now.Add(-2 * time.Hour))
	insert(now.Add(-time.Minute))

	n, err := m.RepliesToday(c.ID, now)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("replies today = %d, want 2", n)
	}
}
