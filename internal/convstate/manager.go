// Package convstate owns per-contact conversation state: counters, the
// durable stop-list, and the human-takeover flag. Stop-list membership and
// takeover are mutated through this package only, so the pipeline has a
// single source of truth for "may this contact ever get an automated reply".
package convstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zapdesk/zapdesk/internal/settings"
	"github.com/zapdesk/zapdesk/internal/store"
)

// Takeover is the per-contact human-takeover record kept in contact
// metadata.
type Takeover struct {
	Enabled    bool      `json:"enabled"`
	OperatorID string    `json:"operatorId,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
}

// Manager mutates contact and conversation records. All read-modify-write
// operations are serialized internally.
type Manager struct {
	store *store.Store
	mu    sync.Mutex
}

// NewManager creates a conversation state manager.
func NewManager(st *store.Store) *Manager {
	return &Manager{store: st}
}

// UpsertContact creates a contact (with its paired conversation, counter 1)
// on first sight, or updates the observed name and last-interaction time and
// increments the conversation counter otherwise.
func (m *Manager) UpsertContact(address, observedName string, isGroup bool) (*store.Contact, error) {
	now := time.Now()
	contact, err := m.store.GetContactByAddress(address)
	if errors.Is(err, store.ErrNotFound) {
		return m.store.CreateContact(address, observedName, isGroup, now)
	}
	if err != nil {
		return nil, err
	}
	if err := m.store.TouchContact(contact.ID, observedName, now); err != nil {
		return nil, err
	}
	return m.store.GetContact(contact.ID)
}

// RecordMessage appends an immutable message row.
func (m *Manager) RecordMessage(msg *store.Message) error {
	return m.store.InsertMessage(msg)
}

// RepliesToday counts bot-authored messages for a contact since local
// midnight.
func (m *Manager) RepliesToday(contactID string, now time.Time) (int, error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return m.store.CountOutboundSince(contactID, midnight)
}

// StopList returns the current stop-list contact ids.
func (m *Manager) StopList() ([]string, error) {
	raw, ok, err := m.store.GetSetting(settings.KeyStopList)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("corrupt stop-list setting: %w", err)
	}
	return ids, nil
}

// IsStopListed reports whether the contact id is on the stop-list.
func (m *Manager) IsStopListed(contactID string) (bool, error) {
	ids, err := m.StopList()
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == contactID {
			return true, nil
		}
	}
	return false, nil
}

// AddToStopList durably adds a contact id to the stop-list. Idempotent.
func (m *Manager) AddToStopList(contactID string) error {
	return m.mutateStopList(func(ids []string) []string {
		for _, id := range ids {
			if id == contactID {
				return ids
			}
		}
		return append(ids, contactID)
	})
}

// RemoveFromStopList removes a contact id from the stop-list. Idempotent.
func (m *Manager) RemoveFromStopList(contactID string) error {
	return m.mutateStopList(func(ids []string) []string {
		out := ids[:0]
		for _, id := range ids {
			if id != contactID {
				out = append(out, id)
			}
		}
		return out
	})
}

// mutateStopList performs a serialized read-modify-write of the stop-list
// setting, retrying once on a write failure before giving up.
func (m *Manager) mutateStopList(mutate func([]string) []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	write := func() error {
		ids, err := m.StopList()
		if err != nil {
			return err
		}
		next := mutate(ids)
		if next == nil {
			next = []string{}
		}
		raw, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal stop-list: %w", err)
		}
		return m.store.SetSetting(settings.KeyStopList, string(raw))
	}

	if err := write(); err != nil {
		slog.Warn("Stop-list write failed, retrying once", "error", err)
		if err := write(); err != nil {
			return fmt.Errorf("stop-list update: %w", err)
		}
	}
	return nil
}

// TakeoverState parses the takeover record from a contact's metadata.
func TakeoverState(contact *store.Contact) Takeover {
	if contact == nil || contact.Metadata == "" {
		return Takeover{}
	}
	var meta struct {
		Takeover Takeover `json:"takeover"`
	}
	if err := json.Unmarshal([]byte(contact.Metadata), &meta); err != nil {
		return Takeover{}
	}
	return meta.Takeover
}

// SetTakeover toggles the human-takeover flag for a contact. Enabling also
// stop-lists the contact; disabling removes it from the stop-list.
func (m *Manager) SetTakeover(contactID, operatorID string, enabled bool) error {
	m.mu.Lock()
	contact, err := m.store.GetContact(contactID)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	meta := map[string]any{}
	if contact.Metadata != "" {
		// Preserve unrelated metadata keys.
		_ = json.Unmarshal([]byte(contact.Metadata), &meta)
	}
	meta["takeover"] = Takeover{
		Enabled:    enabled,
		OperatorID: operatorID,
		Timestamp:  time.Now(),
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("marshal contact metadata: %w", err)
	}
	if err := m.store.UpdateContactMetadata(contactID, string(raw)); err != nil {
		slog.Warn("Takeover metadata write failed, retrying once", "contact_id", contactID, "error", err)
		if err := m.store.UpdateContactMetadata(contactID, string(raw)); err != nil {
			m.mu.Unlock()
			return err
		}
	}
	m.mu.Unlock()

	if enabled {
		return m.AddToStopList(contactID)
	}
	return m.RemoveFromStopList(contactID)
}
