// Package store implements the sqlite-backed record repository for
// contacts, conversations, messages, settings, and knowledge entries.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath and applies the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open store db: %w", err)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing database handle and applies the schema.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Contacts & conversations
// ---------------------------------------------------------------------------

// GetContactByAddress looks up a contact by its unique address.
func (s *Store) GetContactByAddress(address string) (*Contact, error) {
	row := s.db.QueryRow(`SELECT id, address, display_name, is_group, tags, metadata, last_interaction, created_at, updated_at
		FROM contacts WHERE address = ?`, address)
	return scanContact(row)
}

// GetContact looks up a contact by id.
func (s *Store) GetContact(id string) (*Contact, error) {
	row := s.db.QueryRow(`SELECT id, address, display_name, is_group, tags, metadata, last_interaction, created_at, updated_at
		FROM contacts WHERE id = ?`, id)
	return scanContact(row)
}

func scanContact(row *sql.Row) (*Contact, error) {
	var c Contact
	var last sql.NullTime
	err := row.Scan(&c.ID, &c.Address, &c.DisplayName, &c.IsGroup, &c.Tags, &c.Metadata, &last, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan contact: %w", err)
	}
	if last.Valid {
		c.LastInteraction = &last.Time
	}
	return &c, nil
}

// CreateContact inserts a contact and its paired conversation in one
// transaction. The conversation starts with message_count = 1 for the
// event that caused creation.
func (s *Store) CreateContact(address, displayName string, isGroup bool, at time.Time) (*Contact, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin create contact: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	_, err = tx.Exec(`INSERT INTO contacts (id, address, display_name, is_group, last_interaction, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, id, address, displayName, isGroup, at, at, at)
	if err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}
	_, err = tx.Exec(`INSERT INTO conversations (contact_id, message_count, last_message_at, status, created_at)
		VALUES (?, 1, ?, ?, ?)`, id, at, ConversationActive, at)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create contact: %w", err)
	}
	return s.GetContact(id)
}

// TouchContact updates the display name (when observed non-empty) and the
// last-interaction timestamp, and atomically increments the conversation
// message counter.
func (s *Store) TouchContact(id, observedName string, at time.Time) error {
	if observedName != "" {
		_, err := s.db.Exec(`UPDATE contacts SET display_name = ?, last_interaction = ?, updated_at = ? WHERE id = ?`,
			observedName, at, at, id)
		if err != nil {
			return fmt.Errorf("touch contact: %w", err)
		}
	} else {
		_, err := s.db.Exec(`UPDATE contacts SET last_interaction = ?, updated_at = ? WHERE id = ?`, at, at, id)
		if err != nil {
			return fmt.Errorf("touch contact: %w", err)
		}
	}
	_, err := s.db.Exec(`UPDATE conversations SET message_count = message_count + 1, last_message_at = ? WHERE contact_id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("increment conversation: %w", err)
	}
	return nil
}

// UpdateContactMetadata replaces the metadata JSON blob for a contact.
func (s *Store) UpdateContactMetadata(id, metadata string) error {
	res, err := s.db.Exec(`UPDATE contacts SET metadata = ?, updated_at = ? WHERE id = ?`, metadata, time.Now(), id)
	if err != nil {
		return fmt.Errorf("update contact metadata: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetConversation returns the conversation state for a contact.
func (s *Store) GetConversation(contactID string) (*Conversation, error) {
	row := s.db.QueryRow(`SELECT contact_id, message_count, last_message_at, status, created_at
		FROM conversations WHERE contact_id = ?`, contactID)
	var c Conversation
	var last sql.NullTime
	err := row.Scan(&c.ContactID, &c.MessageCount, &last, &c.Status, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	if last.Valid {
		c.LastMessageAt = &last.Time
	}
	return &c, nil
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

// InsertMessage appends one immutable message row. A missing MessageID or
// Timestamp is filled in.
func (s *Store) InsertMessage(m *Message) error {
	if m.MessageID == "" {
		m.MessageID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO messages (message_id, contact_id, direction, is_ai_generated, body, has_media, timestamp, replied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.MessageID, m.ContactID, m.Direction, m.IsAIGenerated, m.Body, m.HasMedia, m.Timestamp, m.RepliedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListRecentMessages returns up to limit most recent messages for a contact,
// newest first.
func (s *Store) ListRecentMessages(contactID string, limit int) ([]Message, error) {
	rows, err := s.db.Query(`SELECT id, message_id, contact_id, direction, is_ai_generated, body, has_media, timestamp, replied_at
		FROM messages WHERE contact_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, contactID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var replied sql.NullTime
		if err := rows.Scan(&m.ID, &m.MessageID, &m.ContactID, &m.Direction, &m.IsAIGenerated, &m.Body, &m.HasMedia, &m.Timestamp, &replied); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if replied.Valid {
			m.RepliedAt = &replied.Time
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountOutboundSince counts bot-authored messages for a contact since the
// given time. Used for the per-day reply cap.
func (s *Store) CountOutboundSince(contactID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE contact_id = ? AND direction = ? AND timestamp >= ?`,
		contactID, DirectionOutbound, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count outbound: %w", err)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// GetSetting returns the raw JSON value for a key. The second return value
// reports whether the key exists.
func (s *Store) GetSetting(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores the raw JSON value for a key, overwriting any previous
// value.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now())
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// EnsureSetting inserts a key only if it is absent. Operator edits are never
// overwritten.
func (s *Store) EnsureSetting(key, value, description string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO settings (key, value, description, updated_at) VALUES (?, ?, ?, ?)`,
		key, value, description, time.Now())
	if err != nil {
		return fmt.Errorf("ensure setting %s: %w", key, err)
	}
	return nil
}

// ListSettings returns all keys and raw values.
func (s *Store) ListSettings() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Knowledge
// ---------------------------------------------------------------------------

// ListActiveKnowledge returns all active knowledge entries, most recently
// updated first.
func (s *Store) ListActiveKnowledge() ([]KnowledgeEntry, error) {
	rows, err := s.db.Query(`SELECT id, title, content, category, tags, active, updated_at
		FROM knowledge WHERE active = 1 ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list knowledge: %w", err)
	}
	defer rows.Close()

	var out []KnowledgeEntry
	for rows.Next() {
		var k KnowledgeEntry
		if err := rows.Scan(&k.ID, &k.Title, &k.Content, &k.Category, &k.Tags, &k.Active, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan knowledge: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// AddKnowledge inserts a knowledge entry. Used by seeding and tests; the
// pipeline itself only reads.
func (s *Store) AddKnowledge(k *KnowledgeEntry) error {
	if k.UpdatedAt.IsZero() {
		k.UpdatedAt = time.Now()
	}
	if k.Tags == "" {
		k.Tags = "[]"
	}
	res, err := s.db.Exec(`INSERT INTO knowledge (title, content, category, tags, active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`, k.Title, k.Content, k.Category, k.Tags, k.Active, k.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert knowledge: %w", err)
	}
	k.ID, _ = res.LastInsertId()
	return nil
}
