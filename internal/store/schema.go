package store

import (
	"time"
)

// Contact represents one remote party.
type Contact struct {
	ID              string     `json:"id"`
	Address         string     `json:"address"` // phone-like, unique, immutable
	DisplayName     string     `json:"display_name"`
	IsGroup         bool       `json:"is_group"`
	Tags            string     `json:"tags"`     // JSON array
	Metadata        string     `json:"metadata"` // JSON object, includes takeover sub-object
	LastInteraction *time.Time `json:"last_interaction,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Conversation is the one-to-one thread state for a contact.
type Conversation struct {
	ContactID     string     `json:"contact_id"`
	MessageCount  int64      `json:"message_count"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Message is one append-only log entry for an inbound or outbound unit.
type Message struct {
	ID            int64      `json:"id"`
	MessageID     string     `json:"message_id"`
	ContactID     string     `json:"contact_id"`
	Direction     string     `json:"direction"`
	IsAIGenerated bool       `json:"is_ai_generated"`
	Body          string     `json:"body"`
	HasMedia      bool       `json:"has_media"`
	Timestamp     time.Time  `json:"timestamp"`
	RepliedAt     *time.Time `json:"replied_at,omitempty"` // set only on bot-authored rows
}

// KnowledgeEntry is a read-only snippet used for reply context.
type KnowledgeEntry struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Tags      string    `json:"tags"` // JSON array
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"

	ConversationActive   = "active"
	ConversationArchived = "archived"
	ConversationSpam     = "spam"
)

const Schema = `
CREATE TABLE IF NOT EXISTS contacts (
	id TEXT PRIMARY KEY,
	address TEXT UNIQUE NOT NULL,
	display_name TEXT DEFAULT '',
	is_group BOOLEAN NOT NULL DEFAULT 0,
	tags TEXT NOT NULL DEFAULT '[]',
	metadata TEXT NOT NULL DEFAULT '{}',
	last_interaction DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_contacts_address ON contacts(address);

CREATE TABLE IF NOT EXISTS conversations (
	contact_id TEXT PRIMARY KEY,
	message_count INTEGER NOT NULL DEFAULT 0,
	last_message_at DATETIME,
	status TEXT NOT NULL DEFAULT 'active',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id TEXT UNIQUE NOT NULL,
	contact_id TEXT NOT NULL,
	direction TEXT NOT NULL,
	is_ai_generated BOOLEAN NOT NULL DEFAULT 0,
	body TEXT NOT NULL DEFAULT '',
	has_media BOOLEAN NOT NULL DEFAULT 0,
	timestamp DATETIME NOT NULL,
	replied_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_messages_contact ON messages(contact_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_messages_direction ON messages(contact_id, direction, timestamp);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS knowledge (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	active BOOLEAN NOT NULL DEFAULT 1,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_knowledge_active ON knowledge(active);
`
