// Package settings exposes typed key/value configuration stored in the
// settings table, with documented defaults seeded on first boot.
package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/zapdesk/zapdesk/internal/store"
)

// Setting keys. Values are stored as JSON.
const (
	KeyAutoReplyEnabled   = "autoReplyEnabled"
	KeyGroupAutoReply     = "groupAutoReply"
	KeyMaxRepliesPerDay   = "maxRepliesPerDay"
	KeyStopKeyword        = "stopKeyword"
	KeyStopAckMessage     = "stopAckMessage"
	KeyHumanKeywords      = "humanKeywords"
	KeyHumanAckMessage    = "humanAckMessage"
	KeyBusinessHours      = "businessHoursEnabled"
	KeyBusinessDays       = "businessDays"
	KeyBusinessStart      = "businessHoursStart"
	KeyBusinessEnd        = "businessHoursEnd"
	KeyTimezone           = "timezone"
	KeyOutOfOffice        = "outOfOfficeEnabled"
	KeyOutOfOfficeMessage = "outOfOfficeMessage"
	KeySystemPrompt       = "aiSystemPrompt"
	KeyMaxKnowledge       = "aiMaxKnowledge"
	KeyMaxHistory         = "aiMaxHistory"
	KeyIncludeKnowledge   = "aiIncludeKnowledge"
	KeyIncludeHistory     = "aiIncludeHistory"
	KeyModel              = "aiModel"
	KeyTemperature        = "aiTemperature"
	KeyMaxTokens          = "aiMaxTokens"
	KeyTypingSpeedMin     = "typingSpeedMin"
	KeyTypingSpeedMax     = "typingSpeedMax"
	KeyInterMessageMin    = "interMessageDelayMin"
	KeyInterMessageMax    = "interMessageDelayMax"
	KeyRandomDelayMin     = "randomDelayMin"
	KeyRandomDelayMax     = "randomDelayMax"
	KeyChunkMaxLength     = "chunkMaxLength"
	KeyStopList           = "stopListedContacts"
)

// Snapshot is the typed configuration view one pipeline invocation works
// with. It is loaded fresh per inbound event so decision evaluation stays
// deterministic.
type Snapshot struct {
	AutoReplyEnabled bool
	GroupAutoReply   bool
	MaxRepliesPerDay int
	StopKeyword      string
	StopAckMessage   string
	HumanKeywords    []string
	HumanAckMessage  string

	BusinessHoursEnabled bool
	BusinessDays         []int // time.Weekday values, 0 = Sunday
	BusinessStart        string
	BusinessEnd          string
	Timezone             string
	OutOfOfficeEnabled   bool
	OutOfOfficeMessage   string

	SystemPrompt     string
	MaxKnowledge     int
	MaxHistory       int
	IncludeKnowledge bool
	IncludeHistory   bool
	Model            string
	Temperature      float64
	MaxTokens        int

	TypingSpeedMin       int // chars per minute
	TypingSpeedMax       int
	InterMessageDelayMin int // milliseconds
	InterMessageDelayMax int
	RandomDelayMin       int
	RandomDelayMax       int
	ChunkMaxLength       int
}

type defaultEntry struct {
	key         string
	value       any
	description string
}

var defaults = []defaultEntry{
	{KeyAutoReplyEnabled, true, "Master switch for automated replies"},
	{KeyGroupAutoReply, false, "Reply automatically in group chats"},
	{KeyMaxRepliesPerDay, 0, "Per-contact bot replies per day, 0 = unlimited"},
	{KeyStopKeyword, "STOP", "Exact keyword that opts a contact out permanently"},
	{KeyStopAckMessage, "You have been unsubscribed from automated replies. Reply handled by our team from now on.", "Acknowledgment sent on stop keyword"},
	{KeyHumanKeywords, []string{"human", "agent", "representative"}, "Keywords that signal a human is needed"},
	{KeyHumanAckMessage, "Understood, a member of our team will get back to you shortly.", "Acknowledgment sent on human-handoff keyword"},
	{KeyBusinessHours, false, "Gate automated replies to business hours"},
	{KeyBusinessDays, []int{1, 2, 3, 4, 5}, "Weekdays considered business days (0 = Sunday)"},
	{KeyBusinessStart, "09:00", "Business hours start, 24h clock"},
	{KeyBusinessEnd, "18:00", "Business hours end, 24h clock"},
	{KeyTimezone, "UTC", "IANA timezone for business-hours evaluation"},
	{KeyOutOfOffice, false, "Send an out-of-office message outside business hours"},
	{KeyOutOfOfficeMessage, "Thanks for your message! We are currently closed and will reply during business hours.", "Out-of-office template"},
	{KeySystemPrompt, "You are a friendly, professional assistant replying on behalf of this business. Keep answers short and conversational, like a chat message.", "System instruction for AI replies"},
	{KeyMaxKnowledge, 3, "Max knowledge entries included in the prompt"},
	{KeyMaxHistory, 10, "Max history messages included in the prompt"},
	{KeyIncludeKnowledge, true, "Include knowledge entries in the prompt"},
	{KeyIncludeHistory, true, "Include conversation history in the prompt"},
	{KeyModel, "gpt-4o-mini", "Completion model"},
	{KeyTemperature, 0.7, "Completion temperature"},
	{KeyMaxTokens, 512, "Completion max tokens"},
	{KeyTypingSpeedMin, 180, "Simulated typing speed lower bound, chars/min"},
	{KeyTypingSpeedMax, 350, "Simulated typing speed upper bound, chars/min"},
	{KeyInterMessageMin, 1200, "Delay between message chunks lower bound, ms"},
	{KeyInterMessageMax, 3500, "Delay between message chunks upper bound, ms"},
	{KeyRandomDelayMin, 4000, "Distraction delay lower bound, ms"},
	{KeyRandomDelayMax, 12000, "Distraction delay upper bound, ms"},
	{KeyChunkMaxLength, 280, "Max characters per delivered chunk"},
	{KeyStopList, []string{}, "Contact ids excluded from automated replies"},
}

// Service reads and seeds settings through the store.
type Service struct {
	store *store.Store
}

// NewService creates a settings service.
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// EnsureDefaults seeds every known key that is not already present.
// Idempotent; existing operator edits are never overwritten.
func (s *Service) EnsureDefaults() error {
	for _, d := range defaults {
		raw, err := json.Marshal(d.value)
		if err != nil {
			return fmt.Errorf("marshal default %s: %w", d.key, err)
		}
		if err := s.store.EnsureSetting(d.key, string(raw), d.description); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot loads all behavioural settings into a typed view. Missing or
// invalid values fall back to the documented defaults; a bad setting is
// logged, never fatal.
func (s *Service) Snapshot() (*Snapshot, error) {
	raw, err := s.store.ListSettings()
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{}
	snap.AutoReplyEnabled = getValue[bool](raw, KeyAutoReplyEnabled)
	snap.GroupAutoReply = getValue[bool](raw, KeyGroupAutoReply)
	snap.MaxRepliesPerDay = getInt(raw, KeyMaxRepliesPerDay)
	snap.StopKeyword = getValue[string](raw, KeyStopKeyword)
	snap.StopAckMessage = getValue[string](raw, KeyStopAckMessage)
	snap.HumanKeywords = getValue[[]string](raw, KeyHumanKeywords)
	snap.HumanAckMessage = getValue[string](raw, KeyHumanAckMessage)
	snap.BusinessHoursEnabled = getValue[bool](raw, KeyBusinessHours)
	snap.BusinessDays = getIntSlice(raw, KeyBusinessDays)
	snap.BusinessStart = getValue[string](raw, KeyBusinessStart)
	snap.BusinessEnd = getValue[string](raw, KeyBusinessEnd)
	snap.Timezone = getValue[string](raw, KeyTimezone)
	snap.OutOfOfficeEnabled = getValue[bool](raw, KeyOutOfOffice)
	snap.OutOfOfficeMessage = getValue[string](raw, KeyOutOfOfficeMessage)
	snap.SystemPrompt = getValue[string](raw, KeySystemPrompt)
	snap.MaxKnowledge = getInt(raw, KeyMaxKnowledge)
	snap.MaxHistory = getInt(raw, KeyMaxHistory)
	snap.IncludeKnowledge = getValue[bool](raw, KeyIncludeKnowledge)
	snap.IncludeHistory = getValue[bool](raw, KeyIncludeHistory)
	snap.Model = getValue[string](raw, KeyModel)
	snap.Temperature = getValue[float64](raw, KeyTemperature)
	snap.MaxTokens = getInt(raw, KeyMaxTokens)
	snap.TypingSpeedMin = getInt(raw, KeyTypingSpeedMin)
	snap.TypingSpeedMax = getInt(raw, KeyTypingSpeedMax)
	snap.InterMessageDelayMin = getInt(raw, KeyInterMessageMin)
	snap.InterMessageDelayMax = getInt(raw, KeyInterMessageMax)
	snap.RandomDelayMin = getInt(raw, KeyRandomDelayMin)
	snap.RandomDelayMax = getInt(raw, KeyRandomDelayMax)
	snap.ChunkMaxLength = getInt(raw, KeyChunkMaxLength)
	return snap, nil
}

// Get returns the raw JSON value for a key.
func (s *Service) Get(key string) (string, bool, error) {
	return s.store.GetSetting(key)
}

// Set stores a raw JSON value for a key. The value must be valid JSON.
func (s *Service) Set(key, rawJSON string) error {
	var probe any
	if err := json.Unmarshal([]byte(rawJSON), &probe); err != nil {
		return fmt.Errorf("setting %s is not valid JSON: %w", key, err)
	}
	return s.store.SetSetting(key, rawJSON)
}

// List returns every stored key and raw value.
func (s *Service) List() (map[string]string, error) {
	return s.store.ListSettings()
}

// defaultFor returns the registered default for a key.
func defaultFor(key string) any {
	for _, d := range defaults {
		if d.key == key {
			return d.value
		}
	}
	return nil
}

func getValue[T any](raw map[string]string, key string) T {
	var out T
	if v, ok := raw[key]; ok {
		if err := json.Unmarshal([]byte(v), &out); err == nil {
			return out
		}
		slog.Warn("Invalid setting value, using default", "key", key, "value", raw[key])
	}
	if d, ok := defaultFor(key).(T); ok {
		return d
	}
	return out
}

// getInt tolerates numbers stored as JSON floats.
func getInt(raw map[string]string, key string) int {
	if v, ok := raw[key]; ok {
		var f float64
		if err := json.Unmarshal([]byte(v), &f); err == nil {
			return int(f)
		}
		slog.Warn("Invalid setting value, using default", "key", key, "value", raw[key])
	}
	switch d := defaultFor(key).(type) {
	case int:
		return d
	case float64:
		return int(d)
	}
	return 0
}

func getIntSlice(raw map[string]string, key string) []int {
	if v, ok := raw[key]; ok {
		var out []int
		if err := json.Unmarshal([]byte(v), &out); err == nil {
			return out
		}
		slog.Warn("Invalid setting value, using default", "key", key, "value", raw[key])
	}
	if d, ok := defaultFor(key).([]int); ok {
		return append([]int(nil), d...)
	}
	return nil
}
