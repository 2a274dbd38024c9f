package pipeline

import (
	"testing"
	"time"

	"github.com/zapdesk/zapdesk/internal/settings"
)

func TestWithinBusinessHours(t *testing.T) {
	weekdays := []int{1, 2, 3, 4, 5}
	tests := []struct {
		name string
		snap settings.Snapshot
		now  time.Time
		want bool
	}{
		{
			name: "weekday inside range",
			snap: settings.Snapshot{Timezone: "UTC", BusinessDays: weekdays, BusinessStart: "09:00", BusinessEnd: "18:00"},
			now:  time.Date(2026, 3, 9, 10, 30, 0, 0, time.UTC), // Monday
			want: true,
		},
		{
			name: "weekday before opening",
			snap: settings.Snapshot{Timezone: "UTC", BusinessDays: weekdays, BusinessStart: "09:00", BusinessEnd: "18:00"},
			now:  time.Date(2026, 3, 9, 8, 59, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "closing minute is outside",
			snap: settings.Snapshot{Timezone: "UTC", BusinessDays: weekdays, BusinessStart: "09:00", BusinessEnd: "18:00"},
			now:  time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "weekend excluded",
			snap: settings.Snapshot{Timezone: "UTC", BusinessDays: weekdays, BusinessStart: "09:00", BusinessEnd: "18:00"},
			now:  time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC), // Sunday
			want: false,
		},
		{
			name: "empty day set allows all days",
			snap: settings.Snapshot{Timezone: "UTC", BusinessStart: "09:00", BusinessEnd: "18:00"},
			now:  time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC), // Sunday
			want: true,
		},
		{
			name: "range wrapping midnight, late evening",
			snap: settings.Snapshot{Timezone: "UTC", BusinessDays: weekdays, BusinessStart: "22:00", BusinessEnd: "06:00"},
			now:  time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "range wrapping midnight, early morning",
			snap: settings.Snapshot{Timezone: "UTC", BusinessDays: weekdays, BusinessStart: "22:00", BusinessEnd: "06:00"},
			now:  time.Date(2026, 3, 9, 5, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "range wrapping midnight, midday excluded",
			snap: settings.Snapshot{Timezone: "UTC", BusinessDays: weekdays, BusinessStart: "22:00", BusinessEnd: "06:00"},
			now:  time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "timezone shifts the local day",
			snap: settings.Snapshot{Timezone: "America/Sao_Paulo", BusinessDays: weekdays, BusinessStart: "09:00", BusinessEnd: "18:00"},
			now:  time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC), // 08:00 in Sao Paulo
			want: false,
		},
		{
			name: "invalid clock never gates",
			snap: settings.Snapshot{Timezone: "UTC", BusinessDays: weekdays, BusinessStart: "9am", BusinessEnd: "18:00"},
			now:  time.Date(2026, 3, 9, 3, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "invalid timezone falls back to UTC",
			snap: settings.Snapshot{Timezone: "Mars/Olympus", BusinessDays: weekdays, BusinessStart: "09:00", BusinessEnd: "18:00"},
			now:  time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := withinBusinessHours(&tt.snap, tt.now); got != tt.want {
				t.Fatalf("withinBusinessHours = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in  string
		min int
		ok  bool
	}{
		{"09:00", 540, true},
		{"00:00", 0, true},
		{"23:59", 1439, true},
		{" 18:30 ", 1110, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"noon", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseClock(tt.in)
		if ok != tt.ok || got != tt.min {
			t.Errorf("parseClock(%q) = %d,%v want %d,%v", tt.in, got, ok, tt.min, tt.ok)
		}
	}
}
