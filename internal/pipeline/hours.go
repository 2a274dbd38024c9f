package pipeline

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/zapdesk/zapdesk/internal/settings"
)

// withinBusinessHours reports whether now falls inside the configured day
// set and clock range, evaluated in the configured timezone. Invalid
// configuration never gates replies: it logs and reports in-hours.
func withinBusinessHours(snap *settings.Snapshot, now time.Time) bool {
	loc, err := time.LoadLocation(snap.Timezone)
	if err != nil {
		slog.Warn("Invalid timezone setting, using UTC", "timezone", snap.Timezone)
		loc = time.UTC
	}
	local := now.In(loc)

	dayOK := len(snap.BusinessDays) == 0
	for _, d := range snap.BusinessDays {
		if time.Weekday(d) == local.Weekday() {
			dayOK = true
			break
		}
	}
	if !dayOK {
		return false
	}

	startMin, ok1 := parseClock(snap.BusinessStart)
	endMin, ok2 := parseClock(snap.BusinessEnd)
	if !ok1 || !ok2 {
		slog.Warn("Invalid business hours range, not gating",
			"start", snap.BusinessStart, "end", snap.BusinessEnd)
		return true
	}

	nowMin := local.Hour()*60 + local.Minute()
	if startMin <= endMin {
		return nowMin >= startMin && nowMin < endMin
	}
	// Range wraps midnight (e.g. 22:00-06:00).
	return nowMin >= startMin || nowMin < endMin
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
