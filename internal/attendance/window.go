package attendance

import (
	"fmt"
	"time"
)

// WindowStatus classifies "now" relative to an event's attendance window.
type WindowStatus string

const (
	WindowNotStarted WindowStatus = "not-started"
	WindowOpen       WindowStatus = "open"
	WindowClosed     WindowStatus = "closed"
)

const (
	// OpensBefore is how long before starting_at the window opens.
	OpensBefore = 15 * time.Minute
	// ClosesAfter is how long after ending_at the window stays open.
	ClosesAfter = 20 * time.Minute
)

// WindowStart returns the first instant at which attendance may be marked.
func WindowStart(startingAt time.Time) time.Time {
	return startingAt.Add(-OpensBefore)
}

// WindowEnd returns the last instant at which attendance may be marked.
func WindowEnd(endingAt time.Time) time.Time {
	return endingAt.Add(ClosesAfter)
}

// Classify reports where now falls relative to [startingAt-15m, endingAt+20m].
// Both bounds are inclusive.
func Classify(now, startingAt, endingAt time.Time) WindowStatus {
	if now.Before(WindowStart(startingAt)) {
		return WindowNotStarted
	}
	if now.After(WindowEnd(endingAt)) {
		return WindowClosed
	}
	return WindowOpen
}

// FormatCountdown renders the time left until target, e.g. "in 2 days",
// "in 3 hours 15min" or "in 40 minutes". It returns "now" once target is reached.
func FormatCountdown(target, now time.Time) string {
	diff := target.Sub(now)
	if diff <= 0 {
		return "now"
	}

	minutes := int(diff / time.Minute)
	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 0:
		return fmt.Sprintf("in %d day%s", days, plural(days))
	case hours > 0:
		return fmt.Sprintf("in %d hour%s %dmin", hours, plural(hours), minutes%60)
	default:
		return fmt.Sprintf("in %d minute%s", minutes, plural(minutes))
	}
}

func plural(n int) string {
	if n > 1 {
		return "s"
	}
	return ""
}
