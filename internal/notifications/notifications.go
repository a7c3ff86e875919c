package notifications

import (
	"time"
)

// Severity classifies an event for filtering and display.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "info"
}

// ParseSeverity maps a config string to a severity, defaulting to warning.
func ParseSeverity(level string) Severity {
	if level == "info" {
		return SeverityInfo
	}
	return SeverityWarning
}

// Event is one immutable structured occurrence inside the core: a trigger
// fired, a trade was recorded, a fetch failed. Consumers display or alert;
// the core never waits for them.
type Event struct {
	Time     time.Time
	Severity Severity
	Title    string
	Message  string
}

// Notifier receives events. Implementations must return quickly; delivery
// happens out of band.
type Notifier interface {
	Notify(event Event)
}

// NopNotifier discards all events. Used when no channel is configured and
// in tests.
type NopNotifier struct{}

var _ Notifier = (*NopNotifier)(nil)

func (NopNotifier) Notify(Event) {}
