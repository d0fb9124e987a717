// Package fail2ban extracts security events from fail2ban's append-only
// text log: line classification, time-window filtering and the four-way
// partition consumed by report aggregation.
package fail2ban

import "time"

// Kind identifies the type of a classified log event.
type Kind string

const (
	KindBan   Kind = "ban"
	KindUnban Kind = "unban"
	KindFound Kind = "found"
)

// Event is one classified occurrence extracted from a single log line.
// Address is an opaque token; for KindFound it may be empty when the
// line carried no token after the Found marker.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Address   string    `json:"address"`
}

// Window is a closed time interval used to filter events for a report.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts falls inside the window, boundaries
// included on both ends.
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && !ts.After(w.End)
}

// Extraction is the windowed four-way partition of a log scan.
// FailedAttempts counts Found lines, not distinct addresses; it equals
// len(Found) because address-less Found lines still produce an event.
type Extraction struct {
	Bans           []Event
	Unbans         []Event
	Found          []Event
	FailedAttempts int
}

// Total returns the number of events across all partitions.
func (e *Extraction) Total() int {
	return len(e.Bans) + len(e.Unbans) + len(e.Found)
}
