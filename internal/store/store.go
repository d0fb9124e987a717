// Package store persists extracted fail2ban events across collection
// cycles: an append log per event kind plus a last-processed checkpoint,
// with a bounded retention horizon.
package store

import (
	"time"

	"github.com/telhawk-systems/banwatch/internal/fail2ban"
)

// Store is the event store owned by the collector. There is exactly one
// writer and one reader, sequential in time, so implementations need no
// locking.
type Store interface {
	// Append adds events to the per-kind append logs.
	Append(events []fail2ban.Event) error

	// Query returns every stored event whose recorded timestamp falls
	// inside w, in the extractor's four-tuple shape.
	Query(w fail2ban.Window) (fail2ban.Extraction, error)

	// LastProcessed returns the checkpoint instant, zero when unset.
	LastProcessed() (time.Time, error)

	// SetLastProcessed advances the checkpoint.
	SetLastProcessed(t time.Time) error

	// Prune discards events recorded before horizon.
	Prune(horizon time.Time) error

	// Empty reports whether the store holds no events and no
	// checkpoint, i.e. this is a first run.
	Empty() (bool, error)

	// Flush persists the store to durable storage.
	Flush() error

	Close() error
}

// StoredEvent is the durable form of one event; the kind is implied by
// which append log it lives in.
type StoredEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Address   string    `json:"address"`
}

func queryStored(events []StoredEvent, kind fail2ban.Kind, w fail2ban.Window) []fail2ban.Event {
	var out []fail2ban.Event
	for _, ev := range events {
		if w.Contains(ev.Timestamp) {
			out = append(out, fail2ban.Event{Timestamp: ev.Timestamp, Kind: kind, Address: ev.Address})
		}
	}
	return out
}

func pruneStored(events []StoredEvent, horizon time.Time) []StoredEvent {
	kept := events[:0]
	for _, ev := range events {
		if !ev.Timestamp.Before(horizon) {
			kept = append(kept, ev)
		}
	}
	return kept
}
