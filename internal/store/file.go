package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/telhawk-systems/banwatch/internal/fail2ban"
)

// snapshotVersion is bumped whenever the snapshot schema changes; old
// or unknown versions are discarded on load rather than misread.
const snapshotVersion = 1

// snapshot is the serialized form of the file-backed store.
type snapshot struct {
	Version       int           `json:"version"`
	BanEvents     []StoredEvent `json:"ban_events"`
	UnbanEvents   []StoredEvent `json:"unban_events"`
	FoundEvents   []StoredEvent `json:"found_events"`
	LastProcessed time.Time     `json:"last_processed"`
}

// FileStore keeps the event log in memory and persists it as a
// versioned JSON snapshot. A missing or corrupt snapshot at open time
// means "start fresh", never a hard failure.
type FileStore struct {
	path   string
	logger *slog.Logger
	snap   snapshot
}

// OpenFile loads the snapshot at path, or starts fresh when the file is
// missing or unreadable.
func OpenFile(path string, logger *slog.Logger) *FileStore {
	s := &FileStore{
		path:   path,
		logger: logger,
		snap:   snapshot{Version: snapshotVersion},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("event store unreadable, starting fresh", "path", path, "error", err)
		}
		return s
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warn("event store corrupt, starting fresh", "path", path, "error", err)
		return s
	}
	if snap.Version != snapshotVersion {
		logger.Warn("event store version mismatch, starting fresh",
			"path", path, "got", snap.Version, "want", snapshotVersion)
		return s
	}

	s.snap = snap
	return s
}

func (s *FileStore) Append(events []fail2ban.Event) error {
	for _, ev := range events {
		stored := StoredEvent{Timestamp: ev.Timestamp, Address: ev.Address}
		switch ev.Kind {
		case fail2ban.KindBan:
			s.snap.BanEvents = append(s.snap.BanEvents, stored)
		case fail2ban.KindUnban:
			s.snap.UnbanEvents = append(s.snap.UnbanEvents, stored)
		case fail2ban.KindFound:
			s.snap.FoundEvents = append(s.snap.FoundEvents, stored)
		}
	}
	return nil
}

func (s *FileStore) Query(w fail2ban.Window) (fail2ban.Extraction, error) {
	found := queryStored(s.snap.FoundEvents, fail2ban.KindFound, w)
	return fail2ban.Extraction{
		Bans:           queryStored(s.snap.BanEvents, fail2ban.KindBan, w),
		Unbans:         queryStored(s.snap.UnbanEvents, fail2ban.KindUnban, w),
		Found:          found,
		FailedAttempts: len(found),
	}, nil
}

func (s *FileStore) LastProcessed() (time.Time, error) {
	return s.snap.LastProcessed, nil
}

func (s *FileStore) SetLastProcessed(t time.Time) error {
	s.snap.LastProcessed = t
	return nil
}

func (s *FileStore) Prune(horizon time.Time) error {
	s.snap.BanEvents = pruneStored(s.snap.BanEvents, horizon)
	s.snap.UnbanEvents = pruneStored(s.snap.UnbanEvents, horizon)
	s.snap.FoundEvents = pruneStored(s.snap.FoundEvents, horizon)
	return nil
}

func (s *FileStore) Empty() (bool, error) {
	return len(s.snap.BanEvents) == 0 &&
		len(s.snap.UnbanEvents) == 0 &&
		len(s.snap.FoundEvents) == 0 &&
		s.snap.LastProcessed.IsZero(), nil
}

// Flush writes the snapshot to a temp file and renames it into place,
// so a crash mid-write never leaves a truncated snapshot behind.
func (s *FileStore) Flush() error {
	data, err := json.Marshal(s.snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
