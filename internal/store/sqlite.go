package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver
	"github.com/telhawk-systems/banwatch/internal/fail2ban"
)

// SQLiteStore persists the event log in a local sqlite database. Every
// write is durable immediately, so Flush is a no-op.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed initializes) the event database at
// dataSourceName.
func OpenSQLite(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open event database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		ts DATETIME NOT NULL,
		address TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
	CREATE TABLE IF NOT EXISTS checkpoint (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		last_processed DATETIME NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize event database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(events []fail2ban.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO events(kind, ts, address) VALUES(?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.Exec(string(ev.Kind), ev.Timestamp.UTC(), ev.Address); err != nil {
			tx.Rollback()
			return fmt.Errorf("append event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Query(w fail2ban.Window) (fail2ban.Extraction, error) {
	rows, err := s.db.Query(
		`SELECT kind, ts, address FROM events WHERE ts >= ? AND ts <= ? ORDER BY id`,
		w.Start.UTC(), w.End.UTC(),
	)
	if err != nil {
		return fail2ban.Extraction{}, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out fail2ban.Extraction
	for rows.Next() {
		var (
			kind    string
			ts      time.Time
			address string
		)
		if err := rows.Scan(&kind, &ts, &address); err != nil {
			return fail2ban.Extraction{}, fmt.Errorf("scan event: %w", err)
		}
		ev := fail2ban.Event{Timestamp: ts, Kind: fail2ban.Kind(kind), Address: address}
		switch ev.Kind {
		case fail2ban.KindBan:
			out.Bans = append(out.Bans, ev)
		case fail2ban.KindUnban:
			out.Unbans = append(out.Unbans, ev)
		case fail2ban.KindFound:
			out.Found = append(out.Found, ev)
			out.FailedAttempts++
		}
	}
	if err := rows.Err(); err != nil {
		return fail2ban.Extraction{}, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) LastProcessed() (time.Time, error) {
	var ts time.Time
	err := s.db.QueryRow(`SELECT last_processed FROM checkpoint WHERE id = 1`).Scan(&ts)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read checkpoint: %w", err)
	}
	return ts, nil
}

func (s *SQLiteStore) SetLastProcessed(t time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO checkpoint(id, last_processed) VALUES(1, ?)
		 ON CONFLICT(id) DO UPDATE SET last_processed = excluded.last_processed`,
		t.UTC(),
	)
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Prune(horizon time.Time) error {
	if _, err := s.db.Exec(`DELETE FROM events WHERE ts < ?`, horizon.UTC()); err != nil {
		return fmt.Errorf("prune events: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Empty() (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return false, fmt.Errorf("count events: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	last, err := s.LastProcessed()
	if err != nil {
		return false, err
	}
	return last.IsZero(), nil
}

func (s *SQLiteStore) Flush() error {
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
