// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package store

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	vigilerr "github.com/vigil-dev/vigil/pkg/errors"

	"github.com/vigil-dev/vigil/internal/state"
)

// SQLiteStore keeps the single watchdog record in a one-row table. The
// busy-timeout pragma serializes concurrent writers, so no sibling lock
// artifact is needed.
type SQLiteStore struct {
	db  *sql.DB
	dir string
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) dir/watchdog.db and initialises the
// watchdog_state table.
func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, vigilerr.Wrap(err, vigilerr.CodeStoreOpenFailure, "creating data directory", vigilerr.FieldPath(dir))
	}

	dbPath := filepath.Join(dir, "watchdog.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, vigilerr.Wrap(err, vigilerr.CodeStoreOpenFailure, "opening watchdog db", vigilerr.FieldPath(dbPath))
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, vigilerr.Wrap(err, vigilerr.CodeStoreOpenFailure, "pinging watchdog db", vigilerr.FieldPath(dbPath))
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, vigilerr.Wrap(err, vigilerr.CodeStoreOpenFailure, "migrating watchdog db", vigilerr.FieldPath(dbPath))
	}

	return &SQLiteStore{db: db, dir: dir, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS watchdog_state (
	id                       INTEGER PRIMARY KEY CHECK (id = 1),
	last_heartbeat_time      REAL NOT NULL DEFAULT 0,
	last_heartbeat_details   TEXT NOT NULL DEFAULT '{}',
	status                   TEXT NOT NULL DEFAULT 'initializing',
	total_received           INTEGER NOT NULL DEFAULT 0,
	invalid_received         INTEGER NOT NULL DEFAULT 0,
	last_status_notification REAL NOT NULL DEFAULT 0,
	last_alert_notification  REAL NOT NULL DEFAULT 0
);
`
	_, err := db.Exec(ddl)
	return err
}

func (s *SQLiteStore) Load() *state.WatchdogState {
	st := state.New()

	row := s.db.QueryRow(`
SELECT last_heartbeat_time, last_heartbeat_details, status,
       total_received, invalid_received,
       last_status_notification, last_alert_notification
FROM watchdog_state WHERE id = 1`)

	var details string
	var status string
	err := row.Scan(
		&st.LastHeartbeatTime, &details, &status,
		&st.TotalReceived, &st.InvalidReceived,
		&st.LastStatusNotification, &st.LastAlertNotification,
	)
	switch {
	case err == sql.ErrNoRows:
		now := float64(s.now().Unix())
		st.LastHeartbeatTime = now
		st.LastStatusNotification = now
		st.Status = state.StatusWaiting
		if err := s.Save(st); err != nil {
			slog.Error("persisting fresh watchdog state", "error", err)
		}
		return st
	case err != nil:
		slog.Error("reading watchdog state row, starting from zero", "error", err)
		return state.New()
	}

	st.Status = state.Status(status)
	if err := json.Unmarshal([]byte(details), &st.LastHeartbeatDetails); err != nil {
		slog.Warn("parsing heartbeat details, dropping them", "error", err)
		st.LastHeartbeatDetails = nil
	}
	return st
}

func (s *SQLiteStore) Save(st *state.WatchdogState) error {
	details, err := json.Marshal(st.LastHeartbeatDetails)
	if err != nil {
		return vigilerr.Wrap(err, vigilerr.CodeStoreSaveFailure, "marshalling heartbeat details")
	}
	if st.LastHeartbeatDetails == nil {
		details = []byte("{}")
	}

	_, err = s.db.Exec(`
INSERT INTO watchdog_state (
	id, last_heartbeat_time, last_heartbeat_details, status,
	total_received, invalid_received,
	last_status_notification, last_alert_notification
) VALUES (1, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	last_heartbeat_time      = excluded.last_heartbeat_time,
	last_heartbeat_details   = excluded.last_heartbeat_details,
	status                   = excluded.status,
	total_received           = excluded.total_received,
	invalid_received         = excluded.invalid_received,
	last_status_notification = excluded.last_status_notification,
	last_alert_notification  = excluded.last_alert_notification`,
		st.LastHeartbeatTime, string(details), string(st.Status),
		st.TotalReceived, st.InvalidReceived,
		st.LastStatusNotification, st.LastAlertNotification,
	)
	if err != nil {
		return vigilerr.Wrap(err, vigilerr.CodeStoreSaveFailure, "upserting watchdog state")
	}
	return nil
}

func (s *SQLiteStore) ProbeWritable() error {
	probe := filepath.Join(s.dir, ".probe_test")
	if err := os.WriteFile(probe, []byte("probe"), 0o644); err != nil {
		return vigilerr.Wrap(err, vigilerr.CodeStoreSaveFailure, "write probe", vigilerr.FieldPath(probe))
	}
	return os.Remove(probe)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
