// Package iqdb persists capture-session records and periodic rate snapshots
// to SQLite so field deployments can be audited after the fact.
package iqdb

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// IQDB wraps the SQLite handle holding capture telemetry.
type IQDB struct {
	*sql.DB
}

// NewIQDB opens (or creates) the database at path and ensures the schema.
func NewIQDB(path string) (*IQDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS capture_sessions (
			session_id        INTEGER PRIMARY KEY AUTOINCREMENT,
			device            TEXT,
			udp_port          BIGINT,
			wire_format       TEXT,
			channels          BIGINT,
			started_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			stopped_at        TIMESTAMP,
			packets           BIGINT,
			bytes             BIGINT,
			overflows         BIGINT,
			samples           BIGINT
		);
		CREATE TABLE IF NOT EXISTS capture_stats (
			session_id        BIGINT,
			packets_per_sec   DOUBLE,
			mb_per_sec        DOUBLE,
			samples_per_sec   DOUBLE,
			overflows         BIGINT,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(session_id) REFERENCES capture_sessions(session_id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &IQDB{db}, nil
}

// RecordSessionStart inserts a new capture session row and returns its id.
func (db *IQDB) RecordSessionStart(device string, udpPort int, wireFormat string, channels int) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO capture_sessions (device, udp_port, wire_format, channels) VALUES (?, ?, ?, ?)`,
		device, udpPort, wireFormat, channels,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record session start: %w", err)
	}
	return res.LastInsertId()
}

// RecordSessionStop closes out a session row with its lifetime totals.
func (db *IQDB) RecordSessionStop(sessionID int64, packets, bytes, overflows, samples int64) error {
	_, err := db.Exec(
		`UPDATE capture_sessions
		 SET stopped_at = ?, packets = ?, bytes = ?, overflows = ?, samples = ?
		 WHERE session_id = ?`,
		time.Now().UTC(), packets, bytes, overflows, samples, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to record session stop: %w", err)
	}
	return nil
}

// RecordStatsSnapshot appends one periodic rate snapshot for a session.
func (db *IQDB) RecordStatsSnapshot(sessionID int64, packetsPerSec, mbPerSec, samplesPerSec float64, overflows int64) error {
	_, err := db.Exec(
		`INSERT INTO capture_stats (session_id, packets_per_sec, mb_per_sec, samples_per_sec, overflows)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, packetsPerSec, mbPerSec, samplesPerSec, overflows,
	)
	if err != nil {
		return fmt.Errorf("failed to record stats snapshot: %w", err)
	}
	return nil
}

// SessionCount returns the number of recorded capture sessions.
func (db *IQDB) SessionCount() (int64, error) {
	var n int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM capture_sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// SnapshotCount returns the number of stats snapshots recorded for a session.
func (db *IQDB) SnapshotCount(sessionID int64) (int64, error) {
	var n int64
	err := db.QueryRow(`SELECT COUNT(*) FROM capture_stats WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return n, nil
}
