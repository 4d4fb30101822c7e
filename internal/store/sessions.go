package store

import (
	"database/sql"
	"time"
)

// UpsertSession inserts or updates the handshake state for a number
// (idempotent on number_id).
func (db *DB) UpsertSession(s *NumberSession) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO number_sessions (number_id, session_state, qr_token, qr_expires_at, last_error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(number_id) DO UPDATE SET
			session_state = excluded.session_state,
			qr_token = excluded.qr_token,
			qr_expires_at = excluded.qr_expires_at,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at`,
		s.NumberID, s.SessionState, s.QRToken, s.QRExpiresAt, s.LastError, now)
	return err
}

// GetSession returns the session record for a number, or nil if absent.
func (db *DB) GetSession(numberID string) (*NumberSession, error) {
	var s NumberSession
	err := db.QueryRow(`
		SELECT number_id, session_state, qr_token, qr_expires_at, last_error
		FROM number_sessions WHERE number_id = ?`, numberID).
		Scan(&s.NumberID, &s.SessionState, &s.QRToken, &s.QRExpiresAt, &s.LastError)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
