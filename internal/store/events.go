package store

import "time"

// AppendConnectionEvent adds one row to the append-only lifecycle audit
// trail. Rows are never updated or deleted.
func (db *DB) AppendConnectionEvent(numberID, eventType, payload string) error {
	if payload == "" {
		payload = "{}"
	}
	_, err := db.Exec(`
		INSERT INTO number_connection_events (number_id, event_type, payload, timestamp)
		VALUES (?, ?, ?, ?)`,
		numberID, eventType, payload, time.Now().UnixMilli())
	return err
}

// ListConnectionEvents returns the most recent audit rows for a number,
// newest first.
func (db *DB) ListConnectionEvents(numberID string, limit int) ([]ConnectionEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, number_id, event_type, payload, timestamp
		FROM number_connection_events
		WHERE number_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, numberID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []ConnectionEvent
	for rows.Next() {
		var e ConnectionEvent
		if err := rows.Scan(&e.ID, &e.NumberID, &e.EventType, &e.Payload, &e.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
