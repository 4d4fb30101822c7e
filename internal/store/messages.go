package store

import "time"

// InsertMessage appends a durable message row. Rows are immutable; the
// parent conversation's last_message_at is the only derived mutation and is
// handled separately by TouchConversation.
func (db *DB) InsertMessage(m *MessageRecord) error {
	_, err := db.Exec(`
		INSERT INTO messages (id, conversation_id, direction, message_type, payload, sent_at, delivery_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Direction, m.MessageType, m.Payload, m.SentAt, m.DeliveryStatus, time.Now().UnixMilli())
	return err
}

// ListMessages returns messages for a conversation, oldest first.
func (db *DB) ListMessages(conversationID string, limit int) ([]MessageRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, conversation_id, direction, message_type, payload, sent_at, delivery_status
		FROM messages
		WHERE conversation_id = ?
		ORDER BY sent_at ASC
		LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []MessageRecord
	for rows.Next() {
		var m MessageRecord
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Direction, &m.MessageType, &m.Payload, &m.SentAt, &m.DeliveryStatus); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
