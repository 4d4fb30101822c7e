package store

import (
	"database/sql"
	"time"
)

// CreateConversation inserts a conversation row. The caller supplies the id.
func (db *DB) CreateConversation(c *Conversation) error {
	_, err := db.Exec(`
		INSERT INTO conversations (id, number_id, customer_wa_id, bot_version_id, status, opened_at, last_message_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.NumberID, c.CustomerWAID, c.BotVersionID, c.Status, c.OpenedAt, c.LastMessageAt, time.Now().UnixMilli())
	return err
}

// LatestConversation returns the most recently created conversation for a
// (number, counterpart) pair, or nil if none exists. No uniqueness is
// enforced at this layer; newest wins.
func (db *DB) LatestConversation(numberID, customerWAID string) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT id, number_id, customer_wa_id, bot_version_id, status, opened_at, last_message_at
		FROM conversations
		WHERE number_id = ? AND customer_wa_id = ?
		ORDER BY created_at DESC
		LIMIT 1`, numberID, customerWAID).
		Scan(&c.ID, &c.NumberID, &c.CustomerWAID, &c.BotVersionID, &c.Status, &c.OpenedAt, &c.LastMessageAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConversation returns a conversation by id, or nil if absent.
func (db *DB) GetConversation(id string) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT id, number_id, customer_wa_id, bot_version_id, status, opened_at, last_message_at
		FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.NumberID, &c.CustomerWAID, &c.BotVersionID, &c.Status, &c.OpenedAt, &c.LastMessageAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateConversationBotVersion refreshes the bound bot version on an
// existing conversation.
func (db *DB) UpdateConversationBotVersion(id, botVersionID string) error {
	_, err := db.Exec(`UPDATE conversations SET bot_version_id = ? WHERE id = ?`, botVersionID, id)
	return err
}

// TouchConversation bumps the last-activity marker and forces the
// conversation open. Called on every recorded message.
func (db *DB) TouchConversation(id string, lastMessageAt int64) error {
	_, err := db.Exec(`
		UPDATE conversations SET last_message_at = ?, status = 'open' WHERE id = ?`,
		lastMessageAt, id)
	return err
}
