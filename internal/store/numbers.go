package store

import (
	"database/sql"
	"strings"
	"time"
)

// CreateNumber inserts a number row. The runtime never calls this in
// production (registration is external); it exists for tooling and tests.
func (db *DB) CreateNumber(n *Number) error {
	_, err := db.Exec(`
		INSERT INTO numbers (id, phone_number, status, last_connected_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.PhoneNumber, n.Status, n.LastConnectedAt, time.Now().UnixMilli())
	return err
}

// GetNumber returns a number by id, or nil if it does not exist.
func (db *DB) GetNumber(id string) (*Number, error) {
	var n Number
	err := db.QueryRow(`
		SELECT id, phone_number, status, last_connected_at
		FROM numbers WHERE id = ?`, id).
		Scan(&n.ID, &n.PhoneNumber, &n.Status, &n.LastConnectedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ListNumbersByStatus returns all numbers whose status is in the given set.
func (db *DB) ListNumbersByStatus(statuses ...string) ([]Number, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = s
	}
	rows, err := db.Query(`
		SELECT id, phone_number, status, last_connected_at
		FROM numbers WHERE status IN (`+placeholders+`)
		ORDER BY created_at ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var numbers []Number
	for rows.Next() {
		var n Number
		if err := rows.Scan(&n.ID, &n.PhoneNumber, &n.Status, &n.LastConnectedAt); err != nil {
			return nil, err
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

// UpdateNumberStatus sets a number's status. last_connected_at is stamped
// only when the new status is connected and cleared otherwise.
func (db *DB) UpdateNumberStatus(id, status string) error {
	connectedAt := int64(0)
	if status == NumberConnected {
		connectedAt = time.Now().UnixMilli()
	}
	_, err := db.Exec(`
		UPDATE numbers SET status = ?, last_connected_at = ? WHERE id = ?`,
		status, connectedAt, id)
	return err
}
