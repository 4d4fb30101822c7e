package store

import "database/sql"

// CreateDeployment inserts a deployment binding. Publishing happens in the
// admin layer; the runtime reads these rows only.
func (db *DB) CreateDeployment(d *BotDeployment) error {
	_, err := db.Exec(`
		INSERT INTO number_bot_deployments (id, number_id, bot_version_id, status, effective_at)
		VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.NumberID, d.BotVersionID, d.Status, d.EffectiveAt)
	return err
}

// ActiveDeployment returns the most recent active deployment for a number
// (highest effective_at wins), or nil if none exists.
func (db *DB) ActiveDeployment(numberID string) (*BotDeployment, error) {
	var d BotDeployment
	err := db.QueryRow(`
		SELECT id, number_id, bot_version_id, status, effective_at
		FROM number_bot_deployments
		WHERE number_id = ? AND status = 'active'
		ORDER BY effective_at DESC
		LIMIT 1`, numberID).
		Scan(&d.ID, &d.NumberID, &d.BotVersionID, &d.Status, &d.EffectiveAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}
