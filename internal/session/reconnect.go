package session

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// reconnect rebuilds a session after a disconnect: exponential backoff from
// the configured initial delay, capped attempts. When the attempts are
// exhausted the number stays disconnected until reconciliation or an
// operator picks it up.
func (m *Manager) reconnect(ctx context.Context, numberID string) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.cfg.ReconnectBackoff
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxInterval = 2 * time.Minute
	policy.MaxElapsedTime = 0 // attempts are capped by count, not time

	maxAttempts := m.cfg.ReconnectMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(policy.NextBackOff()):
		}
		if m.shuttingDown.Load() {
			return
		}

		num, err := m.db.GetNumber(numberID)
		if err != nil {
			m.logger.Error("failed to load number for reconnect",
				zap.String("number_id", numberID), zap.Error(err))
			continue
		}
		if num == nil {
			m.logger.Warn("number no longer exists, abandoning reconnect",
				zap.String("number_id", numberID))
			return
		}

		m.logger.Info("reconnecting WhatsApp client",
			zap.String("number_id", numberID), zap.Int("attempt", attempt))
		if err := m.ensureSession(ctx, *num); err != nil {
			m.logger.Warn("reconnect attempt failed",
				zap.String("number_id", numberID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}
		return
	}

	m.logger.Error("reconnect attempts exhausted, leaving number disconnected",
		zap.String("number_id", numberID), zap.Int("attempts", maxAttempts))
}
