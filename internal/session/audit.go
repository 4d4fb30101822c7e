package session

import (
	"context"
	"encoding/json"

	"github.com/hivechat/wafleet/internal/bus"
	"github.com/hivechat/wafleet/internal/store"
	"go.uber.org/zap"
)

// Audit event kinds the manager publishes on the "number." namespace. The
// store row's event_type is the kind without the namespace prefix.
const (
	kindQRGenerated      = "number.qr_generated"
	kindConnected        = "number.connected"
	kindAuthFailure      = "number.auth_failure"
	kindDisconnected     = "number.disconnected"
	kindRestartRequested = "number.restart_requested"
)

// Auditor subscribes to number lifecycle events and appends them to the
// append-only connection event log. Writes are best-effort: a failure is
// logged and never blocks or retries the transition that produced it.
type Auditor struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewAuditor creates an auditor.
func NewAuditor(db *store.DB, b *bus.Bus, logger *zap.Logger) *Auditor {
	return &Auditor{db: db, bus: b, logger: logger}
}

// Start subscribes to number.* events and records them until Stop.
func (a *Auditor) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	ch, unsub := a.bus.Subscribe("number.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				a.record(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the auditor.
func (a *Auditor) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *Auditor) record(evt bus.Event) {
	eventType := evt.Kind[len("number."):]

	payload := "{}"
	if evt.Payload != nil {
		if data, err := json.Marshal(evt.Payload); err == nil {
			payload = string(data)
		}
	}

	if err := a.db.AppendConnectionEvent(evt.NumberID, eventType, payload); err != nil {
		a.logger.Error("failed to log connection event",
			zap.String("number_id", evt.NumberID),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}
