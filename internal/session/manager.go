// Package session owns the WhatsApp client fleet: one live client per
// number, driven by a per-number state machine and reconciled against the
// store on a fixed interval.
package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hivechat/wafleet/internal/bus"
	"github.com/hivechat/wafleet/internal/convo"
	"github.com/hivechat/wafleet/internal/executor"
	"github.com/hivechat/wafleet/internal/store"
	"github.com/hivechat/wafleet/internal/wa"
	"go.uber.org/zap"
)

// Config tunes the lifecycle manager.
type Config struct {
	// DataDir roots the per-number session directories. Empty disables the
	// qr.png artifact.
	DataDir string
	// QRExpiry is the lifetime persisted with each QR token.
	QRExpiry time.Duration
	// PollInterval is the reconciliation tick interval.
	PollInterval time.Duration
	// ReconnectBackoff is the initial delay before a reconnect attempt.
	ReconnectBackoff time.Duration
	// ReconnectMaxAttempts caps consecutive reconnect attempts before the
	// number is left disconnected for reconciliation to pick up.
	ReconnectMaxAttempts int
	// ReplyQueueSize bounds the executor dispatch queue.
	ReplyQueueSize int
}

type clientEntry struct {
	client wa.Client
	quit   chan struct{}
}

// Manager creates, monitors, reconnects and tears down per-number client
// sessions. The client registry is owned by the instance; access is guarded
// by a mutex because client events arrive on independent goroutines.
type Manager struct {
	cfg      Config
	db       *store.DB
	bus      *bus.Bus
	machine  *Machine
	resolver *convo.Resolver
	recorder *convo.Recorder
	factory  wa.Factory
	logger   *zap.Logger

	dispatcher *dispatcher

	mu      sync.Mutex
	clients map[string]clientEntry

	shuttingDown atomic.Bool
	tickMu       sync.Mutex
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewManager wires the lifecycle manager.
func NewManager(
	cfg Config,
	db *store.DB,
	b *bus.Bus,
	resolver *convo.Resolver,
	recorder *convo.Recorder,
	exec executor.Executor,
	factory wa.Factory,
	logger *zap.Logger,
) *Manager {
	m := &Manager{
		cfg:      cfg,
		db:       db,
		bus:      b,
		machine:  NewMachine(b),
		resolver: resolver,
		recorder: recorder,
		factory:  factory,
		logger:   logger,
		clients:  make(map[string]clientEntry),
	}
	m.dispatcher = newDispatcher(exec, m.clientFor, cfg.ReplyQueueSize, logger)
	return m
}

// Start runs the initial reconciliation, then ticks on the configured
// interval until the context is canceled or Shutdown is called.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.dispatcher.start(ctx)
	m.SyncNumbers(ctx)

	go func() {
		ticker := time.NewTicker(m.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.SyncNumbers(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// SyncNumbers reconciles the client registry against the store: every
// number persisted as pending_qr — or connected but with no live client,
// as happens after a restart — gets a session. A tick that overlaps a
// still-running one is skipped. Fetch errors log and no-op; the next tick
// retries.
func (m *Manager) SyncNumbers(ctx context.Context) {
	if m.shuttingDown.Load() {
		return
	}
	if !m.tickMu.TryLock() {
		m.logger.Debug("reconciliation tick still in progress, skipping")
		return
	}
	defer m.tickMu.Unlock()

	numbers, err := m.db.ListNumbersByStatus(store.NumberPendingQR, store.NumberConnected)
	if err != nil {
		m.logger.Error("failed to fetch numbers", zap.Error(err))
		return
	}

	for _, num := range numbers {
		if m.clientFor(num.ID) != nil {
			continue
		}
		if err := m.ensureSession(ctx, num); err != nil {
			// Reconciliation retries on the next tick.
			m.logger.Error("failed to ensure session",
				zap.String("number_id", num.ID), zap.Error(err))
		}
	}
}

// ensureSession constructs and starts a client for the number unless one is
// already tracked.
func (m *Manager) ensureSession(ctx context.Context, num store.Number) error {
	if m.shuttingDown.Load() {
		return nil
	}

	client, err := m.factory(ctx, num.ID)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	entry := clientEntry{client: client, quit: make(chan struct{})}
	m.mu.Lock()
	if _, exists := m.clients[num.ID]; exists {
		m.mu.Unlock()
		client.Destroy()
		return nil
	}
	m.clients[num.ID] = entry
	m.mu.Unlock()

	m.logger.Info("initialising WhatsApp client",
		zap.String("number_id", num.ID), zap.String("phone_number", num.PhoneNumber))

	m.wg.Add(1)
	go m.runClient(ctx, num.ID, entry)

	if err := client.Start(ctx); err != nil {
		m.logger.Error("failed to initialise WhatsApp client",
			zap.String("number_id", num.ID), zap.Error(err))
		m.removeClient(num.ID)
		client.Destroy()
		return fmt.Errorf("start client: %w", err)
	}
	return nil
}

// runClient consumes one client's event stream. Events for a single number
// are handled in order; different numbers interleave freely.
func (m *Manager) runClient(ctx context.Context, numberID string, entry clientEntry) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-entry.quit:
			return
		case evt := <-entry.client.Events():
			if done := m.handleEvent(ctx, numberID, entry, evt); done {
				return
			}
		}
	}
}

// handleEvent translates one client event into store writes and state
// transitions. Returns true when the client instance is finished.
func (m *Manager) handleEvent(ctx context.Context, numberID string, entry clientEntry, evt wa.Event) bool {
	switch evt.Type {
	case wa.EventQR:
		m.handleQR(numberID, evt.QRToken)
	case wa.EventReady:
		m.handleReady(numberID)
	case wa.EventAuthFailure:
		m.handleAuthFailure(numberID, evt.Reason)
	case wa.EventDisconnected:
		m.handleDisconnected(ctx, numberID, entry, evt.Reason)
		return true
	case wa.EventMessage:
		m.handleMessage(numberID, evt.Message)
	}
	return false
}

func (m *Manager) handleQR(numberID, token string) {
	m.logger.Info("QR generated", zap.String("number_id", numberID))

	err := m.db.UpsertSession(&store.NumberSession{
		NumberID:     numberID,
		SessionState: store.NumberPendingQR,
		QRToken:      token,
		QRExpiresAt:  time.Now().Add(m.cfg.QRExpiry).UnixMilli(),
	})
	if err != nil {
		m.logger.Error("failed to persist QR",
			zap.String("number_id", numberID), zap.Error(err))
		return
	}

	if err := m.db.UpdateNumberStatus(numberID, store.NumberPendingQR); err != nil {
		m.logger.Error("failed to update number status",
			zap.String("number_id", numberID), zap.Error(err))
	}
	m.transition(numberID, PendingQR)
	m.publish(kindQRGenerated, numberID, nil)

	if m.cfg.DataDir != "" {
		if err := wa.WriteQRArtifact(filepath.Join(m.cfg.DataDir, numberID), token); err != nil {
			m.logger.Warn("failed to write QR artifact",
				zap.String("number_id", numberID), zap.Error(err))
		}
	}
}

func (m *Manager) handleReady(numberID string) {
	m.logger.Info("WhatsApp client ready", zap.String("number_id", numberID))

	if err := m.db.UpdateNumberStatus(numberID, store.NumberConnected); err != nil {
		m.logger.Error("failed to update number status",
			zap.String("number_id", numberID), zap.Error(err))
	}
	// The QR token is stale once authenticated; clear it.
	if err := m.db.UpsertSession(&store.NumberSession{
		NumberID:     numberID,
		SessionState: store.NumberConnected,
	}); err != nil {
		m.logger.Error("failed to update session record",
			zap.String("number_id", numberID), zap.Error(err))
	}
	m.transition(numberID, Connected)
	m.publish(kindConnected, numberID, nil)
}

func (m *Manager) handleAuthFailure(numberID, reason string) {
	m.logger.Error("authentication failure",
		zap.String("number_id", numberID), zap.String("message", reason))

	if err := m.db.UpdateNumberStatus(numberID, store.NumberDisconnected); err != nil {
		m.logger.Error("failed to update number status",
			zap.String("number_id", numberID), zap.Error(err))
	}
	if err := m.db.UpsertSession(&store.NumberSession{
		NumberID:     numberID,
		SessionState: store.NumberDisconnected,
		LastError:    reason,
	}); err != nil {
		m.logger.Error("failed to update session record",
			zap.String("number_id", numberID), zap.Error(err))
	}
	m.transition(numberID, Disconnected)
	m.publish(kindAuthFailure, numberID, map[string]string{"message": reason})
}

func (m *Manager) handleDisconnected(ctx context.Context, numberID string, entry clientEntry, reason string) {
	m.logger.Warn("WhatsApp client disconnected",
		zap.String("number_id", numberID), zap.String("reason", reason))

	if err := m.db.UpdateNumberStatus(numberID, store.NumberDisconnected); err != nil {
		m.logger.Error("failed to update number status",
			zap.String("number_id", numberID), zap.Error(err))
	}
	m.transition(numberID, Disconnected)
	m.publish(kindDisconnected, numberID, map[string]string{"reason": reason})

	m.removeClient(numberID)
	entry.client.Destroy()

	if !m.shuttingDown.Load() {
		go m.reconnect(ctx, numberID)
	}
}

func (m *Manager) handleMessage(numberID string, msg *wa.Message) {
	if msg == nil {
		return
	}
	direction := convo.Inbound
	if msg.FromMe {
		direction = convo.Outbound
	}

	counterpart := counterparty(msg, direction)
	if counterpart == "" {
		m.logger.Warn("unable to determine counterparty for message",
			zap.String("number_id", numberID),
			zap.String("message_id", msg.ID),
			zap.String("direction", string(direction)))
		return
	}

	meta, err := m.resolver.Resolve(numberID, counterpart)
	if err != nil {
		m.logger.Error("failed to resolve conversation",
			zap.String("number_id", numberID),
			zap.String("customer_wa_id", counterpart),
			zap.Error(err))
		return
	}

	if err := m.recorder.Record(meta.ConversationID, direction, msg); err != nil {
		m.logger.Error("failed to persist message",
			zap.String("number_id", numberID),
			zap.String("message_id", msg.ID),
			zap.String("direction", string(direction)),
			zap.Error(err))
		return
	}

	if direction == convo.Inbound {
		m.dispatcher.enqueue(replyJob{numberID: numberID, meta: meta, message: msg})
	}
}

// counterparty picks the conversation counterpart: the sender for inbound
// (author for group messages), the recipient for outbound.
func counterparty(msg *wa.Message, direction convo.Direction) string {
	if direction == convo.Inbound {
		if msg.From != "" {
			return msg.From
		}
		return msg.Author
	}
	if msg.To != "" {
		return msg.To
	}
	return msg.From
}

// RestartSession tears down any live client for the number and flags it
// pending_qr so the next reconciliation rebuilds it from scratch.
func (m *Manager) RestartSession(numberID string) error {
	m.mu.Lock()
	entry, ok := m.clients[numberID]
	if ok {
		delete(m.clients, numberID)
	}
	m.mu.Unlock()

	if ok {
		close(entry.quit)
		entry.client.Destroy()
	}
	m.machine.Forget(numberID)
	m.publish(kindRestartRequested, numberID, nil)

	if err := m.db.UpdateNumberStatus(numberID, store.NumberPendingQR); err != nil {
		return fmt.Errorf("reset number status: %w", err)
	}
	if err := m.db.UpsertSession(&store.NumberSession{
		NumberID:     numberID,
		SessionState: store.NumberPendingQR,
	}); err != nil {
		m.logger.Warn("failed to reset session record",
			zap.String("number_id", numberID), zap.Error(err))
	}
	return nil
}

// Shutdown suppresses reconnects, destroys every tracked client and clears
// the registry. Idempotent.
func (m *Manager) Shutdown() {
	if !m.shuttingDown.CompareAndSwap(false, true) {
		return
	}
	m.logger.Info("shutting down session manager")
	if m.cancel != nil {
		m.cancel()
	}

	m.mu.Lock()
	entries := m.clients
	m.clients = make(map[string]clientEntry)
	m.mu.Unlock()

	for numberID, entry := range entries {
		close(entry.quit)
		entry.client.Destroy()
		m.machine.Forget(numberID)
		m.logger.Info("destroyed WhatsApp client", zap.String("number_id", numberID))
	}
	m.wg.Wait()
}

// State reports the number's lifecycle state.
func (m *Manager) State(numberID string) State {
	return m.machine.Current(numberID)
}

func (m *Manager) clientFor(numberID string) wa.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.clients[numberID]; ok {
		return entry.client
	}
	return nil
}

func (m *Manager) removeClient(numberID string) {
	m.mu.Lock()
	entry, ok := m.clients[numberID]
	if ok {
		delete(m.clients, numberID)
	}
	m.mu.Unlock()
	if ok {
		close(entry.quit)
	}
	m.machine.Forget(numberID)
}

func (m *Manager) transition(numberID string, to State) {
	if err := m.machine.Transition(numberID, to); err != nil {
		m.logger.Debug("state transition rejected", zap.Error(err))
	}
}

func (m *Manager) publish(kind, numberID string, payload any) {
	m.bus.Publish(bus.Event{
		Kind:      kind,
		NumberID:  numberID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
