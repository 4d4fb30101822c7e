package convo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hivechat/wafleet/internal/bus"
	"github.com/hivechat/wafleet/internal/store"
	"github.com/hivechat/wafleet/internal/wa"
	"go.uber.org/zap"
)

// Direction of a recorded message.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// snapshot is the serialized protocol message stored in the payload column.
type snapshot struct {
	ID        string `json:"id,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Author    string `json:"author,omitempty"`
	PushName  string `json:"pushName,omitempty"`
	Body      string `json:"body,omitempty"`
	Type      string `json:"type,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	FromMe    bool   `json:"fromMe"`
}

// Recorder serializes protocol messages into durable history rows.
type Recorder struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
}

// NewRecorder creates a recorder.
func NewRecorder(db *store.DB, b *bus.Bus, logger *zap.Logger) *Recorder {
	return &Recorder{db: db, bus: b, logger: logger}
}

// Record inserts one message row and bumps the parent conversation's
// last-activity marker. Delivery status is fixed by direction: inbound rows
// are delivered, outbound rows stay pending (no ack tracking). A failed
// conversation touch is logged but does not fail the record.
func (r *Recorder) Record(conversationID string, direction Direction, msg *wa.Message) error {
	sentAt := time.Now().UnixMilli()
	if !msg.Timestamp.IsZero() {
		sentAt = msg.Timestamp.UnixMilli()
	}

	msgType := msg.Type
	if msgType == "" {
		msgType = "text"
	}

	deliveryStatus := "delivered"
	if direction == Outbound {
		deliveryStatus = "pending"
	}

	// A zero protocol timestamp is omitted from the snapshot; sent_at
	// already carries the wall-clock fallback.
	var snapTS int64
	if !msg.Timestamp.IsZero() {
		snapTS = msg.Timestamp.Unix()
	}

	payload, err := json.Marshal(snapshot{
		ID:        msg.ID,
		From:      msg.From,
		To:        msg.To,
		Author:    msg.Author,
		PushName:  msg.PushName,
		Body:      msg.Body,
		Type:      msg.Type,
		Timestamp: snapTS,
		FromMe:    msg.FromMe,
	})
	if err != nil {
		return fmt.Errorf("serialize message: %w", err)
	}

	record := &store.MessageRecord{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Direction:      string(direction),
		MessageType:    msgType,
		Payload:        string(payload),
		SentAt:         sentAt,
		DeliveryStatus: deliveryStatus,
	}
	if err := r.db.InsertMessage(record); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if err := r.db.TouchConversation(conversationID, sentAt); err != nil {
		r.logger.Error("failed to update conversation metadata",
			zap.String("conversation_id", conversationID), zap.Error(err))
	}

	r.bus.Publish(bus.Event{
		Kind:      "message.recorded",
		Timestamp: time.Now(),
		Payload: map[string]string{
			"conversation_id": conversationID,
			"message_id":      record.ID,
			"direction":       string(direction),
		},
	})

	return nil
}
