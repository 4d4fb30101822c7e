// Package wa wraps the whatsmeow client behind a small event-stream
// interface so the session lifecycle manager can be driven by fakes.
package wa

import (
	"context"
	"time"
)

// EventType enumerates the lifecycle and message events a client emits.
type EventType string

const (
	EventQR           EventType = "qr"
	EventReady        EventType = "ready"
	EventAuthFailure  EventType = "auth_failure"
	EventDisconnected EventType = "disconnected"
	EventMessage      EventType = "message"
)

// Message is a normalized protocol message. Field semantics follow the
// wire client: From is the chat the message arrived in (the group JID for
// group chats, with Author carrying the participant), To is the recipient
// chat for messages sent from this number.
type Message struct {
	ID        string
	ChatJID   string
	From      string
	To        string
	Author    string
	PushName  string
	Body      string
	Type      string
	Timestamp time.Time
	FromMe    bool
}

// Event is one item of a client's event stream.
type Event struct {
	Type    EventType
	QRToken string
	Reason  string
	Message *Message
}

// Client is one live WhatsApp connection bound to a single number.
type Client interface {
	// Start opens the connection and begins emitting events. For an
	// unauthenticated credential store it also starts the QR pairing flow.
	Start(ctx context.Context) error
	// Events returns the client's event stream. The channel is never
	// closed; consumers stop reading after Destroy.
	Events() <-chan Event
	// SendText delivers a plain-text message and returns the server id.
	SendText(ctx context.Context, chatJID, body string) (string, error)
	// Destroy tears the connection down. Safe to call more than once.
	Destroy()
}

// Factory constructs a client for a number. The lifecycle manager owns the
// returned client until it is destroyed.
type Factory func(ctx context.Context, numberID string) (Client, error)
