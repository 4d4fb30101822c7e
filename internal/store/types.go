package store

// Number status values the lifecycle manager transitions between. Any other
// string in the column is tolerated and simply never synced.
const (
	NumberPendingQR    = "pending_qr"
	NumberConnected    = "connected"
	NumberDisconnected = "disconnected"
)

// Number is a registered phone number. Rows are created externally; the
// runtime only observes and updates them.
type Number struct {
	ID              string
	PhoneNumber     string
	Status          string
	LastConnectedAt int64 // unix millis, 0 = never
}

// NumberSession carries the transient authentication handshake state for a
// number. QRToken is only meaningful while SessionState is pending_qr.
type NumberSession struct {
	NumberID     string
	SessionState string
	QRToken      string
	QRExpiresAt  int64 // unix millis, 0 = none
	LastError    string
}

// ConnectionEvent is one row of the append-only lifecycle audit trail.
type ConnectionEvent struct {
	ID        int64
	NumberID  string
	EventType string
	Payload   string // JSON
	Timestamp int64
}

// Conversation groups messages exchanged between a number and one
// counterpart WhatsApp id.
type Conversation struct {
	ID            string
	NumberID      string
	CustomerWAID  string
	BotVersionID  string // "" = no bot assigned
	Status        string
	OpenedAt      int64
	LastMessageAt int64
}

// MessageRecord is one durable message row. Immutable once inserted.
type MessageRecord struct {
	ID             string
	ConversationID string
	Direction      string // inbound | outbound
	MessageType    string
	Payload        string // JSON snapshot of the protocol message
	SentAt         int64
	DeliveryStatus string
}

// BotDeployment binds a number to a bot version. Read-only for the runtime.
type BotDeployment struct {
	ID           string
	NumberID     string
	BotVersionID string // "" = deployment without a bot version
	Status       string
	EffectiveAt  int64
}
