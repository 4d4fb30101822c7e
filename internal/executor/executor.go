// Package executor defines the bot execution boundary: given an inbound
// message and its conversation context, produce zero or more reply intents.
// The flow-interpretation engine lives behind this interface; the runtime
// ships a placeholder echo implementation.
package executor

import (
	"context"

	"github.com/hivechat/wafleet/internal/wa"
)

// ReplyKindText is the only reply kind the runtime can deliver today. The
// kind tag exists so flow engines can emit richer intents later.
const ReplyKindText = "text"

// Request carries one inbound message with its resolved context.
type Request struct {
	NumberID       string
	ConversationID string
	BotVersionID   string // "" = no bot assigned
	Message        *wa.Message
}

// Reply is one outbound reply intent.
type Reply struct {
	ChatJID string
	Kind    string
	Body    string
}

// Executor turns an inbound message into reply intents.
type Executor interface {
	HandleInbound(ctx context.Context, req *Request) ([]Reply, error)
}
