// Package convo resolves conversations and records message history.
package convo

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hivechat/wafleet/internal/binding"
	"github.com/hivechat/wafleet/internal/store"
	"go.uber.org/zap"
)

// Meta identifies a resolved conversation for the message pipeline.
type Meta struct {
	ConversationID string
	BotVersionID   string // "" = no bot assigned
	CustomerWAID   string
}

// Resolver finds or creates the conversation for a (number, counterpart)
// pair and keeps its bot-version binding in sync with the active
// deployment.
type Resolver struct {
	db       *store.DB
	bindings *binding.Cache
	logger   *zap.Logger
}

// NewResolver creates a resolver.
func NewResolver(db *store.DB, bindings *binding.Cache, logger *zap.Logger) *Resolver {
	return &Resolver{db: db, bindings: bindings, logger: logger}
}

// Resolve returns the most recently created conversation for the pair, or
// creates one. The conversation's bot version is refreshed opportunistically
// when the active deployment changed; a failed refresh is logged, not fatal.
func (r *Resolver) Resolve(numberID, customerWAID string) (*Meta, error) {
	bound := r.bindings.Active(numberID)

	conv, err := r.db.LatestConversation(numberID, customerWAID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	if conv != nil {
		version := conv.BotVersionID
		if bound != nil && bound.BotVersionID != "" && conv.BotVersionID != bound.BotVersionID {
			if err := r.db.UpdateConversationBotVersion(conv.ID, bound.BotVersionID); err != nil {
				r.logger.Warn("failed to refresh conversation bot binding",
					zap.String("number_id", numberID),
					zap.String("conversation_id", conv.ID),
					zap.Error(err))
			} else {
				version = bound.BotVersionID
			}
		}
		if version == "" && bound != nil {
			version = bound.BotVersionID
		}
		return &Meta{ConversationID: conv.ID, BotVersionID: version, CustomerWAID: customerWAID}, nil
	}

	now := time.Now().UnixMilli()
	created := &store.Conversation{
		ID:            uuid.NewString(),
		NumberID:      numberID,
		CustomerWAID:  customerWAID,
		Status:        "open",
		OpenedAt:      now,
		LastMessageAt: now,
	}
	if bound != nil {
		created.BotVersionID = bound.BotVersionID
	}
	if err := r.db.CreateConversation(created); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	return &Meta{ConversationID: created.ID, BotVersionID: created.BotVersionID, CustomerWAID: customerWAID}, nil
}
