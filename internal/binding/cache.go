// Package binding caches the number → active bot deployment mapping so the
// message pipeline does not hit the store on every single message.
package binding

import (
	"sync"
	"time"

	"github.com/hivechat/wafleet/internal/store"
	"go.uber.org/zap"
)

// Binding is the currently active bot deployment for a number.
type Binding struct {
	DeploymentID string
	BotVersionID string // "" = deployment without a bot version
}

type entry struct {
	binding   *Binding
	expiresAt time.Time
}

// Cache is a TTL cache over number_bot_deployments. Negative results (no
// active deployment) and query errors are cached for the same TTL; bot
// version changes become visible within one TTL window.
type Cache struct {
	db     *store.DB
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]entry
}

// NewCache creates a cache with the given TTL.
func NewCache(db *store.DB, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		db:      db,
		ttl:     ttl,
		logger:  logger,
		entries: make(map[string]entry),
	}
}

// Active returns the active binding for a number, nil when none is bound.
// A store error is treated the same as "no active binding" but logged.
func (c *Cache) Active(numberID string) *Binding {
	c.mu.Lock()
	if e, ok := c.entries[numberID]; ok && time.Now().Before(e.expiresAt) {
		c.mu.Unlock()
		return e.binding
	}
	c.mu.Unlock()

	var binding *Binding
	dep, err := c.db.ActiveDeployment(numberID)
	if err != nil {
		c.logger.Error("failed to load bot deployment",
			zap.String("number_id", numberID), zap.Error(err))
	} else if dep != nil {
		binding = &Binding{DeploymentID: dep.ID, BotVersionID: dep.BotVersionID}
	}

	c.mu.Lock()
	c.entries[numberID] = entry{binding: binding, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return binding
}

// Invalidate drops the cached entry for a number, forcing the next lookup
// to hit the store.
func (c *Cache) Invalidate(numberID string) {
	c.mu.Lock()
	delete(c.entries, numberID)
	c.mu.Unlock()
}
