package binding

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hivechat/wafleet/internal/store"
	"go.uber.org/zap"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestActiveCachesWithinTTL(t *testing.T) {
	db := testDB(t)
	_ = db.CreateDeployment(&store.BotDeployment{ID: "d1", NumberID: "n1", BotVersionID: "v1", Status: "active", EffectiveAt: 1000})

	c := NewCache(db, time.Hour, zap.NewNop())

	b := c.Active("n1")
	if b == nil || b.BotVersionID != "v1" {
		t.Fatalf("got %v, want v1", b)
	}

	// A newer deployment inside the TTL window must not be visible.
	_ = db.CreateDeployment(&store.BotDeployment{ID: "d2", NumberID: "n1", BotVersionID: "v2", Status: "active", EffectiveAt: 2000})
	if b := c.Active("n1"); b == nil || b.BotVersionID != "v1" {
		t.Errorf("got %v, want cached v1 within TTL", b)
	}
}

func TestActiveRefreshesAfterTTL(t *testing.T) {
	db := testDB(t)
	_ = db.CreateDeployment(&store.BotDeployment{ID: "d1", NumberID: "n1", BotVersionID: "v1", Status: "active", EffectiveAt: 1000})

	c := NewCache(db, 20*time.Millisecond, zap.NewNop())
	if b := c.Active("n1"); b == nil || b.BotVersionID != "v1" {
		t.Fatalf("got %v, want v1", b)
	}

	_ = db.CreateDeployment(&store.BotDeployment{ID: "d2", NumberID: "n1", BotVersionID: "v2", Status: "active", EffectiveAt: 2000})
	time.Sleep(30 * time.Millisecond)

	if b := c.Active("n1"); b == nil || b.BotVersionID != "v2" {
		t.Errorf("got %v, want v2 after TTL expiry", b)
	}
}

func TestActiveCachesNegativeResult(t *testing.T) {
	db := testDB(t)
	c := NewCache(db, time.Hour, zap.NewNop())

	if b := c.Active("unbound"); b != nil {
		t.Fatalf("got %v, want nil for unbound number", b)
	}

	// A deployment created after the negative lookup stays invisible for
	// the TTL.
	_ = db.CreateDeployment(&store.BotDeployment{ID: "d1", NumberID: "unbound", BotVersionID: "v1", Status: "active", EffectiveAt: 1000})
	if b := c.Active("unbound"); b != nil {
		t.Errorf("got %v, want cached nil within TTL", b)
	}
}

func TestInvalidate(t *testing.T) {
	db := testDB(t)
	c := NewCache(db, time.Hour, zap.NewNop())

	if b := c.Active("n1"); b != nil {
		t.Fatalf("got %v, want nil", b)
	}
	_ = db.CreateDeployment(&store.BotDeployment{ID: "d1", NumberID: "n1", BotVersionID: "v1", Status: "active", EffectiveAt: 1000})
	c.Invalidate("n1")

	if b := c.Active("n1"); b == nil || b.BotVersionID != "v1" {
		t.Errorf("got %v, want v1 after invalidation", b)
	}
}
