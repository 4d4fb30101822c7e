package convo

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hivechat/wafleet/internal/binding"
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

func testResolver(t *testing.T, db *store.DB) *Resolver {
	t.Helper()
	cache := binding.NewCache(db, time.Hour, zap.NewNop())
	return NewResolver(db, cache, zap.NewNop())
}

func TestResolveCreatesThenReuses(t *testing.T) {
	db := testDB(t)
	r := testResolver(t, db)

	first, err := r.Resolve("n1", "9665551234@c.us")
	if err != nil {
		t.Fatal(err)
	}
	if first.ConversationID == "" {
		t.Fatal("no conversation id")
	}

	second, err := r.Resolve("n1", "9665551234@c.us")
	if err != nil {
		t.Fatal(err)
	}
	if second.ConversationID != first.ConversationID {
		t.Errorf("second resolve created %q, want reuse of %q", second.ConversationID, first.ConversationID)
	}

	// A different counterpart gets a different conversation.
	other, err := r.Resolve("n1", "other@c.us")
	if err != nil {
		t.Fatal(err)
	}
	if other.ConversationID == first.ConversationID {
		t.Error("different counterpart reused the same conversation")
	}
}

func TestResolveAttachesActiveBinding(t *testing.T) {
	db := testDB(t)
	_ = db.CreateDeployment(&store.BotDeployment{ID: "d1", NumberID: "n1", BotVersionID: "v1", Status: "active", EffectiveAt: 1000})
	r := testResolver(t, db)

	meta, err := r.Resolve("n1", "w@c.us")
	if err != nil {
		t.Fatal(err)
	}
	if meta.BotVersionID != "v1" {
		t.Errorf("bot version = %q, want v1", meta.BotVersionID)
	}

	conv, _ := db.GetConversation(meta.ConversationID)
	if conv.BotVersionID != "v1" {
		t.Errorf("stored bot version = %q, want v1", conv.BotVersionID)
	}
}

func TestResolveRefreshesStaleBinding(t *testing.T) {
	db := testDB(t)
	_ = db.CreateConversation(&store.Conversation{
		ID: "c1", NumberID: "n1", CustomerWAID: "w@c.us",
		BotVersionID: "v1", Status: "open", OpenedAt: 1000, LastMessageAt: 1000,
	})
	_ = db.CreateDeployment(&store.BotDeployment{ID: "d2", NumberID: "n1", BotVersionID: "v2", Status: "active", EffectiveAt: 2000})
	r := testResolver(t, db)

	meta, err := r.Resolve("n1", "w@c.us")
	if err != nil {
		t.Fatal(err)
	}
	if meta.ConversationID != "c1" {
		t.Fatalf("resolved %q, want existing c1", meta.ConversationID)
	}
	if meta.BotVersionID != "v2" {
		t.Errorf("bot version = %q, want refreshed v2", meta.BotVersionID)
	}

	conv, _ := db.GetConversation("c1")
	if conv.BotVersionID != "v2" {
		t.Errorf("stored bot version = %q, want v2", conv.BotVersionID)
	}
}

func TestResolveNoBinding(t *testing.T) {
	db := testDB(t)
	r := testResolver(t, db)

	meta, err := r.Resolve("n1", "w@c.us")
	if err != nil {
		t.Fatal(err)
	}
	if meta.BotVersionID != "" {
		t.Errorf("bot version = %q, want empty when nothing deployed", meta.BotVersionID)
	}
}
