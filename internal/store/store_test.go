package store

import (
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNumberLifecycle(t *testing.T) {
	db := testDB(t)

	if err := db.CreateNumber(&Number{ID: "n1", PhoneNumber: "+5511999990000", Status: NumberPendingQR}); err != nil {
		t.Fatal(err)
	}

	pending, err := db.ListNumbersByStatus(NumberPendingQR)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != "n1" {
		t.Fatalf("got %v, want one pending number n1", pending)
	}

	if err := db.UpdateNumberStatus("n1", NumberConnected); err != nil {
		t.Fatal(err)
	}
	n, err := db.GetNumber("n1")
	if err != nil {
		t.Fatal(err)
	}
	if n.Status != NumberConnected {
		t.Errorf("status = %q, want connected", n.Status)
	}
	if n.LastConnectedAt == 0 {
		t.Error("last_connected_at not stamped on connect")
	}

	// Disconnecting clears the marker.
	if err := db.UpdateNumberStatus("n1", NumberDisconnected); err != nil {
		t.Fatal(err)
	}
	n, _ = db.GetNumber("n1")
	if n.LastConnectedAt != 0 {
		t.Error("last_connected_at not cleared on disconnect")
	}
}

func TestGetNumberMissing(t *testing.T) {
	db := testDB(t)
	n, err := db.GetNumber("nope")
	if err != nil {
		t.Fatal(err)
	}
	if n != nil {
		t.Fatalf("got %v, want nil for missing number", n)
	}
}

func TestListNumbersByStatusMultiple(t *testing.T) {
	db := testDB(t)
	_ = db.CreateNumber(&Number{ID: "a", PhoneNumber: "1", Status: NumberPendingQR})
	_ = db.CreateNumber(&Number{ID: "b", PhoneNumber: "2", Status: NumberConnected})
	_ = db.CreateNumber(&Number{ID: "c", PhoneNumber: "3", Status: NumberDisconnected})

	numbers, err := db.ListNumbersByStatus(NumberPendingQR, NumberConnected)
	if err != nil {
		t.Fatal(err)
	}
	if len(numbers) != 2 {
		t.Fatalf("got %d numbers, want 2", len(numbers))
	}
}

func TestSessionUpsertIdempotent(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertSession(&NumberSession{
		NumberID: "n1", SessionState: "pending_qr", QRToken: "TOKEN1", QRExpiresAt: 9000,
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertSession(&NumberSession{
		NumberID: "n1", SessionState: "connected",
	}); err != nil {
		t.Fatal(err)
	}

	s, err := db.GetSession("n1")
	if err != nil {
		t.Fatal(err)
	}
	if s.SessionState != "connected" {
		t.Errorf("session_state = %q, want connected", s.SessionState)
	}
	if s.QRToken != "" {
		t.Errorf("qr_token = %q, want cleared after connect", s.QRToken)
	}
}

func TestConnectionEventsAppendOnly(t *testing.T) {
	db := testDB(t)

	_ = db.AppendConnectionEvent("n1", "qr_generated", "")
	_ = db.AppendConnectionEvent("n1", "connected", `{"reason":"ok"}`)

	events, err := db.ListConnectionEvents("n1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	// Newest first.
	if events[0].EventType != "connected" {
		t.Errorf("first event = %q, want connected", events[0].EventType)
	}
	if events[1].Payload != "{}" {
		t.Errorf("empty payload stored as %q, want {}", events[1].Payload)
	}
}

func TestLatestConversationPicksNewest(t *testing.T) {
	db := testDB(t)

	_ = db.CreateConversation(&Conversation{ID: "c1", NumberID: "n1", CustomerWAID: "w1", Status: "open", OpenedAt: 1000, LastMessageAt: 1000})
	_ = db.CreateConversation(&Conversation{ID: "c2", NumberID: "n1", CustomerWAID: "w1", Status: "open", OpenedAt: 2000, LastMessageAt: 2000})

	c, err := db.LatestConversation("n1", "w1")
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.ID != "c2" {
		t.Fatalf("got %v, want newest conversation c2", c)
	}

	none, err := db.LatestConversation("n1", "other")
	if err != nil {
		t.Fatal(err)
	}
	if none != nil {
		t.Fatalf("got %v, want nil for unknown pair", none)
	}
}

func TestTouchConversationForcesOpen(t *testing.T) {
	db := testDB(t)

	_ = db.CreateConversation(&Conversation{ID: "c1", NumberID: "n1", CustomerWAID: "w1", Status: "closed", OpenedAt: 1000, LastMessageAt: 1000})
	if err := db.TouchConversation("c1", 5000); err != nil {
		t.Fatal(err)
	}

	c, _ := db.GetConversation("c1")
	if c.Status != "open" {
		t.Errorf("status = %q, want open", c.Status)
	}
	if c.LastMessageAt != 5000 {
		t.Errorf("last_message_at = %d, want 5000", c.LastMessageAt)
	}
}

func TestMessagesInsertAndList(t *testing.T) {
	db := testDB(t)

	_ = db.InsertMessage(&MessageRecord{ID: "m1", ConversationID: "c1", Direction: "inbound", MessageType: "text", Payload: `{"body":"hi"}`, SentAt: 1000, DeliveryStatus: "delivered"})
	_ = db.InsertMessage(&MessageRecord{ID: "m2", ConversationID: "c1", Direction: "outbound", MessageType: "text", Payload: `{"body":"yo"}`, SentAt: 2000, DeliveryStatus: "pending"})

	msgs, err := db.ListMessages("c1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Errorf("messages not ordered oldest first: %v", msgs)
	}
}

func TestActiveDeploymentTieBreak(t *testing.T) {
	db := testDB(t)

	_ = db.CreateDeployment(&BotDeployment{ID: "d1", NumberID: "n1", BotVersionID: "v1", Status: "active", EffectiveAt: 1000})
	_ = db.CreateDeployment(&BotDeployment{ID: "d2", NumberID: "n1", BotVersionID: "v2", Status: "active", EffectiveAt: 2000})
	_ = db.CreateDeployment(&BotDeployment{ID: "d3", NumberID: "n1", BotVersionID: "v3", Status: "retired", EffectiveAt: 3000})

	d, err := db.ActiveDeployment("n1")
	if err != nil {
		t.Fatal(err)
	}
	if d == nil || d.BotVersionID != "v2" {
		t.Fatalf("got %v, want active deployment v2 (highest effective_at)", d)
	}

	none, err := db.ActiveDeployment("unbound")
	if err != nil {
		t.Fatal(err)
	}
	if none != nil {
		t.Fatalf("got %v, want nil for number without deployments", none)
	}
}
