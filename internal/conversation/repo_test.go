package conversation

import (
	"context"
	"testing"

	"github.com/nexusdesk/nexus-core/internal/customer"
)

func TestGetOrCreateOpen_SingleOpenPerPair(t *testing.T) {
	db := openTestDB(t)
	custRepo := customer.NewRepo(db)
	convs := NewRepo(db)

	cust, err := custRepo.ResolveOrCreate(context.Background(), testTenant, "whatsapp", "15550001")
	if err != nil {
		t.Fatalf("resolve customer: %v", err)
	}

	first, created, err := convs.GetOrCreateOpen(context.Background(), testTenant, cust.ID, "whatsapp", "webhook")
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if !created {
		t.Fatalf("expected first call to create")
	}
	if first.PublicID == "" || len(first.PublicID) != 26 {
		t.Fatalf("expected ULID public id, got %q", first.PublicID)
	}

	second, created, err := convs.GetOrCreateOpen(context.Background(), testTenant, cust.ID, "whatsapp", "webhook")
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if created || second.ID != first.ID {
		t.Fatalf("expected reuse of conversation %d, got %d created=%v", first.ID, second.ID, created)
	}

	// a different channel opens its own thread
	other, created, err := convs.GetOrCreateOpen(context.Background(), testTenant, cust.ID, "web", "webhook")
	if err != nil {
		t.Fatalf("web open: %v", err)
	}
	if !created || other.ID == first.ID {
		t.Fatalf("expected distinct thread per channel")
	}
}

func TestClose_ReopensAsNewThread(t *testing.T) {
	db := openTestDB(t)
	custRepo := customer.NewRepo(db)
	convs := NewRepo(db)

	cust, err := custRepo.ResolveOrCreate(context.Background(), testTenant, "whatsapp", "15550001")
	if err != nil {
		t.Fatalf("resolve customer: %v", err)
	}
	first, _, err := convs.GetOrCreateOpen(context.Background(), testTenant, cust.ID, "whatsapp", "webhook")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := convs.Close(context.Background(), first.ID, StatusResolved); err != nil {
		t.Fatalf("close: %v", err)
	}

	var closed Conversation
	if err := db.First(&closed, first.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if closed.Status != StatusResolved || closed.OpenMarker != nil || closed.ClosedAt == nil {
		t.Fatalf("unexpected closed row: %+v", closed)
	}

	next, created, err := convs.GetOrCreateOpen(context.Background(), testTenant, cust.ID, "whatsapp", "webhook")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !created || next.ID == first.ID {
		t.Fatalf("expected a fresh thread after close")
	}
}

func TestClose_RejectsInvalidStatus(t *testing.T) {
	db := openTestDB(t)
	convs := NewRepo(db)
	if err := convs.Close(context.Background(), 1, "open"); err == nil {
		t.Fatalf("expected error for invalid close status")
	}
}

func TestInsertInboundOrSkip_Dedup(t *testing.T) {
	db := openTestDB(t)
	custRepo := customer.NewRepo(db)
	convs := NewRepo(db)

	cust, err := custRepo.ResolveOrCreate(context.Background(), testTenant, "whatsapp", "15550001")
	if err != nil {
		t.Fatalf("resolve customer: %v", err)
	}
	conv, _, err := convs.GetOrCreateOpen(context.Background(), testTenant, cust.ID, "whatsapp", "webhook")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	extID := "wamid.X"
	created, err := convs.InsertInboundOrSkip(context.Background(), &Message{
		ConversationID:    conv.ID,
		ExternalMessageID: &extID,
		Direction:         DirectionInbound,
		MessageType:       TypeText,
		Text:              "hello",
	})
	if err != nil || !created {
		t.Fatalf("first insert: created=%v err=%v", created, err)
	}

	dup := "wamid.X"
	created, err = convs.InsertInboundOrSkip(context.Background(), &Message{
		ConversationID:    conv.ID,
		ExternalMessageID: &dup,
		Direction:         DirectionInbound,
		MessageType:       TypeText,
		Text:              "hello",
	})
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if created {
		t.Fatalf("duplicate external id must be skipped")
	}

	var count int64
	if err := db.Model(&Message{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 message, got %d", count)
	}
}

func TestInsertInboundOrSkip_EmptyExternalIDNeverDedups(t *testing.T) {
	db := openTestDB(t)
	custRepo := customer.NewRepo(db)
	convs := NewRepo(db)

	cust, err := custRepo.ResolveOrCreate(context.Background(), testTenant, "web", "u1")
	if err != nil {
		t.Fatalf("resolve customer: %v", err)
	}
	conv, _, err := convs.GetOrCreateOpen(context.Background(), testTenant, cust.ID, "web", "webhook")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	for i := 0; i < 2; i++ {
		empty := ""
		created, err := convs.InsertInboundOrSkip(context.Background(), &Message{
			ConversationID:    conv.ID,
			ExternalMessageID: &empty,
			Direction:         DirectionInbound,
			MessageType:       TypeText,
			Text:              "no external id",
		})
		if err != nil || !created {
			t.Fatalf("insert %d: created=%v err=%v", i, created, err)
		}
	}

	var count int64
	if err := db.Model(&Message{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("messages without external ids must all persist, got %d", count)
	}
}

func TestListRecent_ChronologicalWindow(t *testing.T) {
	db := openTestDB(t)
	custRepo := customer.NewRepo(db)
	convs := NewRepo(db)

	cust, err := custRepo.ResolveOrCreate(context.Background(), testTenant, "web", "u1")
	if err != nil {
		t.Fatalf("resolve customer: %v", err)
	}
	conv, _, err := convs.GetOrCreateOpen(context.Background(), testTenant, cust.ID, "web", "webhook")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	for _, text := range []string{"a", "b", "c", "d"} {
		if err := convs.InsertMessage(context.Background(), &Message{
			ConversationID: conv.ID,
			Direction:      DirectionInbound,
			MessageType:    TypeText,
			Text:           text,
		}); err != nil {
			t.Fatalf("seed %s: %v", text, err)
		}
	}

	recent, err := convs.ListRecent(context.Background(), conv.ID, 2)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Text != "c" || recent[1].Text != "d" {
		t.Fatalf("expected [c d], got %+v", recent)
	}
}
