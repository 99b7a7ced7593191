package messagelog

import (
	"context"
	"errors"
	"testing"
	"time"

	"docshare/internal/domain"
	"docshare/internal/store"
	docshare_errors "docshare/pkg/errors"
)

func seedStore() *store.Memory {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := store.NewMemory()
	m.Seed(store.TableProfiles,
		store.Row{"id": "u1", "email": "alice@x.com", "full_name": "Alice"},
		store.Row{"id": "u2", "email": "bob@x.com", "full_name": "Bob"},
		store.Row{"id": "u3", "email": "carol@x.com", "full_name": "Carol"},
	)
	m.Seed(store.TableMessages,
		// u1 <-> u2 direct thread, seeded out of order.
		store.Row{"id": "m2", "sender_id": "u2", "receiver_id": "u1", "message_type": "text",
			"content": "hey back", "created_at": base.Add(time.Minute)},
		store.Row{"id": "m1", "sender_id": "u1", "receiver_id": "u2", "message_type": "text",
			"content": "hey", "created_at": base},
		// u2's conversation with a third party must never leak into u1's view.
		store.Row{"id": "m3", "sender_id": "u2", "receiver_id": "u3", "message_type": "text",
			"content": "private", "created_at": base.Add(2 * time.Minute)},
		// Group traffic.
		store.Row{"id": "m4", "sender_id": "u2", "group_id": "g1", "message_type": "text",
			"content": "group hello", "created_at": base.Add(3 * time.Minute)},
	)
	return m
}

func TestLoadDirectConversation(t *testing.T) {
	l := New(seedStore())

	messages, err := l.Load(context.Background(),
		domain.Conversation{Kind: domain.ConversationFriend, ID: "u2"}, "u1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(messages) != 2 {
		t.Fatalf("loaded %d messages, want 2: %v", len(messages), messages)
	}
	if messages[0].ID != "m1" || messages[1].ID != "m2" {
		t.Errorf("order = [%s %s], want [m1 m2]", messages[0].ID, messages[1].ID)
	}
	if !messages[0].CreatedAt.Before(messages[1].CreatedAt) {
		t.Errorf("messages not ascending by created_at")
	}
	for _, m := range messages {
		if m.ID == "m3" || m.ID == "m4" {
			t.Errorf("message %s does not belong to this conversation", m.ID)
		}
	}
}

func TestLoadVisibleFromBothSides(t *testing.T) {
	l := New(seedStore())

	fromU2, err := l.Load(context.Background(),
		domain.Conversation{Kind: domain.ConversationFriend, ID: "u1"}, "u2")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(fromU2) != 2 {
		t.Fatalf("counterpart sees %d messages, want 2", len(fromU2))
	}
}

func TestLoadGroupConversation(t *testing.T) {
	l := New(seedStore())

	messages, err := l.Load(context.Background(),
		domain.Conversation{Kind: domain.ConversationGroup, ID: "g1"}, "u1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(messages) != 1 || messages[0].ID != "m4" {
		t.Errorf("group messages = %v, want [m4]", messages)
	}
}

func TestLoadAttachesSenderProfile(t *testing.T) {
	l := New(seedStore())

	messages, err := l.Load(context.Background(),
		domain.Conversation{Kind: domain.ConversationFriend, ID: "u2"}, "u1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	sender := messages[1].Sender
	if sender == nil {
		t.Fatal("sender profile not attached")
	}
	if sender.FullName != "Bob" || sender.Email != "bob@x.com" {
		t.Errorf("sender = %+v, want Bob with email", sender)
	}
}

func TestAppendReturnsStoredRow(t *testing.T) {
	l := New(seedStore())

	stored, err := l.Append(context.Background(), domain.Message{
		SenderID:    "u1",
		ReceiverID:  "u2",
		MessageType: domain.MessageText,
		Content:     "hi",
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if stored.ID == "" {
		t.Error("stored message has no id")
	}
	if stored.CreatedAt.IsZero() {
		t.Error("stored message has no created_at")
	}

	messages, _ := l.Load(context.Background(),
		domain.Conversation{Kind: domain.ConversationFriend, ID: "u2"}, "u1")
	found := false
	for _, m := range messages {
		if m.ID == stored.ID && m.Content == "hi" {
			found = true
		}
	}
	if !found {
		t.Error("appended message missing from subsequent load")
	}
}

func TestAppendRejectsBadTargets(t *testing.T) {
	l := New(seedStore())

	tests := []struct {
		name string
		m    domain.Message
	}{
		{"neither target", domain.Message{SenderID: "u1", MessageType: "text", Content: "x"}},
		{"both targets", domain.Message{SenderID: "u1", ReceiverID: "u2", GroupID: "g1", MessageType: "text", Content: "x"}},
		{"missing sender", domain.Message{ReceiverID: "u2", MessageType: "text", Content: "x"}},
		{"bad type", domain.Message{SenderID: "u1", ReceiverID: "u2", MessageType: "sticker", Content: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.Append(context.Background(), tt.m); !errors.Is(err, docshare_errors.ErrInvalidInput) {
				t.Errorf("Append = %v, want ErrInvalidInput", err)
			}
		})
	}
}
