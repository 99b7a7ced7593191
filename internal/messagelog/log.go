package messagelog

import (
	"context"
	"fmt"

	"docshare/internal/domain"
	"docshare/internal/store"
	docshare_errors "docshare/pkg/errors"
)

// Log loads the ordered history of a conversation and appends new
// messages. Messages are append-only; there is no update or delete.
type Log struct {
	store store.Client
}

func New(client store.Client) *Log {
	return &Log{store: client}
}

// Load returns the full history of the conversation as seen by selfID,
// ascending by created_at, each message carrying its sender's display
// fields. No pagination: full history is returned.
func (l *Log) Load(ctx context.Context, conv domain.Conversation, selfID string) ([]domain.Message, error) {
	if !conv.Valid() {
		return nil, fmt.Errorf("%w: invalid conversation", docshare_errors.ErrInvalidInput)
	}

	var filter store.Filter
	switch conv.Kind {
	case domain.ConversationFriend:
		filter.Any = []store.Cond{
			store.Eq("receiver_id", conv.ID),
			store.Eq("sender_id", conv.ID),
		}
	case domain.ConversationGroup:
		filter.All = []store.Cond{store.Eq("group_id", conv.ID)}
	}

	rows, err := l.store.Query(ctx, store.TableMessages, filter,
		&store.Order{Column: "created_at", Ascending: true})
	if err != nil {
		return nil, fmt.Errorf("%w: load messages: %v", docshare_errors.ErrStore, err)
	}

	// The friend filter over-selects the counterpart's messages to
	// third parties; keep only rows belonging to this conversation.
	messages := make([]domain.Message, 0, len(rows))
	for _, row := range rows {
		m := store.DecodeMessage(row)
		if conv.Matches(m, selfID) {
			messages = append(messages, m)
		}
	}

	if err := l.attachSenders(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// Append validates that exactly one conversation target is set,
// persists the message and returns the stored row with the
// server-assigned id and created_at.
func (l *Log) Append(ctx context.Context, m domain.Message) (domain.Message, error) {
	if !m.HasSingleTarget() {
		return domain.Message{}, fmt.Errorf("%w: exactly one of receiver_id and group_id must be set",
			docshare_errors.ErrInvalidInput)
	}
	if m.SenderID == "" {
		return domain.Message{}, fmt.Errorf("%w: sender_id is required", docshare_errors.ErrInvalidInput)
	}
	if m.MessageType != domain.MessageText && m.MessageType != domain.MessageFile {
		return domain.Message{}, fmt.Errorf("%w: unknown message type %q",
			docshare_errors.ErrInvalidInput, m.MessageType)
	}

	stored, err := l.store.Insert(ctx, store.TableMessages, store.EncodeMessage(m))
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: append message: %v", docshare_errors.ErrStore, err)
	}
	return store.DecodeMessage(stored), nil
}

func (l *Log) attachSenders(ctx context.Context, messages []domain.Message) error {
	if len(messages) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	ids := make([]string, 0, 2)
	for _, m := range messages {
		if !seen[m.SenderID] {
			seen[m.SenderID] = true
			ids = append(ids, m.SenderID)
		}
	}

	rows, err := l.store.Query(ctx, store.TableProfiles, store.Filter{
		All: []store.Cond{store.In("id", ids)},
	}, nil)
	if err != nil {
		return fmt.Errorf("%w: load senders: %v", docshare_errors.ErrStore, err)
	}

	profiles := make(map[string]domain.Profile, len(rows))
	for _, row := range rows {
		p := store.DecodeProfile(row)
		profiles[p.ID] = p
	}
	for i := range messages {
		if p, ok := profiles[messages[i].SenderID]; ok {
			sender := p
			messages[i].Sender = &sender
		}
	}
	return nil
}
