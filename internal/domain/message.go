package domain

import "time"

// Message types
const (
	MessageText = "text"
	MessageFile = "file"
)

// Message represents the messages table. Messages are append-only:
// no update or delete exists in this core. Exactly one of ReceiverID
// (direct) or GroupID (group) is set.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	ReceiverID  string    `json:"receiver_id,omitempty"`
	GroupID     string    `json:"group_id,omitempty"`
	MessageType string    `json:"message_type"`
	Content     string    `json:"content"`
	FileName    string    `json:"file_name,omitempty"`
	FileURL     string    `json:"file_url,omitempty"`
	FileSize    int64     `json:"file_size,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	// Sender carries the sender's display fields when the message was
	// loaded through the message log. Not persisted.
	Sender *Profile `json:"sender,omitempty"`
}

// HasSingleTarget reports whether exactly one of ReceiverID/GroupID is set.
func (m Message) HasSingleTarget() bool {
	return (m.ReceiverID != "") != (m.GroupID != "")
}
