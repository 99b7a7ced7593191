package domain

// Conversation kinds
const (
	ConversationFriend = "friend"
	ConversationGroup  = "group"
)

// Conversation is the derived identity of the active view: a friend's
// user id or a group's id. It is not a stored entity.
type Conversation struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// Valid reports whether the identity names a known kind with an id.
func (c Conversation) Valid() bool {
	return c.ID != "" && (c.Kind == ConversationFriend || c.Kind == ConversationGroup)
}

// Matches reports whether a message belongs to this conversation as
// seen by selfID. For a friend conversation the counterpart must be
// the sender or the receiver; for a group conversation the group ids
// must match.
func (c Conversation) Matches(m Message, selfID string) bool {
	switch c.Kind {
	case ConversationFriend:
		if m.GroupID != "" {
			return false
		}
		return (m.SenderID == c.ID && m.ReceiverID == selfID) ||
			(m.SenderID == selfID && m.ReceiverID == c.ID)
	case ConversationGroup:
		return m.GroupID == c.ID
	}
	return false
}

// Relevant reports whether an inserted message concerns this
// conversation at all: for a friend conversation the counterpart id
// appears as sender or receiver, for a group conversation the group
// ids match. This is the change-notification predicate; Matches is
// the stricter load filter.
func (c Conversation) Relevant(m Message) bool {
	switch c.Kind {
	case ConversationFriend:
		return m.SenderID == c.ID || m.ReceiverID == c.ID
	case ConversationGroup:
		return m.GroupID == c.ID
	}
	return false
}
