package store

import "docshare/internal/domain"

// Decoders between the store's row format and the domain types.

func DecodeProfile(r Row) domain.Profile {
	return domain.Profile{
		ID:        r.String("id"),
		Email:     r.String("email"),
		FullName:  r.String("full_name"),
		AvatarURL: r.String("avatar_url"),
	}
}

func DecodeFriendship(r Row) domain.Friendship {
	return domain.Friendship{
		ID:          r.String("id"),
		RequesterID: r.String("requester_id"),
		AddresseeID: r.String("addressee_id"),
		Status:      r.String("status"),
	}
}

func DecodeGroup(r Row) domain.Group {
	return domain.Group{
		ID:   r.String("id"),
		Name: r.String("name"),
	}
}

func DecodeMessage(r Row) domain.Message {
	return domain.Message{
		ID:          r.String("id"),
		SenderID:    r.String("sender_id"),
		ReceiverID:  r.String("receiver_id"),
		GroupID:     r.String("group_id"),
		MessageType: r.String("message_type"),
		Content:     r.String("content"),
		FileName:    r.String("file_name"),
		FileURL:     r.String("file_url"),
		FileSize:    r.Int64("file_size"),
		CreatedAt:   r.Time("created_at"),
	}
}

// EncodeMessage builds the insert row for a message. Nil is used for
// the unset conversation target so the store records a true null.
func EncodeMessage(m domain.Message) Row {
	row := Row{
		"sender_id":    m.SenderID,
		"message_type": m.MessageType,
		"content":      m.Content,
	}
	if m.ReceiverID != "" {
		row["receiver_id"] = m.ReceiverID
	}
	if m.GroupID != "" {
		row["group_id"] = m.GroupID
	}
	if m.MessageType == domain.MessageFile {
		row["file_name"] = m.FileName
		row["file_url"] = m.FileURL
		row["file_size"] = m.FileSize
	}
	return row
}
