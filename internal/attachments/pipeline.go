package attachments

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"docshare/internal/domain"
	"docshare/internal/messagelog"
	"docshare/internal/storage"
	docshare_errors "docshare/pkg/errors"
)

// MaxFileBytes is the upload size policy: 100 MiB, checked before any
// network call.
const MaxFileBytes = 100 * 1024 * 1024

const defaultCaption = "Shared a file"

// File is an attachment about to be sent.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Result carries both the storage path and the public URL of the
// uploaded object, plus the linked message.
type Result struct {
	Path    string
	URL     string
	Message domain.Message
}

// Pipeline validates, uploads and links a file to an outgoing message.
type Pipeline struct {
	objects storage.ObjectStore
	log     *messagelog.Log
	now     func() time.Time
}

func New(objects storage.ObjectStore, log *messagelog.Log) *Pipeline {
	return &Pipeline{objects: objects, log: log, now: time.Now}
}

// Send uploads the file non-overwriting under a sender-scoped key and
// appends a file message referencing it. Any failure after the size
// check surfaces as an attachment failure; an uploaded-but-unlinked
// object is left as an orphan, not cleaned up.
func (p *Pipeline) Send(ctx context.Context, file File, caption string, conv domain.Conversation, senderID string) (Result, error) {
	if int64(len(file.Data)) > MaxFileBytes {
		return Result{}, fmt.Errorf("%w: %s exceeds %d bytes", docshare_errors.ErrFileTooLarge, file.Name, int64(MaxFileBytes))
	}
	if !conv.Valid() {
		return Result{}, fmt.Errorf("%w: invalid conversation", docshare_errors.ErrInvalidInput)
	}

	key := objectKey(senderID, file.Name, p.now())
	if err := p.objects.Put(ctx, key, file.Data, file.ContentType, false); err != nil {
		if errors.Is(err, docshare_errors.ErrConflict) {
			return Result{}, fmt.Errorf("upload %s: %w", key, err)
		}
		return Result{}, fmt.Errorf("%w: upload %s: %v", docshare_errors.ErrAttachment, key, err)
	}
	url := p.objects.PublicURL(key)

	if caption == "" {
		caption = defaultCaption
	}
	m := domain.Message{
		SenderID:    senderID,
		MessageType: domain.MessageFile,
		Content:     caption,
		FileName:    file.Name,
		FileURL:     url,
		FileSize:    int64(len(file.Data)),
	}
	switch conv.Kind {
	case domain.ConversationFriend:
		m.ReceiverID = conv.ID
	case domain.ConversationGroup:
		m.GroupID = conv.ID
	}

	stored, err := p.log.Append(ctx, m)
	if err != nil {
		return Result{Path: key, URL: url}, fmt.Errorf("%w: link message: %v", docshare_errors.ErrAttachment, err)
	}
	return Result{Path: key, URL: url, Message: stored}, nil
}

// objectKey derives {senderID}/{unixMillis}.{ext}. The key is used
// as-is: two uploads in the same millisecond from the same sender
// collide and the conditional put fails.
func objectKey(senderID, fileName string, at time.Time) string {
	key := fmt.Sprintf("%s/%d", senderID, at.UnixMilli())
	if ext := strings.TrimPrefix(path.Ext(fileName), "."); ext != "" {
		key += "." + strings.ToLower(ext)
	}
	return key
}
