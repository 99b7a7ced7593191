package attachments

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"docshare/internal/domain"
	"docshare/internal/messagelog"
	"docshare/internal/store"
	docshare_errors "docshare/pkg/errors"
)

type putCall struct {
	key         string
	contentType string
	size        int
	overwrite   bool
}

type fakeObjectStore struct {
	calls  []putCall
	putErr error
}

func (f *fakeObjectStore) Put(_ context.Context, key string, body []byte, contentType string, overwrite bool) error {
	f.calls = append(f.calls, putCall{key: key, contentType: contentType, size: len(body), overwrite: overwrite})
	return f.putErr
}

func (f *fakeObjectStore) PublicURL(key string) string {
	return "https://files.example.com/" + key
}

func newPipeline(t *testing.T) (*Pipeline, *fakeObjectStore, *store.Memory) {
	t.Helper()
	objects := &fakeObjectStore{}
	mem := store.NewMemory()
	p := New(objects, messagelog.New(mem))
	p.now = func() time.Time { return time.UnixMilli(1717243200123) }
	return p, objects, mem
}

func TestSendRejectsOversizedFile(t *testing.T) {
	p, objects, _ := newPipeline(t)

	file := File{Name: "big.bin", Data: make([]byte, MaxFileBytes+1)}
	_, err := p.Send(context.Background(), file, "",
		domain.Conversation{Kind: domain.ConversationFriend, ID: "u2"}, "u1")
	if !errors.Is(err, docshare_errors.ErrFileTooLarge) {
		t.Fatalf("Send = %v, want ErrFileTooLarge", err)
	}
	if len(objects.calls) != 0 {
		t.Errorf("oversized file reached the object store: %v", objects.calls)
	}
}

func TestSendAcceptsFileAtLimit(t *testing.T) {
	p, _, _ := newPipeline(t)

	file := File{Name: "exact.bin", ContentType: "application/octet-stream", Data: make([]byte, MaxFileBytes)}
	if _, err := p.Send(context.Background(), file, "",
		domain.Conversation{Kind: domain.ConversationFriend, ID: "u2"}, "u1"); err != nil {
		t.Fatalf("Send at limit failed: %v", err)
	}
}

func TestSendUploadsAndLinksMessage(t *testing.T) {
	p, objects, mem := newPipeline(t)

	file := File{Name: "Report.PDF", ContentType: "application/pdf", Data: []byte("pdf bytes")}
	res, err := p.Send(context.Background(), file, "quarterly numbers",
		domain.Conversation{Kind: domain.ConversationFriend, ID: "u2"}, "u1")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	wantKey := "u1/1717243200123.pdf"
	if res.Path != wantKey {
		t.Errorf("Path = %q, want %q", res.Path, wantKey)
	}
	if res.URL != "https://files.example.com/"+wantKey {
		t.Errorf("URL = %q", res.URL)
	}
	if len(objects.calls) != 1 {
		t.Fatalf("store called %d times, want 1", len(objects.calls))
	}
	call := objects.calls[0]
	if call.key != wantKey || call.contentType != "application/pdf" || call.overwrite {
		t.Errorf("put call = %+v", call)
	}

	m := res.Message
	if m.ID == "" {
		t.Error("linked message has no id")
	}
	if m.MessageType != domain.MessageFile || m.Content != "quarterly numbers" {
		t.Errorf("message = %+v", m)
	}
	if m.FileName != "Report.PDF" || m.FileURL != res.URL || m.FileSize != int64(len(file.Data)) {
		t.Errorf("file fields = %+v", m)
	}
	if m.ReceiverID != "u2" || m.GroupID != "" {
		t.Errorf("message targets = %+v", m)
	}

	rows, _ := mem.Query(context.Background(), store.TableMessages, store.Filter{}, nil)
	if len(rows) != 1 {
		t.Errorf("persisted %d messages, want 1", len(rows))
	}
}

func TestSendDefaultsCaption(t *testing.T) {
	p, _, _ := newPipeline(t)

	res, err := p.Send(context.Background(),
		File{Name: "pic.png", Data: []byte("png")}, "",
		domain.Conversation{Kind: domain.ConversationGroup, ID: "g1"}, "u1")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if res.Message.Content != "Shared a file" {
		t.Errorf("caption = %q, want default", res.Message.Content)
	}
	if res.Message.GroupID != "g1" || res.Message.ReceiverID != "" {
		t.Errorf("group message targets = %+v", res.Message)
	}
}

func TestSendRejectsInvalidConversation(t *testing.T) {
	p, objects, _ := newPipeline(t)

	_, err := p.Send(context.Background(),
		File{Name: "a.txt", Data: []byte("x")}, "", domain.Conversation{}, "u1")
	if !errors.Is(err, docshare_errors.ErrInvalidInput) {
		t.Fatalf("Send = %v, want ErrInvalidInput", err)
	}
	if len(objects.calls) != 0 {
		t.Errorf("invalid conversation reached the object store")
	}
}

func TestSendUploadFailure(t *testing.T) {
	p, objects, _ := newPipeline(t)
	objects.putErr = fmt.Errorf("precondition failed")

	_, err := p.Send(context.Background(),
		File{Name: "a.txt", Data: []byte("x")}, "",
		domain.Conversation{Kind: domain.ConversationFriend, ID: "u2"}, "u1")
	if !errors.Is(err, docshare_errors.ErrAttachment) {
		t.Fatalf("Send = %v, want ErrAttachment", err)
	}
}

func TestSendConflictingKey(t *testing.T) {
	p, objects, _ := newPipeline(t)
	objects.putErr = fmt.Errorf("%w: object u1/1717243200123.txt already exists", docshare_errors.ErrConflict)

	_, err := p.Send(context.Background(),
		File{Name: "a.txt", Data: []byte("x")}, "",
		domain.Conversation{Kind: domain.ConversationFriend, ID: "u2"}, "u1")
	if !errors.Is(err, docshare_errors.ErrConflict) {
		t.Fatalf("Send = %v, want ErrConflict", err)
	}
	if errors.Is(err, docshare_errors.ErrAttachment) {
		t.Error("conflict re-wrapped as a generic attachment failure")
	}
}

func TestObjectKey(t *testing.T) {
	at := time.UnixMilli(1717243200123)
	tests := []struct {
		name string
		file string
		want string
	}{
		{"lowercased extension", "Report.PDF", "u1/1717243200123.pdf"},
		{"no extension", "README", "u1/1717243200123"},
		{"multi dot", "archive.tar.gz", "u1/1717243200123.gz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := objectKey("u1", tt.file, at); got != tt.want {
				t.Errorf("objectKey(%q) = %q, want %q", tt.file, got, tt.want)
			}
		})
	}
}
