package session

import (
	"context"
	"strings"
	"sync"

	"docshare/internal/attachments"
	"docshare/internal/auth"
	"docshare/internal/directory"
	"docshare/internal/domain"
	"docshare/internal/messagelog"
	"docshare/internal/realtime"
	"docshare/internal/search"
	"docshare/pkg/logger"
)

// Session orchestrates one user's conversation state: the active
// conversation identity, its message list, and the relationship
// snapshots. Loads replace their target wholesale, so overlapping
// operations never merge into partially updated state.
type Session struct {
	userID string
	token  string

	directory  *directory.Directory
	log        *messagelog.Log
	pipeline   *attachments.Pipeline
	reconciler *realtime.Reconciler
	resolver   *search.Resolver
	auth       auth.Authenticator
	lg         *logger.Logger

	mu           sync.Mutex
	active       *domain.Conversation
	messages     []domain.Message
	friends      []domain.Profile
	groups       []domain.Group
	pending      []domain.PendingRequest
	sendInFlight bool
	onChange     func()
}

// Snapshot is a read-only copy of the session state for the
// presentation layer.
type Snapshot struct {
	Active       *domain.Conversation    `json:"active_conversation,omitempty"`
	Messages     []domain.Message        `json:"messages"`
	Friends      []domain.Profile        `json:"friends"`
	Groups       []domain.Group          `json:"groups"`
	Pending      []domain.PendingRequest `json:"pending_requests"`
	SendInFlight bool                    `json:"send_in_flight"`
}

type Deps struct {
	Directory  *directory.Directory
	Log        *messagelog.Log
	Pipeline   *attachments.Pipeline
	Reconciler *realtime.Reconciler
	Resolver   *search.Resolver
	Auth       auth.Authenticator
	Logger     *logger.Logger
}

func New(userID, token string, deps Deps) *Session {
	return &Session{
		userID:     userID,
		token:      token,
		directory:  deps.Directory,
		log:        deps.Log,
		pipeline:   deps.Pipeline,
		reconciler: deps.Reconciler,
		resolver:   deps.Resolver,
		auth:       deps.Auth,
		lg:         deps.Logger,
	}
}

func (s *Session) UserID() string {
	return s.userID
}

// SetOnChange registers a hook fired after any state replacement. The
// hook runs without the session lock held.
func (s *Session) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Refresh reloads friends, groups and pending requests, replacing each
// list wholesale.
func (s *Session) Refresh(ctx context.Context) error {
	friends, err := s.directory.ListFriends(ctx, s.userID)
	if err != nil {
		return err
	}
	groups, err := s.directory.ListGroups(ctx, s.userID)
	if err != nil {
		return err
	}
	pending, err := s.directory.ListPendingRequests(ctx, s.userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.friends = friends
	s.groups = groups
	s.pending = pending
	s.mu.Unlock()
	s.notify()
	return nil
}

// SelectConversation makes conv the active conversation: the previous
// subscription is torn down, a new one is opened, and the initial load
// has been applied when SelectConversation returns. A failed initial
// load is returned and leaves no conversation selected.
func (s *Session) SelectConversation(ctx context.Context, conv domain.Conversation) error {
	s.mu.Lock()
	s.active = &conv
	s.messages = nil
	s.mu.Unlock()

	if err := s.reconciler.Watch(ctx, conv, s.userID, s.applyReload); err != nil {
		s.mu.Lock()
		s.active = nil
		s.mu.Unlock()
		return err
	}
	return nil
}

// Deselect clears the active conversation and releases its
// subscription. No reload callback fires after Deselect returns.
func (s *Session) Deselect() {
	s.reconciler.Stop()
	s.mu.Lock()
	s.active = nil
	s.messages = nil
	s.mu.Unlock()
	s.notify()
}

// SendText appends a text message to the active conversation and
// reloads the log directly, without waiting for the realtime event.
// It is a no-op while another send is in flight or when no
// conversation is selected.
func (s *Session) SendText(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	conv, ok := s.beginSend()
	if !ok {
		return nil
	}
	defer s.endSend()

	m := domain.Message{
		SenderID:    s.userID,
		MessageType: domain.MessageText,
		Content:     content,
	}
	switch conv.Kind {
	case domain.ConversationFriend:
		m.ReceiverID = conv.ID
	case domain.ConversationGroup:
		m.GroupID = conv.ID
	}

	if _, err := s.log.Append(ctx, m); err != nil {
		return err
	}
	return s.reloadMessages(ctx, conv)
}

// SendFile pushes a file through the attachment pipeline into the
// active conversation, then reloads the log directly. Same no-op
// guards as SendText; a skipped send returns a zero Result.
func (s *Session) SendFile(ctx context.Context, file attachments.File, caption string) (attachments.Result, error) {
	conv, ok := s.beginSend()
	if !ok {
		return attachments.Result{}, nil
	}
	defer s.endSend()

	res, err := s.pipeline.Send(ctx, file, caption, conv, s.userID)
	if err != nil {
		return res, err
	}
	return res, s.reloadMessages(ctx, conv)
}

// AcceptRequest accepts a pending friend request and refreshes the
// friends and pending lists.
func (s *Session) AcceptRequest(ctx context.Context, requestID string) error {
	if err := s.directory.AcceptRequest(ctx, requestID); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// Search resolves a free-text query to candidate profiles. Debouncing
// lives on the resolver itself for interactive callers; the HTTP
// surface issues searches directly.
func (s *Session) Search(ctx context.Context, query string, limit int) ([]domain.Profile, error) {
	return s.resolver.Search(ctx, query, limit)
}

// SignOut releases the realtime subscription and delegates to the
// authentication collaborator.
func (s *Session) SignOut(ctx context.Context) error {
	s.reconciler.Stop()
	return s.auth.SignOut(ctx, s.token)
}

// Close releases the session's resources without signing out.
func (s *Session) Close() {
	s.reconciler.Stop()
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Messages:     append([]domain.Message(nil), s.messages...),
		Friends:      append([]domain.Profile(nil), s.friends...),
		Groups:       append([]domain.Group(nil), s.groups...),
		Pending:      append([]domain.PendingRequest(nil), s.pending...),
		SendInFlight: s.sendInFlight,
	}
	if s.active != nil {
		active := *s.active
		snap.Active = &active
	}
	return snap
}

func (s *Session) beginSend() (domain.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendInFlight || s.active == nil {
		return domain.Conversation{}, false
	}
	s.sendInFlight = true
	return *s.active, true
}

func (s *Session) endSend() {
	s.mu.Lock()
	s.sendInFlight = false
	s.mu.Unlock()
}

func (s *Session) reloadMessages(ctx context.Context, conv domain.Conversation) error {
	messages, err := s.log.Load(ctx, conv, s.userID)
	if err != nil {
		return err
	}
	s.applyMessages(conv, messages)
	return nil
}

// applyReload is the reconciler callback. Failed reloads keep the
// previous list; the next event or manual reload supplies fresh state.
func (s *Session) applyReload(conv domain.Conversation, messages []domain.Message, err error) {
	if err != nil {
		if s.lg != nil {
			s.lg.Errorf("reload %s %s: %s", conv.Kind, conv.ID, err.Error())
		}
		return
	}
	s.applyMessages(conv, messages)
}

func (s *Session) applyMessages(conv domain.Conversation, messages []domain.Message) {
	s.mu.Lock()
	if s.active == nil || *s.active != conv {
		// Stale reload for a conversation that is no longer active.
		s.mu.Unlock()
		return
	}
	s.messages = messages
	s.mu.Unlock()
	s.notify()
}

func (s *Session) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}
