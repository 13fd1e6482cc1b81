package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gochat/internal/domain"
	"gochat/internal/security"
)

const maxMessageRunes = 5000

// ChatService orchestrates the message flow: actor validation against
// the user directory, encrypt -> persist -> decrypt-for-wire, and
// history replay. It holds no connection state; that belongs to the
// gateway.
type ChatService struct {
	users    domain.UserDirectory
	messages domain.MessageStore
	cipher   *security.Cipher
	logger   *zap.SugaredLogger

	// HistoryLimit bounds the size of a history batch.
	HistoryLimit int
	// MaxPublicMessages caps stored public history; 0 disables pruning.
	MaxPublicMessages int
}

func NewChatService(
	users domain.UserDirectory,
	messages domain.MessageStore,
	cipher *security.Cipher,
	logger *zap.SugaredLogger,
	historyLimit int,
	maxPublicMessages int,
) *ChatService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ChatService{
		users:             users,
		messages:          messages,
		cipher:            cipher,
		logger:            logger,
		HistoryLimit:      historyLimit,
		MaxPublicMessages: maxPublicMessages,
	}
}

// MessageView is the wire shape of a message: decrypted text plus
// resolved display names.
type MessageView struct {
	ID         int64     `json:"id"`
	Text       string    `json:"text"`
	Sender     string    `json:"sender"`
	SenderID   string    `json:"senderId"`
	Receiver   *string   `json:"receiver"`
	ReceiverID *string   `json:"receiverId"`
	CreatedAt  time.Time `json:"createdAt"`
	IsPrivate  bool      `json:"isPrivate"`
}

// RosterEntry is one row of the active-user roster.
type RosterEntry struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"displayName"`
	Avatar      *string `json:"avatar,omitempty"`
	IsOnline    bool    `json:"isOnline"`
}

// SendPublic validates the sender, encrypts and persists the message,
// and returns the view to broadcast to the public room.
func (s *ChatService) SendPublic(ctx context.Context, senderID, text string) (*MessageView, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}
	sender, err := s.requireActor(ctx, senderID, "User")
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		Text:      s.cipher.Encrypt(text),
		SenderID:  senderID,
		IsPrivate: false,
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	if s.MaxPublicMessages > 0 {
		// The message is already durable; a prune failure must not turn
		// an accepted send into an error.
		if err := s.messages.PrunePublic(ctx, s.MaxPublicMessages); err != nil {
			s.logger.Warnw("prune public messages", "error", err)
		}
	}

	return s.toView(msg, sender, nil), nil
}

// SendPrivate validates both participants, encrypts and persists the
// message, and returns the view to broadcast to the private room.
func (s *ChatService) SendPrivate(ctx context.Context, senderID, receiverID, text string) (*MessageView, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}
	sender, err := s.requireActor(ctx, senderID, "Sender")
	if err != nil {
		return nil, err
	}
	receiver, err := s.requireActor(ctx, receiverID, "Receiver")
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		Text:       s.cipher.Encrypt(text),
		SenderID:   senderID,
		ReceiverID: &receiverID,
		IsPrivate:  true,
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	return s.toView(msg, sender, receiver), nil
}

// PublicHistory returns the most recent public messages in ascending
// creation order, decrypted.
func (s *ChatService) PublicHistory(ctx context.Context) ([]*MessageView, error) {
	msgs, err := s.messages.QueryPublic(ctx, s.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("query public history: %w", err)
	}
	return s.toViews(ctx, msgs)
}

// PrivateHistory returns the most recent private messages between the
// two users in ascending creation order, decrypted.
func (s *ChatService) PrivateHistory(ctx context.Context, userA, userB string) ([]*MessageView, error) {
	msgs, err := s.messages.QueryPrivate(ctx, userA, userB, s.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("query private history: %w", err)
	}
	return s.toViews(ctx, msgs)
}

// Roster returns every active user except selfID. Presence annotation
// is the caller's concern; isOnline reports it per user id.
func (s *ChatService) Roster(ctx context.Context, selfID string, isOnline func(userID string) bool) ([]*RosterEntry, error) {
	users, err := s.users.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	entries := make([]*RosterEntry, 0, len(users))
	for _, u := range users {
		if u.ID == selfID {
			continue
		}
		entries = append(entries, &RosterEntry{
			ID:          u.ID,
			DisplayName: domain.DisplayNameOf(u),
			Avatar:      u.Avatar,
			IsOnline:    isOnline(u.ID),
		})
	}
	return entries, nil
}

func (s *ChatService) requireActor(ctx context.Context, id, role string) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", role, err)
	}
	if u == nil || !u.IsActive {
		return nil, &domain.ActorInvalidError{Role: role}
	}
	return u, nil
}

// toView builds the wire view of a freshly persisted message. The text
// round-trips through the cipher instead of echoing the submitted
// plaintext, so the wire payload always reflects what was stored.
func (s *ChatService) toView(m *domain.Message, sender, receiver *domain.User) *MessageView {
	v := &MessageView{
		ID:        m.ID,
		Text:      s.cipher.Decrypt(m.Text),
		Sender:    domain.DisplayNameOf(sender),
		SenderID:  m.SenderID,
		CreatedAt: m.CreatedAt,
		IsPrivate: m.IsPrivate,
	}
	if receiver != nil {
		name := domain.DisplayNameOf(receiver)
		v.Receiver = &name
		v.ReceiverID = m.ReceiverID
	}
	return v
}

// toViews decrypts a newest-first batch and returns it oldest-first for
// replay, resolving sender/receiver names with a per-call lookup memo.
func (s *ChatService) toViews(ctx context.Context, msgs []*domain.Message) ([]*MessageView, error) {
	memo := map[string]*domain.User{}
	lookup := func(id string) (*domain.User, error) {
		if u, ok := memo[id]; ok {
			return u, nil
		}
		u, err := s.users.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		memo[id] = u
		return u, nil
	}

	views := make([]*MessageView, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		sender, err := lookup(m.SenderID)
		if err != nil {
			return nil, fmt.Errorf("resolve sender: %w", err)
		}
		var receiver *domain.User
		if m.ReceiverID != nil {
			if receiver, err = lookup(*m.ReceiverID); err != nil {
				return nil, fmt.Errorf("resolve receiver: %w", err)
			}
		}
		v := &MessageView{
			ID:        m.ID,
			Text:      s.cipher.Decrypt(m.Text),
			Sender:    domain.DisplayNameOf(sender),
			SenderID:  m.SenderID,
			CreatedAt: m.CreatedAt,
			IsPrivate: m.IsPrivate,
		}
		if m.ReceiverID != nil {
			name := domain.DisplayNameOf(receiver)
			v.Receiver = &name
			v.ReceiverID = m.ReceiverID
		}
		views = append(views, v)
	}
	return views, nil
}

func validateText(text string) error {
	if text == "" {
		return fmt.Errorf("%w: message text must not be empty", domain.ErrInvalidInput)
	}
	if len([]rune(text)) > maxMessageRunes {
		return fmt.Errorf("%w: message text exceeds %d characters", domain.ErrInvalidInput, maxMessageRunes)
	}
	return nil
}
