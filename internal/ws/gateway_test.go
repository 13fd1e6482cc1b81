package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gochat/internal/domain"
	"gochat/internal/security"
	"gochat/internal/service"
)

// In-memory collaborators for scenario tests.

type memDirectory struct {
	users map[string]*domain.User
}

func (d *memDirectory) FindByID(_ context.Context, id string) (*domain.User, error) {
	return d.users[id], nil
}

func (d *memDirectory) ListActive(_ context.Context) ([]*domain.User, error) {
	var out []*domain.User
	for _, u := range d.users {
		if u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

type memStore struct {
	mu   sync.Mutex
	seq  int64
	msgs []*domain.Message
}

func (s *memStore) Append(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	m.ID = s.seq
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	stored := *m
	s.msgs = append(s.msgs, &stored)
	return nil
}

func (s *memStore) QueryPublic(_ context.Context, limit int) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Message
	for i := len(s.msgs) - 1; i >= 0 && len(out) < limit; i-- {
		if !s.msgs[i].IsPrivate {
			out = append(out, s.msgs[i])
		}
	}
	return out, nil
}

func (s *memStore) QueryPrivate(_ context.Context, a, b string, limit int) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Message
	for i := len(s.msgs) - 1; i >= 0 && len(out) < limit; i-- {
		m := s.msgs[i]
		if !m.IsPrivate || m.ReceiverID == nil {
			continue
		}
		if (m.SenderID == a && *m.ReceiverID == b) || (m.SenderID == b && *m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) PrunePublic(_ context.Context, keep int) error { return nil }

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

type gatewayFixture struct {
	gw       *Gateway
	store    *memStore
	presence *Registry
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	strp := func(s string) *string { return &s }

	dir := &memDirectory{users: map[string]*domain.User{
		"alice": {ID: "alice", DisplayName: strp("Alice"), IsActive: true},
		"bob":   {ID: "bob", DisplayName: strp("Bob"), IsActive: true},
		"carol": {ID: "carol", DisplayName: strp("Carol"), IsActive: false},
	}}
	store := &memStore{}
	cipher, err := security.NewCipher("test-secret", nil)
	require.NoError(t, err)
	chat := service.NewChatService(dir, store, cipher, nil, 50, 0)

	presence := NewRegistry()
	return &gatewayFixture{
		gw:       NewGateway(presence, NewRouter(), chat, nil),
		store:    store,
		presence: presence,
	}
}

func (f *gatewayFixture) connect(t *testing.T, connID string) *fakeConn {
	t.Helper()
	conn := newFakeConn(connID)
	f.gw.Connect(conn)
	return conn
}

func (f *gatewayFixture) event(t *testing.T, conn Conn, typ string, payload any) {
	t.Helper()
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		data = raw
	}
	f.gw.HandleEvent(context.Background(), conn, Event{Type: typ, Data: data})
}

func (f *gatewayFixture) announce(t *testing.T, conn Conn, userID string) {
	t.Helper()
	f.event(t, conn, EventAnnounce, map[string]string{"userId": userID})
}

func lastErrorMessage(t *testing.T, conn *fakeConn) string {
	t.Helper()
	errs := conn.received(EventError)
	require.NotEmpty(t, errs)
	p, ok := errs[len(errs)-1].(errorPayload)
	require.True(t, ok)
	return p.Message
}

func TestAnnounceBroadcastsPresence(t *testing.T) {
	f := newGatewayFixture(t)
	a := f.connect(t, "conn-a")
	b := f.connect(t, "conn-b")

	f.announce(t, a, "alice")
	f.announce(t, b, "bob")

	snaps := b.received(EventOnlineUsers)
	require.NotEmpty(t, snaps)
	assert.Equal(t, []string{"alice", "bob"}, snaps[len(snaps)-1])
}

func TestPublicMessageReachesRoomMembers(t *testing.T) {
	f := newGatewayFixture(t)
	a := f.connect(t, "conn-a")
	b := f.connect(t, "conn-b")
	f.announce(t, a, "alice")
	f.announce(t, b, "bob")
	f.event(t, a, EventJoinPublicChat, nil)
	f.event(t, b, EventJoinPublicChat, nil)
	a.reset()
	b.reset()

	f.event(t, a, EventPublicMessage, map[string]string{"text": "hi", "userId": "alice"})

	got := b.received(EventMessage)
	require.Len(t, got, 1)
	view, ok := got[0].(*service.MessageView)
	require.True(t, ok)
	assert.Equal(t, "hi", view.Text)
	assert.Equal(t, "alice", view.SenderID)
	assert.Equal(t, "Alice", view.Sender)
	assert.False(t, view.IsPrivate)
	assert.Nil(t, view.ReceiverID)

	// The sender's own public-room connection receives the same event.
	assert.Len(t, a.received(EventMessage), 1)
}

func TestJoinPublicReplaysHistory(t *testing.T) {
	f := newGatewayFixture(t)
	a := f.connect(t, "conn-a")
	f.announce(t, a, "alice")
	f.event(t, a, EventJoinPublicChat, nil)
	f.event(t, a, EventPublicMessage, map[string]string{"text": "first", "userId": "alice"})
	f.event(t, a, EventPublicMessage, map[string]string{"text": "second", "userId": "alice"})

	b := f.connect(t, "conn-b")
	f.announce(t, b, "bob")
	f.event(t, b, EventJoinPublicChat, nil)

	batches := b.received(EventPreviousMessages)
	require.Len(t, batches, 1)
	views, ok := batches[0].([]*service.MessageView)
	require.True(t, ok)
	require.Len(t, views, 2)
	assert.Equal(t, "first", views[0].Text, "replay is in ascending creation order")
	assert.Equal(t, "second", views[1].Text)
}

func TestPrivateMessageRoomAndNotification(t *testing.T) {
	f := newGatewayFixture(t)
	a := f.connect(t, "conn-a")
	b := f.connect(t, "conn-b")
	f.announce(t, a, "alice")
	f.announce(t, b, "bob")

	// Only alice joins the private room; bob is elsewhere.
	f.event(t, a, EventJoinPrivateChat, map[string]string{"otherUserId": "bob"})
	a.reset()
	b.reset()

	f.event(t, a, EventPrivateMessage, map[string]string{
		"text": "yo", "senderId": "alice", "receiverId": "bob",
	})

	msgs := a.received(EventPrivateMessage)
	require.Len(t, msgs, 1)
	view := msgs[0].(*service.MessageView)
	assert.Equal(t, "yo", view.Text)
	assert.True(t, view.IsPrivate)
	require.NotNil(t, view.ReceiverID)
	assert.Equal(t, "bob", *view.ReceiverID)

	// Bob is not in the room: no privateMessage, only the lightweight
	// notification.
	assert.Empty(t, b.received(EventPrivateMessage))
	notices := b.received(EventNewPrivateMessage)
	require.Len(t, notices, 1)
	notice := notices[0].(privateNoticePayload)
	assert.Equal(t, "alice", notice.FromID)
	assert.Equal(t, "Alice", notice.From)
	assert.Equal(t, "yo", notice.Message)

	// Once bob joins the room, he receives the room broadcast and no
	// extra notification.
	f.event(t, b, EventJoinPrivateChat, map[string]string{"otherUserId": "alice"})
	b.reset()
	f.event(t, a, EventPrivateMessage, map[string]string{
		"text": "again", "senderId": "alice", "receiverId": "bob",
	})
	assert.Len(t, b.received(EventPrivateMessage), 1)
	assert.Empty(t, b.received(EventNewPrivateMessage))
}

func TestJoinPrivateRequiresAnnounce(t *testing.T) {
	f := newGatewayFixture(t)
	a := f.connect(t, "conn-a")

	f.event(t, a, EventJoinPrivateChat, map[string]string{"otherUserId": "bob"})

	assert.Equal(t, "User not authenticated", lastErrorMessage(t, a))
	assert.Empty(t, a.received(EventPreviousPrivateMessages))
}

func TestPrivateHistoryIsTaggedWithPeer(t *testing.T) {
	f := newGatewayFixture(t)
	a := f.connect(t, "conn-a")
	b := f.connect(t, "conn-b")
	f.announce(t, a, "alice")
	f.announce(t, b, "bob")
	f.event(t, a, EventJoinPrivateChat, map[string]string{"otherUserId": "bob"})
	f.event(t, a, EventPrivateMessage, map[string]string{
		"text": "psst", "senderId": "alice", "receiverId": "bob",
	})

	f.event(t, b, EventJoinPrivateChat, map[string]string{"otherUserId": "alice"})

	batches := b.received(EventPreviousPrivateMessages)
	require.Len(t, batches, 1)
	payload := batches[0].(privateHistoryPayload)
	assert.Equal(t, "alice", payload.OtherUserID)
	assert.Equal(t, PrivateRoomID("alice", "bob"), payload.ChatRoomID)
	views := payload.Messages.([]*service.MessageView)
	require.Len(t, views, 1)
	assert.Equal(t, "psst", views[0].Text)
}

func TestUnknownSenderIsRejectedWithoutSideEffects(t *testing.T) {
	f := newGatewayFixture(t)
	a := f.connect(t, "conn-a")
	b := f.connect(t, "conn-b")
	f.announce(t, b, "bob")
	f.event(t, b, EventJoinPublicChat, nil)
	b.reset()

	f.event(t, a, EventPublicMessage, map[string]string{"text": "hi", "userId": "ghost"})

	assert.Equal(t, "User not found or inactive", lastErrorMessage(t, a))
	assert.Zero(t, f.store.count(), "no record persisted")
	assert.Empty(t, b.received(EventMessage), "no broadcast")
}

func TestInactiveReceiverIsRejected(t *testing.T) {
	f := newGatewayFixture(t)
	a := f.connect(t, "conn-a")
	f.announce(t, a, "alice")

	f.event(t, a, EventPrivateMessage, map[string]string{
		"text": "hi", "senderId": "alice", "receiverId": "carol",
	})

	assert.Equal(t, "Receiver not found or inactive", lastErrorMessage(t, a))
	assert.Zero(t, f.store.count())
}

func TestDisconnectUpdatesPresence(t *testing.T) {
	f := newGatewayFixture(t)
	a := f.connect(t, "conn-a")
	b := f.connect(t, "conn-b")
	f.announce(t, a, "alice")
	f.announce(t, b, "bob")
	b.reset()

	f.gw.Disconnect(a)

	snaps := b.received(EventOnlineUsers)
	require.Len(t, snaps, 1)
	assert.Equal(t, []string{"bob"}, snaps[0])
	assert.False(t, f.presence.IsOnline("alice"))
}

func TestGetUserListAnnotatesPresence(t *testing.T) {
	f := newGatewayFixture(t)
	a := f.connect(t, "conn-a")
	b := f.connect(t, "conn-b")
	f.announce(t, a, "alice")
	f.announce(t, b, "bob")

	f.event(t, a, EventGetUserList, nil)

	lists := a.received(EventUserList)
	require.Len(t, lists, 1)
	roster := lists[0].([]*service.RosterEntry)

	// Active users except self; the inactive user never appears.
	require.Len(t, roster, 1)
	assert.Equal(t, "bob", roster[0].ID)
	assert.Equal(t, "Bob", roster[0].DisplayName)
	assert.True(t, roster[0].IsOnline)
}

func TestUpdateOnlineStatusRebroadcasts(t *testing.T) {
	f := newGatewayFixture(t)
	a := f.connect(t, "conn-a")
	f.announce(t, a, "alice")
	a.reset()

	f.event(t, a, EventUpdateOnlineStatus, nil)

	snaps := a.received(EventOnlineUsers)
	require.Len(t, snaps, 1)
	assert.Equal(t, []string{"alice"}, snaps[0])
}

func TestMalformedPayloadsYieldErrorEvents(t *testing.T) {
	f := newGatewayFixture(t)
	a := f.connect(t, "conn-a")

	f.event(t, a, EventAnnounce, map[string]string{})
	assert.Equal(t, "announce requires a userId", lastErrorMessage(t, a))

	f.event(t, a, EventPublicMessage, map[string]string{"userId": "alice"})
	assert.Equal(t, "publicMessage requires text and userId", lastErrorMessage(t, a))

	f.event(t, a, EventPrivateMessage, map[string]string{"text": "hi"})
	assert.Equal(t, "privateMessage requires text, senderId and receiverId", lastErrorMessage(t, a))
}
