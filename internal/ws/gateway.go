package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"gochat/internal/domain"
	"gochat/internal/service"
)

// ioTimeout bounds every directory/store call made on behalf of one
// inbound event, so a slow backend surfaces as an error event instead
// of a hung connection.
const ioTimeout = 10 * time.Second

// Gateway drives the per-connection protocol. A connection moves
// Unannounced -> Announced (on the announce event) -> Closed (on
// disconnect); all other events are self-loops. Failures never close
// the connection; they are converted into a connection-scoped error
// event.
type Gateway struct {
	presence *Registry
	rooms    *Router
	chat     *service.ChatService
	logger   *zap.SugaredLogger
}

func NewGateway(presence *Registry, rooms *Router, chat *service.ChatService, logger *zap.SugaredLogger) *Gateway {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Gateway{
		presence: presence,
		rooms:    rooms,
		chat:     chat,
		logger:   logger,
	}
}

// Connect registers a new, not yet announced connection.
func (g *Gateway) Connect(conn Conn) {
	g.rooms.Register(conn)
	g.logger.Debugw("connection open", "conn", conn.ID())
}

// Disconnect removes the connection from all rooms and, if it had
// announced a user, from the presence registry, then broadcasts the
// updated presence snapshot to the remaining connections.
func (g *Gateway) Disconnect(conn Conn) {
	g.rooms.Unregister(conn.ID())
	if userID, ok := g.presence.Remove(conn.ID()); ok {
		g.logger.Infow("user disconnected", "user", userID, "conn", conn.ID())
		g.broadcastPresence()
	} else {
		g.logger.Debugw("unannounced connection closed", "conn", conn.ID())
	}
}

// HandleEvent dispatches one inbound event for a connection. Events of
// a single connection are handled in arrival order by the transport
// read loop.
func (g *Gateway) HandleEvent(ctx context.Context, conn Conn, evt Event) {
	switch evt.Type {
	case EventAnnounce:
		g.handleAnnounce(conn, evt.Data)
	case EventJoinPublicChat:
		g.handleJoinPublic(ctx, conn)
	case EventJoinPrivateChat:
		g.handleJoinPrivate(ctx, conn, evt.Data)
	case EventPublicMessage:
		g.handlePublicMessage(ctx, conn, evt.Data)
	case EventPrivateMessage:
		g.handlePrivateMessage(ctx, conn, evt.Data)
	case EventGetUserList:
		g.handleGetUserList(ctx, conn)
	case EventUpdateOnlineStatus:
		g.broadcastPresence()
	default:
		g.logger.Infow("unknown event type", "type", evt.Type, "conn", conn.ID())
	}
}

func (g *Gateway) handleAnnounce(conn Conn, data json.RawMessage) {
	var p announcePayload
	if err := json.Unmarshal(data, &p); err != nil || p.UserID == "" {
		g.sendError(conn, "announce requires a userId")
		return
	}
	g.presence.Announce(conn.ID(), p.UserID)
	g.logger.Infow("user announced", "user", p.UserID, "conn", conn.ID())
	g.broadcastPresence()
}

func (g *Gateway) handleJoinPublic(ctx context.Context, conn Conn) {
	g.rooms.Join(conn.ID(), PublicRoom)

	ctx, cancel := context.WithTimeout(ctx, ioTimeout)
	defer cancel()

	history, err := g.chat.PublicHistory(ctx)
	if err != nil {
		g.logger.Errorw("load public history", "error", err, "conn", conn.ID())
		g.sendError(conn, "Failed to load public messages")
		return
	}
	_ = conn.Send(EventPreviousMessages, history)
}

func (g *Gateway) handleJoinPrivate(ctx context.Context, conn Conn, data json.RawMessage) {
	var p joinPrivatePayload
	if err := json.Unmarshal(data, &p); err != nil || p.OtherUserID == "" {
		g.sendError(conn, "joinPrivateChat requires an otherUserId")
		return
	}
	selfID, ok := g.presence.UserFor(conn.ID())
	if !ok {
		g.sendError(conn, "User not authenticated")
		return
	}

	roomID := PrivateRoomID(selfID, p.OtherUserID)
	g.rooms.Join(conn.ID(), roomID)

	ctx, cancel := context.WithTimeout(ctx, ioTimeout)
	defer cancel()

	history, err := g.chat.PrivateHistory(ctx, selfID, p.OtherUserID)
	if err != nil {
		g.logger.Errorw("load private history", "error", err, "conn", conn.ID())
		g.sendError(conn, "Failed to load private messages")
		return
	}
	_ = conn.Send(EventPreviousPrivateMessages, privateHistoryPayload{
		Messages:    history,
		OtherUserID: p.OtherUserID,
		ChatRoomID:  roomID,
	})
}

func (g *Gateway) handlePublicMessage(ctx context.Context, conn Conn, data json.RawMessage) {
	var p publicMessagePayload
	if err := json.Unmarshal(data, &p); err != nil || p.Text == "" || p.UserID == "" {
		g.sendError(conn, "publicMessage requires text and userId")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, ioTimeout)
	defer cancel()

	view, err := g.chat.SendPublic(ctx, p.UserID, p.Text)
	if err != nil {
		g.sendFailure(conn, err, "Failed to send message")
		return
	}
	g.rooms.Broadcast(PublicRoom, EventMessage, view)
}

func (g *Gateway) handlePrivateMessage(ctx context.Context, conn Conn, data json.RawMessage) {
	var p privateMessagePayload
	if err := json.Unmarshal(data, &p); err != nil || p.Text == "" || p.SenderID == "" || p.ReceiverID == "" {
		g.sendError(conn, "privateMessage requires text, senderId and receiverId")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, ioTimeout)
	defer cancel()

	view, err := g.chat.SendPrivate(ctx, p.SenderID, p.ReceiverID, p.Text)
	if err != nil {
		g.sendFailure(conn, err, "Failed to send private message")
		return
	}

	roomID := PrivateRoomID(p.SenderID, p.ReceiverID)
	g.rooms.Broadcast(roomID, EventPrivateMessage, view)

	// An online receiver that is not subscribed to this room (e.g.
	// browsing the public chat) gets a lightweight notification so the
	// client can bump its unread counter.
	if recvConn, ok := g.presence.ConnFor(p.ReceiverID); ok && !g.rooms.InRoom(recvConn, roomID) {
		g.rooms.SendTo(recvConn, EventNewPrivateMessage, privateNoticePayload{
			From:       view.Sender,
			FromID:     p.SenderID,
			Message:    view.Text,
			ChatRoomID: roomID,
		})
	}
}

func (g *Gateway) handleGetUserList(ctx context.Context, conn Conn) {
	// Unannounced connections may still browse the roster; there is just
	// no self to exclude.
	selfID, _ := g.presence.UserFor(conn.ID())

	ctx, cancel := context.WithTimeout(ctx, ioTimeout)
	defer cancel()

	roster, err := g.chat.Roster(ctx, selfID, g.presence.IsOnline)
	if err != nil {
		g.logger.Errorw("load user list", "error", err, "conn", conn.ID())
		g.sendError(conn, "Failed to get user list")
		return
	}
	_ = conn.Send(EventUserList, roster)
}

func (g *Gateway) broadcastPresence() {
	g.rooms.BroadcastAll(EventOnlineUsers, g.presence.Snapshot())
}

// sendFailure maps a service error to the error event: actor validation
// and input problems carry their own message, everything else is logged
// and reported generically.
func (g *Gateway) sendFailure(conn Conn, err error, generic string) {
	var actorErr *domain.ActorInvalidError
	switch {
	case errors.As(err, &actorErr):
		g.sendError(conn, actorErr.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		g.sendError(conn, err.Error())
	default:
		g.logger.Errorw("event failed", "error", err, "conn", conn.ID())
		g.sendError(conn, generic)
	}
}

func (g *Gateway) sendError(conn Conn, msg string) {
	_ = conn.Send(EventError, errorPayload{Message: msg})
}
