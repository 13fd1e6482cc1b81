package ws

import "sync"

// PublicRoom is the id of the single public conversation.
const PublicRoom = "public"

// PrivateRoomID returns the canonical room id for a pair of users: the
// two ids sorted lexicographically and joined with "-", so either
// participant's join request resolves to the same room.
func PrivateRoomID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "-" + b
}

// Conn is one live transport session. The id is opaque and
// transport-assigned. Implementations must be safe for concurrent Send
// calls.
type Conn interface {
	ID() string
	Send(event string, data any) error
}

// Router tracks every registered connection and its room memberships,
// and fans outgoing events out to room members. Rooms are just
// membership sets over connection ids; they have no stored existence.
type Router struct {
	mu    sync.RWMutex
	conns map[string]Conn
	rooms map[string]map[string]struct{}
}

func NewRouter() *Router {
	return &Router{
		conns: make(map[string]Conn),
		rooms: make(map[string]map[string]struct{}),
	}
}

// Register adds a connection.
func (rt *Router) Register(conn Conn) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.conns[conn.ID()] = conn
}

// Unregister removes a connection and all its room memberships. Empty
// rooms are dropped.
func (rt *Router) Unregister(connID string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	delete(rt.conns, connID)
	for roomID, members := range rt.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(rt.rooms, roomID)
		}
	}
}

// Join subscribes a registered connection to a room. A connection may
// belong to several rooms at once; joining a room it is already in is a
// no-op. There is no explicit leave short of Unregister: a stale
// membership only means the client receives events its UI ignores.
func (rt *Router) Join(connID, roomID string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if _, ok := rt.conns[connID]; !ok {
		return
	}
	if rt.rooms[roomID] == nil {
		rt.rooms[roomID] = make(map[string]struct{})
	}
	rt.rooms[roomID][connID] = struct{}{}
}

// InRoom reports whether the connection is subscribed to the room.
func (rt *Router) InRoom(connID, roomID string) bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	_, ok := rt.rooms[roomID][connID]
	return ok
}

// Broadcast sends the event to every member of the room. Delivery is
// best effort: send errors are ignored here and the connection is
// cleaned up when its read loop ends.
func (rt *Router) Broadcast(roomID, event string, data any) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	for connID := range rt.rooms[roomID] {
		if conn, ok := rt.conns[connID]; ok {
			_ = conn.Send(event, data)
		}
	}
}

// BroadcastAll sends the event to every registered connection.
func (rt *Router) BroadcastAll(event string, data any) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	for _, conn := range rt.conns {
		_ = conn.Send(event, data)
	}
}

// SendTo sends the event to one connection, if it is still registered.
func (rt *Router) SendTo(connID, event string, data any) {
	rt.mu.RLock()
	conn, ok := rt.conns[connID]
	rt.mu.RUnlock()
	if ok {
		_ = conn.Send(event, data)
	}
}
