package ws

import (
	"sort"
	"sync"
)

// Registry is the single source of truth for which users are online.
// It keeps two maps consistent under one mutex: user id -> connection
// id and connection id -> user id. A user holds at most one connection;
// a second announce for the same user replaces the first (the older
// connection stays open but is no longer considered online).
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]string
	byConn map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]string),
		byConn: make(map[string]string),
	}
}

// Announce binds connID to userID, replacing any previous binding of
// either side.
func (r *Registry) Announce(connID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byUser[userID]; ok && old != connID {
		delete(r.byConn, old)
	}
	if old, ok := r.byConn[connID]; ok && old != userID {
		delete(r.byUser, old)
	}
	r.byUser[userID] = connID
	r.byConn[connID] = userID
}

// Remove drops the connection's binding. The forward mapping is only
// deleted when it still points at this exact connection, so the close
// of a superseded connection cannot knock a fresher one offline.
// It reports which user the connection had announced, if any.
func (r *Registry) Remove(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	delete(r.byConn, connID)
	if r.byUser[userID] == connID {
		delete(r.byUser, userID)
	}
	return userID, true
}

// UserFor returns the user a connection has announced as.
func (r *Registry) UserFor(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.byConn[connID]
	return userID, ok
}

// ConnFor returns the connection currently considered online for a user.
func (r *Registry) ConnFor(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byUser[userID]
	return connID, ok
}

// IsOnline reports whether the user has an announced connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUser[userID]
	return ok
}

// Snapshot returns the ids of all online users, sorted for stable
// payloads.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.byUser))
	for id := range r.byUser {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
