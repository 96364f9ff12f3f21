package realtime

import (
	"errors"
	"sort"
	"sync"
)

var ErrHubClosed = errors.New("realtime: hub is shut down")

// Hub is the session registry: every session sits on its user channel and on the chat
// channels it joined. All mutations happen under one lock.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
	users    map[int]map[*Session]struct{}
	chats    map[int]map[*Session]struct{}
	closed   bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[*Session]struct{}),
		users:    make(map[int]map[*Session]struct{}),
		chats:    make(map[int]map[*Session]struct{}),
	}
}

// Register subscribes s to its user channel and reports whether it is the user's first session.
func (h *Hub) Register(s *Session) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false, ErrHubClosed
	}
	if _, ok := h.sessions[s]; ok {
		return false, nil
	}
	h.sessions[s] = struct{}{}
	set, ok := h.users[s.UserID]
	if !ok {
		set = make(map[*Session]struct{})
		h.users[s.UserID] = set
	}
	set[s] = struct{}{}
	return len(set) == 1, nil
}

// Unregister removes s from every channel, closes it and reports whether it was the
// user's last session.
func (h *Hub) Unregister(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s]; !ok {
		s.Close()
		return false
	}
	delete(h.sessions, s)
	for chatID := range s.chats {
		removeFrom(h.chats, chatID, s)
	}
	s.chats = make(map[int]struct{})
	last := removeFrom(h.users, s.UserID, s)
	s.Close()
	return last
}

// JoinChat subscribes a registered session to a chat channel.
func (h *Hub) JoinChat(s *Session, chatID int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s]; !ok {
		return false
	}
	set, ok := h.chats[chatID]
	if !ok {
		set = make(map[*Session]struct{})
		h.chats[chatID] = set
	}
	set[s] = struct{}{}
	s.chats[chatID] = struct{}{}
	return true
}

// LeaveChat unsubscribes s from a chat channel.
func (h *Hub) LeaveChat(s *Session, chatID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	removeFrom(h.chats, chatID, s)
	delete(s.chats, chatID)
}

// UnsubscribeUser removes every session of userID from the chat channel and returns how many were removed.
func (h *Hub) UnsubscribeUser(chatID, userID int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := 0
	for s := range h.users[userID] {
		if _, ok := s.chats[chatID]; !ok {
			continue
		}
		removeFrom(h.chats, chatID, s)
		delete(s.chats, chatID)
		removed++
	}
	return removed
}

// UserSessions snapshots the user channel.
func (h *Hub) UserSessions(userID int) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return snapshot(h.users[userID])
}

// ChatSessions snapshots the chat channel.
func (h *Hub) ChatSessions(chatID int) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return snapshot(h.chats[chatID])
}

// AllSessions snapshots every registered session.
func (h *Hub) AllSessions() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return snapshot(h.sessions)
}

// OnlineUserIDs lists users with at least one session, ascending.
func (h *Hub) OnlineUserIDs() []int {
	h.mu.RLock()
	ids := make([]int, 0, len(h.users))
	for id := range h.users {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	sort.Ints(ids)
	return ids
}

// IsOnline reports whether userID has a live session.
func (h *Hub) IsOnline(userID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// Broadcast queues frame on every session and returns how many accepted it.
func (h *Hub) Broadcast(frame []byte) int {
	delivered := 0
	for _, s := range h.AllSessions() {
		if s.Deliver(frame) {
			delivered++
		}
	}
	return delivered
}

// Shutdown closes every session and refuses further registrations.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.sessions {
		s.Close()
	}
	h.sessions = make(map[*Session]struct{})
	h.users = make(map[int]map[*Session]struct{})
	h.chats = make(map[int]map[*Session]struct{})
}

// removeFrom deletes s from index[key] and reports whether the set became empty.
func removeFrom(index map[int]map[*Session]struct{}, key int, s *Session) bool {
	set, ok := index[key]
	if !ok {
		return false
	}
	if _, ok := set[s]; !ok {
		return false
	}
	delete(set, s)
	if len(set) == 0 {
		delete(index, key)
		return true
	}
	return false
}

func snapshot(set map[*Session]struct{}) []*Session {
	out := make([]*Session, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}
