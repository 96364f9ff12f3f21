package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"chat-core/internal/guard"
	"chat-core/internal/models"
	"chat-core/internal/repositories"
)

// memStore is an in-memory stand-in for the three repositories with the same
// conditional-mutation semantics as the SQL implementations.
type memStore struct {
	mu       sync.Mutex
	users    map[int]models.User
	chats    map[int]models.Chat
	members  map[int]map[int]models.Participant
	messages []models.Message
	nextChat int
	nextMsg  int64
}

func newMemStore(usernames ...string) *memStore {
	s := &memStore{
		users:   map[int]models.User{},
		chats:   map[int]models.Chat{},
		members: map[int]map[int]models.Participant{},
	}
	for i, name := range usernames {
		id := i + 1
		s.users[id] = models.User{ID: id, Username: name}
	}
	return s
}

func newGuard(s *memStore) *guard.Guard {
	return guard.New(s, s)
}

// users

func (s *memStore) CreateUser(_ context.Context, username, hash string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return models.User{}, repositories.ErrUsernameTaken
		}
	}
	u := models.User{ID: len(s.users) + 1, Username: username, PasswordHash: hash}
	s.users[u.ID] = u
	return u, nil
}

func (s *memStore) GetUser(_ context.Context, id int) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrUserNotFound
	}
	return u, nil
}

func (s *memStore) GetUserByUsername(_ context.Context, username string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, repositories.ErrUserNotFound
}

func (s *memStore) ListUsers(_ context.Context, ids []int) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.User{}
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *memStore) UpdateAvatar(_ context.Context, id int, url, mediaID *string) (models.User, *string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, nil, repositories.ErrUserNotFound
	}
	prev := u.AvatarMediaID
	u.AvatarURL, u.AvatarMediaID = url, mediaID
	s.users[id] = u
	return u, prev, nil
}

// chats

func (s *memStore) GetChat(_ context.Context, id int) (models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok {
		return models.Chat{}, repositories.ErrChatNotFound
	}
	return c, nil
}

func (s *memStore) FindDirectChat(_ context.Context, key string) (models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chats {
		if c.PrivateKey != nil && *c.PrivateKey == key {
			return c, nil
		}
	}
	return models.Chat{}, repositories.ErrChatNotFound
}

func (s *memStore) CreateDirectChat(_ context.Context, key string, a, b int) (models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chats {
		if c.PrivateKey != nil && *c.PrivateKey == key {
			return models.Chat{}, repositories.ErrDirectChatExists
		}
	}
	c := s.newChat(models.ChatTypeDirect)
	c.PrivateKey = &key
	s.chats[c.ID] = c
	s.addMember(c.ID, a, models.RoleMember)
	s.addMember(c.ID, b, models.RoleMember)
	return c, nil
}

func (s *memStore) CreateGroupChat(_ context.Context, owner int, title string, ids []int, created models.Message) (models.Chat, models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.newChat(models.ChatTypeGroup)
	c.Title = &title
	s.chats[c.ID] = c
	s.addMember(c.ID, owner, models.RoleOwner)
	for _, id := range ids {
		if id != owner {
			s.addMember(c.ID, id, models.RoleMember)
		}
	}
	created.ChatID = c.ID
	return c, s.insert(created), nil
}

func (s *memStore) ListChatsForUser(_ context.Context, userID int) ([]models.ChatSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.ChatSummary{}
	for id, c := range s.chats {
		if _, ok := s.members[id][userID]; !ok {
			continue
		}
		sum := models.ChatSummary{Chat: c, Participants: s.views(id), UnreadCount: s.unread(id, userID)}
		for i := len(s.messages) - 1; i >= 0; i-- {
			if s.messages[i].ChatID == id {
				m := s.messages[i]
				sum.LastMessage = &m
				break
			}
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *memStore) GetParticipant(_ context.Context, chatID, userID int) (models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.members[chatID][userID]
	if !ok {
		return models.Participant{}, repositories.ErrParticipantNotFound
	}
	return p, nil
}

func (s *memStore) ListParticipants(_ context.Context, chatID int) ([]models.ParticipantView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.views(chatID), nil
}

func (s *memStore) ListMemberIDs(_ context.Context, chatID int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []int{}
	for id := range s.members[chatID] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

func (s *memStore) AddParticipant(_ context.Context, chatID, userID int, sys models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[chatID][userID]; ok {
		return models.Message{}, repositories.ErrAlreadyParticipant
	}
	s.addMember(chatID, userID, models.RoleMember)
	sys.ChatID = chatID
	return s.insert(sys), nil
}

func (s *memStore) RemoveParticipant(_ context.Context, chatID, userID int, sys models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.members[chatID][userID]
	if !ok || p.Role == models.RoleOwner {
		return models.Message{}, repositories.ErrParticipantNotFound
	}
	delete(s.members[chatID], userID)
	sys.ChatID = chatID
	return s.insert(sys), nil
}

func (s *memStore) UpdateParticipantRole(_ context.Context, chatID, userID int, from, to models.Role, sys models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.members[chatID][userID]
	if !ok || p.Role != from {
		return models.Message{}, repositories.ErrParticipantNotFound
	}
	p.Role = to
	s.members[chatID][userID] = p
	sys.ChatID = chatID
	return s.insert(sys), nil
}

func (s *memStore) UpdateChat(_ context.Context, chatID int, patch models.GroupPatch, sys []models.Message) (repositories.ChatUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return repositories.ChatUpdate{}, repositories.ErrChatNotFound
	}
	var out repositories.ChatUpdate
	if patch.Title != nil {
		c.Title = patch.Title
	}
	if patch.AvatarURL != nil {
		out.PreviousAvatarMediaID = c.AvatarMediaID
		c.AvatarURL, c.AvatarMediaID = patch.AvatarURL, patch.AvatarMediaID
		if *patch.AvatarURL == "" {
			c.AvatarURL, c.AvatarMediaID = nil, nil
		}
	}
	s.chats[chatID] = c
	out.Chat = c
	for _, m := range sys {
		m.ChatID = chatID
		out.Messages = append(out.Messages, s.insert(m))
	}
	return out, nil
}

func (s *memStore) DeleteChat(_ context.Context, chatID int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return nil, repositories.ErrChatNotFound
	}
	ids := []string{}
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.ChatID != chatID {
			kept = append(kept, m)
			continue
		}
		if m.ImagePublicID != nil {
			ids = append(ids, *m.ImagePublicID)
		}
	}
	s.messages = kept
	if c.AvatarMediaID != nil {
		ids = append(ids, *c.AvatarMediaID)
	}
	delete(s.chats, chatID)
	delete(s.members, chatID)
	return ids, nil
}

// messages

func (s *memStore) CreateMessage(_ context.Context, msg models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[msg.ChatID]
	if !ok {
		return models.Message{}, repositories.ErrChatNotFound
	}
	out := s.insert(msg)
	c.UpdatedAt = out.CreatedAt
	s.chats[c.ID] = c
	return out, nil
}

func (s *memStore) GetMessage(_ context.Context, id int64) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return models.Message{}, repositories.ErrMessageNotFound
}

func (s *memStore) UpdateMessage(_ context.Context, id int64, fromID int, text string, url, publicID *string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.messages {
		if m.ID == id && m.AuthoredBy(fromID) && m.Type == models.MessageTypeText {
			m.Text, m.ImageURL, m.ImagePublicID, m.Edited = text, url, publicID, true
			s.messages[i] = m
			return m, nil
		}
	}
	return models.Message{}, repositories.ErrMessageNotFound
}

func (s *memStore) DeleteMessage(_ context.Context, id int64, fromID int) (models.Message, *models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.messages {
		if m.ID == id && m.AuthoredBy(fromID) && m.Type == models.MessageTypeText {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return m, s.last(m.ChatID), nil
		}
	}
	return models.Message{}, nil, repositories.ErrMessageNotFound
}

func (s *memStore) LastMessage(_ context.Context, chatID int) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last(chatID), nil
}

func (s *memStore) ListMessages(_ context.Context, chatID int, cursor *int64, direction string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var in []models.Message
	for _, m := range s.messages {
		if m.ChatID == chatID {
			in = append(in, m)
		}
	}
	out := []models.Message{}
	if direction == models.DirectionNewer {
		for _, m := range in {
			if (cursor == nil || m.ID > *cursor) && len(out) < limit {
				out = append(out, m)
			}
		}
		return out, nil
	}
	for i := len(in) - 1; i >= 0 && len(out) < limit; i-- {
		if cursor == nil || in[i].ID < *cursor {
			out = append([]models.Message{in[i]}, out...)
		}
	}
	return out, nil
}

func (s *memStore) MarkRead(_ context.Context, chatID, readerID int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i, m := range s.messages {
		if m.ChatID == chatID && !m.Read && !m.AuthoredBy(readerID) {
			s.messages[i].Read = true
			n++
		}
	}
	return n, nil
}

func (s *memStore) UnreadCount(_ context.Context, chatID, viewerID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread(chatID, viewerID), nil
}

// helpers, called with mu held

func (s *memStore) newChat(t models.ChatType) models.Chat {
	s.nextChat++
	now := time.Now()
	return models.Chat{ID: s.nextChat, Type: t, CreatedAt: now, UpdatedAt: now}
}

func (s *memStore) addMember(chatID, userID int, role models.Role) {
	if s.members[chatID] == nil {
		s.members[chatID] = map[int]models.Participant{}
	}
	s.members[chatID][userID] = models.Participant{ChatID: chatID, UserID: userID, Role: role, JoinedAt: time.Now()}
}

func (s *memStore) insert(m models.Message) models.Message {
	s.nextMsg++
	m.ID = s.nextMsg
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	if m.Type == "" {
		m.Type = models.MessageTypeText
	}
	s.messages = append(s.messages, m)
	return m
}

func (s *memStore) views(chatID int) []models.ParticipantView {
	out := []models.ParticipantView{}
	for id, p := range s.members[chatID] {
		out = append(out, models.ParticipantView{ChatID: chatID, UserID: id, Username: s.users[id].Username, Role: p.Role, JoinedAt: p.JoinedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (s *memStore) unread(chatID, viewerID int) int {
	n := 0
	for _, m := range s.messages {
		if m.ChatID == chatID && !m.Read && !m.AuthoredBy(viewerID) {
			n++
		}
	}
	return n
}

func (s *memStore) last(chatID int) *models.Message {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].ChatID == chatID {
			m := s.messages[i]
			return &m
		}
	}
	return nil
}

// recorder captures broadcasts instead of delivering them.
type recorder struct {
	mu       sync.Mutex
	members  func(ctx context.Context, chatID int) ([]int, error)
	events   []sent
	unsubbed [][2]int
	err      error
}

type sent struct {
	Channel string // "chat" or "user"
	ID      int
	Event   string
	Payload any
}

func newRecorder(s *memStore) *recorder {
	return &recorder{members: s.ListMemberIDs}
}

func (r *recorder) EmitToChat(chatID int, event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sent{"chat", chatID, event, payload})
	return r.err
}

func (r *recorder) EmitToUser(userID int, event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sent{"user", userID, event, payload})
	return r.err
}

func (r *recorder) EmitToUsers(userIDs []int, event string, payload any) error {
	for _, id := range uniqueIDs(userIDs) {
		_ = r.EmitToUser(id, event, payload)
	}
	return r.err
}

func (r *recorder) EmitToChatAndUsers(ctx context.Context, chatID, initiatorID int, event string, payload any) error {
	ids, err := r.members(ctx, chatID)
	if err != nil {
		return err
	}
	_ = r.EmitToChat(chatID, event, payload)
	if initiatorID > 0 {
		ids = append(ids, initiatorID)
	}
	return r.EmitToUsers(ids, event, payload)
}

func (r *recorder) EmitToChatAndMembers(ctx context.Context, chatID int, event string, chatPayload any, memberPayload func(int) (any, error)) error {
	ids, err := r.members(ctx, chatID)
	if err != nil {
		return err
	}
	_ = r.EmitToChat(chatID, event, chatPayload)
	for _, id := range ids {
		p, err := memberPayload(id)
		if err != nil {
			return err
		}
		_ = r.EmitToUser(id, event, p)
	}
	return r.err
}

func (r *recorder) UnsubscribeUser(chatID, userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubbed = append(r.unsubbed, [2]int{chatID, userID})
	return r.err
}

// find returns the events sent on one channel with the given name.
func (r *recorder) find(channel string, id int, event string) []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sent
	for _, e := range r.events {
		if e.Channel == channel && e.ID == id && e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.unsubbed = nil
}
