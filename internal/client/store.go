// Package client implements the realtime sync layer used by Go clients of the
// chat service: a websocket subscriber plus an in-memory store that merges
// pushed events into local chat, message and notification state. Every merge
// is idempotent so duplicate deliveries (reconnects, overlapping fetch and
// push) converge to the same state.
package client

import (
	"sort"
	"sync"

	"safechat-service/internal/models"
)

// MarkReadFunc is invoked when a message arrives for the currently selected
// chat from another user, so the client can acknowledge it immediately. It is
// called without the store lock held.
type MarkReadFunc func(chatID int, messageIDs []int)

// Store holds the client's view of chats, messages and notifications and
// applies realtime events to it. All methods are safe for concurrent use.
type Store struct {
	mu sync.Mutex

	selfID       int
	selectedChat int // 0 when no chat is open

	chats         []models.ChatPreview
	messages      map[int][]models.Message // keyed by chat id, ordered by CreatedAt
	friends       []models.User
	notifications []models.Notification

	markRead MarkReadFunc
}

func NewStore(selfID int) *Store {
	return &Store{
		selfID:   selfID,
		messages: make(map[int][]models.Message),
	}
}

// OnMarkRead registers the callback fired when a selected-chat message from
// another user is merged.
func (s *Store) OnMarkRead(fn MarkReadFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markRead = fn
}

// SelectChat marks chatID as the open conversation and clears its unread
// counter. Passing 0 deselects.
func (s *Store) SelectChat(chatID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedChat = chatID
	for i := range s.chats {
		if s.chats[i].ID == chatID {
			s.chats[i].UnreadCount = 0
		}
	}
}

// SetChats replaces the chat list with a fetched snapshot, keeping entries
// that arrived over push in the meantime.
func (s *Store) SetChats(chats []models.ChatPreview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[int]struct{}, len(chats))
	merged := make([]models.ChatPreview, len(chats))
	copy(merged, chats)
	for _, c := range chats {
		seen[c.ID] = struct{}{}
	}
	for _, c := range s.chats {
		if _, ok := seen[c.ID]; !ok {
			merged = append(merged, c)
		}
	}
	s.chats = merged
}

// SetMessages replaces the message history of a chat with a fetched snapshot.
func (s *Store) SetMessages(chatID int, msgs []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sorted := make([]models.Message, len(msgs))
	copy(sorted, msgs)
	sortMessages(sorted)
	s.messages[chatID] = sorted
}

// SetFriends replaces the friends list with a fetched snapshot.
func (s *Store) SetFriends(friends []models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.friends = make([]models.User, len(friends))
	copy(s.friends, friends)
}

// Friends returns a snapshot of the friends list.
func (s *Store) Friends() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, len(s.friends))
	copy(out, s.friends)
	return out
}

// Chats returns a snapshot of the chat list. Nested records are deep-copied
// so later event merges never mutate data a caller already holds.
func (s *Store) Chats() []models.ChatPreview {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatPreview, len(s.chats))
	for i, c := range s.chats {
		out[i] = cloneChat(c)
	}
	return out
}

// Messages returns a snapshot of a chat's messages in creation order.
// Receipt slices are copied, matching Chats.
func (s *Store) Messages(chatID int) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages[chatID]))
	for i, m := range s.messages[chatID] {
		out[i] = cloneMessage(m)
	}
	return out
}

// Notifications returns a snapshot of received notifications, newest first.
func (s *Store) Notifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// ApplyMessageNew merges a message:new event. The message is deduplicated by
// id, the chat list entry is upserted (creating it from the embedded preview
// when the chat is unknown) and its last message mirrored. When the chat is
// currently selected and the sender is someone else, the registered mark-read
// callback fires instead of incrementing the unread counter.
func (s *Store) ApplyMessageNew(p models.MessageNewPayload) {
	s.mu.Lock()

	inserted := s.insertMessageLocked(p.ChatID, p.Message)

	idx := s.chatIndexLocked(p.ChatID)
	if idx < 0 && p.ChatPreview != nil {
		s.chats = append(s.chats, *p.ChatPreview)
		idx = len(s.chats) - 1
		s.chats[idx].UnreadCount = 0
	}
	if idx >= 0 {
		msg := p.Message
		s.chats[idx].LastMessage = &msg
		s.chats[idx].UpdatedAt = p.Message.CreatedAt
	}

	fromOther := p.Message.UserID != s.selfID
	selected := s.selectedChat == p.ChatID

	var ack MarkReadFunc
	var ackIDs []int
	if inserted && fromOther {
		if selected {
			ack = s.markRead
			ackIDs = []int{p.Message.ID}
		} else if idx >= 0 {
			s.chats[idx].UnreadCount++
		}
	}
	s.mu.Unlock()

	if ack != nil {
		ack(p.ChatID, ackIDs)
	}
}

// ApplyMessageRead merges a message:read event: each receipt is attached to
// its message unless one by the same user already exists, and the chat-list
// last message copy is kept in sync.
func (s *Store) ApplyMessageRead(p models.MessageReadPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[p.ChatID]
	for _, receipt := range p.Receipts {
		for i := range msgs {
			if msgs[i].ID != receipt.MessageID {
				continue
			}
			if !msgs[i].HasReceiptFrom(receipt.UserID) {
				msgs[i].ReadReceipts = append(msgs[i].ReadReceipts, receipt)
			}
			break
		}
	}

	idx := s.chatIndexLocked(p.ChatID)
	if idx < 0 || s.chats[idx].LastMessage == nil {
		return
	}
	last := s.chats[idx].LastMessage
	for _, receipt := range p.Receipts {
		if receipt.MessageID == last.ID && !last.HasReceiptFrom(receipt.UserID) {
			last.ReadReceipts = append(last.ReadReceipts, receipt)
		}
	}
}

// ApplyChatNew merges a chat:new event; duplicates by chat id are dropped.
func (s *Store) ApplyChatNew(p models.ChatNewPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chatIndexLocked(p.Chat.ID) >= 0 {
		return
	}
	s.chats = append(s.chats, p.Chat)
}

// ApplyNotification prepends a notification:new event; duplicates by id are
// dropped.
func (s *Store) ApplyNotification(p models.NotificationNewPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ID == p.Notification.ID {
			return
		}
	}
	s.notifications = append([]models.Notification{p.Notification}, s.notifications...)
}

// ApplyPresence patches the presence fields of every cached user record
// matching the event: friends list entries and chat participants.
func (s *Store) ApplyPresence(p models.PresencePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.friends {
		if s.friends[i].ID == p.UserID {
			s.friends[i].IsOnline = p.IsOnline
			s.friends[i].LastSeen = p.LastSeen
		}
	}
	for i := range s.chats {
		patchPresence(s.chats[i].User1, p)
		patchPresence(s.chats[i].User2, p)
	}
}

func patchPresence(u *models.User, p models.PresencePayload) {
	if u == nil || u.ID != p.UserID {
		return
	}
	u.IsOnline = p.IsOnline
	u.LastSeen = p.LastSeen
}

// insertMessageLocked adds msg to chatID's history unless a message with the
// same id is already present. Reports whether an insert happened.
func (s *Store) insertMessageLocked(chatID int, msg models.Message) bool {
	msgs := s.messages[chatID]
	for _, existing := range msgs {
		if existing.ID == msg.ID {
			return false
		}
	}
	msgs = append(msgs, msg)
	sortMessages(msgs)
	s.messages[chatID] = msgs
	return true
}

func (s *Store) chatIndexLocked(chatID int) int {
	for i := range s.chats {
		if s.chats[i].ID == chatID {
			return i
		}
	}
	return -1
}

func sortMessages(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

func cloneMessage(m models.Message) models.Message {
	m.ReadReceipts = append([]models.ReadReceipt(nil), m.ReadReceipts...)
	return m
}

func cloneChat(c models.ChatPreview) models.ChatPreview {
	c.User1 = cloneUser(c.User1)
	c.User2 = cloneUser(c.User2)
	if c.LastMessage != nil {
		cp := cloneMessage(*c.LastMessage)
		c.LastMessage = &cp
	}
	return c
}
