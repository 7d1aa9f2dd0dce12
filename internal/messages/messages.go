// Package messages covers the user <-> admin conversations. Conversations are
// never stored; they are derived from the flat messages collection.
package messages

import (
	"errors"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/dtorres47/request-portal/internal/collection"
	"github.com/dtorres47/request-portal/internal/kv"
	"github.com/dtorres47/request-portal/internal/model"
)

var (
	ErrEmptyMessage = errors.New("message content is empty")
	ErrNoRecipient  = errors.New("message recipient is empty")
)

type Service struct {
	msgs *collection.Collection[model.Message]
	ids  *model.IDSource
	now  func() time.Time
}

func NewService(store kv.Store, ids *model.IDSource) *Service {
	if ids == nil {
		ids = &model.IDSource{}
	}
	return &Service{
		msgs: collection.New[model.Message](store, model.KeyMessages),
		ids:  ids,
		now:  model.Now,
	}
}

func byTimestamp(m model.Message) time.Time { return m.Timestamp }

// Send appends one unread message.
func (s *Service) Send(from, to, content string) (model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return model.Message{}, ErrEmptyMessage
	}
	if from == "" || to == "" {
		return model.Message{}, ErrNoRecipient
	}
	now := s.now()
	m := model.Message{
		ID:        s.ids.Next(now),
		From:      from,
		To:        to,
		Content:   content,
		Timestamp: now,
	}
	if err := s.msgs.Append(m); err != nil {
		return model.Message{}, err
	}
	return m, nil
}

// Conversation is every message between user and admin, oldest first.
func (s *Service) Conversation(user string) []model.Message {
	conv := lo.Filter(s.msgs.Load(), func(m model.Message, _ int) bool {
		return (m.From == user && m.To == model.Admin) || (m.From == model.Admin && m.To == user)
	})
	return collection.SortOldestFirst(conv, byTimestamp)
}

// Inbox is the admin's messages to user, newest first.
func (s *Service) Inbox(user string) []model.Message {
	in := lo.Filter(s.msgs.Load(), func(m model.Message, _ int) bool {
		return m.From == model.Admin && m.To == user
	})
	return collection.SortNewestFirst(in, byTimestamp)
}

func (s *Service) UnreadCount(user string) int {
	return lo.CountBy(s.msgs.Load(), func(m model.Message) bool {
		return m.To == user && !m.IsRead
	})
}

// MarkRead flips isRead on every message addressed to user in one write.
// Returns how many messages changed.
func (s *Service) MarkRead(user string) (int, error) {
	all := s.msgs.Load()
	n := 0
	for i := range all {
		if all[i].To == user && !all[i].IsRead {
			all[i].IsRead = true
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.msgs.Save(all)
}

// Conversations groups every message by the party on the other side of
// admin. Each thread keeps stored order.
func (s *Service) Conversations() map[string][]model.Message {
	return lo.GroupBy(s.msgs.Load(), func(m model.Message) string {
		return m.OtherParty()
	})
}

// All returns the collection in stored order.
func (s *Service) All() []model.Message { return s.msgs.Load() }
