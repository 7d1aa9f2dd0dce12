// Package requests covers the three request flows (games, online fixes and
// bypasses): users submit pending records, the admin approves them with an
// uploaded file and notifies the requester.
package requests

import (
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"

	"github.com/dtorres47/request-portal/internal/collection"
	"github.com/dtorres47/request-portal/internal/kv"
	"github.com/dtorres47/request-portal/internal/model"
)

var (
	ErrEmptyTitle      = errors.New("game title is required")
	ErrMissingArtifact = errors.New("approval needs a file and, for fixes and bypasses, artwork")
	ErrNotFound        = errors.New("request not found")
	ErrUnknownKind     = errors.New("unknown request kind")
	ErrUnknownCategory = errors.New("unknown bypass category")
	ErrNotify          = errors.New("approved but the notification was not sent")
)

type Kind string

const (
	KindGame   Kind = "game"
	KindFix    Kind = "fix"
	KindBypass Kind = "bypass"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindGame, KindFix, KindBypass:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Artifacts are what the admin attaches when approving. ImageURL is either
// a blob: URL for an uploaded image or a pasted link.
type Artifacts struct {
	FileName string
	FileURL  string
	ImageURL string
}

func (a Artifacts) complete(k Kind) bool {
	if a.FileName == "" || a.FileURL == "" {
		return false
	}
	return k == KindGame || strings.TrimSpace(a.ImageURL) != ""
}

// Notifier delivers the approval message to the requester.
type Notifier interface {
	Send(from, to, content string) (model.Message, error)
}

// Visitors receives the synthetic login written by Simulate.
type Visitors interface {
	Record(username string) (model.VisitorLog, error)
}

type Service struct {
	games    *collection.Collection[model.GameRequest]
	fixes    *collection.Collection[model.OnlineFixRequest]
	bypasses *collection.Collection[model.BypassRequest]

	notify   Notifier
	visitors Visitors
	ids      *model.IDSource
	now      func() time.Time
	rand     func() int
}

func NewService(store kv.Store, notify Notifier, visitors Visitors, ids *model.IDSource) *Service {
	if ids == nil {
		ids = &model.IDSource{}
	}
	return &Service{
		games:    collection.New[model.GameRequest](store, model.KeyGameRequests),
		fixes:    collection.New[model.OnlineFixRequest](store, model.KeyFixRequests),
		bypasses: collection.New[model.BypassRequest](store, model.KeyBypasses),
		notify:   notify,
		visitors: visitors,
		ids:      ids,
		now:      model.Now,
		rand:     func() int { return rand.IntN(1000) },
	}
}

// Submission is one request form. Category only applies to bypasses.
type Submission struct {
	Kind     Kind
	Title    string
	Email    string
	Category model.BypassCategory
}

// Submit appends one pending record. Identical titles are accepted again.
func (s *Service) Submit(sub Submission) (any, error) {
	if strings.TrimSpace(sub.Title) == "" {
		return nil, ErrEmptyTitle
	}
	now := s.now()
	id := s.ids.Next(now)
	switch sub.Kind {
	case KindGame:
		r := model.GameRequest{ID: id, UserEmail: sub.Email, GameTitle: sub.Title, Timestamp: now, Status: model.StatusPending}
		return r, s.games.Append(r)
	case KindFix:
		r := model.OnlineFixRequest{ID: id, UserEmail: sub.Email, GameTitle: sub.Title, Timestamp: now, Status: model.StatusPending}
		return r, s.fixes.Append(r)
	case KindBypass:
		// a "<Vendor> Bypass: " title prefix decides the category
		cat, title := model.SplitBypassTitle(sub.Title)
		if cat == "" {
			var ok bool
			if cat, ok = model.ParseBypassCategory(string(sub.Category)); !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, sub.Category)
			}
		} else if strings.TrimSpace(title) == "" {
			return nil, ErrEmptyTitle
		}
		r := model.BypassRequest{ID: id, UserEmail: sub.Email, GameTitle: title, Category: cat, Timestamp: now, Status: model.StatusPending}
		return r, s.bypasses.Append(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, sub.Kind)
}

// Approve patches the record with id, saves its collection, then appends one
// notification to the requester. Approving an approved record patches it
// again and sends another notification.
func (s *Service) Approve(kind Kind, id int64, a Artifacts) (any, error) {
	if !a.complete(kind) {
		return nil, ErrMissingArtifact
	}
	switch kind {
	case KindGame:
		return approve(s, s.games, id, func(r *model.GameRequest) (string, string) {
			r.Status, r.FileName, r.FileURL = model.StatusApproved, a.FileName, a.FileURL
			return r.UserEmail, fmt.Sprintf(`Your game request for "%s" has been approved! You can now download it from your Library.`, r.GameTitle)
		})
	case KindFix:
		return approve(s, s.fixes, id, func(r *model.OnlineFixRequest) (string, string) {
			r.Status, r.FileName, r.FileURL, r.ImageURL = model.StatusApproved, a.FileName, a.FileURL, a.ImageURL
			return r.UserEmail, fmt.Sprintf(`Your request for an Online Fix for "%s" has been approved! It is now available on the Online Fix page.`, r.GameTitle)
		})
	case KindBypass:
		return approve(s, s.bypasses, id, func(r *model.BypassRequest) (string, string) {
			*r = r.Normalize()
			r.Status, r.FileName, r.FileURL, r.ImageURL = model.StatusApproved, a.FileName, a.FileURL, a.ImageURL
			return r.UserEmail, fmt.Sprintf(`Your Bypass request for "%s" has been approved! It is now available on the %s.`, r.GameTitle, r.Category.Page())
		})
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

type identified interface {
	model.GameRequest | model.OnlineFixRequest | model.BypassRequest
}

func idOf[T identified](r T) int64 {
	switch v := any(r).(type) {
	case model.GameRequest:
		return v.ID
	case model.OnlineFixRequest:
		return v.ID
	case model.BypassRequest:
		return v.ID
	}
	return 0
}

// approve is the shared patch-by-id flow. patch returns the recipient and
// the notification text.
func approve[T identified](s *Service, c *collection.Collection[T], id int64, patch func(*T) (string, string)) (T, error) {
	all := c.Load()
	var zero T
	_, idx, ok := lo.FindIndexOf(all, func(r T) bool { return idOf(r) == id })
	if !ok {
		return zero, fmt.Errorf("%s %d: %w", c.Key(), id, ErrNotFound)
	}
	to, text := patch(&all[idx])
	if err := c.Save(all); err != nil {
		return zero, err
	}
	if _, err := s.notify.Send(model.Admin, to, text); err != nil {
		return all[idx], fmt.Errorf("notify %s: %w: %w", to, ErrNotify, err)
	}
	log.Printf("%s %d approved for %s", c.Key(), id, to)
	return all[idx], nil
}

func byGameTime(r model.GameRequest) time.Time     { return r.Timestamp }
func byFixTime(r model.OnlineFixRequest) time.Time { return r.Timestamp }
func byBypassTime(r model.BypassRequest) time.Time { return r.Timestamp }

// Games, Fixes and Bypasses are the admin lists, newest first.
func (s *Service) Games() []model.GameRequest {
	return collection.SortNewestFirst(s.games.Load(), byGameTime)
}

func (s *Service) Fixes() []model.OnlineFixRequest {
	return collection.SortNewestFirst(s.fixes.Load(), byFixTime)
}

func (s *Service) Bypasses() []model.BypassRequest {
	all := lo.Map(s.bypasses.Load(), func(r model.BypassRequest, _ int) model.BypassRequest { return r.Normalize() })
	return collection.SortNewestFirst(all, byBypassTime)
}

// List returns the admin list for kind.
func (s *Service) List(kind Kind) (any, error) {
	switch kind {
	case KindGame:
		return s.Games(), nil
	case KindFix:
		return s.Fixes(), nil
	case KindBypass:
		return s.Bypasses(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// Exists reports whether kind holds a record with id.
func (s *Service) Exists(kind Kind, id int64) bool {
	switch kind {
	case KindGame:
		return has(s.games, id)
	case KindFix:
		return has(s.fixes, id)
	case KindBypass:
		return has(s.bypasses, id)
	}
	return false
}

func has[T identified](c *collection.Collection[T], id int64) bool {
	return lo.ContainsBy(c.Load(), func(r T) bool { return idOf(r) == id })
}

// FindGame looks a game request up by id.
func (s *Service) FindGame(id int64) mo.Option[model.GameRequest] {
	r, ok := lo.Find(s.games.Load(), func(r model.GameRequest) bool { return r.ID == id })
	if !ok {
		return mo.None[model.GameRequest]()
	}
	return mo.Some(r)
}

// Simulated is what Simulate wrote.
type Simulated struct {
	Visitor model.VisitorLog  `json:"visitor"`
	Request model.GameRequest `json:"request"`
}

// Simulate writes a fake visitor and a pending game request from the same
// made-up user, for exercising the admin dashboard.
func (s *Service) Simulate() (Simulated, error) {
	n := s.rand()
	name := fmt.Sprintf("TestUser_%d", n)

	v, err := s.visitors.Record(name)
	if err != nil {
		return Simulated{}, err
	}
	now := s.now()
	req := model.GameRequest{
		ID:        s.ids.Next(now),
		UserEmail: name + "@example.com",
		GameTitle: fmt.Sprintf("Simulated Request %d", n),
		Timestamp: now,
		Status:    model.StatusPending,
	}
	if err := s.games.Append(req); err != nil {
		return Simulated{Visitor: v}, err
	}
	return Simulated{Visitor: v, Request: req}, nil
}
