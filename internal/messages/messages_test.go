package messages

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/dtorres47/request-portal/internal/kv"
	"github.com/dtorres47/request-portal/internal/model"
)

// steppingClock advances one second per call so timestamps are distinct.
func steppingClock() func() time.Time {
	t := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newService(store kv.Store) *Service {
	s := NewService(store, &model.IDSource{})
	s.now = steppingClock()
	return s
}

func TestConversationIsBothDirectionsOldestFirst(t *testing.T) {
	s := newService(kv.NewMemoryStore())

	_, err := s.Send("a@x.com", model.Admin, "hi")
	require.NoError(t, err)
	_, err = s.Send("b@x.com", model.Admin, "unrelated")
	require.NoError(t, err)
	_, err = s.Send(model.Admin, "a@x.com", "hello back")
	require.NoError(t, err)

	conv := s.Conversation("a@x.com")
	require.Len(t, conv, 2)
	require.Equal(t, "hi", conv[0].Content)
	require.Equal(t, "hello back", conv[1].Content)
	require.False(t, conv[0].IsRead)
}

func TestConversationSortsStoredOutOfOrder(t *testing.T) {
	store := kv.NewMemoryStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	raw, _ := json.Marshal([]model.Message{
		{ID: 2, From: model.Admin, To: "a@x.com", Content: "second", Timestamp: base.Add(time.Minute)},
		{ID: 1, From: "a@x.com", To: model.Admin, Content: "first", Timestamp: base},
	})
	require.NoError(t, store.Set(model.KeyMessages, raw))

	conv := newService(store).Conversation("a@x.com")
	require.Equal(t, "first", conv[0].Content)
	require.Equal(t, "second", conv[1].Content)
}

func TestSendRejectsBlank(t *testing.T) {
	s := newService(kv.NewMemoryStore())
	_, err := s.Send("a@x.com", model.Admin, "   ")
	require.ErrorIs(t, err, ErrEmptyMessage)
	require.Empty(t, s.All())
}

func TestMarkReadOnlyTouchesRecipient(t *testing.T) {
	s := newService(kv.NewMemoryStore())
	for _, to := range []string{"a@x.com", "b@x.com", "a@x.com"} {
		_, err := s.Send(model.Admin, to, "note")
		require.NoError(t, err)
	}
	_, err := s.Send("a@x.com", model.Admin, "from a")
	require.NoError(t, err)

	require.Equal(t, 2, s.UnreadCount("a@x.com"))

	n, err := s.MarkRead("a@x.com")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	for _, m := range s.All() {
		switch m.To {
		case "a@x.com":
			require.True(t, m.IsRead)
		default:
			require.False(t, m.IsRead, "message to %s changed", m.To)
		}
	}
	require.Equal(t, 0, s.UnreadCount("a@x.com"))
	require.Equal(t, 1, s.UnreadCount("b@x.com"))

	n, err = s.MarkRead("a@x.com")
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestInboxAndConversations(t *testing.T) {
	s := newService(kv.NewMemoryStore())
	s.Send(model.Admin, "a@x.com", "one")
	s.Send("a@x.com", model.Admin, "reply")
	s.Send(model.Admin, "a@x.com", "two")
	s.Send("b@x.com", model.Admin, "hey")

	inbox := s.Inbox("a@x.com")
	require.Len(t, inbox, 2)
	require.Equal(t, "two", inbox[0].Content)

	groups := s.Conversations()
	require.Len(t, groups, 2)
	require.Len(t, groups["a@x.com"], 3)
	require.Len(t, groups["b@x.com"], 1)
}

type fixedIdentity struct {
	u  model.UserAccount
	ok bool
}

func (f fixedIdentity) Current() (model.UserAccount, bool) { return f.u, f.ok }

func TestRoutes(t *testing.T) {
	s := newService(kv.NewMemoryStore())
	r := chi.NewRouter()
	s.RegisterRoutes(r, fixedIdentity{u: model.UserAccount{Email: "a@x.com"}, ok: true})
	s.RegisterAdminRoutes(r)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
		return w
	}

	require.Equal(t, http.StatusCreated, do("POST", "/api/messages", `{"content":"need help"}`).Code)
	require.Equal(t, http.StatusBadRequest, do("POST", "/api/messages", `{"content":""}`).Code)
	require.Equal(t, http.StatusCreated, do("POST", "/api/admin/messages", `{"to":"a@x.com","content":"sure"}`).Code)
	require.Equal(t, http.StatusBadRequest, do("POST", "/api/admin/messages", `{"content":"to nobody"}`).Code)

	w := do("GET", "/api/messages/unread", "")
	require.JSONEq(t, `{"count":1}`, w.Body.String())

	w = do("POST", "/api/messages/read", "")
	require.JSONEq(t, `{"marked":1}`, w.Body.String())

	var conv []model.Message
	require.NoError(t, json.NewDecoder(do("GET", "/api/messages/conversation", "").Body).Decode(&conv))
	require.Len(t, conv, 2)
	require.Equal(t, model.Admin, conv[0].To)
}

func TestRoutesWithoutProfile(t *testing.T) {
	s := newService(kv.NewMemoryStore())
	r := chi.NewRouter()
	s.RegisterRoutes(r, fixedIdentity{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/messages/inbox", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
