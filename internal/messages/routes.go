package messages

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dtorres47/request-portal/internal/httputil"
	"github.com/dtorres47/request-portal/internal/model"
)

// Identity resolves the profile the request acts for.
type Identity interface {
	Current() (model.UserAccount, bool)
}

func (s *Service) RegisterRoutes(r chi.Router, who Identity) {
	user := func(w http.ResponseWriter) (string, bool) {
		u, ok := who.Current()
		if !ok {
			httputil.JSONError(w, "No user profile. Enter your name first.", http.StatusUnauthorized)
			return "", false
		}
		return u.Email, true
	}

	r.Get("/api/messages/conversation", func(w http.ResponseWriter, r *http.Request) {
		if email, ok := user(w); ok {
			httputil.JSONResponse(w, s.Conversation(email), http.StatusOK)
		}
	})

	r.Get("/api/messages/inbox", func(w http.ResponseWriter, r *http.Request) {
		if email, ok := user(w); ok {
			httputil.JSONResponse(w, s.Inbox(email), http.StatusOK)
		}
	})

	r.Get("/api/messages/unread", func(w http.ResponseWriter, r *http.Request) {
		if email, ok := user(w); ok {
			httputil.JSONResponse(w, map[string]int{"count": s.UnreadCount(email)}, http.StatusOK)
		}
	})

	r.Post("/api/messages", func(w http.ResponseWriter, r *http.Request) {
		email, ok := user(w)
		if !ok {
			return
		}
		var body struct {
			Content string `json:"content"`
		}
		if err := httputil.DecodeJSON(r, &body); err != nil {
			httputil.JSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		s.send(w, email, model.Admin, body.Content)
	})

	// Opening the inbox or the messaging view.
	r.Post("/api/messages/read", func(w http.ResponseWriter, r *http.Request) {
		email, ok := user(w)
		if !ok {
			return
		}
		n, err := s.MarkRead(email)
		if err != nil {
			httputil.StorageError(w, err)
			return
		}
		httputil.JSONResponse(w, map[string]int{"marked": n}, http.StatusOK)
	})
}

func (s *Service) RegisterAdminRoutes(r chi.Router) {
	r.Get("/api/admin/conversations", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSONResponse(w, s.Conversations(), http.StatusOK)
	})

	r.Post("/api/admin/messages", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			To      string `json:"to"`
			Content string `json:"content"`
		}
		if err := httputil.DecodeJSON(r, &body); err != nil {
			httputil.JSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		s.send(w, model.Admin, body.To, body.Content)
	})
}

func (s *Service) send(w http.ResponseWriter, from, to, content string) {
	m, err := s.Send(from, to, content)
	switch {
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrNoRecipient):
		httputil.JSONError(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		httputil.StorageError(w, err)
	default:
		httputil.JSONResponse(w, m, http.StatusCreated)
	}
}
