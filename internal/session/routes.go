package session

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dtorres47/request-portal/internal/httputil"
)

type state struct {
	Admin        bool     `json:"isAdmin"`
	WelcomeShown bool     `json:"welcomePopupShown"`
	Submitted    []string `json:"submitted"`
}

func stateOf(s *Session) state {
	return state{Admin: s.IsAdmin(), WelcomeShown: s.WelcomeShown(), Submitted: s.Banners()}
}

// RegisterRoutes mounts /api/session/*. The session middleware must already
// be installed on r.
func (m *Manager) RegisterRoutes(r chi.Router) {
	r.Get("/api/session", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSONResponse(w, stateOf(FromContext(r.Context())), http.StatusOK)
	})

	r.Post("/api/session/admin/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Code string `json:"code"`
		}
		if err := httputil.DecodeJSON(r, &body); err != nil {
			httputil.JSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if !m.Gate.Check(body.Code) {
			httputil.JSONError(w, "Incorrect code or email.", http.StatusUnauthorized)
			return
		}
		s := FromContext(r.Context())
		s.SetAdmin(true)
		log.Printf("admin session opened (%s)", s.ID)
		httputil.JSONResponse(w, stateOf(s), http.StatusOK)
	})

	r.Post("/api/session/admin/logout", func(w http.ResponseWriter, r *http.Request) {
		s := FromContext(r.Context())
		s.SetAdmin(false)
		httputil.JSONResponse(w, stateOf(s), http.StatusOK)
	})

	r.Post("/api/session/welcome", func(w http.ResponseWriter, r *http.Request) {
		s := FromContext(r.Context())
		s.MarkWelcomeShown()
		httputil.JSONResponse(w, stateOf(s), http.StatusOK)
	})
}
