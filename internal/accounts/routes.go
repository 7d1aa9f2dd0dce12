package accounts

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dtorres47/request-portal/internal/httputil"
	"github.com/dtorres47/request-portal/internal/session"
)

func isValidation(err error) bool {
	return errors.Is(err, ErrMissingFields) ||
		errors.Is(err, ErrPasswordMismatch) ||
		errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrUsernameTaken)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case isValidation(err):
		httputil.JSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrInvalidCredentials):
		httputil.JSONError(w, err.Error(), http.StatusUnauthorized)
	default:
		httputil.StorageError(w, err)
	}
}

// RegisterRoutes mounts /api/accounts/*.
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Post("/api/accounts/signup", func(w http.ResponseWriter, r *http.Request) {
		var f SignupForm
		if err := httputil.DecodeJSON(r, &f); err != nil {
			httputil.JSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		u, err := s.Signup(f)
		if err != nil {
			writeError(w, err)
			return
		}
		httputil.JSONResponse(w, u, http.StatusCreated)
	})

	r.Post("/api/accounts/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Identifier string `json:"identifier"`
			Password   string `json:"password"`
		}
		if err := httputil.DecodeJSON(r, &body); err != nil {
			httputil.JSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		u, admin, err := s.Login(body.Identifier, body.Password)
		if err != nil {
			writeError(w, err)
			return
		}
		if sess := session.FromContext(r.Context()); admin && sess != nil {
			sess.SetAdmin(true)
		}
		httputil.JSONResponse(w, map[string]any{"user": u, "isAdmin": admin}, http.StatusOK)
	})

	r.Post("/api/accounts/guest", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name string `json:"name"`
		}
		if err := httputil.DecodeJSON(r, &body); err != nil {
			httputil.JSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		u, err := s.Guest(body.Name)
		if err != nil {
			writeError(w, err)
			return
		}
		httputil.JSONResponse(w, u, http.StatusCreated)
	})

	r.Post("/api/accounts/logout", func(w http.ResponseWriter, r *http.Request) {
		if err := s.Logout(); err != nil {
			httputil.StorageError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/api/accounts/forgot", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email string `json:"email"`
		}
		if err := httputil.DecodeJSON(r, &body); err != nil {
			httputil.JSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := s.ForgotPassword(body.Email); err != nil {
			writeError(w, err)
			return
		}
		httputil.JSONResponse(w, map[string]string{
			"message": "If an account exists for " + body.Email + ", you will receive a password reset link shortly.",
		}, http.StatusAccepted)
	})

	r.Get("/api/accounts/current", func(w http.ResponseWriter, r *http.Request) {
		u, ok := s.Current()
		if !ok {
			httputil.JSONError(w, "No user profile", http.StatusNotFound)
			return
		}
		httputil.JSONResponse(w, u, http.StatusOK)
	})
}
