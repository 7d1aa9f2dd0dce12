// Package session holds the per-tab, memory-only state: the admin flag, the
// welcome-popup flag and the short-lived "submitted" confirmation banners.
// Nothing here survives a restart.
package session

import (
	"context"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtorres47/request-portal/internal/httputil"
)

const CookieName = "portal_session"

type Session struct {
	ID string

	mu           sync.Mutex
	lastSeen     time.Time
	admin        bool
	welcomeShown bool
	banners      map[string]*time.Timer
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

func (s *Session) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admin
}

func (s *Session) SetAdmin(v bool) {
	s.mu.Lock()
	s.admin = v
	s.mu.Unlock()
}

func (s *Session) WelcomeShown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.welcomeShown
}

func (s *Session) MarkWelcomeShown() {
	s.mu.Lock()
	s.welcomeShown = true
	s.mu.Unlock()
}

// MarkSubmitted shows the confirmation banner for view during d. Submitting
// again restarts the countdown.
func (s *Session) MarkSubmitted(view string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.banners[view]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.banners[view] == t {
			delete(s.banners, view)
		}
		s.mu.Unlock()
	})
	s.banners[view] = t
}

func (s *Session) Submitted(view string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.banners[view]
	return ok
}

// Banners lists the views currently showing a confirmation.
func (s *Session) Banners() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.banners))
	for v := range s.banners {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (s *Session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for v, t := range s.banners {
		t.Stop()
		delete(s.banners, v)
	}
}

// DefaultIdleTimeout is how long a session may go unused before Sweep
// drops it.
const DefaultIdleTimeout = 30 * time.Minute

type Manager struct {
	Gate        *Gate
	Confirm     time.Duration
	IdleTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(gate *Gate, confirm time.Duration) *Manager {
	return &Manager{
		Gate:        gate,
		Confirm:     confirm,
		IdleTimeout: DefaultIdleTimeout,
		sessions:    make(map[string]*Session),
	}
}

func (m *Manager) New() *Session {
	s := &Session{ID: uuid.NewString(), lastSeen: time.Now(), banners: make(map[string]*time.Timer)}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// End drops the session and stops its pending banner timers.
func (m *Manager) End(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.stop()
	}
}

// Shutdown ends every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.stop()
	}
}

// Sweep ends every session idle for longer than IdleTimeout and returns how
// many were dropped.
func (m *Manager) Sweep(now time.Time) int {
	if m.IdleTimeout <= 0 {
		return 0
	}
	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.idleSince(now) > m.IdleTimeout {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, s := range idle {
		s.stop()
	}
	return len(idle)
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := m.Sweep(now); n > 0 {
				log.Printf("swept %d idle session(s)", n)
			}
		}
	}
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

type ctxKey struct{}

// Middleware attaches the caller's session, issuing a new cookie when the
// request carries none or an unknown one.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var s *Session
		if c, err := r.Cookie(CookieName); err == nil {
			s, _ = m.Lookup(c.Value)
		}
		if s != nil {
			s.touch(time.Now())
		} else {
			s = m.New()
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    s.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, s)))
	})
}

// RequireAdmin rejects requests whose session has not passed the admin gate.
func (m *Manager) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := FromContext(r.Context())
		if s == nil || !s.IsAdmin() {
			httputil.JSONError(w, "admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FromContext returns the session attached by Middleware, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}

// WithSession is used by tests and internal callers to attach a session.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}
