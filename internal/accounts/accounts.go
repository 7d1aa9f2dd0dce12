// Package accounts manages registered users and the profile the portal is
// currently acting as. Passwords are stored and compared in plaintext; the
// portal has no trust boundary to protect.
package accounts

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"

	"github.com/dtorres47/request-portal/internal/collection"
	"github.com/dtorres47/request-portal/internal/kv"
	"github.com/dtorres47/request-portal/internal/model"
)

var (
	ErrMissingFields      = errors.New("please fill in all fields")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrUsernameTaken      = errors.New("this username is already taken")
	ErrInvalidCredentials = errors.New("invalid username/email or password")
)

// Visitors receives a log entry for every guest who enters.
type Visitors interface {
	Record(username string) (model.VisitorLog, error)
}

type Service struct {
	users   *collection.Collection[model.UserAccount]
	current *collection.Object[model.UserAccount]

	visitors    Visitors
	adminEmail  string
	guestDomain string
	now         func() time.Time
}

func NewService(store kv.Store, visitors Visitors, adminEmail, guestDomain string) *Service {
	return &Service{
		users:       collection.New[model.UserAccount](store, model.KeyUsers),
		current:     collection.NewObject[model.UserAccount](store, model.KeyCurrentUser),
		visitors:    visitors,
		adminEmail:  strings.ToLower(strings.TrimSpace(adminEmail)),
		guestDomain: guestDomain,
		now:         time.Now,
	}
}

type SignupForm struct {
	Name            string `json:"name"`
	Username        string `json:"username"`
	DOB             string `json:"dob"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Signup registers a new account and makes it the current profile.
func (s *Service) Signup(f SignupForm) (model.UserAccount, error) {
	if lo.SomeBy([]string{f.Name, f.Username, f.DOB, f.Email, f.Password, f.ConfirmPassword}, func(v string) bool { return v == "" }) {
		return model.UserAccount{}, ErrMissingFields
	}
	if f.Password != f.ConfirmPassword {
		return model.UserAccount{}, ErrPasswordMismatch
	}
	users := s.users.Load()
	if lo.SomeBy(users, func(u model.UserAccount) bool { return strings.EqualFold(u.Email, f.Email) }) {
		return model.UserAccount{}, ErrEmailTaken
	}
	if lo.SomeBy(users, func(u model.UserAccount) bool { return strings.EqualFold(u.Username, f.Username) }) {
		return model.UserAccount{}, ErrUsernameTaken
	}
	u := model.UserAccount{Name: f.Name, Username: f.Username, DOB: f.DOB, Email: f.Email, Password: f.Password}
	if err := s.users.Save(append(users, u)); err != nil {
		return model.UserAccount{}, err
	}
	log.Printf("account created for %s", u.Email)
	return s.use(u)
}

// Find matches identifier against email or username, ignoring case.
func (s *Service) Find(identifier string) mo.Option[model.UserAccount] {
	u, ok := lo.Find(s.users.Load(), func(u model.UserAccount) bool {
		return strings.EqualFold(u.Email, identifier) || strings.EqualFold(u.Username, identifier)
	})
	if !ok {
		return mo.None[model.UserAccount]()
	}
	return mo.Some(u)
}

// Login switches the current profile. The admin email is accepted without
// a password check and yields the admin persona; admin reports that case.
func (s *Service) Login(identifier, password string) (u model.UserAccount, admin bool, err error) {
	if identifier == "" || password == "" {
		return model.UserAccount{}, false, ErrMissingFields
	}
	if s.adminEmail != "" && strings.ToLower(identifier) == s.adminEmail {
		u, err = s.use(s.AdminPersona())
		return u, err == nil, err
	}
	found, ok := s.Find(identifier).Get()
	if !ok || found.Password != password {
		return model.UserAccount{}, false, ErrInvalidCredentials
	}
	u, err = s.use(found)
	return u, false, err
}

// AdminPersona is the profile used when the admin email logs in.
func (s *Service) AdminPersona() model.UserAccount {
	return model.UserAccount{Name: "Admin", Username: "admin", DOB: "N/A", Email: s.adminEmail}
}

// Guest creates an anonymous profile for name and logs the visit.
func (s *Service) Guest(name string) (model.UserAccount, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.UserAccount{}, ErrMissingFields
	}
	ms := strconv.FormatInt(s.now().UnixMilli(), 10)
	u := model.UserAccount{
		Name:     name,
		Username: "user_" + ms[max(0, len(ms)-6):],
		Email:    fmt.Sprintf("guest_%s@%s", ms, s.guestDomain),
	}
	if err := s.current.Set(u); err != nil {
		return model.UserAccount{}, err
	}
	if _, err := s.visitors.Record(u.Name); err != nil {
		return u, err
	}
	return u, nil
}

func (s *Service) use(u model.UserAccount) (model.UserAccount, error) {
	u = u.Public()
	if err := s.current.Set(u); err != nil {
		return model.UserAccount{}, err
	}
	return u, nil
}

// Current is the stored profile, if any.
func (s *Service) Current() (model.UserAccount, bool) {
	return s.current.Get()
}

func (s *Service) Logout() error {
	return s.current.Clear()
}

// ForgotPassword only acknowledges; no mail is sent.
func (s *Service) ForgotPassword(email string) error {
	if strings.TrimSpace(email) == "" {
		return ErrMissingFields
	}
	log.Printf("password reset requested for %s", email)
	return nil
}
