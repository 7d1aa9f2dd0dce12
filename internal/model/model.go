package model

import (
	"strings"
	"sync"
	"time"
)

// Storage keys. Every collection key holds one JSON array; CurrentUser holds a
// single object.
const (
	KeyUsers        = "users"
	KeyGameRequests = "gameRequests"
	KeyFixRequests  = "onlineFixRequests"
	KeyBypasses     = "bypassRequests"
	KeyMessages     = "messages"
	KeyVisitorLogs  = "visitorLogs"
	KeyCurrentUser  = "currentUser"
)

// CollectionKeys lists the array-valued keys in a stable order.
var CollectionKeys = []string{
	KeyUsers,
	KeyGameRequests,
	KeyFixRequests,
	KeyBypasses,
	KeyMessages,
	KeyVisitorLogs,
}

// Admin is the literal identity used in Message.From / Message.To.
const Admin = "admin"

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
)

type UserAccount struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	DOB      string `json:"dob"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Public returns a copy without the password.
func (u UserAccount) Public() UserAccount {
	u.Password = ""
	return u
}

type GameRequest struct {
	ID        int64     `json:"id"`
	UserEmail string    `json:"userEmail"`
	GameTitle string    `json:"gameTitle"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
	FileName  string    `json:"fileName,omitempty"`
	FileURL   string    `json:"fileUrl,omitempty"`
}

func (r GameRequest) Visible() bool {
	return r.Status == StatusApproved && r.FileURL != ""
}

type OnlineFixRequest struct {
	ID        int64     `json:"id"`
	UserEmail string    `json:"userEmail"`
	GameTitle string    `json:"gameTitle"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
	FileName  string    `json:"fileName,omitempty"`
	FileURL   string    `json:"fileUrl,omitempty"`
	ImageURL  string    `json:"imageUrl,omitempty"`
}

func (r OnlineFixRequest) Visible() bool {
	return r.Status == StatusApproved && r.FileURL != "" && r.ImageURL != ""
}

type BypassRequest struct {
	ID        int64          `json:"id"`
	UserEmail string         `json:"userEmail"`
	GameTitle string         `json:"gameTitle"`
	Category  BypassCategory `json:"category,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Status    Status         `json:"status"`
	FileName  string         `json:"fileName,omitempty"`
	FileURL   string         `json:"fileUrl,omitempty"`
	ImageURL  string         `json:"imageUrl,omitempty"`
}

func (r BypassRequest) Visible() bool {
	return r.Status == StatusApproved && r.FileURL != "" && r.ImageURL != ""
}

// Normalize moves a known "<Vendor> Bypass: " title prefix into Category.
// The prefix overrides any category already set. Records without a known
// prefix are returned unchanged.
func (r BypassRequest) Normalize() BypassRequest {
	if cat, title := SplitBypassTitle(r.GameTitle); cat != "" {
		r.Category, r.GameTitle = cat, title
	}
	return r
}

type Message struct {
	ID        int64     `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"isRead"`
}

// OtherParty is the non-admin side of the message.
func (m Message) OtherParty() string {
	if m.From == Admin {
		return m.To
	}
	return m.From
}

type VisitorLog struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

type BypassCategory string

const (
	BypassUbisoft  BypassCategory = "ubisoft"
	BypassEA       BypassCategory = "ea"
	BypassRockstar BypassCategory = "rockstar"
	BypassOther    BypassCategory = "other"
)

var bypassPrefixes = []struct {
	cat    BypassCategory
	prefix string
	page   string
}{
	{BypassUbisoft, "Ubisoft Bypass: ", "Ubisoft Bypass page"},
	{BypassEA, "EA Bypass: ", "EA Bypass page"},
	{BypassRockstar, "Rockstar Bypass: ", "Rockstar Bypass page"},
	{BypassOther, "Other Bypass: ", "Other Bypass page"},
}

// ParseBypassCategory accepts the category names used in URLs and bodies.
func ParseBypassCategory(s string) (BypassCategory, bool) {
	c := BypassCategory(strings.ToLower(strings.TrimSpace(s)))
	for _, p := range bypassPrefixes {
		if p.cat == c {
			return c, true
		}
	}
	return "", false
}

// Page is the label used in approval notifications.
func (c BypassCategory) Page() string {
	for _, p := range bypassPrefixes {
		if p.cat == c {
			return p.page
		}
	}
	return "Bypass section"
}

// SplitBypassTitle strips a known legacy prefix. Unknown prefixes yield an
// empty category and the title untouched.
func SplitBypassTitle(title string) (BypassCategory, string) {
	for _, p := range bypassPrefixes {
		if strings.HasPrefix(title, p.prefix) {
			return p.cat, strings.TrimPrefix(title, p.prefix)
		}
	}
	return "", title
}

// Now is the timestamp every record is stamped with: UTC, millisecond
// precision, no monotonic reading, so it survives a JSON round trip intact.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// IDSource hands out wall-clock millisecond ids. Ids are strictly increasing
// within one source; writers outside the process can still collide.
type IDSource struct {
	mu   sync.Mutex
	last int64
}

func (s *IDSource) Next(now time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := now.UnixMilli()
	if id <= s.last {
		id = s.last + 1
	}
	s.last = id
	return id
}

var defaultIDs IDSource

// NewID returns the next id from the process-wide source.
func NewID() int64 { return defaultIDs.Next(time.Now()) }
