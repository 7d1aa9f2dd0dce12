// Package catalog serves the read-only pages: available games, online fixes,
// bypasses per category and a user's library. Records come straight from
// the stored collections on every call.
package catalog

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/dtorres47/request-portal/internal/collection"
	"github.com/dtorres47/request-portal/internal/httputil"
	"github.com/dtorres47/request-portal/internal/kv"
	"github.com/dtorres47/request-portal/internal/model"
)

// Expiry tells whether an artifact URL still resolves.
type Expiry interface {
	Expired(url string) bool
}

type Game struct {
	model.GameRequest
	ArtifactsExpired bool `json:"artifactsExpired"`
}

type Fix struct {
	model.OnlineFixRequest
	ArtifactsExpired bool `json:"artifactsExpired"`
}

type Bypass struct {
	model.BypassRequest
	ArtifactsExpired bool `json:"artifactsExpired"`
}

// LibraryItem is one of the user's own game requests.
type LibraryItem struct {
	model.GameRequest
	Downloadable     bool `json:"downloadable"`
	ArtifactsExpired bool `json:"artifactsExpired"`
}

type Catalog struct {
	games    *collection.Collection[model.GameRequest]
	fixes    *collection.Collection[model.OnlineFixRequest]
	bypasses *collection.Collection[model.BypassRequest]
	expiry   Expiry
}

func New(store kv.Store, expiry Expiry) *Catalog {
	return &Catalog{
		games:    collection.New[model.GameRequest](store, model.KeyGameRequests),
		fixes:    collection.New[model.OnlineFixRequest](store, model.KeyFixRequests),
		bypasses: collection.New[model.BypassRequest](store, model.KeyBypasses),
		expiry:   expiry,
	}
}

func (c *Catalog) expired(urls ...string) bool {
	return lo.SomeBy(urls, c.expiry.Expired)
}

// AvailableGames lists approved games with a file, in stored order.
func (c *Catalog) AvailableGames() []Game {
	return lo.FilterMap(c.games.Load(), func(r model.GameRequest, _ int) (Game, bool) {
		return Game{r, c.expired(r.FileURL)}, r.Visible()
	})
}

func (c *Catalog) OnlineFixes() []Fix {
	return lo.FilterMap(c.fixes.Load(), func(r model.OnlineFixRequest, _ int) (Fix, bool) {
		return Fix{r, c.expired(r.FileURL, r.ImageURL)}, r.Visible()
	})
}

// Bypasses lists visible bypasses of exactly cat, titles without any legacy
// vendor prefix.
func (c *Catalog) Bypasses(cat model.BypassCategory) []Bypass {
	return lo.FilterMap(c.bypasses.Load(), func(r model.BypassRequest, _ int) (Bypass, bool) {
		r = r.Normalize()
		return Bypass{r, c.expired(r.FileURL, r.ImageURL)}, r.Visible() && r.Category == cat
	})
}

// Library is every game request email made, newest first.
func (c *Catalog) Library(email string) []LibraryItem {
	mine := lo.Filter(c.games.Load(), func(r model.GameRequest, _ int) bool { return r.UserEmail == email })
	mine = collection.SortNewestFirst(mine, func(r model.GameRequest) time.Time { return r.Timestamp })
	return lo.Map(mine, func(r model.GameRequest, _ int) LibraryItem {
		return LibraryItem{
			GameRequest:      r,
			Downloadable:     r.Status == model.StatusApproved && r.FileURL != "" && r.FileName != "",
			ArtifactsExpired: c.expired(r.FileURL),
		}
	})
}

// Identity resolves the profile the request acts for.
type Identity interface {
	Current() (model.UserAccount, bool)
}

// RegisterRoutes mounts the /api/catalog endpoints.
func (c *Catalog) RegisterRoutes(r chi.Router, who Identity) {
	r.Get("/api/catalog/games", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSONResponse(w, c.AvailableGames(), http.StatusOK)
	})

	r.Get("/api/catalog/fixes", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSONResponse(w, c.OnlineFixes(), http.StatusOK)
	})

	r.Get("/api/catalog/bypasses/{category}", func(w http.ResponseWriter, r *http.Request) {
		cat, ok := model.ParseBypassCategory(chi.URLParam(r, "category"))
		if !ok {
			httputil.JSONError(w, "unknown bypass category", http.StatusNotFound)
			return
		}
		httputil.JSONResponse(w, c.Bypasses(cat), http.StatusOK)
	})

	r.Get("/api/catalog/library", func(w http.ResponseWriter, r *http.Request) {
		u, ok := who.Current()
		if !ok {
			httputil.JSONError(w, "No user profile. Enter your name first.", http.StatusUnauthorized)
			return
		}
		httputil.JSONResponse(w, c.Library(u.Email), http.StatusOK)
	})
}
