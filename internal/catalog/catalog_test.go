package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/dtorres47/request-portal/internal/artifacts"
	"github.com/dtorres47/request-portal/internal/kv"
	"github.com/dtorres47/request-portal/internal/model"
)

func day(d int) time.Time { return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC) }

func seed(t *testing.T, store kv.Store, key string, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, store.Set(key, b))
}

func TestAvailableGamesVisibility(t *testing.T) {
	store := kv.NewMemoryStore()
	blobs := artifacts.NewRegistry()
	live := blobs.Put("a.zip", "application/zip", []byte("a")).URL()

	seed(t, store, model.KeyGameRequests, []model.GameRequest{
		{ID: 1, GameTitle: "Pending", Status: model.StatusPending, Timestamp: day(1)},
		{ID: 2, GameTitle: "Approved no file", Status: model.StatusApproved, Timestamp: day(2)},
		{ID: 3, GameTitle: "Live", Status: model.StatusApproved, FileName: "a.zip", FileURL: live, Timestamp: day(3)},
		{ID: 4, GameTitle: "Stale", Status: model.StatusApproved, FileName: "b.zip", FileURL: "blob:gone", Timestamp: day(4)},
	})

	games := New(store, blobs).AvailableGames()
	require.Len(t, games, 2)
	require.Equal(t, "Live", games[0].GameTitle)
	require.False(t, games[0].ArtifactsExpired)
	require.Equal(t, "Stale", games[1].GameTitle)
	require.True(t, games[1].ArtifactsExpired)
}

func TestOnlineFixesNeedImage(t *testing.T) {
	store := kv.NewMemoryStore()
	seed(t, store, model.KeyFixRequests, []model.OnlineFixRequest{
		{ID: 1, GameTitle: "No art", Status: model.StatusApproved, FileURL: "https://f/1"},
		{ID: 2, GameTitle: "Ready", Status: model.StatusApproved, FileURL: "https://f/2", ImageURL: "https://i/2"},
	})
	fixes := New(store, artifacts.NewRegistry()).OnlineFixes()
	require.Len(t, fixes, 1)
	require.Equal(t, "Ready", fixes[0].GameTitle)
	require.False(t, fixes[0].ArtifactsExpired)
}

func TestBypassesFilterByCategory(t *testing.T) {
	store := kv.NewMemoryStore()
	seed(t, store, model.KeyBypasses, []model.BypassRequest{
		{ID: 1, GameTitle: "EA Bypass: FIFA 25", Status: model.StatusApproved, FileURL: "https://f", ImageURL: "https://i"},
		{ID: 2, GameTitle: "Madden", Category: model.BypassEA, Status: model.StatusApproved, FileURL: "https://f", ImageURL: "https://i"},
		{ID: 3, GameTitle: "Ubisoft Bypass: AC", Status: model.StatusApproved, FileURL: "https://f", ImageURL: "https://i"},
		{ID: 4, GameTitle: "NHS", Category: model.BypassEA, Status: model.StatusPending},
		{ID: 5, GameTitle: "Odd Bypass: X", Status: model.StatusApproved, FileURL: "https://f", ImageURL: "https://i"},
	})
	c := New(store, artifacts.NewRegistry())

	ea := c.Bypasses(model.BypassEA)
	require.Len(t, ea, 2)
	require.Equal(t, "FIFA 25", ea[0].GameTitle)
	require.Equal(t, model.BypassEA, ea[0].Category)
	require.Equal(t, "Madden", ea[1].GameTitle)

	ubi := c.Bypasses(model.BypassUbisoft)
	require.Len(t, ubi, 1)
	require.Equal(t, "AC", ubi[0].GameTitle)

	require.Empty(t, c.Bypasses(model.BypassOther))
}

func TestBypassPrefixOverridesStoredCategory(t *testing.T) {
	store := kv.NewMemoryStore()
	seed(t, store, model.KeyBypasses, []model.BypassRequest{
		{ID: 1, GameTitle: "EA Bypass: FC 25", Category: model.BypassUbisoft, Status: model.StatusApproved, FileURL: "https://f", ImageURL: "https://i"},
	})
	c := New(store, artifacts.NewRegistry())

	require.Empty(t, c.Bypasses(model.BypassUbisoft))
	ea := c.Bypasses(model.BypassEA)
	require.Len(t, ea, 1)
	require.Equal(t, "FC 25", ea[0].GameTitle)
}

func TestLibrary(t *testing.T) {
	store := kv.NewMemoryStore()
	seed(t, store, model.KeyGameRequests, []model.GameRequest{
		{ID: 1, UserEmail: "a@x.com", GameTitle: "Old", Status: model.StatusApproved, FileName: "old.zip", FileURL: "https://f", Timestamp: day(1)},
		{ID: 2, UserEmail: "b@x.com", GameTitle: "Theirs", Status: model.StatusPending, Timestamp: day(2)},
		{ID: 3, UserEmail: "a@x.com", GameTitle: "New", Status: model.StatusPending, Timestamp: day(3)},
	})
	lib := New(store, artifacts.NewRegistry()).Library("a@x.com")
	require.Len(t, lib, 2)
	require.Equal(t, "New", lib[0].GameTitle)
	require.False(t, lib[0].Downloadable)
	require.Equal(t, "Old", lib[1].GameTitle)
	require.True(t, lib[1].Downloadable)
}

type fixedIdentity struct{ email string }

func (f fixedIdentity) Current() (model.UserAccount, bool) {
	return model.UserAccount{Email: f.email}, f.email != ""
}

func TestRoutes(t *testing.T) {
	store := kv.NewMemoryStore()
	seed(t, store, model.KeyBypasses, []model.BypassRequest{
		{ID: 1, GameTitle: "EA Bypass: FIFA 25", Status: model.StatusApproved, FileURL: "blob:gone", ImageURL: "https://i"},
	})
	r := chi.NewRouter()
	New(store, artifacts.NewRegistry()).RegisterRoutes(r, fixedIdentity{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/catalog/bypasses/ea", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "FIFA 25", got[0]["gameTitle"])
	require.Equal(t, "ea", got[0]["category"])
	require.Equal(t, true, got[0]["artifactsExpired"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/catalog/bypasses/steam", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/catalog/games", nil))
	require.JSONEq(t, `[]`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/catalog/library", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
