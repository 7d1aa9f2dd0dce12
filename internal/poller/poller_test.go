package poller

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dtorres47/request-portal/internal/kv"
	"github.com/dtorres47/request-portal/internal/model"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recorder) listen(_ Snapshot, changed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, changed)
}

func (r *recorder) sawKey(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		for _, k := range c {
			if k == key {
				return true
			}
		}
	}
	return false
}

func put(t *testing.T, s kv.Store, key string, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, s.Set(key, b))
}

func TestRefreshReportsOnlyChangedCollections(t *testing.T) {
	store := kv.NewMemoryStore()
	rec := &recorder{}
	p := New(store, time.Hour, rec.listen)

	first := p.Refresh()
	require.ElementsMatch(t, Keys, first)

	require.Empty(t, p.Refresh())
	require.Len(t, rec.calls, 1)

	put(t, store, model.KeyMessages, []model.Message{{ID: 1, From: "a@x.com", To: model.Admin, Content: "hi"}})
	require.Equal(t, []string{model.KeyMessages}, p.Refresh())
	require.Len(t, p.Snapshot().Messages, 1)
	require.Len(t, rec.calls, 2)
}

func TestRefreshOrdersAdminLists(t *testing.T) {
	store := kv.NewMemoryStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	put(t, store, model.KeyGameRequests, []model.GameRequest{
		{ID: 1, GameTitle: "old", Timestamp: base},
		{ID: 2, GameTitle: "new", Timestamp: base.Add(time.Hour)},
	})
	put(t, store, model.KeyBypasses, []model.BypassRequest{
		{ID: 3, GameTitle: "EA Bypass: FIFA", Timestamp: base},
	})
	put(t, store, model.KeyMessages, []model.Message{
		{ID: 5, Content: "later", Timestamp: base.Add(time.Hour)},
		{ID: 4, Content: "earlier", Timestamp: base},
	})

	p := New(store, time.Hour, nil)
	p.Refresh()
	snap := p.Snapshot()
	require.Equal(t, "new", snap.Games[0].GameTitle)
	require.Equal(t, "FIFA", snap.Bypasses[0].GameTitle)
	require.Equal(t, model.BypassEA, snap.Bypasses[0].Category)
	require.Equal(t, "later", snap.Messages[0].Content)
}

func TestStalenessBound(t *testing.T) {
	require.Equal(t, 5*time.Second, New(kv.NewMemoryStore(), 5*time.Second, nil).StalenessBound())
	require.Equal(t, DefaultInterval, New(kv.NewMemoryStore(), 0, nil).StalenessBound())
}

func TestRunReactsToStoreChanges(t *testing.T) {
	store := kv.NewMemoryStore()
	rec := &recorder{}
	p := New(store, time.Hour, rec.listen)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return rec.sawKey(model.KeyVisitorLogs) }, time.Second, 5*time.Millisecond)

	put(t, store, model.KeyGameRequests, []model.GameRequest{{ID: 1, GameTitle: "Halo", Status: model.StatusPending}})
	require.Eventually(t, func() bool { return len(p.Snapshot().Games) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunTicksForOutsideWriters(t *testing.T) {
	dir := t.TempDir()
	mine, err := kv.NewFileStore(dir)
	require.NoError(t, err)
	other, err := kv.NewFileStore(dir)
	require.NoError(t, err)
	defer mine.Close()
	defer other.Close()

	p := New(mine, 20*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	// other's change feed never reaches mine; only the tick can pick it up.
	put(t, other, model.KeyVisitorLogs, []model.VisitorLog{{ID: 1, Username: "X"}})
	require.Eventually(t, func() bool { return len(p.Snapshot().VisitorLogs) == 1 }, time.Second, 5*time.Millisecond)
}

func TestConcurrentRefreshNeverGoesBackwards(t *testing.T) {
	store := kv.NewMemoryStore()
	var mu sync.Mutex
	var seen []int
	p := New(store, time.Hour, func(snap Snapshot, _ []string) {
		mu.Lock()
		seen = append(seen, len(snap.Games))
		mu.Unlock()
	})

	const writes = 200
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var games []model.GameRequest
		for i := 1; i <= writes; i++ {
			games = append(games, model.GameRequest{ID: int64(i), GameTitle: "g", Timestamp: time.Unix(int64(i), 0).UTC()})
			b, _ := json.Marshal(games)
			store.Set(model.KeyGameRequests, b)
		}
	}()
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				p.Refresh()
			}
		}()
	}
	wg.Wait()
	p.Refresh()

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seen); i++ {
		require.GreaterOrEqual(t, seen[i], seen[i-1], "snapshot %d went backwards", i)
	}
	require.Len(t, p.Snapshot().Games, writes)
}
