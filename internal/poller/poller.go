// Package poller keeps the admin dashboard's in-memory snapshot current. It
// reloads every admin collection on a fixed tick and on every store change,
// and reports which collections differ from the previous snapshot.
package poller

import (
	"context"
	"log"
	"reflect"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/dtorres47/request-portal/internal/collection"
	"github.com/dtorres47/request-portal/internal/kv"
	"github.com/dtorres47/request-portal/internal/model"
)

const DefaultInterval = 2 * time.Second

// Keys are the collections the admin dashboard watches.
var Keys = []string{
	model.KeyGameRequests,
	model.KeyFixRequests,
	model.KeyBypasses,
	model.KeyMessages,
	model.KeyVisitorLogs,
}

type Snapshot struct {
	Games       []model.GameRequest      `json:"gameRequests"`
	Fixes       []model.OnlineFixRequest `json:"onlineFixRequests"`
	Bypasses    []model.BypassRequest    `json:"bypassRequests"`
	Messages    []model.Message          `json:"messages"`
	VisitorLogs []model.VisitorLog       `json:"visitorLogs"`
}

// Listener is called after a refresh that changed at least one collection.
// changed holds storage keys.
type Listener func(snap Snapshot, changed []string)

type Poller struct {
	store    kv.Store
	interval time.Duration
	listener Listener

	games    *collection.Collection[model.GameRequest]
	fixes    *collection.Collection[model.OnlineFixRequest]
	bypasses *collection.Collection[model.BypassRequest]
	messages *collection.Collection[model.Message]
	logs     *collection.Collection[model.VisitorLog]

	// refreshMu orders whole refreshes so a slow load never replaces a newer
	// snapshot and listeners see snapshots in load order.
	refreshMu sync.Mutex

	mu   sync.Mutex
	snap Snapshot
}

func New(store kv.Store, interval time.Duration, l Listener) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		store:    store,
		interval: interval,
		listener: l,
		games:    collection.New[model.GameRequest](store, model.KeyGameRequests),
		fixes:    collection.New[model.OnlineFixRequest](store, model.KeyFixRequests),
		bypasses: collection.New[model.BypassRequest](store, model.KeyBypasses),
		messages: collection.New[model.Message](store, model.KeyMessages),
		logs:     collection.New[model.VisitorLog](store, model.KeyVisitorLogs),
	}
}

// StalenessBound is the longest the snapshot can lag the store while Run is
// active.
func (p *Poller) StalenessBound() time.Duration { return p.interval }

func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

func replace[T any](cur *[]T, next []T, key string, changed *[]string) {
	if reflect.DeepEqual(*cur, next) {
		return
	}
	*cur = next
	*changed = append(*changed, key)
}

// Refresh reloads every collection and swaps in the ones that differ. It
// returns the changed keys. The listener runs before Refresh returns and
// must not call Refresh itself.
func (p *Poller) Refresh() []string {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	games := collection.SortNewestFirst(p.games.Load(), func(r model.GameRequest) time.Time { return r.Timestamp })
	fixes := collection.SortNewestFirst(p.fixes.Load(), func(r model.OnlineFixRequest) time.Time { return r.Timestamp })
	bypasses := collection.SortNewestFirst(
		lo.Map(p.bypasses.Load(), func(r model.BypassRequest, _ int) model.BypassRequest { return r.Normalize() }),
		func(r model.BypassRequest) time.Time { return r.Timestamp })
	messages := p.messages.Load()
	logs := collection.SortNewestFirst(p.logs.Load(), func(v model.VisitorLog) time.Time { return v.Timestamp })

	var changed []string
	p.mu.Lock()
	replace(&p.snap.Games, games, model.KeyGameRequests, &changed)
	replace(&p.snap.Fixes, fixes, model.KeyFixRequests, &changed)
	replace(&p.snap.Bypasses, bypasses, model.KeyBypasses, &changed)
	replace(&p.snap.Messages, messages, model.KeyMessages, &changed)
	replace(&p.snap.VisitorLogs, logs, model.KeyVisitorLogs, &changed)
	snap := p.snap
	p.mu.Unlock()

	if len(changed) > 0 && p.listener != nil {
		p.listener(snap, changed)
	}
	return changed
}

// Run refreshes once, then on every tick and every store change until ctx
// is done.
func (p *Poller) Run(ctx context.Context) {
	changes := p.store.Subscribe()
	defer p.store.Unsubscribe(changes)

	t := time.NewTicker(p.interval)
	defer t.Stop()

	p.Refresh()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.Refresh()
		case c, ok := <-changes:
			if !ok {
				log.Printf("poller: change feed closed, ticking only")
				changes = nil
				continue
			}
			if c.Key != model.KeyUsers && c.Key != model.KeyCurrentUser {
				p.Refresh()
			}
		}
	}
}
