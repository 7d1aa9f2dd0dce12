// Package state dumps the raw store for backup or debugging and pushes the
// full admin snapshot to dashboard clients on demand.
package state

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"

	"github.com/dtorres47/request-portal/internal/httputil"
	"github.com/dtorres47/request-portal/internal/kv"
	"github.com/dtorres47/request-portal/internal/model"
	"github.com/dtorres47/request-portal/internal/poller"
	"github.com/dtorres47/request-portal/internal/ws"
)

// SnapshotType is the ws message type carrying the admin snapshot.
const SnapshotType = "SNAPSHOT"

type snapshotData struct {
	poller.Snapshot
	Changed []string `json:"changed"`
}

// SnapshotMsg builds the push sent to admin dashboards.
func SnapshotMsg(snap poller.Snapshot, changed []string) ws.Msg {
	if changed == nil {
		changed = []string{}
	}
	return ws.Msg{Type: SnapshotType, Data: snapshotData{Snapshot: snap, Changed: changed}}
}

type Broadcaster interface {
	Broadcast(m ws.Msg) int
}

type Service struct {
	store  kv.Store
	poller *poller.Poller
	hub    Broadcaster
}

func NewService(store kv.Store, p *poller.Poller, hub Broadcaster) *Service {
	return &Service{store: store, poller: p, hub: hub}
}

type Dump struct {
	ExportedAt time.Time      `json:"exportedAt"`
	Entries    map[string]any `json:"entries"`
}

// Export returns every stored key. Values that are not valid JSON are kept
// as strings so the dump itself stays readable.
func (s *Service) Export() (Dump, error) {
	keys, err := s.store.Keys()
	if err != nil {
		return Dump{}, err
	}
	d := Dump{ExportedAt: model.Now(), Entries: make(map[string]any, len(keys))}
	for _, k := range keys {
		raw, ok, err := s.store.Get(k)
		if err != nil {
			return Dump{}, err
		}
		if !ok {
			continue
		}
		if gjson.ValidBytes(raw) {
			d.Entries[k] = gjson.ParseBytes(raw).Value()
		} else {
			d.Entries[k] = string(raw)
		}
	}
	return d, nil
}

// Rehydrate refreshes the poller and rebroadcasts the whole snapshot,
// changed or not. Returns the number of clients reached.
func (s *Service) Rehydrate() int {
	s.poller.Refresh()
	n := s.hub.Broadcast(SnapshotMsg(s.poller.Snapshot(), poller.Keys))
	log.Printf("state rehydrated to %d client(s)", n)
	return n
}

// RegisterAdminRoutes mounts /api/admin/state/*. Callers gate r on the admin
// flag.
func (s *Service) RegisterAdminRoutes(r chi.Router) {
	r.Get("/api/admin/state/export", func(w http.ResponseWriter, r *http.Request) {
		d, err := s.Export()
		if err != nil {
			log.Println("state export error:", err)
			httputil.JSONError(w, "Could not read storage.", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="portal-state.json"`)
		httputil.JSONResponse(w, d, http.StatusOK)
	})
	r.Post("/api/admin/state/rehydrate", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSONResponse(w, map[string]int{"clients": s.Rehydrate()}, http.StatusOK)
	})
}
