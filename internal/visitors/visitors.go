// Package visitors records who entered the portal. The log is append-only
// apart from the admin's bulk clear.
package visitors

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dtorres47/request-portal/internal/collection"
	"github.com/dtorres47/request-portal/internal/httputil"
	"github.com/dtorres47/request-portal/internal/kv"
	"github.com/dtorres47/request-portal/internal/model"
)

type Log struct {
	logs *collection.Collection[model.VisitorLog]
	ids  *model.IDSource
	now  func() time.Time
}

func NewLog(store kv.Store, ids *model.IDSource) *Log {
	if ids == nil {
		ids = &model.IDSource{}
	}
	return &Log{
		logs: collection.New[model.VisitorLog](store, model.KeyVisitorLogs),
		ids:  ids,
		now:  model.Now,
	}
}

// Record appends one entry. Repeat visits by the same name are kept.
func (l *Log) Record(username string) (model.VisitorLog, error) {
	now := l.now()
	v := model.VisitorLog{ID: l.ids.Next(now), Username: username, Timestamp: now}
	if err := l.logs.Append(v); err != nil {
		return model.VisitorLog{}, err
	}
	return v, nil
}

// List is newest first.
func (l *Log) List() []model.VisitorLog {
	return collection.SortNewestFirst(l.logs.Load(), func(v model.VisitorLog) time.Time { return v.Timestamp })
}

func (l *Log) Clear() error {
	if err := l.logs.Clear(); err != nil {
		return err
	}
	log.Printf("visitor logs cleared")
	return nil
}

// RegisterAdminRoutes mounts /api/admin/visitors. Callers gate r on the admin
// flag.
func (l *Log) RegisterAdminRoutes(r chi.Router) {
	r.Get("/api/admin/visitors", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSONResponse(w, l.List(), http.StatusOK)
	})
	r.Delete("/api/admin/visitors", func(w http.ResponseWriter, r *http.Request) {
		if err := l.Clear(); err != nil {
			httputil.StorageError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
