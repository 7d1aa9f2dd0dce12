// Package artifacts holds approval uploads in memory and hands out blob:
// URLs for them. Nothing here survives a restart; stored records that still
// point at a blob: URL afterwards are reported as expired.
package artifacts

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const scheme = "blob:"

type Blob struct {
	ID          string
	Name        string
	ContentType string
	Data        []byte
	Created     time.Time
}

func (b Blob) URL() string { return scheme + b.ID }

type Registry struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

func NewRegistry() *Registry {
	return &Registry{blobs: make(map[string]Blob)}
}

// Put stores data under a fresh id.
func (r *Registry) Put(name, contentType string, data []byte) Blob {
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	b := Blob{
		ID:          uuid.NewString(),
		Name:        name,
		ContentType: contentType,
		Data:        data,
		Created:     time.Now(),
	}
	r.mu.Lock()
	r.blobs[b.ID] = b
	r.mu.Unlock()
	return b
}

func (r *Registry) Get(id string) (Blob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.blobs[id]
	return b, ok
}

// Resolve looks a blob: URL up.
func (r *Registry) Resolve(url string) (Blob, bool) {
	id, ok := strings.CutPrefix(url, scheme)
	if !ok {
		return Blob{}, false
	}
	return r.Get(id)
}

// Expired reports a blob: URL this registry does not hold. Other URLs (a
// pasted https image link) never expire.
func (r *Registry) Expired(url string) bool {
	if !strings.HasPrefix(url, scheme) {
		return false
	}
	_, ok := r.Resolve(url)
	return !ok
}

// Delete drops the blob behind a blob: URL. Other URLs are ignored.
func (r *Registry) Delete(url string) {
	id, ok := strings.CutPrefix(url, scheme)
	if !ok {
		return
	}
	r.mu.Lock()
	delete(r.blobs, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blobs)
}

// RegisterRoutes mounts GET /blob/{id}.
func (r *Registry) RegisterRoutes(router chi.Router) {
	router.Get("/blob/{id}", r.serve)
}

func (r *Registry) serve(w http.ResponseWriter, req *http.Request) {
	b, ok := r.Get(chi.URLParam(req, "id"))
	if !ok {
		http.Error(w, "artifact not found; it must be uploaded again", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", b.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(b.Data)))
	if b.Name != "" {
		w.Header().Set("Content-Disposition", `inline; filename="`+strings.ReplaceAll(b.Name, `"`, "")+`"`)
	}
	if _, err := w.Write(b.Data); err != nil {
		log.Printf("blob %s write error: %v", b.ID, err)
	}
}
