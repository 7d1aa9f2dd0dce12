package requests

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dtorres47/request-portal/internal/artifacts"
	"github.com/dtorres47/request-portal/internal/httputil"
	"github.com/dtorres47/request-portal/internal/model"
	"github.com/dtorres47/request-portal/internal/session"
)

// MaxUploadBytes caps one approval file.
const MaxUploadBytes = 512 << 20

// Identity resolves the profile the request acts for.
type Identity interface {
	Current() (model.UserAccount, bool)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyTitle),
		errors.Is(err, ErrMissingArtifact),
		errors.Is(err, ErrUnknownCategory),
		errors.Is(err, ErrUnknownKind),
		errors.Is(err, artifacts.ErrArtworkTooLarge):
		httputil.JSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		httputil.JSONError(w, err.Error(), http.StatusNotFound)
	default:
		httputil.StorageError(w, err)
	}
}

// RegisterRoutes mounts POST /api/requests/{kind}. A successful submit shows
// the confirmation banner for confirm on the caller's session.
func (s *Service) RegisterRoutes(r chi.Router, who Identity, confirm time.Duration) {
	r.Post("/api/requests/{kind}", func(w http.ResponseWriter, r *http.Request) {
		kind, err := ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			writeError(w, err)
			return
		}
		u, ok := who.Current()
		if !ok {
			httputil.JSONError(w, "No user profile. Enter your name first.", http.StatusUnauthorized)
			return
		}
		var body struct {
			GameTitle string `json:"gameTitle"`
			Category  string `json:"category"`
		}
		if err := httputil.DecodeJSON(r, &body); err != nil {
			httputil.JSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		rec, err := s.Submit(Submission{
			Kind:     kind,
			Title:    body.GameTitle,
			Email:    u.Email,
			Category: model.BypassCategory(body.Category),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		if sess := session.FromContext(r.Context()); sess != nil {
			sess.MarkSubmitted(bannerView(kind, body.Category), confirm)
		}
		httputil.JSONResponse(w, rec, http.StatusCreated)
	})
}

// bannerView names the page whose confirmation banner a submit shows.
func bannerView(k Kind, category string) string {
	if k == KindBypass {
		return string(k) + ":" + strings.ToLower(category)
	}
	return string(k)
}

// RegisterAdminRoutes mounts the admin request endpoints. Callers gate r on
// the admin flag.
func (s *Service) RegisterAdminRoutes(r chi.Router, blobs *artifacts.Registry) {
	r.Get("/api/admin/requests/{kind}", func(w http.ResponseWriter, r *http.Request) {
		kind, err := ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			writeError(w, err)
			return
		}
		list, _ := s.List(kind)
		httputil.JSONResponse(w, list, http.StatusOK)
	})

	r.Post("/api/admin/requests/{kind}/{id}/approve", func(w http.ResponseWriter, r *http.Request) {
		kind, err := ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			writeError(w, err)
			return
		}
		id, err := httputil.ParseID(chi.URLParam(r, "id"))
		if err != nil {
			httputil.JSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !s.Exists(kind, id) {
			writeError(w, fmt.Errorf("%s %d: %w", kind, id, ErrNotFound))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+artifacts.MaxArtworkBytes+1<<20)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			httputil.JSONError(w, "Invalid upload", http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()
		a, err := upload(r, kind, blobs)
		if err != nil {
			writeError(w, err)
			return
		}
		rec, err := s.Approve(kind, id, a)
		if err != nil {
			// a failed notify still saved the record, which now owns the blobs
			if !errors.Is(err, ErrNotify) {
				blobs.Delete(a.FileURL)
				blobs.Delete(a.ImageURL)
			}
			writeError(w, err)
			return
		}
		httputil.JSONResponse(w, rec, http.StatusOK)
	})

	r.Post("/api/admin/simulate", func(w http.ResponseWriter, r *http.Request) {
		sim, err := s.Simulate()
		if err != nil {
			httputil.StorageError(w, err)
			return
		}
		log.Printf("simulated visitor %s", sim.Visitor.Username)
		httputil.JSONResponse(w, sim, http.StatusCreated)
	})
}

// upload moves the multipart artifacts into the blob registry. Presence is
// checked before anything is stored.
func upload(r *http.Request, kind Kind, blobs *artifacts.Registry) (Artifacts, error) {
	file, fileHdr, err := r.FormFile("file")
	if err != nil {
		return Artifacts{}, ErrMissingArtifact
	}
	defer file.Close()

	image, imageHdr, imgErr := r.FormFile("image")
	if imgErr == nil {
		defer image.Close()
	}
	imageURL := strings.TrimSpace(r.FormValue("imageUrl"))
	if kind != KindGame && imgErr != nil && imageURL == "" {
		return Artifacts{}, ErrMissingArtifact
	}

	data, err := readAll(file)
	if err != nil {
		return Artifacts{}, err
	}
	a := Artifacts{FileName: fileHdr.Filename}

	if kind != KindGame && imgErr == nil {
		raw, err := readAll(image)
		if err != nil {
			return Artifacts{}, err
		}
		art, err := blobs.PutArtwork(imageHdr.Filename, raw)
		if err != nil {
			return Artifacts{}, fmt.Errorf("%w: %v", ErrMissingArtifact, err)
		}
		imageURL = art.URL()
	}
	a.ImageURL = imageURL
	a.FileURL = blobs.Put(fileHdr.Filename, contentType(fileHdr), data).URL()
	return a, nil
}

func readAll(f multipart.File) ([]byte, error) {
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return b, nil
}

func contentType(h *multipart.FileHeader) string {
	if ct := h.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
