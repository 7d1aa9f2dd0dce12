package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/dtorres47/request-portal/internal/kv"
)

func JSONResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func JSONError(w http.ResponseWriter, msg string, status int) {
	JSONResponse(w, map[string]string{"error": msg}, status)
}

// StorageError reports a failed save. Quota failures get their own status
// and a message the user can act on; the request's in-memory effects are not
// rolled back.
func StorageError(w http.ResponseWriter, err error) {
	log.Printf("storage write failed: %v", err)
	if errors.Is(err, kv.ErrQuotaExceeded) {
		JSONError(w, "Could not save: browser storage is full. Clear some data and try again.", http.StatusInsufficientStorage)
		return
	}
	JSONError(w, "Could not save your data.", http.StatusInternalServerError)
}

func DecodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode request body: %w", err)
	}
	return nil
}

func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
