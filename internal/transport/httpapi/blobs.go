package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// handleBlob serves blobs for the filesystem backend, whose presigned URLs
// point back at this route.
func (h *handler) handleBlob(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(chi.URLParam(r, "*"))
	if key == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	data, err := h.services.Blobs.Get(r.Context(), key)
	if err != nil {
		writeUsecaseError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
