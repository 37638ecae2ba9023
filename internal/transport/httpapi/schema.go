package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ppesuite/internal/schema"
)

func (h *handler) handleSchemaIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"schemas": schema.Names()})
}

func (h *handler) handleSchema(w http.ResponseWriter, r *http.Request) {
	s, err := schema.For(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	raw, err := s.MarshalJSON()
	if err != nil {
		writeUsecaseError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}
