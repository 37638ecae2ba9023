package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"ppesuite/internal/usecase/ledger"
)

func (h *handler) handleListViolations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	minViolations := 0
	if raw := strings.TrimSpace(query.Get("min")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "min must be a non-negative integer")
			return
		}
		minViolations = parsed
	}

	out, err := h.services.Ledger.List(r.Context(), ledger.ListFilter{
		Query:         query.Get("query"),
		MinViolations: minViolations,
		Sort:          ledger.SortOrder(query.Get("sort")),
	})
	if err != nil {
		writeUsecaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type saveViolationsResponse struct {
	Updated int `json:"updated"`
}

func (h *handler) handleSaveViolations(w http.ResponseWriter, r *http.Request) {
	var edits []ledger.Row
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&edits); err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON array of {employee_id, violations}")
		return
	}

	updated, err := h.services.Ledger.SaveChanges(r.Context(), edits)
	if err != nil {
		writeUsecaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saveViolationsResponse{Updated: updated})
}

func (h *handler) handleUpsertViolation(w http.ResponseWriter, r *http.Request) {
	var row ledger.Row
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&row); err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON object {employee_id, violations}")
		return
	}

	if err := h.services.Ledger.Upsert(r.Context(), row.EmployeeID, row.Violations); err != nil {
		writeUsecaseError(w, r, err)
		return
	}
	row.EmployeeID = strings.TrimSpace(row.EmployeeID)
	writeJSON(w, http.StatusOK, row)
}
