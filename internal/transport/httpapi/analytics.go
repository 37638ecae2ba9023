package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"ppesuite/internal/usecase/analytics"
)

func (h *handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	days := 0
	if raw := strings.TrimSpace(query.Get("days")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		days = parsed
	}

	report, err := h.services.Analytics.Build(r.Context(), analytics.Filter{
		Departments:  multiValue(query["department"]),
		Sites:        multiValue(query["site"]),
		JobTitles:    multiValue(query["job_title"]),
		LookbackDays: days,
	})
	if err != nil {
		writeUsecaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// multiValue accepts both repeated parameters and comma-separated lists.
func multiValue(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
