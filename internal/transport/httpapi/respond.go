package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/domain/compliance"
	"ppesuite/internal/errs"
	"ppesuite/internal/usecase/session"
)

// statusClientClosedRequest is the nginx convention for a client that went away.
const statusClientClosedRequest = 499

const retryMessage = "system error, please retry"

type errorResponse struct {
	Error     string                   `json:"error"`
	Retryable bool                     `json:"retryable,omitempty"`
	Upload    *compliance.UploadRecord `json:"upload,omitempty"`
}

var badRequestErrors = []error{
	compliance.ErrImageKeyRequired,
	compliance.ErrInvalidBudget,
	compliance.ErrInvalidPollInterval,
	compliance.ErrBudgetTooLarge,
	compliance.ErrEmptyUpload,
	compliance.ErrUnsupportedImageType,
	compliance.ErrEmployeeIDRequired,
	compliance.ErrEmployeeNameRequired,
	compliance.ErrPhotoRequired,
	compliance.ErrUnknownDepartment,
	compliance.ErrInvalidViolationCount,
	session.ErrInvalidState,
	session.ErrCodeRequired,
}

// classify maps a usecase error onto a status and the message shown to clients.
// Infrastructure details stay in the logs.
func classify(err error) (int, errorResponse) {
	switch {
	case errors.Is(err, compliance.ErrInfrastructure):
		return http.StatusServiceUnavailable, errorResponse{Error: retryMessage, Retryable: true}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorResponse{Error: "request timed out", Retryable: true}
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, errorResponse{Error: "request cancelled"}
	case errors.Is(err, compliance.ErrBlobNotFound):
		return http.StatusNotFound, errorResponse{Error: "not found"}
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusUnauthorized, errorResponse{Error: "login required"}
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, errorResponse{Error: err.Error()}
		}
	}
	return http.StatusInternalServerError, errorResponse{Error: "internal error"}
}

func writeUsecaseError(w http.ResponseWriter, r *http.Request, err error) {
	writeUsecaseErrorWith(w, r, err, nil)
}

func writeUsecaseErrorWith(w http.ResponseWriter, r *http.Request, err error, upload *compliance.UploadRecord) {
	status, body := classify(err)
	body.Upload = upload
	if status >= http.StatusInternalServerError {
		logging.Error(r.Context(), "request failed", slog.Int("status", status), slog.Any("err", errs.Loggable(err)))
	} else {
		logging.Debug(r.Context(), "request rejected", slog.Int("status", status), slog.Any("err", errs.Loggable(err)))
	}
	writeJSON(w, status, body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
