package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/domain/compliance"
	"ppesuite/internal/errs"
	"ppesuite/internal/usecase/correlation"
	"ppesuite/internal/usecase/upload"
)

const streamWriteTimeout = 5 * time.Second

func (h *handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.options.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.options.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "image is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart form with a file field is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer func() {
		_ = file.Close()
	}()
	body, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	budget, pollInterval, ok := durationParams(w, r.FormValue("budget"), r.FormValue("poll_interval"))
	if !ok {
		return
	}

	out, err := h.services.Uploads.UploadAndCorrelate(r.Context(), upload.Input{
		Filename:     header.Filename,
		Body:         body,
		Budget:       budget,
		PollInterval: pollInterval,
	})
	if err != nil {
		var stored *compliance.UploadRecord
		if out.Upload.ImageKey != "" {
			stored = &out.Upload
		}
		writeUsecaseErrorWith(w, r, err, stored)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) handleResult(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	budget, pollInterval, ok := durationParams(w, query.Get("budget"), query.Get("poll_interval"))
	if !ok {
		return
	}

	result, err := h.services.Correlator.CorrelateWithProgress(r.Context(), query.Get("image_key"), budget, pollInterval, nil)
	if err != nil {
		writeUsecaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// streamMessage is one websocket frame of a result stream. Type is "progress",
// "result" or "error"; the stream closes after the first non-progress frame.
type streamMessage struct {
	Type      string                    `json:"type"`
	Progress  *correlation.Progress     `json:"progress,omitempty"`
	Result    *compliance.DisplayResult `json:"result,omitempty"`
	Error     string                    `json:"error,omitempty"`
	Retryable bool                      `json:"retryable,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

func (h *handler) handleResultStream(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	imageKey := strings.TrimSpace(query.Get("image_key"))
	if imageKey == "" {
		writeUsecaseError(w, r, compliance.ErrImageKeyRequired)
		return
	}
	budget, pollInterval, ok := durationParams(w, query.Get("budget"), query.Get("poll_interval"))
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		logging.Warn(r.Context(), "websocket upgrade failed", slog.Any("err", errs.Loggable(err)))
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client never sends data; a read error means it went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	send := func(msg streamMessage) {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			logging.Debug(ctx, "websocket write failed", slog.Any("err", errs.Loggable(err)))
			cancel()
		}
	}

	result, err := h.services.Correlator.CorrelateWithProgress(ctx, imageKey, budget, pollInterval, func(p correlation.Progress) {
		send(streamMessage{Type: "progress", Progress: &p})
	})
	if err != nil {
		if errs.IsContextDone(err) && ctx.Err() != nil {
			return
		}
		_, body := classify(err)
		send(streamMessage{Type: "error", Error: body.Error, Retryable: body.Retryable})
	} else {
		send(streamMessage{Type: "result", Result: &result})
	}

	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(streamWriteTimeout),
	)
}

func durationParams(w http.ResponseWriter, rawBudget string, rawInterval string) (time.Duration, time.Duration, bool) {
	budget, err := parseDuration(rawBudget)
	if err != nil {
		writeError(w, http.StatusBadRequest, "budget must be a duration like 25s")
		return 0, 0, false
	}
	pollInterval, err := parseDuration(rawInterval)
	if err != nil {
		writeError(w, http.StatusBadRequest, "poll_interval must be a duration like 2s")
		return 0, 0, false
	}
	return budget, pollInterval, true
}
