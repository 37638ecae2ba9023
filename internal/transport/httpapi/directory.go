package httpapi

import (
	"errors"
	"io"
	"net/http"

	"ppesuite/internal/usecase/directory"
)

func (h *handler) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	out, err := h.services.Directory.List(r.Context(), directory.ListFilter{
		Search:     query.Get("search"),
		Department: query.Get("department"),
	})
	if err != nil {
		writeUsecaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) handleRegisterEmployee(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.options.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.options.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "photo is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart form is required")
		return
	}

	input := directory.RegisterInput{
		Name:       r.FormValue("name"),
		Department: r.FormValue("department"),
		Site:       r.FormValue("site"),
		Line:       r.FormValue("line"),
		JobTitle:   r.FormValue("job_title"),
		Email:      r.FormValue("email"),
	}
	if file, header, err := r.FormFile("photo"); err == nil {
		photo, readErr := io.ReadAll(file)
		_ = file.Close()
		if readErr != nil {
			writeError(w, http.StatusBadRequest, "failed to read photo")
			return
		}
		input.Photo = photo
		input.PhotoFilename = header.Filename
	}

	profile, err := h.services.Directory.Register(r.Context(), input)
	if err != nil {
		writeUsecaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}
