package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
)

// StudentsHandler handles enrollment endpoints.
type StudentsHandler struct {
	enrollment *attendance.EnrollmentService
}

// NewStudentsHandler creates a new students handler.
func NewStudentsHandler(enrollment *attendance.EnrollmentService) *StudentsHandler {
	return &StudentsHandler{enrollment: enrollment}
}

// List returns every enrolled identity.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.enrollment.List(r.Context())
	if err != nil {
		respondServiceError(w, "list students", err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// Register enrolls an identity from a multipart form with the fields
// student_id, name, group and photo.
func (h *StudentsHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MultipartMemory); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	photo, filename, err := readPhoto(r, "photo")
	if err != nil {
		respondError(w, http.StatusBadRequest, "photo is required")
		return
	}

	ident, err := h.enrollment.Enroll(r.Context(), attendance.EnrollRequest{
		ID:       r.FormValue("student_id"),
		Name:     r.FormValue("name"),
		Group:    r.FormValue("group"),
		Filename: filename,
		Photo:    photo,
	})
	if err != nil {
		respondServiceError(w, "register student", err)
		return
	}

	log.Printf("Enrolled %s (%s), %d samples", sanitizeForLog(ident.ID), sanitizeForLog(ident.Group), len(ident.Embeddings))
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "student '" + ident.Name + "' registered",
		"student": attendance.IdentitySummary{
			ID:      ident.ID,
			Name:    ident.Name,
			Group:   ident.Group,
			Samples: len(ident.Embeddings),
		},
	})
}

// Delete removes an identity and its reference photos.
func (h *StudentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ident, err := h.enrollment.Remove(r.Context(), id)
	if err != nil {
		respondServiceError(w, "delete student", err)
		return
	}

	log.Printf("Removed %s", sanitizeForLog(id))
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "student '" + ident.Name + "' removed",
	})
}

// Groups returns the sorted distinct groups.
func (h *StudentsHandler) Groups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.enrollment.Groups(r.Context())
	if err != nil {
		respondServiceError(w, "list groups", err)
		return
	}
	respondJSON(w, http.StatusOK, groups)
}
