package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/workbook"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AttendanceHandler handles recognition and ledger endpoints.
type AttendanceHandler struct {
	pipeline  *attendance.Pipeline
	layout    config.LayoutConfig
	tolerance float64
}

// NewAttendanceHandler creates a new attendance handler. tolerance is used
// when a request does not specify one.
func NewAttendanceHandler(pipeline *attendance.Pipeline, layout config.LayoutConfig, tolerance float64) *AttendanceHandler {
	return &AttendanceHandler{pipeline: pipeline, layout: layout, tolerance: tolerance}
}

// Recognize registers attendance from a group photo. Multipart fields:
// photo, group and the optional tolerance.
func (h *AttendanceHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MultipartMemory); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	photo, _, err := readPhoto(r, "photo")
	if err != nil {
		respondError(w, http.StatusBadRequest, "photo is required")
		return
	}

	tolerance := h.tolerance
	if raw := strings.TrimSpace(r.FormValue("tolerance")); raw != "" {
		tolerance, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "tolerance must be a number")
			return
		}
	}

	res, err := h.pipeline.Recognize(r.Context(), r.FormValue("group"), tolerance, photo)
	if err != nil {
		respondServiceError(w, "recognize attendance", err)
		return
	}

	log.Printf("Recognized %d of %d faces for %s", len(res.Recognized), res.TotalFaces, sanitizeForLog(res.Group))
	respondJSON(w, http.StatusOK, res)
}

// Today returns the current day's ledger of the group query parameter.
func (h *AttendanceHandler) Today(w http.ResponseWriter, r *http.Request) {
	today, err := h.pipeline.Today(r.Context(), r.URL.Query().Get("group"))
	if err != nil {
		respondServiceError(w, "read attendance", err)
		return
	}
	respondJSON(w, http.StatusOK, today)
}

// Download sends the current day's ledger of the group as a workbook.
func (h *AttendanceHandler) Download(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")

	exists, err := h.pipeline.LedgerExists(r.Context(), group)
	if err != nil {
		respondServiceError(w, "download attendance", err)
		return
	}
	if !exists {
		respondError(w, http.StatusNotFound, "no attendance recorded today")
		return
	}

	today, err := h.pipeline.Today(r.Context(), group)
	if err != nil {
		respondServiceError(w, "download attendance", err)
		return
	}
	now := h.pipeline.Now()
	data, err := workbook.Render(h.layout, today.Group, now, today.Records)
	if err != nil {
		respondServiceError(w, "download attendance", err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+database.LedgerFileName(today.Group, now)+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
