package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForKind maps an error kind to an HTTP status.
func statusForKind(kind attendance.Kind) int {
	switch kind {
	case attendance.KindValidation, attendance.KindPrecondition:
		return http.StatusBadRequest
	case attendance.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError maps a core error to a response. Server side failures
// are logged and answered with a generic message.
func respondServiceError(w http.ResponseWriter, op string, err error) {
	status := statusForKind(attendance.KindOf(err))
	switch status {
	case http.StatusNotFound:
		respondError(w, status, "not found")
		return
	case http.StatusInternalServerError:
		log.Printf("%s failed: %v", op, err)
		respondError(w, status, op+" failed")
		return
	}
	respondError(w, status, err.Error())
}

// readPhoto reads the uploaded file of the given multipart field.
func readPhoto(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, constants.MaxUploadSize))
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Info returns a handler describing the running service.
func Info(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{
			"message": "face attendance service running",
			"version": version,
		})
	}
}
