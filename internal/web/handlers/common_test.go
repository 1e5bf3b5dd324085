package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
)

func TestRespondJSON(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondJSON(recorder, http.StatusCreated, []string{"3A", "3B"})

	assertStatusCode(t, recorder, http.StatusCreated)
	assertContentType(t, recorder, "application/json")
	var groups []string
	parseJSONResponse(t, recorder, &groups)
	if len(groups) != 2 || groups[1] != "3B" {
		t.Errorf("unexpected groups %v", groups)
	}
}

func TestRespondJSON_NilDataWritesNoBody(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondJSON(recorder, http.StatusNoContent, nil)

	assertStatusCode(t, recorder, http.StatusNoContent)
	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", recorder.Body.String())
	}
}

func TestRespondError(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondError(recorder, http.StatusBadRequest, "student_id is required")

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertContentType(t, recorder, "application/json")
	assertJSONError(t, recorder, "student_id is required")
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind attendance.Kind
		want int
	}{
		{attendance.KindValidation, http.StatusBadRequest},
		{attendance.KindPrecondition, http.StatusBadRequest},
		{attendance.KindNotFound, http.StatusNotFound},
		{attendance.KindStorage, http.StatusInternalServerError},
		{attendance.KindInternal, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.kind.String(), func(t *testing.T) {
			if got := statusForKind(tc.kind); got != tc.want {
				t.Errorf("statusForKind(%v) = %d, want %d", tc.kind, got, tc.want)
			}
		})
	}
}

func TestReadPhoto(t *testing.T) {
	req := multipartRequest(t, "/api/v1/students/register", map[string]string{"name": "Ana"}, []byte("jpeg bytes"))
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("failed to parse form: %v", err)
	}

	data, filename, err := readPhoto(req, "photo")
	if err != nil {
		t.Fatalf("readPhoto: %v", err)
	}
	if string(data) != "jpeg bytes" || filename != "face.jpg" {
		t.Errorf("unexpected photo %q named %q", data, filename)
	}

	if _, _, err := readPhoto(req, "missing"); err == nil {
		t.Error("expected error for a missing field")
	}
}

func TestHealthCheck(t *testing.T) {
	recorder := httptest.NewRecorder()
	HealthCheck(recorder, httptest.NewRequest("GET", "/api/v1/health", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var result map[string]string
	parseJSONResponse(t, recorder, &result)
	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%s'", result["status"])
	}
}

func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"validation", attendance.ErrNoFaceDetected, http.StatusBadRequest, attendance.ErrNoFaceDetected.Error()},
		{"precondition", attendance.ErrNoIdentitiesRegistered, http.StatusBadRequest, attendance.ErrNoIdentitiesRegistered.Error()},
		{"not found", fmt.Errorf("identity %q: %w", "x", database.ErrNotFound), http.StatusNotFound, "not found"},
		{"storage", database.WrapStorage("write", errors.New("disk full")), http.StatusInternalServerError, "op failed"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "op failed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondServiceError(recorder, "op", tc.err)

			if recorder.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, recorder.Code)
			}
			var result map[string]string
			if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if result["error"] != tc.wantMessage {
				t.Errorf("expected error %q, got %q", tc.wantMessage, result["error"])
			}
		})
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("A1\r\nforged line"); got != "A1forged line" {
		t.Errorf("unexpected sanitized value %q", got)
	}
}

func TestInfo(t *testing.T) {
	recorder := httptest.NewRecorder()
	Info("1.2.3")(recorder, httptest.NewRequest("GET", "/", nil))

	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if result["version"] != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %q", result["version"])
	}
}
