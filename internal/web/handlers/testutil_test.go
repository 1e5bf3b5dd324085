package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/embedder"
	"github.com/kozaktomas/face-attendance/internal/photostore"
)

// fixedNow is the clock used by handler tests.
var fixedNow = time.Date(2024, 3, 5, 9, 15, 0, 0, time.Local)

// fakeDetector returns the configured embeddings as detected faces.
type fakeDetector struct {
	embeddings [][]float64
	err        error
}

func (f *fakeDetector) DetectFaces(ctx context.Context, photo []byte) ([]embedder.Face, error) {
	if f.err != nil {
		return nil, f.err
	}
	faces := make([]embedder.Face, len(f.embeddings))
	for i, e := range f.embeddings {
		faces[i] = embedder.Face{Index: i, Embedding: e}
	}
	return faces, nil
}

// testEnv bundles the fakes behind the handlers.
type testEnv struct {
	store    *mock.MockIdentityStore
	ledger   *mock.MockLedger
	detector *fakeDetector
	photos   *photostore.FSStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return &testEnv{
		store:    mock.NewMockIdentityStore(),
		ledger:   mock.NewMockLedger(),
		detector: &fakeDetector{},
		photos:   photostore.NewFSStore(t.TempDir()),
	}
}

func (e *testEnv) students() *StudentsHandler {
	return NewStudentsHandler(attendance.NewEnrollmentService(e.store, e.photos, e.detector))
}

func (e *testEnv) attendance() *AttendanceHandler {
	pipeline := attendance.NewPipeline(e.store, e.ledger, e.detector,
		attendance.WithClock(func() time.Time { return fixedNow }))
	return NewAttendanceHandler(pipeline, config.DefaultLayout(), 0.5)
}

// multipartRequest builds a multipart POST with the given fields and an optional photo.
func multipartRequest(t *testing.T, path string, fields map[string]string, photo []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field %s: %v", k, err)
		}
	}
	if photo != nil {
		part, err := mw.CreateFormFile("photo", "face.jpg")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write(photo)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	req := httptest.NewRequest("POST", path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
