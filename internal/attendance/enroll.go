package attendance

import (
	"context"
	"fmt"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/embedder"
	"github.com/kozaktomas/face-attendance/internal/metrics"
	"github.com/kozaktomas/face-attendance/internal/photostore"
)

// FaceDetector finds faces and their embeddings in a photo.
type FaceDetector interface {
	DetectFaces(ctx context.Context, photo []byte) ([]embedder.Face, error)
}

// EnrollRequest is one enrollment call.
type EnrollRequest struct {
	ID       string
	Name     string
	Group    string
	Filename string
	Photo    []byte
}

// IdentitySummary is an identity without its embeddings.
type IdentitySummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Group   string `json:"group"`
	Samples int    `json:"samples"`
}

// EnrollmentService adds identities and their reference samples.
type EnrollmentService struct {
	store    database.IdentityStore
	photos   photostore.Store
	detector FaceDetector
	metrics  *metrics.Metrics
}

// NewEnrollmentService creates an enrollment service. photos may be nil, in
// which case reference photos are not kept.
func NewEnrollmentService(store database.IdentityStore, photos photostore.Store, detector FaceDetector) *EnrollmentService {
	return &EnrollmentService{store: store, photos: photos, detector: detector}
}

// WithMetrics records enrollment results on m.
func (s *EnrollmentService) WithMetrics(m *metrics.Metrics) *EnrollmentService {
	s.metrics = m
	return s
}

func validateID(id string) error {
	switch {
	case id == "":
		return &ValidationError{Field: "student_id", Reason: "must not be empty"}
	case id == "." || id == "..", strings.ContainsAny(id, `/\`):
		return &ValidationError{Field: "student_id", Reason: "must not contain path separators"}
	}
	return nil
}

func (r *EnrollRequest) normalize() error {
	r.ID = strings.TrimSpace(r.ID)
	r.Name = strings.TrimSpace(r.Name)
	r.Group = strings.TrimSpace(r.Group)
	if err := validateID(r.ID); err != nil {
		return err
	}
	if r.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if r.Group == "" {
		r.Group = database.DefaultGroup
	}
	if len(r.Photo) == 0 {
		return &ValidationError{Field: "photo", Reason: "must not be empty"}
	}
	return nil
}

// Enroll adds one embedding sample for the identity in req.
// The photo must show exactly one face; otherwise nothing is stored.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*database.Identity, error) {
	ident, err := s.enroll(ctx, req)
	s.metrics.Enrollment(enrollResult(err))
	return ident, err
}

func (s *EnrollmentService) enroll(ctx context.Context, req EnrollRequest) (*database.Identity, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	faces, err := s.detector.DetectFaces(ctx, req.Photo)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}
	switch {
	case len(faces) == 0:
		return nil, ErrNoFaceDetected
	case len(faces) > 1:
		return nil, ErrMultipleFacesDetected
	}

	var photoKey string
	if s.photos != nil {
		photoKey, err = s.photos.Save(ctx, req.ID, req.Filename, req.Photo)
		if err != nil {
			return nil, database.WrapStorage("save photo", err)
		}
	}

	ident, err := s.store.Upsert(ctx, req.ID, req.Name, req.Group, faces[0].Embedding)
	if err != nil {
		if photoKey != "" {
			if delErr := s.photos.Delete(ctx, photoKey); delErr != nil {
				return nil, fmt.Errorf("%w (photo cleanup failed: %v)", err, delErr)
			}
		}
		return nil, err
	}
	return ident, nil
}

func enrollResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case KindOf(err) == KindValidation:
		return "rejected"
	default:
		return "error"
	}
}

// Remove deletes the identity and its reference photos.
func (s *EnrollmentService) Remove(ctx context.Context, id string) (*database.Identity, error) {
	ident, err := s.store.Remove(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.photos != nil && validateID(id) == nil {
		if err := s.photos.RemoveAll(ctx, id); err != nil {
			return ident, database.WrapStorage("remove photos", err)
		}
	}
	return ident, nil
}

// List returns every identity sorted by id.
func (s *EnrollmentService) List(ctx context.Context) ([]IdentitySummary, error) {
	ids, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]IdentitySummary, 0, len(ids))
	for _, id := range database.SortedIDs(ids) {
		ident := ids[id]
		out = append(out, IdentitySummary{
			ID:      id,
			Name:    ident.Name,
			Group:   ident.Group,
			Samples: len(ident.Embeddings),
		})
	}
	return out, nil
}

// Groups returns the sorted distinct groups of the enrolled identities.
func (s *EnrollmentService) Groups(ctx context.Context) ([]string, error) {
	ids, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return database.Groups(ids), nil
}
