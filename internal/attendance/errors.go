// Package attendance enrolls identities and records attendance from photos.
package attendance

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/embedder"
)

var (
	ErrNoFaceDetected         = errors.New("no face detected in the photo")
	ErrMultipleFacesDetected  = errors.New("several faces detected, use a photo of a single person")
	ErrNoIdentitiesRegistered = errors.New("no identities registered yet")
)

// Kind classifies an error for callers that map it to a response.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindPrecondition
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindPrecondition:
		return "precondition"
	case KindStorage:
		return "storage"
	default:
		return "internal"
	}
}

// ValidationError reports an invalid request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// KindOf returns the kind of err.
func KindOf(err error) Kind {
	var ve *ValidationError
	var se *database.StorageError
	switch {
	case err == nil:
		return KindInternal
	case errors.As(err, &ve),
		errors.Is(err, ErrNoFaceDetected),
		errors.Is(err, ErrMultipleFacesDetected),
		errors.Is(err, embedder.ErrInvalidImage):
		return KindValidation
	case errors.Is(err, database.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrNoIdentitiesRegistered):
		return KindPrecondition
	case errors.As(err, &se):
		return KindStorage
	default:
		return KindInternal
	}
}
