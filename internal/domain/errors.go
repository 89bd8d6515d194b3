package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRoomNotFound signals that a document or discussion room is not (yet)
	// available in the remote state. Reconciliation treats this as a
	// keep-polling condition, not a failure.
	ErrRoomNotFound = errors.New("room not found")
	// ErrNotPermitted signals a client-side permission guard rejection.
	ErrNotPermitted = errors.New("not permitted")
	// ErrRemoteWrite signals a failed remote state write. The attempted local
	// transition is never applied; the user must repeat the action.
	ErrRemoteWrite = errors.New("remote write failed")
	// ErrIndexing signals that no page text has been extracted yet, so
	// full-text search cannot run.
	ErrIndexing = errors.New("document text not yet indexed")
	// ErrAnnotationNotFound signals a missing annotation record.
	ErrAnnotationNotFound = errors.New("annotation not found")
	// ErrInvalidRequest signals malformed caller input.
	ErrInvalidRequest = errors.New("invalid request")
)

// PermissionError wraps ErrNotPermitted with the power level the remote room
// reports for the viewer, for diagnostics in the surfaced notice.
type PermissionError struct {
	UserID     string
	PowerLevel int
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s: %s has power level %d", ErrNotPermitted.Error(), e.UserID, e.PowerLevel)
}

func (e *PermissionError) Unwrap() error { return ErrNotPermitted }

// NewPermissionError creates a permission guard error.
func NewPermissionError(userID string, powerLevel int) error {
	return &PermissionError{UserID: userID, PowerLevel: powerLevel}
}
