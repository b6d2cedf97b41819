package draft

import (
	"errors"
	"fmt"
)

var (
	ErrScopeRequired   = errors.New("draft scope is required")
	ErrNotLoaded       = errors.New("draft is not loaded")
	ErrRecordNotFound  = errors.New("draft record not found")
	ErrInvalidRecordId = errors.New("invalid draft record id")
)

type Phase string

const (
	PhaseInsert Phase = "insert"
	PhaseUpdate Phase = "update"
	PhaseDelete Phase = "delete"
)

// SaveError attributes a failed save to exactly one phase. Phases before it
// have already committed on the server.
type SaveError struct {
	Scope string
	Phase Phase
	// RecordID is set for the update phase only.
	RecordID int64
	Err      error
}

func (e *SaveError) Error() string {
	switch e.Phase {
	case PhaseInsert:
		return fmt.Sprintf("could not add new records: %v", e.Err)
	case PhaseUpdate:
		return fmt.Sprintf("could not update record %d: %v", e.RecordID, e.Err)
	case PhaseDelete:
		return fmt.Sprintf("could not delete removed records: %v", e.Err)
	}
	return fmt.Sprintf("could not save draft: %v", e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

type FetchError struct {
	Scope string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("could not load records of %s: %v", e.Scope, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ReloadError means every phase committed but the scope could not be read
// back. Result holds what was written; the engine is left empty.
type ReloadError struct {
	Scope  string
	Result SaveResult
	Err    error
}

func (e *ReloadError) Error() string {
	return fmt.Sprintf("draft of %s saved, reload failed: %v", e.Scope, e.Err)
}

func (e *ReloadError) Unwrap() error {
	return e.Err
}
