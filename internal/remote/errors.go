package remote

import (
	"errors"
	"fmt"
)

// Sentinels matched with errors.Is. A *SyncError matches the sentinel for
// its Code, so callers can test either form.
var (
	// ErrSyncUnavailable means no collaborator or no collection for the kind.
	ErrSyncUnavailable = errors.New("remote sync unavailable")

	// ErrSyncDisabled is the collaborator's explicit off switch.
	ErrSyncDisabled = errors.New("remote sync disabled")

	// ErrOffline means the collaborator could not reach its backend.
	ErrOffline = errors.New("remote offline")

	// ErrNotReady means the ready signal has not been raised yet. It is
	// always wrapped in a SYNC_UNAVAILABLE SyncError.
	ErrNotReady = errors.New("collaborator not ready")
)

// SyncErrorCode categorizes remote failures.
type SyncErrorCode string

const (
	// CodeUnavailable: sync cannot start; the store stays local-only.
	CodeUnavailable SyncErrorCode = "SYNC_UNAVAILABLE"

	// CodeDisabled: the collaborator refused because sync is switched off.
	CodeDisabled SyncErrorCode = "SYNC_DISABLED"

	// CodeOffline: transport could not reach the backend.
	CodeOffline SyncErrorCode = "OFFLINE"

	// CodeRemoteFailure: anything else. Triggers rollback.
	CodeRemoteFailure SyncErrorCode = "REMOTE_FAILURE"
)

// SyncError describes a failed remote operation.
type SyncError struct {
	Code       SyncErrorCode
	Op         string
	Collection string
	Err        error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Op)
	}
	if e.Collection != "" {
		msg = fmt.Sprintf("%s %s", msg, e.Collection)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel that corresponds to the error code.
func (e *SyncError) Is(target error) bool {
	switch target {
	case ErrSyncUnavailable:
		return e.Code == CodeUnavailable
	case ErrSyncDisabled:
		return e.Code == CodeDisabled
	case ErrOffline:
		return e.Code == CodeOffline
	}
	return false
}

// IsSyncDisabled reports whether err should degrade the store to
// local-only while keeping the optimistic change: the explicit off switch
// or a network-unavailable condition.
// Uses errors.Is to handle wrapped errors.
func IsSyncDisabled(err error) bool {
	return errors.Is(err, ErrSyncDisabled) || errors.Is(err, ErrOffline)
}

// IsSyncUnavailable reports whether err means sync could not start at all.
func IsSyncUnavailable(err error) bool {
	return errors.Is(err, ErrSyncUnavailable)
}

// IsNotReady reports whether err came from a binding that was used before
// the ready signal was raised.
func IsNotReady(err error) bool {
	return errors.Is(err, ErrNotReady)
}

// Wrap classifies err as a SyncError for op on collection. Existing
// SyncErrors keep their code and gain missing context; nil stays nil.
func Wrap(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	var se *SyncError
	if errors.As(err, &se) {
		if se.Op != "" && se.Collection != "" {
			return err
		}
		out := *se
		if out.Op == "" {
			out.Op = op
		}
		if out.Collection == "" {
			out.Collection = collection
		}
		return &out
	}
	return &SyncError{Code: classify(err), Op: op, Collection: collection, Err: err}
}

func classify(err error) SyncErrorCode {
	switch {
	case errors.Is(err, ErrSyncDisabled):
		return CodeDisabled
	case errors.Is(err, ErrOffline):
		return CodeOffline
	case errors.Is(err, ErrSyncUnavailable):
		return CodeUnavailable
	}
	return CodeRemoteFailure
}

// Disabled builds a SYNC_DISABLED error.
func Disabled(op, collection string, cause error) *SyncError {
	return &SyncError{Code: CodeDisabled, Op: op, Collection: collection, Err: cause}
}

// Offline builds an OFFLINE error.
func Offline(op, collection string, cause error) *SyncError {
	return &SyncError{Code: CodeOffline, Op: op, Collection: collection, Err: cause}
}

// Unavailable builds a SYNC_UNAVAILABLE error.
func Unavailable(op, collection string, cause error) *SyncError {
	return &SyncError{Code: CodeUnavailable, Op: op, Collection: collection, Err: cause}
}
