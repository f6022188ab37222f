package watcher

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/rankwatch/internal/store"
)

// ErrorKind categorizes poll failures.
type ErrorKind string

const (
	// KindStoreUnavailable: the save is missing, busy or locked. Retried on
	// the next poll.
	KindStoreUnavailable ErrorKind = "STORE_UNAVAILABLE"

	// KindTransient: any other read failure. Retried on the next poll.
	KindTransient ErrorKind = "TRANSIENT"

	// KindFatal: the save can not be a campaign database. The watcher stops.
	KindFatal ErrorKind = "FATAL"
)

// PollError is returned by Prime and Poll.
type PollError struct {
	Kind ErrorKind

	// MissionID is the mission being processed, 0 outside a sweep.
	MissionID int64

	Err error
}

// Error implements the error interface.
func (e *PollError) Error() string {
	if e.MissionID != 0 {
		return fmt.Sprintf("%s: mission %d: %v", e.Kind, e.MissionID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PollError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err stops the watcher.
func IsFatal(err error) bool {
	var pe *PollError
	if errors.As(err, &pe) {
		return pe.Kind == KindFatal
	}
	return false
}

// IsTransient reports whether err is retried on the next poll.
func IsTransient(err error) bool {
	var pe *PollError
	if errors.As(err, &pe) {
		return pe.Kind == KindTransient || pe.Kind == KindStoreUnavailable
	}
	return false
}

func classify(err error, missionID int64) *PollError {
	kind := KindTransient
	switch {
	case errors.Is(err, store.ErrSchemaMissing):
		kind = KindFatal
	case store.IsUnavailable(err), errors.Is(err, os.ErrNotExist):
		kind = KindStoreUnavailable
	}
	return &PollError{Kind: kind, MissionID: missionID, Err: err}
}
