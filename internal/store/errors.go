package store

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrSchemaMissing means the file is not a campaign save. It is not
	// recoverable by retrying.
	ErrSchemaMissing = errors.New("campaign schema missing")

	// ErrRankChanged means the pilot's rank changed between the read and the
	// promotion write; nothing was written.
	ErrRankChanged = errors.New("pilot rank changed concurrently")
)

// IsUnavailable reports whether err is a transient failure to reach the
// save: locked or busy by the game, or momentarily missing.
func IsUnavailable(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen:
		return true
	}
	return false
}
