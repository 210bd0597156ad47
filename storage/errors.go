package storage

import "errors"

// ErrNotFound is returned when a run or outcome is missing from the history.
var ErrNotFound = errors.New("storage: record not found")
