package repository

import "errors"

var (
	// ErrDuplicate signals a stack push or staging insert hit an existing
	// URL. It is an expected outcome, counted separately from failures.
	ErrDuplicate = errors.New("duplicate url")

	// ErrStorageUnavailable wraps backend connectivity failures. The caller
	// aborts the current symbol/source cycle without advancing its watermark.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrNotFound signals a missing record.
	ErrNotFound = errors.New("not found")
)
