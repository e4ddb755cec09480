package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrJobCancelled  = errors.New("job cancelled")
	ErrInvalidMatch  = errors.New("invalid match")
	ErrClosed        = errors.New("store closed")
)
