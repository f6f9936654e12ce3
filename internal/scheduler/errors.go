package scheduler

import "errors"

// Static errors for scheduler registration.
var (
	ErrInvalidJob = errors.New("invalid job")
	ErrDuplicate  = errors.New("job already registered")
	ErrStarted    = errors.New("runner already started")
)
