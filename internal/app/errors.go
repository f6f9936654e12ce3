package app

import "errors"

// Static errors returned by the service.
var (
	ErrRefreshFailed   = errors.New("refresh failed")
	ErrRefreshCanceled = errors.New("refresh canceled")
	ErrRefreshRunning  = errors.New("refresh already running")
)
