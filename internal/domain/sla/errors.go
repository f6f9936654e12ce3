package sla

import "errors"

// ErrSweepFailed is returned when the matches to evaluate cannot be listed.
var ErrSweepFailed = errors.New("sla sweep failed")
