package matching

import "errors"

// Sentinel kinds for matching errors.
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrVendorNotFound  = errors.New("vendor not found")
	ErrRebuildFailed   = errors.New("rebuild failed")
	ErrLockNotObtained = errors.New("project is being rebuilt elsewhere")
	ErrInvalidConfig   = errors.New("invalid matching config")
)
