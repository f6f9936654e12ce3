package repository

import (
	"errors"

	"github.com/okian/xpand/internal/domain/model"
)

// Sentinel kinds for store errors.
var (
	// ErrNotFound is the domain sentinel so consumers need not import this package.
	ErrNotFound       = model.ErrNotFound
	ErrDuplicateMatch = errors.New("match already exists for project and vendor")
	ErrInvalidVendor  = errors.New("invalid vendor")
	ErrInvalidProject = errors.New("invalid project")
	ErrInvalidClient  = errors.New("invalid client")
)
