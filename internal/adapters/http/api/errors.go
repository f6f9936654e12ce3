package api

import (
	"errors"
	"fmt"

	"github.com/okian/xpand/internal/app"
	"github.com/okian/xpand/internal/domain/matching"
	"github.com/okian/xpand/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// opError tags an error with the handler operation that produced it.
type opError struct {
	op   string
	kind error
	err  error
}

func (e *opError) Error() string {
	switch {
	case e.kind != nil && e.err != nil:
		return fmt.Sprintf("%s: %v: %v", e.op, e.kind, e.err)
	case e.kind != nil:
		return fmt.Sprintf("%s: %v", e.op, e.kind)
	default:
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
}

func (e *opError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.kind != nil {
		out = append(out, e.kind)
	}
	if e.err != nil {
		out = append(out, e.err)
	}
	return out
}

// Wrap annotates err with op and the kind of its upstream cause, if known.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &opError{op: op, kind: kindOf(err), err: err}
}

// kindOf classifies service errors. Anything else stays unkinded and is
// answered as an internal error; a duplicate match is one of those.
func kindOf(err error) error {
	switch {
	case errors.Is(err, matching.ErrProjectNotFound),
		errors.Is(err, matching.ErrVendorNotFound),
		errors.Is(err, model.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, matching.ErrLockNotObtained),
		errors.Is(err, app.ErrRefreshRunning):
		return ErrConflict
	default:
		return nil
	}
}

// WrapKind annotates err with op and a sentinel kind.
func WrapKind(op string, kind, err error) error {
	return &opError{op: op, kind: kind, err: err}
}

// NewKind builds an error of a sentinel kind for op.
func NewKind(op string, kind error) error {
	return &opError{op: op, kind: kind}
}
