// internal/common/errors/errors.go
package errors

import "errors"

// Sentinel errors shared across packages. Callers branch with errors.Is.
var (
	ErrSessionNotFound    = errors.New("SESSION_NOT_FOUND")
	ErrStorageUnavailable = errors.New("STORAGE_UNAVAILABLE")
	ErrInvalidInput       = errors.New("INVALID_INPUT")
	ErrCatalogUnavailable = errors.New("CATALOG_UNAVAILABLE")
	ErrNotFound           = errors.New("NOT_FOUND")
)

// Is wraps the stdlib so call sites only import this package.
func Is(err, target error) bool { return errors.Is(err, target) }

// Wrap annotates err with a message, keeping the chain intact.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrapped{msg: msg, err: err}
}

type wrapped struct {
	msg string
	err error
}

func (w *wrapped) Error() string { return w.msg + ": " + w.err.Error() }
func (w *wrapped) Unwrap() error { return w.err }
