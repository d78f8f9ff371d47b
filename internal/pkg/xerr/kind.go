package xerr

import "errors"

// Kind classifies an error into a small recovery-relevant taxonomy. It lets
// callers (the manager, the progress store, the upload task) decide
// recovery strategy without string-matching error messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidArgument
	KindStorageUnavailable
	KindQuotaExceeded
	KindOperationFailed
	KindNetworkError
	KindIntegrityError
	KindFileMismatch
	KindInvalidTransition
)

// KindOf reports the taxonomy bucket for a sentinel error declared in
// msg.go. err may be the sentinel itself or anything wrapping it (e.g. a
// *CodeError, or fmt.Errorf("%w: ...", sentinel)); classification walks
// the chain with errors.Is rather than comparing err by value. Unrecognized
// errors classify as KindUnknown; callers should treat that as a generic,
// non-retryable failure.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrInvalidParams), errors.Is(err, ErrValidationFailed):
		return KindInvalidArgument
	case errors.Is(err, ErrStorageUnavailable):
		return KindStorageUnavailable
	case errors.Is(err, ErrQuotaExceeded):
		return KindQuotaExceeded
	case errors.Is(err, ErrOperationFailed), errors.Is(err, ErrDatabaseError), errors.Is(err, ErrStorageError):
		return KindOperationFailed
	case errors.Is(err, ErrNetworkError):
		return KindNetworkError
	case errors.Is(err, ErrIntegrityError):
		return KindIntegrityError
	case errors.Is(err, ErrFileMismatch):
		return KindFileMismatch
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	default:
		return KindUnknown
	}
}

// Retryable reports whether the engine's chunk-retry loop should treat this
// error kind as transient.
func (k Kind) Retryable() bool {
	return k == KindNetworkError || k == KindIntegrityError
}
