// Package qerrors provides the error taxonomy shared by the cache core.
//
// It re-exports github.com/cockroachdb/errors for stack traces, wrapping,
// and hint/detail annotations, the same way the rest of this module's
// ancestry re-exports it, and adds the sentinel error kinds the cache
// contract requires (KeyNotFound, FetchFailed, Disposing, ...).
package qerrors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping.
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details.
var (
	WithHint   = crdb.WithHint
	WithDetail = crdb.WithDetail
)

// Error inspection.
var (
	Is     = crdb.Is
	As     = crdb.As
	Unwrap = crdb.Unwrap
)

// Assertions for invariant violations.
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel error kinds from the cache contract (spec §7).
//
// These are compared with Is, never with ==, so wrapping with Wrap/Wrapf
// preserves identity.
var (
	// ErrKeyNotFound is returned by get/fetch/strict compound reads when
	// a key is absent or expired and no loader produced a value.
	ErrKeyNotFound = crdb.New("qkvc: key not found")

	// ErrFetchFailed wraps an inner loader error. Use Wrap(ErrFetchFailed, ...)
	// style construction via NewFetchFailed so inner causes chain correctly.
	ErrFetchFailed = crdb.New("qkvc: fetch failed")

	// ErrDisposing is returned by any public method issued after dispose()
	// has started but before it has completed purging memory.
	ErrDisposing = crdb.New("qkvc: cache is disposing")

	// ErrDisposed is returned by any public method issued after dispose()
	// has returned.
	ErrDisposed = crdb.New("qkvc: cache is disposed")

	// ErrAborted is surfaced to a fetch's caller when dispose() cancels
	// the in-flight loader invocation via its context.
	ErrAborted = crdb.New("qkvc: fetch aborted by dispose")

	// ErrQuantumCache marks an internal invariant violation (e.g. the
	// active-fetch table no longer references the future that is
	// cleaning itself up). Always a bug, never user-triggerable.
	ErrQuantumCache = crdb.New("qkvc: internal invariant violation")

	// ErrInvalidEmojiKey / Name / Host: emoji key codec violations (§4.5.2).
	ErrInvalidEmojiKey  = crdb.New("qkvc: invalid emoji key")
	ErrInvalidEmojiName = crdb.New("qkvc: invalid emoji name")
	ErrInvalidEmojiHost = crdb.New("qkvc: invalid emoji host")

	// ErrDuplicateEmoji is raised by updateEmoji when the new name
	// already exists for the target host.
	ErrDuplicateEmoji = crdb.New("qkvc: duplicate emoji name for host")

	// ErrUserNotLocal / ErrUserNotRemote: narrowing compound-read failures.
	ErrUserNotLocal  = crdb.New("qkvc: user is not local")
	ErrUserNotRemote = crdb.New("qkvc: user is not remote")

	// ErrDuplicateCacheName is raised by the registry when createQuantum
	// or createMemory is asked to register a name already in use.
	ErrDuplicateCacheName = crdb.New("qkvc: cache name already registered")
)

// fetchFailedError wraps a loader's cause so that both
// qerrors.Is(err, ErrFetchFailed) and qerrors.Is(err, cause) hold.
type fetchFailedError struct {
	cause error
}

func (e *fetchFailedError) Error() string { return "qkvc: fetch failed: " + e.cause.Error() }
func (e *fetchFailedError) Unwrap() error { return e.cause }
func (e *fetchFailedError) Is(target error) bool { return target == ErrFetchFailed }

// NewFetchFailed wraps cause as a FetchFailed error, preserving both
// identities: qerrors.Is(err, ErrFetchFailed) and qerrors.Is(err, cause)
// both hold.
func NewFetchFailed(cause error) error {
	if cause == nil {
		return nil
	}
	return crdb.WithStack(&fetchFailedError{cause: cause})
}

// IsFetchFailed reports whether err is (or wraps) a fetch failure.
func IsFetchFailed(err error) bool {
	return crdb.Is(err, ErrFetchFailed)
}

// Aggregate combines multiple errors from a fan-out (fetchMany, bulk
// delete, etc.) into one FetchFailed-shaped error: the single inner
// cause if there is exactly one, otherwise a joined multi-cause error.
// Nil entries are skipped. Returns nil if no non-nil errors remain.
func Aggregate(errs ...error) error {
	var nonNil []error
	for _, e := range errs {
		if e != nil {
			nonNil = append(nonNil, e)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return NewFetchFailed(nonNil[0])
	default:
		return NewFetchFailed(crdb.Newf("%d errors occurred: %s", len(nonNil), joinMessages(nonNil)))
	}
}

func joinMessages(errs []error) string {
	s := ""
	for i, e := range errs {
		if i > 0 {
			s += "; "
		}
		s += e.Error()
	}
	return s
}
