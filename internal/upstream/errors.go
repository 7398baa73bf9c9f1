package upstream

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies failures per the error handling policy. Handlers branch on
// kind, never on message text.
type Kind string

const (
	// KindTimeout marks an external call that exceeded its deadline.
	KindTimeout Kind = "UpstreamTimeout"
	// KindUnavailable marks 5xx, 429 or an open circuit breaker.
	KindUnavailable Kind = "UpstreamUnavailable"
	// KindMissingData marks an absent field or empty dataset; signals report
	// NO_DATA and score zero.
	KindMissingData Kind = "MissingData"
	// KindValidation marks a pick failing schema at write or gate at output.
	KindValidation Kind = "ValidationFailure"
	// KindStorageFatal marks storage that is unusable at startup.
	KindStorageFatal Kind = "StorageFatal"
	// KindInternalBug marks a violated precondition; logged, never crashes.
	KindInternalBug Kind = "InternalBug"
)

// Error is the typed upstream failure carried through the pipeline.
type Error struct {
	Kind        Kind
	Integration string
	Err         error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s[%s]: %v", e.Kind, e.Integration, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// WrapErr classifies an arbitrary error from an integration call.
func WrapErr(integration string, err error) *Error {
	kind := KindUnavailable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Integration: integration, Err: err}
}

// KindOf extracts the error kind, defaulting to UpstreamUnavailable for
// untyped errors.
func KindOf(err error) Kind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnavailable
}

// ErrNotFound is the sentinel for NOT_FOUND results (event or player stat
// missing upstream). It is a normal condition, retried on later passes.
var ErrNotFound = errors.New("not found upstream")
