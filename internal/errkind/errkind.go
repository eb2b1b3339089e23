// Package errkind classifies errors raised anywhere in the pipeline into
// the small set of kinds the orchestrator and HTTP layer branch on.
package errkind

import "fmt"

// Kind is one of the error categories the system distinguishes for retry,
// failover, and propagation decisions.
type Kind string

const (
	InvalidInput        Kind = "invalid_input"
	NotFound             Kind = "not_found"
	ProviderTransient    Kind = "provider_transient"
	ProviderUnavailable  Kind = "provider_unavailable"
	PayloadInvalid       Kind = "payload_invalid"
	StoreTransient       Kind = "store_transient"
	StoreFatal           Kind = "store_fatal"
	QualityReject        Kind = "quality_reject"
	Cancelled            Kind = "cancelled"
)

// Error wraps an underlying error with a Kind and the operation that
// produced it, so callers can branch with errors.As without string
// matching.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind and operation name. A nil err yields a nil
// *Error so callers can use New unconditionally after a fallible call.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Of extracts the Kind from err, if it (or something it wraps) is an
// *Error. Returns ("", false) otherwise.
func Of(err error) (Kind, bool) {
	var e *Error
	if as(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
