package acquire

import (
	"errors"
	"fmt"
)

// Kind classifies a failed acquisition attempt.
type Kind string

const (
	// KindAuthRequired means the source demanded sign-in, age, or bot verification.
	KindAuthRequired Kind = "auth_required"
	// KindTransient covers network errors, throttling, and anything unclassified.
	KindTransient Kind = "transient"
	// KindFormat means media was fetched but not in the expected form.
	KindFormat Kind = "format"
)

// Retryable reports whether the fallback should move on to the next strategy.
func (k Kind) Retryable() bool {
	return k != KindFormat
}

// Failure is the explicit outcome an Acquirer returns for a failed attempt.
type Failure struct {
	Kind Kind
	Err  error
}

// NewFailure wraps err with a failure kind.
func NewFailure(kind Kind, err error) *Failure {
	if err == nil {
		err = errors.New(string(kind))
	}
	return &Failure{Kind: kind, Err: err}
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// KindOf extracts the failure kind of err. Errors that are not a *Failure
// count as transient.
func KindOf(err error) Kind {
	var failure *Failure
	if errors.As(err, &failure) && failure.Kind != "" {
		return failure.Kind
	}
	return KindTransient
}
