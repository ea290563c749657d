package acquire

import (
	"fmt"
	"strings"
	"time"

	"stemforge/internal/services"
)

// Attempt records one strategy attempt.
type Attempt struct {
	Strategy string
	Kind     Kind
	Err      string
	Duration time.Duration
}

// Error is raised when acquisition fails for the whole job, either because
// every strategy was exhausted or because a format failure stopped the search.
type Error struct {
	Class                Kind
	CredentialsAvailable bool
	Attempts             []Attempt
	cause                error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(services.ErrAcquire.Error())
	b.WriteString(": ")
	switch {
	case e.Class == KindFormat:
		b.WriteString("format failure")
	case len(e.Attempts) == 0:
		b.WriteString("no usable strategies")
	default:
		fmt.Fprintf(&b, "all %d strategies exhausted", len(e.Attempts))
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	b.WriteString(" (hint: ")
	b.WriteString(e.Hint())
	b.WriteString(")")
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is lets errors.Is match the acquire marker without a second message prefix.
func (e *Error) Is(target error) bool {
	return target == services.ErrAcquire
}

// Hint returns operator guidance derived from the attempt classification and
// whether credentials were available.
func (e *Error) Hint() string {
	switch e.Class {
	case KindFormat:
		return "the source returned audio in an unexpected format; check acquire.audio_format and that ffmpeg is installed"
	case KindAuthRequired:
		if e.CredentialsAvailable {
			return "authentication or age verification is likely required and the configured cookies were rejected; export fresh cookies to acquire.cookies_file"
		}
		return "authentication or age verification is likely required and no cookies are configured; set acquire.cookies_file to an exported browser cookies file"
	default:
		if e.CredentialsAvailable {
			return "every strategy failed, including those using cookies; the media may be unavailable or the network unreachable, retry later"
		}
		return "every strategy failed without credentials; the media may be unavailable or the network unreachable, retry later"
	}
}

func newError(class Kind, credentials bool, attempts []Attempt, cause error) *Error {
	return &Error{
		Class:                class,
		CredentialsAvailable: credentials,
		Attempts:             attempts,
		cause:                cause,
	}
}

// classify picks the aggregated class for an exhausted plan: any auth-required
// attempt means credentials are the likely fix.
func classify(attempts []Attempt) Kind {
	for _, attempt := range attempts {
		if attempt.Kind == KindAuthRequired {
			return KindAuthRequired
		}
	}
	return KindTransient
}
