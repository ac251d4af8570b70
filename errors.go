package nextdns

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyProfileID is returned before any network call when no profile was given.
var ErrEmptyProfileID = errors.New("profile id cannot be empty")

// AuthError means the API key is missing, invalid or expired.
type AuthError struct {
	StatusCode int
	Detail     string
}

func (e *AuthError) Error() string {
	if e.StatusCode == 0 {
		return "authentication failed: " + e.Detail
	}
	return fmt.Sprintf("authentication failed (HTTP %d): %s", e.StatusCode, e.Detail)
}

// ProfileNotFoundError means the service did not recognize the profile id.
type ProfileNotFoundError struct {
	ProfileID string
}

func (e *ProfileNotFoundError) Error() string {
	return fmt.Sprintf("profile %q not found", e.ProfileID)
}

// SourceUnreadableError means a domain list source could not be read:
// the file is missing or the URL did not answer with a 2xx status.
type SourceUnreadableError struct {
	Source string
	Err    error
}

func (e *SourceUnreadableError) Error() string {
	return fmt.Sprintf("unable to read source %q: %s", e.Source, e.Err)
}

func (e *SourceUnreadableError) Unwrap() error { return e.Err }

// RemoteServiceError is any other non-2xx response from the API.
type RemoteServiceError struct {
	StatusCode int
	Code       string
	Detail     string
}

func (e *RemoteServiceError) Error() string {
	msg := fmt.Sprintf("api error (HTTP %d)", e.StatusCode)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// PartialSyncFailure is returned with a Summary when one or more per-domain
// calls failed. The successful calls are not rolled back.
type PartialSyncFailure struct {
	Summary Summary
}

func (e *PartialSyncFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d changes failed:", e.Summary.Failed(),
		e.Summary.Failed()+e.Summary.Added+e.Summary.Removed+e.Summary.Updated)
	for _, f := range e.Summary.Failures {
		b.WriteString("\n  ")
		b.WriteString(f.Error())
	}
	return b.String()
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *PartialSyncFailure) Unwrap() []error {
	errs := make([]error, 0, len(e.Summary.Failures))
	for _, f := range e.Summary.Failures {
		errs = append(errs, f)
	}
	return errs
}
