package geocode

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for failure kinds that carry no extra data.
var (
	// ErrNotAuthorized is returned when the API rejects the key (401).
	ErrNotAuthorized = errors.New("geocode: API key is not authorized")

	// ErrForbidden is returned when the API key is blocked or suspended (403).
	ErrForbidden = errors.New("geocode: API key has been blocked or suspended")

	// ErrSessionNotActive is returned when a network operation is
	// attempted outside a WithSession scope.
	ErrSessionNotActive = errors.New("geocode: no active session, call inside WithSession")
)

// InvalidInputError indicates the caller supplied an unusable query.
type InvalidInputError struct {
	BadValue string
}

func (e *InvalidInputError) Error() string {
	v := e.BadValue
	if len(v) > 100 {
		v = v[:100]
	}
	return fmt.Sprintf("geocode: input must be a valid non-empty string, not %q", v)
}

// UnknownResponseError indicates the server returned something the
// client cannot interpret.
type UnknownResponseError struct {
	Reason string
}

func (e *UnknownResponseError) Error() string {
	return "geocode: " + e.Reason
}

// RateLimitError indicates the account has exhausted its quota.
type RateLimitError struct {
	// ResetTo is the request allowance the account resets to.
	ResetTo int
	// ResetTime is when the allowance resets, in UTC.
	ResetTime time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("geocode: rate limit exceeded, resets to %d at %s",
		e.ResetTo, e.ResetTime.Format(time.RFC3339))
}
