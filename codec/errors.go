package codec

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of ways a decode can fail. Callers branch on
// the kind; no decode failure is ever reported any other way.
type ErrorKind string

const (
	// ErrInvalidJSON means the input is not well-formed JSON.
	ErrInvalidJSON ErrorKind = "INVALID_JSON"

	// ErrInvalidSnapshot means the JSON is well-formed but does not have the
	// snapshot shape, or a value payload does not decode as the feature's
	// declared type.
	ErrInvalidSnapshot ErrorKind = "INVALID_SNAPSHOT"

	// ErrUnknownFeatureKey means a flag references a key absent from the
	// trusted catalog, under the Fail strategy.
	ErrUnknownFeatureKey ErrorKind = "UNKNOWN_FEATURE_KEY"

	// ErrInvalidIdentifier means a stable identity is not canonical hex.
	ErrInvalidIdentifier ErrorKind = "INVALID_IDENTIFIER"

	// ErrInvalidRollout means a ramp-up percentage is outside [0, 100] or
	// not a number.
	ErrInvalidRollout ErrorKind = "INVALID_ROLLOUT"

	// ErrInvalidVersion means a version or version range is malformed.
	ErrInvalidVersion ErrorKind = "INVALID_VERSION"
)

// ParseError is the typed failure half of every decode result. A non-nil
// error returned by Decode or ApplyPatch is always a *ParseError.
type ParseError struct {
	Kind   ErrorKind
	Detail string
	cause  error
}

func (e *ParseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *ParseError) Unwrap() error {
	return e.cause
}

// AsParseError recovers the typed failure from an error chain.
func AsParseError(err error) (*ParseError, bool) {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return parseErr, true
	}
	return nil, false
}

func parseFailure(kind ErrorKind, detail string) *ParseError {
	return &ParseError{Kind: kind, Detail: detail}
}

func parseFailureWrap(kind ErrorKind, detail string, cause error) *ParseError {
	return &ParseError{Kind: kind, Detail: detail, cause: cause}
}
