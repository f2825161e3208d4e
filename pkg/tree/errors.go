package tree

import (
	"errors"
	"fmt"
)

// ErrNotWritable is returned when a value is written to an attribute that
// does not accept writes.
var ErrNotWritable = errors.New("attribute is not writable")

// ValidationError reports a value rejected before it reached the source.
type ValidationError struct {
	Path   string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value %q for %s: %s", e.Value, e.Path, e.Reason)
}

// RetrievalError reports a source that could not be fetched or decoded.
type RetrievalError struct {
	Source string
	Err    error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieving %s: %v", e.Source, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// AuthenticationError reports a source that rejected our credentials.
type AuthenticationError struct {
	Source string
	Err    error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authenticating with %s: %v", e.Source, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }
