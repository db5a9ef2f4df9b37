package analysis

import (
	"errors"
	"fmt"
)

// ErrNoJSON means the accumulated response text contained no JSON object at
// all. Retryable: the model may produce one on another attempt.
var ErrNoJSON = errors.New("no json object found in model response")

// MalformedJSONError wraps a parse failure of the located JSON slice. Also
// retryable, matching how the rest of the pipeline treats model formatting
// slips.
type MalformedJSONError struct {
	Err error
}

func (e *MalformedJSONError) Error() string { return "malformed json from model: " + e.Err.Error() }
func (e *MalformedJSONError) Unwrap() error { return e.Err }

// ConfigurationError is a deployment problem (missing credential). It is
// raised before any network call and never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return "configuration error: " + e.Reason }

// AggregateError is the single failure the caller sees after every attempt
// has been spent.
type AggregateError struct {
	Attempts int
	Last     error
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("analysis failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *AggregateError) Unwrap() error { return e.Last }
