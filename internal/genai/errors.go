package genai

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotConfigured is returned when an operation needs a model and no API key was provided.
	ErrNotConfigured = errors.New("AI service is not configured")

	ErrInvalidConfiguration = errors.New("invalid model configuration")

	// ErrAPICallFailed wraps transport failures and non-2xx responses.
	ErrAPICallFailed = errors.New("API call to model failed")

	ErrRateLimited      = errors.New("model rate limit exceeded")
	ErrModelUnavailable = errors.New("model temporarily unavailable")
	ErrBlocked          = errors.New("request blocked by model safety filters")

	ErrInvalidImage = errors.New("invalid image")
)

// ParseError reports a model response that could not be decoded or did not
// satisfy the response schema. Fields lists offending JSON paths when known.
type ParseError struct {
	Reason string
	Fields []string
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("malformed model response: ")
	b.WriteString(e.Reason)
	if len(e.Fields) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Fields, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
