package llm

import (
	"context"
	"errors"
	"fmt"
)

// Request is one single-turn generation call.
type Request struct {
	Model           string
	System          string
	Prompt          string
	Temperature     float32
	MaxOutputTokens int
}

// Client is the minimal interface the extraction layer needs from a model
// backend. Implementations return the generated text of the first candidate.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// StatusError reports a non-success answer from a provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
	Err      error
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.Code, e.Body)
	}
	return fmt.Sprintf("%s API error (%d)", e.Provider, e.Code)
}

func (e *StatusError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err carries an HTTP 429 from a provider.
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == 429
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

func (f ClientFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
