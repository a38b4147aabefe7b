package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// GenerateOptions are the sampling knobs forwarded to the backend.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

type Result struct {
	Text     string
	Duration time.Duration
}

// Client is the inference backend boundary. Implementations are expected to
// be safe for concurrent use.
type Client interface {
	Generate(ctx context.Context, model, prompt string, opts GenerateOptions) (Result, error)
	Embed(ctx context.Context, model, text string) ([]float64, error)
	ListModels(ctx context.Context) ([]string, error)
	Health(ctx context.Context) bool
}

// ErrTimeout marks a request that exceeded its deadline. Callers distinguish
// it from other backend failures so the operator message can differ.
var ErrTimeout = errors.New("llm: request timed out")

// BackendError is a non-success response from the inference backend.
type BackendError struct {
	Status int
	Body   string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("llm: backend http %d: %s", e.Status, e.Body)
}

func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
