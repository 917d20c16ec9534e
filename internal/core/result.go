package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"schoa/internal/llm"
)

// ErrInvalidResponse marks a model response that does not match the
// requested shape.
var ErrInvalidResponse = errors.New("core: invalid model response")

// Outcome classifies where a Result's value came from.
type Outcome string

const (
	// OutcomeGenerated means Value is the model's own output.
	OutcomeGenerated Outcome = "generated"
	// OutcomePlaceholder means the call succeeded but the model returned
	// nothing usable, so a fixed text or default filled the gap.
	OutcomePlaceholder Outcome = "placeholder"
	// OutcomeFallback means the call failed and Value is the fixed
	// fallback.
	OutcomeFallback Outcome = "fallback"
)

// Result carries an always-displayable value together with its origin.
// Err is set only for fallbacks.
type Result[T any] struct {
	Value   T
	Outcome Outcome
	Err     error
}

// Degraded reports whether Value is not real model output.
func (r Result[T]) Degraded() bool { return r.Outcome != OutcomeGenerated }

func generated[T any](v T) Result[T] { return Result[T]{Value: v, Outcome: OutcomeGenerated} }

func placeholder[T any](v T) Result[T] { return Result[T]{Value: v, Outcome: OutcomePlaceholder} }

func fallback[T any](v T, err error) Result[T] {
	return Result[T]{Value: v, Outcome: OutcomeFallback, Err: err}
}

// generate calls the client and turns a panic into an error so adapters can
// hand out their fallback.
func generate(ctx context.Context, client llm.Client, req llm.Request) (text string, err error) {
	if client == nil {
		return "", errors.New("core: no llm client configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("llm client panic: %v", r)
		}
	}()
	return client.Generate(ctx, req)
}

func logFailure(log zerolog.Logger, adapter string, err error) {
	log.Error().Err(err).Str("adapter", adapter).Msg("model call failed")
}
