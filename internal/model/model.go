// Package model is the boundary to the text-generation model. The model is a
// black box: it takes a prompt and returns a raw completion with no
// correctness contract.
package model

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable marks a model fault (network, model load, timeout). It is
// terminal for a session: the correction loop never retries it.
var ErrUnavailable = errors.New("model unavailable")

type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}
