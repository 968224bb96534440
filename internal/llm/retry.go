package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var ErrEmptyResponse = errors.New("generation returned empty response")

const defaultMaxTries = 3

// Retrying retries transient failures (timeouts, rate limits, server errors
// and empty responses) of the wrapped Generator with exponential backoff.
// Client errors and cancellation are returned immediately.
type Retrying struct {
	next       Generator
	maxTries   uint
	newBackOff func() backoff.BackOff
}

func NewRetrying(next Generator, maxTries int) *Retrying {
	if maxTries <= 0 {
		maxTries = defaultMaxTries
	}
	return &Retrying{
		next:     next,
		maxTries: uint(maxTries),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 8 * time.Second
			return b
		},
	}
}

func (r *Retrying) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	attempt := 0
	op := func() (string, error) {
		attempt++
		out, err := r.next.Generate(ctx, prompt, params)
		if err != nil {
			class := classifyTransportError(err)
			if !class.retryable() {
				return "", backoff.Permanent(err)
			}
			log.Printf("llm generate failed attempt=%d class=%s err=%v", attempt, class, err)
			return "", err
		}
		if strings.TrimSpace(out) == "" {
			log.Printf("llm generate empty response attempt=%d", attempt)
			return "", ErrEmptyResponse
		}
		return out, nil
	}
	out, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(r.maxTries),
	)
	if err != nil {
		return "", fmt.Errorf("generate after %d attempt(s): %w", attempt, err)
	}
	return out, nil
}
