// Package llm wraps the text-generation services the assistant talks to
// behind a single Generator interface.
package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"google.golang.org/genai"
)

var ErrNoProvider = errors.New("no generation provider configured")

// Params tunes a single generation call. Zero values fall back to the
// provider defaults. Temperature is a pointer so an explicit 0 survives.
type Params struct {
	Model       string
	System      string
	MaxTokens   int
	Temperature *float64
}

// Float returns a pointer to v, for Params.Temperature.
func Float(v float64) *float64 { return &v }

// Generator produces free text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, params Params) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, params Params) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	return f(ctx, prompt, params)
}

// StripCodeFences removes a ``` fence wrapping the whole response.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}
	return s
}

type failureClass int

const (
	failureNone failureClass = iota
	failureTimeout
	failureRateLimit
	failureServer
	failureClient
	failureCanceled
)

func (c failureClass) String() string {
	switch c {
	case failureNone:
		return "none"
	case failureTimeout:
		return "timeout"
	case failureRateLimit:
		return "rate_limit"
	case failureServer:
		return "server"
	case failureClient:
		return "client"
	case failureCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

func (c failureClass) retryable() bool {
	return c == failureTimeout || c == failureRateLimit || c == failureServer
}

func classifyTransportError(err error) failureClass {
	if err == nil {
		return failureNone
	}
	if errors.Is(err, context.Canceled) {
		return failureCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode > 0 {
		return classifyStatus(apiErr.StatusCode)
	}
	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) && geminiErr.Code > 0 {
		return classifyStatus(geminiErr.Code)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "resource_exhausted"):
		return failureRateLimit
	case strings.Contains(msg, "status code: 5") || strings.Contains(msg, "\": 5") || strings.Contains(msg, "error 5") ||
		strings.Contains(msg, "status=5") || strings.Contains(msg, "server error") || strings.Contains(msg, "overloaded"):
		return failureServer
	case strings.Contains(msg, "status code: 4") || strings.Contains(msg, "\": 4") || strings.Contains(msg, "error 4") ||
		strings.Contains(msg, "status=4") || strings.Contains(msg, "invalid_argument") ||
		strings.Contains(msg, "unauthenticated") || strings.Contains(msg, "permission_denied"):
		return failureClient
	default:
		return failureServer
	}
}

// classifyStatus maps an HTTP status reported by a provider SDK.
func classifyStatus(code int) failureClass {
	switch {
	case code == http.StatusTooManyRequests:
		return failureRateLimit
	case code == http.StatusRequestTimeout:
		return failureTimeout
	case code >= 500:
		return failureServer
	case code >= 400:
		return failureClient
	default:
		return failureServer
	}
}
