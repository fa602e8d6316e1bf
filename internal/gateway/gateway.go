// Package gateway is the single seam through which every generation call
// passes. It wraps the llm client with a bounded retry loop that doubles the
// response token budget whenever a reply comes back truncated or structurally
// empty, and retries transport failures on the same budget-escalation
// schedule.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scribeworks/scribe/internal/llm"
)

const defaultMaxAttempts = 3

// ErrExhausted marks a call that failed every attempt. Callers decide whether
// that is fatal (plan creation, synthesis) or absorbed with a fallback
// (revision assessment, reflection).
var ErrExhausted = errors.New("generation call exhausted all attempts")

type SleepFunc func(time.Duration)

type Gateway struct {
	Client *llm.Client

	// Model and Provider are stamped onto every request.
	Model    string
	Provider string

	// MaxAttempts bounds the retry loop. Zero means 3 attempts total.
	MaxAttempts int

	Backoff BackoffConfig

	// Sleep is replaceable in tests. Nil means time.Sleep.
	Sleep SleepFunc

	// OnRetry, when set, observes each retry decision.
	OnRetry func(attempt int, reason string)
}

func New(client *llm.Client, model string) *Gateway {
	return &Gateway{
		Client:      client,
		Model:       model,
		MaxAttempts: defaultMaxAttempts,
		Backoff:     defaultBackoffConfig(),
	}
}

// Call issues the request, extracts text content from the reply, and returns
// (text, raw reply). The request's MaxTokens is the initial budget; each
// retry doubles it. Empty text with a natural stop and tool-call content is a
// legitimate "no text produced" outcome, not an error.
func (g *Gateway) Call(ctx context.Context, req llm.Request) (string, llm.Response, error) {
	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	baseBudget := 0
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		baseBudget = *req.MaxTokens
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", llm.Response{}, err
		}
		if attempt > 0 {
			g.sleep(DelayForAttempt(attempt, g.Backoff, fmt.Sprintf("%s:%d", g.Model, attempt)))
		}

		attemptReq := req
		attemptReq.Model = g.Model
		attemptReq.Provider = g.Provider
		if baseBudget > 0 {
			budget := baseBudget << attempt
			attemptReq.MaxTokens = &budget
		}

		resp, err := g.Client.Complete(ctx, attemptReq)
		if err != nil {
			lastErr = err
			if !llm.IsRetryable(err) {
				return "", llm.Response{}, fmt.Errorf("generation call failed: %w", err)
			}
			g.notifyRetry(attempt+1, "error: "+err.Error())
			continue
		}

		text := resp.Text()
		if strings.TrimSpace(text) != "" {
			return text, resp, nil
		}

		// Empty text. Truncation and structurally empty replies are retryable
		// with a doubled budget; a tool-only reply is a valid empty result.
		switch {
		case resp.Finish.Truncated():
			lastErr = fmt.Errorf("reply truncated at token budget (stop_reason=%s)", resp.Finish.Raw)
			g.notifyRetry(attempt+1, "truncated reply")
		case len(resp.Message.Content) == 0:
			lastErr = fmt.Errorf("reply contained no content")
			g.notifyRetry(attempt+1, "empty reply")
		default:
			// Non-text content with a natural end (e.g. tool calls only).
			return "", resp, nil
		}
	}

	return "", llm.Response{}, fmt.Errorf("%w after %d attempts: %v", ErrExhausted, attempts, lastErr)
}

func (g *Gateway) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if g.Sleep != nil {
		g.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (g *Gateway) notifyRetry(attempt int, reason string) {
	if g.OnRetry != nil {
		g.OnRetry(attempt, reason)
	}
}
