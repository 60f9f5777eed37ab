package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/hyperifyio/goenrich/internal/enrich"
	"github.com/hyperifyio/goenrich/internal/llm"
	"github.com/hyperifyio/goenrich/internal/metrics"
)

const (
	// MaxInputChars bounds the page text sent to the model.
	MaxInputChars = 15_000
	// DefaultRequestTimeout bounds one call to the extraction service.
	DefaultRequestTimeout = 30 * time.Second
	// DefaultRateLimitDelay is the wait before the single retry after HTTP 429.
	DefaultRateLimitDelay = 15 * time.Second

	temperature     = 0.2
	maxOutputTokens = 512
	bodyExcerptLen  = 150
)

// Result is the structured output of an extraction.
type Result = enrich.Result

// Kind classifies extraction failures.
type Kind int

const (
	KindUnconfigured Kind = iota
	KindRateLimited
	KindServiceError
	KindNoStructuredOutput
	KindMalformedOutput
)

func (k Kind) String() string {
	switch k {
	case KindUnconfigured:
		return "unconfigured"
	case KindRateLimited:
		return "rate_limited"
	case KindNoStructuredOutput:
		return "no_structured_output"
	case KindMalformedOutput:
		return "malformed_output"
	default:
		return "service_error"
	}
}

// Error is returned by Client.Extract for every failure.
type Error struct {
	Kind Kind
	// StatusCode is the provider HTTP status for KindServiceError, 0 when the
	// call never produced one.
	StatusCode int
	// Body is an excerpt of the provider error body.
	Body string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnconfigured:
		return "extraction service is not configured: set an API key and restart"
	case KindRateLimited:
		return "extraction service is rate limited; try again later"
	case KindNoStructuredOutput:
		return "extraction service returned no JSON; try again"
	case KindMalformedOutput:
		return fmt.Sprintf("extraction service returned malformed JSON: %v", e.Err)
	default:
		if e.StatusCode != 0 {
			return fmt.Sprintf("extraction service error (%d): %s", e.StatusCode, e.Body)
		}
		if e.Err != nil {
			return fmt.Sprintf("extraction service error: %v", e.Err)
		}
		return "extraction service error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Client turns sanitized page text into a Result using an llm.Client.
type Client struct {
	LLM   llm.Client
	Model string
	// RequestTimeout bounds each attempt. Zero means DefaultRequestTimeout.
	RequestTimeout time.Duration
	// RateLimitDelay is the back-off before the retry. Zero means DefaultRateLimitDelay.
	RateLimitDelay time.Duration
	// Limiter, when set, paces calls to the provider across all callers.
	Limiter *rate.Limiter
	Now     func() time.Time
	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New returns a client with default timings. A nil provider yields a client
// whose Extract always fails with KindUnconfigured.
func New(provider llm.Client, model string) *Client {
	return &Client{LLM: provider, Model: model}
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

// SleepContext blocks for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Extract asks the extraction service to describe the company behind text.
func (c *Client) Extract(ctx context.Context, text, sourceURL string) (Result, error) {
	if c == nil || c.LLM == nil {
		return Result{}, &Error{Kind: KindUnconfigured}
	}
	text = truncateRunes(text, MaxInputChars)
	now := enrich.FormatTimestamp(c.now())

	req := llm.Request{
		Model:           c.Model,
		System:          systemInstruction,
		Prompt:          buildPrompt(text, sourceURL, now),
		Temperature:     temperature,
		MaxOutputTokens: maxOutputTokens,
	}
	log.Debug().Str("url", sourceURL).Int("text_chars", utf8.RuneCountInString(text)).Msg("extraction request")

	raw, err := c.generate(ctx, req, sourceURL)
	if err != nil {
		return Result{}, err
	}

	res, err := parseResult(raw)
	if err != nil {
		metrics.ExtractionAttemptsTotal.WithLabelValues(metrics.OutcomeMalformed).Inc()
		return Result{}, err
	}
	stamp := enrich.FormatTimestamp(c.now())
	res.EnrichedAt = stamp
	res.AddSource(sourceURL, stamp)
	res.Normalize()
	return res, nil
}

type attemptState int

const (
	stateFirstAttempt attemptState = iota
	stateBackoff
	stateSecondAttempt
)

// generate runs the bounded retry: first attempt, then on a rate limit one
// back-off and a second identical attempt. Anything else is terminal.
func (c *Client) generate(ctx context.Context, req llm.Request, sourceURL string) (string, error) {
	state := stateFirstAttempt
	for {
		switch state {
		case stateFirstAttempt, stateSecondAttempt:
			attempt := 1
			if state == stateSecondAttempt {
				attempt = 2
			}
			out, err := c.attempt(ctx, req)
			if err == nil {
				metrics.ExtractionAttemptsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
				return out, nil
			}
			if llm.IsRateLimited(err) {
				metrics.ExtractionAttemptsTotal.WithLabelValues(metrics.OutcomeRateLimited).Inc()
			} else {
				metrics.ExtractionAttemptsTotal.WithLabelValues(metrics.OutcomeError).Inc()
			}
			if state == stateFirstAttempt && llm.IsRateLimited(err) {
				state = stateBackoff
				continue
			}
			log.Warn().Err(err).Str("url", sourceURL).Int("attempt", attempt).Msg("extraction failed")
			return "", terminalError(err)
		case stateBackoff:
			delay := c.RateLimitDelay
			if delay <= 0 {
				delay = DefaultRateLimitDelay
			}
			log.Warn().Str("url", sourceURL).Dur("delay", delay).Msg("extraction rate limited; retrying once")
			if err := c.sleep(ctx, delay); err != nil {
				return "", &Error{Kind: KindServiceError, Err: err}
			}
			state = stateSecondAttempt
		}
	}
}

func (c *Client) attempt(ctx context.Context, req llm.Request) (string, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	timeout := c.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.LLM.Generate(actx, req)
}

func terminalError(err error) *Error {
	if llm.IsRateLimited(err) {
		return &Error{Kind: KindRateLimited, StatusCode: 429, Err: err}
	}
	var se *llm.StatusError
	if errors.As(err, &se) {
		return &Error{Kind: KindServiceError, StatusCode: se.Code, Body: truncateRunes(se.Body, bodyExcerptLen), Err: err}
	}
	return &Error{Kind: KindServiceError, Err: err}
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// parseResult takes the span from the first '{' to the last '}' of raw,
// decodes it as an untyped document and coerces it into a Result.
func parseResult(raw string) (Result, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < 0 || end < start {
		return Result{}, &Error{Kind: KindNoStructuredOutput}
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &doc); err != nil {
		return Result{}, &Error{Kind: KindMalformedOutput, Err: err}
	}
	return coerce(doc), nil
}

func coerce(doc map[string]any) Result {
	var r Result
	if s, ok := doc["summary"].(string); ok {
		r.Summary = s
	}
	r.WhatTheyDo = stringList(doc["what_they_do"])
	r.Keywords = stringList(doc["keywords"])
	r.DerivedSignals = stringList(doc["derived_signals"])
	r.Sources = []enrich.Source{}
	if items, ok := doc["sources"].([]any); ok {
		for _, it := range items {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			u, _ := m["url"].(string)
			if strings.TrimSpace(u) == "" {
				continue
			}
			ts, _ := m["timestamp"].(string)
			r.AddSource(u, ts)
		}
	}
	return r
}

// stringList keeps the string elements of an array value; anything else
// yields an empty list.
func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
