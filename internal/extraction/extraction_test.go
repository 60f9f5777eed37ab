package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/goenrich/internal/llm"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

// scriptedLLM returns the scripted replies in order and records the clock at
// each call.
type scriptedLLM struct {
	clock   *fakeClock
	replies []reply
	calls   []time.Time
	reqs    []llm.Request
}

type reply struct {
	out string
	err error
}

func (s *scriptedLLM) Generate(ctx context.Context, req llm.Request) (string, error) {
	s.calls = append(s.calls, s.clock.Now())
	s.reqs = append(s.reqs, req)
	r := s.replies[len(s.calls)-1]
	return r.out, r.err
}

func newTestClient(l *scriptedLLM, clock *fakeClock, slept *[]time.Duration) *Client {
	return &Client{
		LLM: l,
		Now: clock.Now,
		Sleep: func(ctx context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			clock.t = clock.t.Add(d)
			return nil
		},
	}
}

const goodJSON = `{"summary":"Example Co builds developer tools.","what_they_do":["APIs"],"keywords":["dev"],"derived_signals":["blog"],"sources":[]}`

func rateLimited() error { return &llm.StatusError{Provider: "Gemini", Code: 429, Body: "quota"} }

func TestExtract_Unconfigured(t *testing.T) {
	c := New(nil, "")
	_, err := c.Extract(context.Background(), "text", "https://example.com")
	var ee *Error
	if !errors.As(err, &ee) || ee.Kind != KindUnconfigured {
		t.Fatalf("expected unconfigured error, got %v", err)
	}
}

func TestExtract_Success(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	l := &scriptedLLM{clock: clock, replies: []reply{{out: "```json\n" + goodJSON + "\n```"}}}
	var slept []time.Duration
	c := newTestClient(l, clock, &slept)

	res, err := c.Extract(context.Background(), "We build developer tools for APIs.", "https://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Summary != "Example Co builds developer tools." {
		t.Fatalf("summary not verbatim: %q", res.Summary)
	}
	if res.EnrichedAt != "2026-01-02T03:04:05.000Z" {
		t.Fatalf("unexpected enrichedAt %q", res.EnrichedAt)
	}
	if len(res.Sources) != 1 || res.Sources[0].URL != "https://example.com" {
		t.Fatalf("expected one source for the url, got %+v", res.Sources)
	}
	if len(slept) != 0 {
		t.Fatalf("did not expect back-off, slept %v", slept)
	}
	req := l.reqs[0]
	if req.Temperature != 0.2 || req.MaxOutputTokens != 512 || req.System == "" {
		t.Fatalf("unexpected generation params %+v", req)
	}
	if !strings.Contains(req.Prompt, `"https://example.com"`) || !strings.Contains(req.Prompt, "We build developer tools for APIs.") {
		t.Fatalf("prompt should carry url and text")
	}
	if !strings.Contains(req.Prompt, "Do not make things up") {
		t.Fatalf("prompt should forbid fabrication")
	}
}

func TestExtract_KeepsExistingSourceWithoutDuplicate(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	out := `{"summary":"s","what_they_do":[],"keywords":[],"derived_signals":[],"sources":[{"url":"https://example.com","timestamp":"2020-01-01T00:00:00.000Z"}]}`
	l := &scriptedLLM{clock: clock, replies: []reply{{out: out}}}
	var slept []time.Duration
	res, err := newTestClient(l, clock, &slept).Extract(context.Background(), "t", "https://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Sources) != 1 || res.Sources[0].Timestamp != "2020-01-01T00:00:00.000Z" {
		t.Fatalf("expected the model's source entry to be kept as is, got %+v", res.Sources)
	}
}

func TestExtract_RateLimitRetriesOnceAfterDelay(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := &scriptedLLM{clock: clock, replies: []reply{{err: rateLimited()}, {out: goodJSON}}}
	var slept []time.Duration
	c := newTestClient(l, clock, &slept)

	res, err := c.Extract(context.Background(), "text", "https://example.com")
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if res.Summary == "" {
		t.Fatalf("expected parsed result")
	}
	if len(l.calls) != 2 {
		t.Fatalf("expected exactly 2 calls, got %d", len(l.calls))
	}
	if gap := l.calls[1].Sub(l.calls[0]); gap < 15*time.Second {
		t.Fatalf("expected >= 15s between attempts, got %s", gap)
	}
	if len(slept) != 1 || slept[0] != DefaultRateLimitDelay {
		t.Fatalf("unexpected sleeps %v", slept)
	}
	if l.reqs[0] != l.reqs[1] {
		t.Fatalf("retry must send an identical request")
	}
}

func TestExtract_SecondRateLimitIsTerminal(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	l := &scriptedLLM{clock: clock, replies: []reply{{err: rateLimited()}, {err: rateLimited()}}}
	var slept []time.Duration
	_, err := newTestClient(l, clock, &slept).Extract(context.Background(), "text", "https://example.com")
	var ee *Error
	if !errors.As(err, &ee) || ee.Kind != KindRateLimited {
		t.Fatalf("expected rate limited error, got %v", err)
	}
	if len(l.calls) != 2 {
		t.Fatalf("expected exactly 2 calls, got %d", len(l.calls))
	}
}

func TestExtract_ServiceErrorAfterRetry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	long := strings.Repeat("x", 400)
	l := &scriptedLLM{clock: clock, replies: []reply{{err: rateLimited()}, {err: &llm.StatusError{Provider: "Gemini", Code: 503, Body: long}}}}
	var slept []time.Duration
	_, err := newTestClient(l, clock, &slept).Extract(context.Background(), "text", "https://example.com")
	var ee *Error
	if !errors.As(err, &ee) || ee.Kind != KindServiceError || ee.StatusCode != 503 {
		t.Fatalf("expected service error 503, got %v", err)
	}
	if len(ee.Body) != bodyExcerptLen {
		t.Fatalf("expected body excerpt of %d chars, got %d", bodyExcerptLen, len(ee.Body))
	}
}

func TestExtract_NonRateLimitErrorNotRetried(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	l := &scriptedLLM{clock: clock, replies: []reply{{err: &llm.StatusError{Code: 500, Body: "boom"}}}}
	var slept []time.Duration
	_, err := newTestClient(l, clock, &slept).Extract(context.Background(), "text", "https://example.com")
	var ee *Error
	if !errors.As(err, &ee) || ee.Kind != KindServiceError {
		t.Fatalf("expected service error, got %v", err)
	}
	if len(l.calls) != 1 || len(slept) != 0 {
		t.Fatalf("expected a single call without back-off, got %d calls %v sleeps", len(l.calls), slept)
	}
}

func TestExtract_BackoffHonorsCancellation(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	l := &scriptedLLM{clock: clock, replies: []reply{{err: rateLimited()}}}
	c := &Client{LLM: l, Now: clock.Now}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Extract(ctx, "text", "https://example.com")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(l.calls) != 1 {
		t.Fatalf("expected one call, got %d", len(l.calls))
	}
}

func TestExtract_NoStructuredOutput(t *testing.T) {
	for _, out := range []string{"sorry, I cannot help", "} backwards {", ""} {
		clock := &fakeClock{t: time.Unix(0, 0)}
		l := &scriptedLLM{clock: clock, replies: []reply{{out: out}}}
		var slept []time.Duration
		_, err := newTestClient(l, clock, &slept).Extract(context.Background(), "text", "https://example.com")
		var ee *Error
		if !errors.As(err, &ee) || ee.Kind != KindNoStructuredOutput {
			t.Fatalf("output %q: expected no structured output, got %v", out, err)
		}
	}
}

func TestExtract_MalformedOutput(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	l := &scriptedLLM{clock: clock, replies: []reply{{out: `{"summary": oops}`}}}
	var slept []time.Duration
	_, err := newTestClient(l, clock, &slept).Extract(context.Background(), "text", "https://example.com")
	var ee *Error
	if !errors.As(err, &ee) || ee.Kind != KindMalformedOutput {
		t.Fatalf("expected malformed output, got %v", err)
	}
}

func TestExtract_CoercesUntrustedShapes(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	out := `{"summary":42,"what_they_do":"not a list","keywords":["a",1,null,"b"],"sources":[{"url":""},"junk",{"url":"https://other.example","timestamp":7}]}`
	l := &scriptedLLM{clock: clock, replies: []reply{{out: out}}}
	var slept []time.Duration
	res, err := newTestClient(l, clock, &slept).Extract(context.Background(), "text", "https://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Summary != "" {
		t.Fatalf("non-string summary should coerce to empty, got %q", res.Summary)
	}
	if res.WhatTheyDo == nil || len(res.WhatTheyDo) != 0 {
		t.Fatalf("non-list should coerce to empty list, got %#v", res.WhatTheyDo)
	}
	if len(res.Keywords) != 2 || res.Keywords[0] != "a" || res.Keywords[1] != "b" {
		t.Fatalf("unexpected keywords %#v", res.Keywords)
	}
	if res.DerivedSignals == nil {
		t.Fatalf("missing list should coerce to empty list")
	}
	if len(res.Sources) != 2 || res.Sources[0].URL != "https://other.example" || res.Sources[1].URL != "https://example.com" {
		t.Fatalf("unexpected sources %+v", res.Sources)
	}
}

func TestExtract_TruncatesInput(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	l := &scriptedLLM{clock: clock, replies: []reply{{out: goodJSON}}}
	var slept []time.Duration
	text := strings.Repeat("a", MaxInputChars) + "TAIL_MARKER"
	if _, err := newTestClient(l, clock, &slept).Extract(context.Background(), text, "https://example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(l.reqs[0].Prompt, "TAIL_MARKER") {
		t.Fatalf("input beyond %d chars must be dropped", MaxInputChars)
	}
}
