package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goenrich/internal/cache"
	"github.com/hyperifyio/goenrich/internal/enrich"
	"github.com/hyperifyio/goenrich/internal/extraction"
	"github.com/hyperifyio/goenrich/internal/metrics"
	"github.com/hyperifyio/goenrich/internal/sanitize"
)

// pageTitle is replaced in tests.
var pageTitle = sanitize.Title

// DefaultMinTextChars is the least sanitized text worth sending for extraction.
const DefaultMinTextChars = 50

// Fetcher retrieves raw page markup.
type Fetcher interface {
	Get(ctx context.Context, url string) (string, error)
}

// Extractor turns sanitized text into a result.
type Extractor interface {
	Extract(ctx context.Context, text, sourceURL string) (enrich.Result, error)
}

// Kind classifies pipeline failures.
type Kind int

const (
	KindInvalidURL Kind = iota
	KindFetchFailed
	KindInsufficientContent
	KindExtractionFailed
)

func (k Kind) String() string {
	switch k {
	case KindInvalidURL:
		return "invalid_url"
	case KindFetchFailed:
		return "fetch_failed"
	case KindInsufficientContent:
		return "insufficient_content"
	default:
		return "extraction_failed"
	}
}

// Error is returned by Pipeline.Enrich for every failure. Err carries the
// *fetch.Error or *extraction.Error behind FetchFailed and ExtractionFailed.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Outcome is a successful enrichment.
type Outcome struct {
	Result enrich.Result
	// Cached is true when Result came from the cache without any network call.
	Cached bool
}

// Pipeline sequences validation, cache lookup, fetch, sanitize, extract and
// cache store for one URL.
type Pipeline struct {
	Fetcher   Fetcher
	Extractor Extractor
	Cache     cache.Store
	// MinTextChars is the sanitized length threshold. Zero means DefaultMinTextChars.
	MinTextChars int
	// MaxTextChars bounds sanitized text. Zero means sanitize.DefaultMaxLength.
	MaxTextChars int
}

// New wires a pipeline around explicitly constructed collaborators.
func New(f Fetcher, x Extractor, store cache.Store) *Pipeline {
	return &Pipeline{Fetcher: f, Extractor: x, Cache: store}
}

// Reasons carried by KindInvalidURL errors, matched with errors.Is.
var (
	ErrMissingURL   = errors.New("missing URL")
	ErrURLScheme    = errors.New("URL must be http or https")
	ErrMalformedURL = errors.New("invalid URL")
)

// ValidateURL accepts absolute http and https URLs with a host. Only the
// empty string counts as missing; blank input is malformed.
func ValidateURL(raw string) error {
	if raw == "" {
		return &Error{Kind: KindInvalidURL, Message: ErrMissingURL.Error(), Err: ErrMissingURL}
	}
	if strings.TrimSpace(raw) == "" {
		return &Error{Kind: KindInvalidURL, Message: ErrMalformedURL.Error(), Err: ErrMalformedURL}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &Error{Kind: KindInvalidURL, Message: ErrMalformedURL.Error(), Err: fmt.Errorf("%w: %v", ErrMalformedURL, err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &Error{Kind: KindInvalidURL, Message: ErrURLScheme.Error(), Err: ErrURLScheme}
	}
	if u.Host == "" {
		return &Error{Kind: KindInvalidURL, Message: ErrMalformedURL.Error(), Err: ErrMalformedURL}
	}
	return nil
}

// Enrich runs the pipeline for rawURL. The orchestrator never falls back to
// synthetic data; that is a caller policy.
func (p *Pipeline) Enrich(ctx context.Context, rawURL string) (Outcome, error) {
	if err := ValidateURL(rawURL); err != nil {
		recordOutcome(KindInvalidURL.String())
		return Outcome{}, err
	}
	logger := log.With().Str("url", rawURL).Logger()

	if p.Cache != nil {
		res, ok, err := p.Cache.Get(ctx, rawURL)
		if err != nil {
			logger.Warn().Err(err).Msg("cache lookup failed")
		} else if ok {
			logger.Debug().Msg("cache hit")
			recordOutcome(metrics.OutcomeCached)
			return Outcome{Result: res, Cached: true}, nil
		}
	}

	start := time.Now()
	raw, err := p.Fetcher.Get(ctx, rawURL)
	observeStage("fetch", start)
	if err != nil {
		logger.Warn().Err(err).Msg("fetch failed")
		recordOutcome(KindFetchFailed.String())
		return Outcome{}, &Error{Kind: KindFetchFailed, Message: err.Error(), Err: err}
	}

	start = time.Now()
	text := sanitize.Sanitize(raw, p.MaxTextChars)
	observeStage("sanitize", start)
	minChars := p.MinTextChars
	if minChars <= 0 {
		minChars = DefaultMinTextChars
	}
	if n := utf8.RuneCountInString(text); n < minChars {
		logger.Info().Int("text_chars", n).Msg("insufficient content")
		recordOutcome(KindInsufficientContent.String())
		return Outcome{}, &Error{Kind: KindInsufficientContent, Message: "could not extract enough text from the URL"}
	}
	if ev := logger.Debug(); ev.Enabled() {
		// parsing the title costs a full document parse; only pay it when logged
		ev.Int("raw_bytes", len(raw)).Int("text_chars", utf8.RuneCountInString(text)).Str("title", pageTitle(raw)).Msg("page sanitized")
	}

	start = time.Now()
	res, err := p.Extractor.Extract(ctx, text, rawURL)
	observeStage("extract", start)
	if err != nil {
		recordOutcome(extractionOutcome(err))
		return Outcome{}, &Error{Kind: KindExtractionFailed, Message: err.Error(), Err: err}
	}
	res.Normalize()

	if p.Cache != nil {
		if err := p.Cache.Put(ctx, rawURL, res); err != nil {
			logger.Warn().Err(err).Msg("cache store failed")
		}
	}
	recordOutcome(metrics.OutcomeSuccess)
	logger.Info().Msg("enriched")
	return Outcome{Result: res}, nil
}

// Invalidate drops any cached result for the exact url.
func (p *Pipeline) Invalidate(ctx context.Context, rawURL string) error {
	if p.Cache == nil {
		return nil
	}
	if err := p.Cache.Invalidate(ctx, rawURL); err != nil {
		return fmt.Errorf("invalidate %s: %w", rawURL, err)
	}
	return nil
}

func extractionOutcome(err error) string {
	var ee *extraction.Error
	if errors.As(err, &ee) {
		return "extraction_" + ee.Kind.String()
	}
	return KindExtractionFailed.String()
}

func recordOutcome(outcome string) {
	metrics.EnrichRequestsTotal.WithLabelValues(outcome).Inc()
}

func observeStage(stage string, start time.Time) {
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
