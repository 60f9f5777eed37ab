package app

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goenrich/internal/enrich"
	"github.com/hyperifyio/goenrich/internal/fallback"
	"github.com/hyperifyio/goenrich/internal/metrics"
	"github.com/hyperifyio/goenrich/internal/pipeline"
)

// View modes tell the presentation layer which banner to show.
const (
	ViewLive     = "live"
	ViewCached   = "cached"
	ViewDemo     = "demo"
	ViewFallback = "fallback"
)

// ErrNoWebsite is returned when a company has no website to enrich.
var ErrNoWebsite = errors.New("company has no website")

// Company is the part of a company record the enricher needs.
type Company struct {
	Website string `json:"website"`
	Sector  string `json:"sector"`
}

// View is an enrichment result labelled with where it came from.
type View struct {
	Result enrich.Result `json:"result"`
	Mode   string        `json:"mode"`
	// Reason is the live failure message when Mode is fallback.
	Reason string `json:"reason,omitempty"`
}

// IsSynthetic reports whether the result is demo or fallback data.
func (v View) IsSynthetic() bool {
	return v.Mode == ViewDemo || v.Mode == ViewFallback
}

// LivePipeline is the live enrichment path.
type LivePipeline interface {
	Enrich(ctx context.Context, rawURL string) (pipeline.Outcome, error)
}

// Enricher applies the caller-side policy: demo mode serves synthetic data
// without touching the network; live mode runs the pipeline and degrades to
// synthetic data labelled with the failure reason. Synthetic results are
// never written to the cache.
type Enricher struct {
	Pipeline LivePipeline
	Fallback fallback.Generator
	// Mode is ModeLive or ModeMock. Empty means ModeLive.
	Mode string
}

func (e *Enricher) EnrichCompany(ctx context.Context, c Company) (View, error) {
	website := strings.TrimSpace(c.Website)
	if website == "" {
		return View{}, ErrNoWebsite
	}
	if e.Mode == ModeMock || e.Pipeline == nil {
		metrics.FallbackServedTotal.WithLabelValues(ViewDemo).Inc()
		return View{Result: e.Fallback.Generate(website, c.Sector), Mode: ViewDemo}, nil
	}

	out, err := e.Pipeline.Enrich(ctx, website)
	if err != nil {
		log.Warn().Err(err).Str("url", website).Str("sector", c.Sector).Msg("live enrichment failed; serving fallback data")
		metrics.FallbackServedTotal.WithLabelValues(ViewFallback).Inc()
		return View{Result: e.Fallback.Generate(website, c.Sector), Mode: ViewFallback, Reason: err.Error()}, nil
	}
	mode := ViewLive
	if out.Cached {
		mode = ViewCached
	}
	return View{Result: out.Result, Mode: mode}, nil
}
