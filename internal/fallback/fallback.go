// Package fallback produces deterministic synthetic results for demo mode and
// for callers whose live enrichment failed.
package fallback

import (
	_ "embed"
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperifyio/goenrich/internal/enrich"
)

//go:embed templates.yaml
var templatesYAML []byte

type template struct {
	Summary        string   `yaml:"summary"`
	WhatTheyDo     []string `yaml:"what_they_do"`
	Keywords       []string `yaml:"keywords"`
	DerivedSignals []string `yaml:"derived_signals"`
}

type templateSet struct {
	Default    template            `yaml:"default"`
	Categories map[string]template `yaml:"categories"`
}

var templates = mustParse(templatesYAML)

func mustParse(b []byte) templateSet {
	set, err := parseTemplates(b)
	if err != nil {
		panic(fmt.Sprintf("fallback: %v", err))
	}
	return set
}

func parseTemplates(b []byte) (templateSet, error) {
	var set templateSet
	if err := yaml.Unmarshal(b, &set); err != nil {
		return templateSet{}, fmt.Errorf("parse templates: %w", err)
	}
	if set.Default.Summary == "" {
		return templateSet{}, fmt.Errorf("parse templates: default template has no summary")
	}
	return set, nil
}

// Categories lists the categories that have a dedicated template.
func Categories() []string {
	out := make([]string, 0, len(templates.Categories))
	for k := range templates.Categories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Generator builds synthetic results. The zero value uses the wall clock.
type Generator struct {
	Now func() time.Time
}

// Generate returns the template for category (exact, case-sensitive match,
// generic template otherwise) with sources set to exactly {url, now}.
// EnrichedAt is left empty.
func (g Generator) Generate(url, category string) enrich.Result {
	t, ok := templates.Categories[category]
	if !ok {
		t = templates.Default
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return enrich.Result{
		Summary:        t.Summary,
		WhatTheyDo:     append([]string{}, t.WhatTheyDo...),
		Keywords:       append([]string{}, t.Keywords...),
		DerivedSignals: append([]string{}, t.DerivedSignals...),
		Sources:        []enrich.Source{{URL: url, Timestamp: enrich.FormatTimestamp(now())}},
	}
}

// Generate uses a wall-clock Generator.
func Generate(url, category string) enrich.Result {
	return Generator{}.Generate(url, category)
}
