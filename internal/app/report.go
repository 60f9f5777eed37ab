package app

import (
	"fmt"
	"os"
	"strings"
)

// RenderMarkdown renders a one-page company brief from an enrichment view.
// Synthetic data is flagged at the top so it is never mistaken for live data.
func RenderMarkdown(c Company, v View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", c.Website)
	if c.Sector != "" {
		fmt.Fprintf(&b, "Sector: %s\n\n", c.Sector)
	}
	switch v.Mode {
	case ViewDemo:
		b.WriteString("> Demo data. Live enrichment is disabled.\n\n")
	case ViewFallback:
		fmt.Fprintf(&b, "> Fallback data. Live enrichment failed: %s\n\n", v.Reason)
	case ViewCached:
		b.WriteString("> Served from cache.\n\n")
	}

	r := v.Result
	b.WriteString("## Summary\n\n")
	b.WriteString(r.Summary)
	b.WriteString("\n\n")
	writeList(&b, "What they do", r.WhatTheyDo)
	if len(r.Keywords) > 0 {
		b.WriteString("## Keywords\n\n")
		b.WriteString(strings.Join(r.Keywords, ", "))
		b.WriteString("\n\n")
	}
	writeList(&b, "Signals", r.DerivedSignals)

	if len(r.Sources) > 0 {
		b.WriteString("## Sources\n\n")
		for i, s := range r.Sources {
			fmt.Fprintf(&b, "%d. [%s](%s) (%s)\n", i+1, s.URL, s.URL, s.Timestamp)
		}
		b.WriteString("\n")
	}
	if r.EnrichedAt != "" {
		fmt.Fprintf(&b, "Enriched at %s\n", r.EnrichedAt)
	}
	return b.String()
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", heading)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

// WriteMarkdownReport writes the brief to path.
func WriteMarkdownReport(path string, c Company, v View) error {
	if err := os.WriteFile(path, []byte(RenderMarkdown(c, v)), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// WritePDFReport renders the brief as a simple PDF at path.
func WritePDFReport(path string, c Company, v View) error {
	if err := writeSimplePDF(RenderMarkdown(c, v), path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
