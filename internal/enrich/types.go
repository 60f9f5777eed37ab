package enrich

import "time"

// TimestampLayout matches the millisecond ISO-8601 form browsers emit, so
// timestamps written by the live and fallback paths look the same.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Source records a page that contributed to a result.
type Source struct {
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"`
}

// Result is the structured company intelligence returned to callers.
//
// The four list fields are never nil on a returned value; EnrichedAt is set
// only on live extractions.
type Result struct {
	Summary        string   `json:"summary"`
	WhatTheyDo     []string `json:"what_they_do"`
	Keywords       []string `json:"keywords"`
	DerivedSignals []string `json:"derived_signals"`
	Sources        []Source `json:"sources"`
	EnrichedAt     string   `json:"enrichedAt,omitempty"`
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// HasSource reports whether a source entry already carries url exactly.
func (r Result) HasSource(url string) bool {
	for _, s := range r.Sources {
		if s.URL == url {
			return true
		}
	}
	return false
}

// AddSource appends {url, timestamp} unless an entry with that URL exists.
func (r *Result) AddSource(url, timestamp string) {
	if r.HasSource(url) {
		return
	}
	r.Sources = append(r.Sources, Source{URL: url, Timestamp: timestamp})
}

// Normalize replaces nil list fields with empty slices.
func (r *Result) Normalize() {
	if r.WhatTheyDo == nil {
		r.WhatTheyDo = []string{}
	}
	if r.Keywords == nil {
		r.Keywords = []string{}
	}
	if r.DerivedSignals == nil {
		r.DerivedSignals = []string{}
	}
	if r.Sources == nil {
		r.Sources = []Source{}
	}
}

// Clone returns a deep copy so callers can never mutate shared state.
func (r Result) Clone() Result {
	out := r
	out.WhatTheyDo = append([]string{}, r.WhatTheyDo...)
	out.Keywords = append([]string{}, r.Keywords...)
	out.DerivedSignals = append([]string{}, r.DerivedSignals...)
	out.Sources = append([]Source{}, r.Sources...)
	return out
}
