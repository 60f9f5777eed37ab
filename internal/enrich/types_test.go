package enrich

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestFormatTimestamp_UTCMillis(t *testing.T) {
	loc := time.FixedZone("X", 3*3600)
	ts := time.Date(2026, 3, 4, 15, 6, 7, 891_000_000, loc)
	if got := FormatTimestamp(ts); got != "2026-03-04T12:06:07.891Z" {
		t.Fatalf("unexpected timestamp %q", got)
	}
}

func TestAddSource_NoDuplicates(t *testing.T) {
	var r Result
	r.AddSource("https://a.example", "t1")
	r.AddSource("https://a.example", "t2")
	r.AddSource("https://a.example/", "t3")
	if len(r.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d: %+v", len(r.Sources), r.Sources)
	}
	if r.Sources[0].Timestamp != "t1" {
		t.Fatalf("existing entry must not be replaced, got %+v", r.Sources[0])
	}
}

func TestNormalize_EncodesEmptyLists(t *testing.T) {
	var r Result
	r.Normalize()
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	if strings.Contains(s, "null") {
		t.Fatalf("expected no null lists, got %s", s)
	}
	if strings.Contains(s, "enrichedAt") {
		t.Fatalf("enrichedAt should be omitted when empty: %s", s)
	}
}

func TestClone_IsDeep(t *testing.T) {
	orig := Result{
		Summary:    "x",
		WhatTheyDo: []string{"a"},
		Keywords:   []string{"k"},
		Sources:    []Source{{URL: "u", Timestamp: "t"}},
	}
	c := orig.Clone()
	c.WhatTheyDo[0] = "changed"
	c.Keywords = append(c.Keywords, "more")
	c.Sources[0].URL = "other"
	if orig.WhatTheyDo[0] != "a" || len(orig.Keywords) != 1 || orig.Sources[0].URL != "u" {
		t.Fatalf("original mutated through clone: %+v", orig)
	}
	if c.DerivedSignals == nil {
		t.Fatalf("clone should carry non-nil lists")
	}
}
