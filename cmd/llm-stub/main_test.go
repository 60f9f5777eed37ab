package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChatCompletion_ReturnsEnrichmentJSON(t *testing.T) {
	srv := httptest.NewServer(newMux("m"))
	defer srv.Close()

	prompt := `schema... "sources": [{"url": "https://acme.example", "timestamp": "2026-01-01T00:00:00.000Z"}]`
	body, _ := json.Marshal(map[string]any{
		"model": "m",
		"messages": []map[string]string{
			{"role": "system", "content": "Respond with exactly one valid JSON object."},
			{"role": "user", "content": prompt},
		},
	})
	resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Choices) != 1 {
		t.Fatalf("expected one choice")
	}
	var doc struct {
		Summary string `json:"summary"`
		Sources []struct {
			URL string `json:"url"`
		} `json:"sources"`
	}
	if err := json.Unmarshal([]byte(out.Choices[0].Message.Content), &doc); err != nil {
		t.Fatalf("content is not JSON: %v", err)
	}
	if doc.Summary == "" || len(doc.Sources) != 1 || doc.Sources[0].URL != "https://acme.example" {
		t.Fatalf("unexpected content %+v", doc)
	}
}

func TestChatCompletion_RejectsUnknownPrompt(t *testing.T) {
	srv := httptest.NewServer(newMux("m"))
	defer srv.Close()
	resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json", strings.NewReader(`{"messages":[{"role":"system","content":"plan"}]}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestModels(t *testing.T) {
	srv := httptest.NewServer(newMux("stub"))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/v1/models")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || len(out.Data) != 1 || out.Data[0].ID != "stub" {
		t.Fatalf("unexpected models response %+v err=%v", out, err)
	}
}
