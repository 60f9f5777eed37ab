// Command llm-stub serves a canned OpenAI-compatible enrichment model for
// local runs without credentials.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// sourceRe picks the url/timestamp pair the prompt asks the model to echo.
var sourceRe = regexp.MustCompile(`"url":\s*"([^"]*)",\s*"timestamp":\s*"([^"]*)"`)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	log.Info().Str("addr", addr).Str("model", model).Msg("llm-stub listening")
	if err := http.ListenAndServe(addr, newMux(model)); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
}

func newMux(model string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		var sys, user string
		for _, m := range req.Messages {
			switch m.Role {
			case "system":
				sys = m.Content
			case "user":
				user = m.Content
			}
		}
		if !strings.Contains(sys, "JSON object") {
			http.Error(w, "unexpected system", http.StatusBadRequest)
			return
		}
		log.Debug().Int("prompt_chars", len(user)).Msg("chat completion")

		content, err := cannedEnrichment(user)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "stub-completion",
			"object": "chat.completion",
			"model":  model,
			"choices": []map[string]any{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
			},
		})
	})
	return mux
}

// cannedEnrichment answers with a fixed company profile, echoing the source
// the prompt names.
func cannedEnrichment(prompt string) (string, error) {
	sources := []map[string]string{}
	if m := sourceRe.FindStringSubmatch(prompt); m != nil {
		sources = append(sources, map[string]string{"url": m[1], "timestamp": m[2]})
	}
	b, err := json.Marshal(map[string]any{
		"summary":         "Stub Co builds example software for local testing.",
		"what_they_do":    []string{"Builds example software", "Runs a local test service", "Publishes documentation"},
		"keywords":        []string{"stub", "testing", "software", "local", "example"},
		"derived_signals": []string{"Documentation available", "Test environment detected"},
		"sources":         sources,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
