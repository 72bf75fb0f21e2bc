// Package aimap asks an LLM to map spreadsheet headers onto field keys
// when deterministic matching leaves gaps.
package aimap

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/assetdock/assetdock/internal/config"
	"github.com/assetdock/assetdock/internal/mapping"
	"github.com/assetdock/assetdock/internal/model"
)

// MinConfidence is the cutoff below which a suggestion is discarded.
const MinConfidence = 0.5

// Suggester generates header → field suggestions via an LLM.
type Suggester struct {
	llm llms.Model
}

// New creates a Suggester from the configured provider. It returns an
// error when the provider is unknown or missing credentials, so callers
// can degrade to deterministic-only analysis.
func New(cfg *config.Config) (*Suggester, error) {
	var (
		m   llms.Model
		err error
	)
	switch cfg.AIProvider {
	case config.ProviderOllama:
		m, err = ollama.New(
			ollama.WithModel(cfg.AIModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}
	case config.ProviderOpenAI:
		if cfg.AIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		m, err = openai.New(
			openai.WithToken(cfg.AIAPIKey),
			openai.WithModel(cfg.AIModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
	case config.ProviderAnthropic:
		if cfg.AIAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		m, err = anthropic.New(
			anthropic.WithToken(cfg.AIAPIKey),
			anthropic.WithModel(cfg.AIModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.AIProvider)
	}
	return &Suggester{llm: m}, nil
}

// Suggest proposes field keys for the given headers. sampleRows carries a
// few data rows to give the model context; validKeys is the full set of
// acceptable targets including custom fields. Suggestions with unknown
// targets or confidence below MinConfidence are dropped.
func (s *Suggester) Suggest(ctx context.Context, kind model.EntityKind, headers []string, sampleRows []map[string]string, validKeys []string) ([]model.Suggestion, error) {
	prompt := buildPrompt(kind, headers, sampleRows, validKeys)
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}
	response, err := s.llm.GenerateContent(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("generate suggestions: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response choices")
	}
	return ParseSuggestions(response.Choices[0].Content, validKeys)
}

const systemPrompt = `You map spreadsheet column headers onto field keys of an IT asset database.
Respond with JSON only, no prose: {"suggestions": [{"header": "<original header>", "target": "<field key>", "confidence": <0..1>, "reason": "<short>"}]}
Only use field keys from the provided list. Skip headers you cannot map.`

func buildPrompt(kind model.EntityKind, headers []string, sampleRows []map[string]string, validKeys []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Entity type: %s\n\nField keys:\n", kind)
	descriptions := mapping.FieldDescriptions(kind)
	for _, key := range validKeys {
		if desc, ok := descriptions[key]; ok {
			fmt.Fprintf(&b, "- %s: %s\n", key, desc)
		} else {
			fmt.Fprintf(&b, "- %s\n", key)
		}
	}
	fmt.Fprintf(&b, "\nColumn headers:\n")
	for _, h := range headers {
		fmt.Fprintf(&b, "- %s\n", h)
	}
	if len(sampleRows) > 0 {
		fmt.Fprintf(&b, "\nSample rows:\n")
		for _, row := range sampleRows {
			keys := make([]string, 0, len(row))
			for k := range row {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			pairs := make([]string, 0, len(keys))
			for _, k := range keys {
				pairs = append(pairs, fmt.Sprintf("%s=%q", k, row[k]))
			}
			fmt.Fprintf(&b, "%s\n", strings.Join(pairs, ", "))
		}
	}
	b.WriteString("\nJSON array:")
	return b.String()
}
