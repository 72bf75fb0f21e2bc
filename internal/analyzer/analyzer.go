// Package analyzer inspects an uploaded table and produces the
// header-to-field analysis clients build their mapping from.
package analyzer

import (
	"context"
	"log/slog"

	"github.com/assetdock/assetdock/internal/mapping"
	"github.com/assetdock/assetdock/internal/model"
	"github.com/assetdock/assetdock/internal/tabular"
)

// sampleRowCount limits how many data rows are sent to the LLM.
const sampleRowCount = 3

// SuggestionSource proposes field keys for headers, typically an LLM.
type SuggestionSource interface {
	Suggest(ctx context.Context, kind model.EntityKind, headers []string, sampleRows []map[string]string, validKeys []string) ([]model.Suggestion, error)
}

// FieldKeySource supplies custom field keys defined for an entity kind.
type FieldKeySource interface {
	Keys(ctx context.Context, target string) ([]string, error)
}

// Analyzer resolves table headers against the field catalog.
type Analyzer struct {
	suggester SuggestionSource
	fields    FieldKeySource
	logger    *slog.Logger
}

// New constructs an Analyzer. suggester may be nil when no LLM is
// configured; fields may be nil when custom fields are not in play.
func New(suggester SuggestionSource, fields FieldKeySource, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{suggester: suggester, fields: fields, logger: logger}
}

// Analyze matches the table's headers deterministically and, when useAI is
// set and an LLM is available, asks it about the leftovers. AI failures
// degrade to a deterministic-only result rather than failing the analysis.
func (a *Analyzer) Analyze(ctx context.Context, table *tabular.Table, kind model.EntityKind, useAI bool) (*model.AnalysisResult, error) {
	extraKeys, err := a.customKeys(ctx, kind)
	if err != nil {
		return nil, err
	}

	matches := mapping.Match(table.Headers, kind, extraKeys)
	result := &model.AnalysisResult{
		Headers:   append([]string(nil), table.Headers...),
		Matches:   matches,
		TotalRows: len(table.Rows),
	}

	if !useAI || a.suggester == nil {
		return result, nil
	}

	unmatched := unmatchedHeaders(table.Headers, matches)
	if len(unmatched) == 0 {
		return result, nil
	}

	validKeys := append(mapping.FieldKeys(kind), extraKeys...)
	suggestions, err := a.suggester.Suggest(ctx, kind, unmatched, sampleRows(table), validKeys)
	if err != nil {
		a.logger.Warn("ai suggestions unavailable", "kind", kind, "error", err)
		return result, nil
	}
	if len(suggestions) > 0 {
		result.Suggestions = suggestions
		result.Suggested = make(map[string]string, len(suggestions))
		for _, s := range suggestions {
			result.Suggested[s.Header] = s.Target
		}
	}
	return result, nil
}

func (a *Analyzer) customKeys(ctx context.Context, kind model.EntityKind) ([]string, error) {
	if a.fields == nil {
		return nil, nil
	}
	return a.fields.Keys(ctx, string(kind))
}

func unmatchedHeaders(headers []string, matches []model.HeaderMatch) []string {
	matched := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		matched[m.Header] = struct{}{}
	}
	var out []string
	for _, h := range headers {
		if _, ok := matched[h]; !ok {
			out = append(out, h)
		}
	}
	return out
}

func sampleRows(table *tabular.Table) []map[string]string {
	n := len(table.Rows)
	if n > sampleRowCount {
		n = sampleRowCount
	}
	return table.Rows[:n]
}
