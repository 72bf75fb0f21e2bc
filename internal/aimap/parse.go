package aimap

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/assetdock/assetdock/internal/model"
)

// ParseSuggestions decodes the LLM response into suggestions. Models often
// wrap JSON in markdown fences or surrounding prose, so the array is
// located by bracket scanning before decoding. Suggestions with targets
// outside validKeys or confidence below MinConfidence are dropped.
func ParseSuggestions(content string, validKeys []string) ([]model.Suggestion, error) {
	var decoded []model.Suggestion

	// Preferred shape: {"suggestions": [...]}. Models that ignore the
	// instruction tend to emit a bare array instead.
	var wrapped struct {
		Suggestions []model.Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &wrapped); err == nil && wrapped.Suggestions != nil {
		decoded = wrapped.Suggestions
	} else {
		raw := extractArray(content)
		if raw == "" {
			return nil, fmt.Errorf("no JSON array in response")
		}
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return nil, fmt.Errorf("decode suggestions: %w", err)
		}
	}

	valid := make(map[string]struct{}, len(validKeys))
	for _, k := range validKeys {
		valid[k] = struct{}{}
	}

	var out []model.Suggestion
	seen := make(map[string]struct{})
	for _, s := range decoded {
		if s.Header == "" || s.Confidence < MinConfidence {
			continue
		}
		if _, ok := valid[s.Target]; !ok {
			continue
		}
		// One suggestion per header; the model occasionally repeats itself.
		if _, dup := seen[s.Header]; dup {
			continue
		}
		seen[s.Header] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

func stripFences(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	return s
}

// extractArray strips markdown fences and returns the first top-level JSON
// array in the text.
func extractArray(content string) string {
	s := stripFences(content)
	start := strings.Index(s, "[")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
