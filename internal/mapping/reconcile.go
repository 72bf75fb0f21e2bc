package mapping

import (
	"fmt"

	"github.com/assetdock/assetdock/internal/model"
)

// Ignored is the sentinel value for a column the import skips.
const Ignored = ""

// Source tells the UI where a mapping entry came from. It is derived by
// comparing the current value against the seed inputs, so no extra state
// is tracked per entry.
type Source string

const (
	// SourceDefault marks a header that was never matched or touched and
	// renders as ignored.
	SourceDefault       Source = "default"
	SourceDeterministic Source = "deterministic"
	SourceAI            Source = "ai"
	SourceManual        Source = "manual"
)

// Mapping is the reconciled, editable header → field key state. Mutated
// only through Override after seeding.
type Mapping struct {
	kind          model.EntityKind
	headers       []string
	entries       map[string]string
	deterministic map[string]string
	suggested     map[string]string
	valid         map[string]struct{}
}

// Seed builds a Mapping from an analysis result. Deterministic matches are
// applied first; AI suggestions fill the gaps; every remaining header is
// ignored. Every header in the result has exactly one entry afterwards.
// extraKeys widens the valid target set with custom field keys.
func Seed(res *model.AnalysisResult, kind model.EntityKind, extraKeys []string) *Mapping {
	m := &Mapping{
		kind:          kind,
		headers:       append([]string(nil), res.Headers...),
		entries:       make(map[string]string, len(res.Headers)),
		deterministic: make(map[string]string, len(res.Matches)),
		suggested:     make(map[string]string, len(res.Suggested)),
		valid:         keySet(kind, extraKeys),
	}
	for _, h := range res.Headers {
		m.entries[h] = Ignored
	}
	for _, match := range res.Matches {
		if _, ok := m.entries[match.Header]; !ok {
			continue // match for a header not in the file
		}
		m.deterministic[match.Header] = match.FieldKey
		m.entries[match.Header] = match.FieldKey
	}
	for header, target := range res.Suggested {
		if _, ok := m.entries[header]; !ok {
			continue
		}
		m.suggested[header] = target
		// Deterministic wins; the suggestion only applies to unset headers.
		if _, matched := m.deterministic[header]; !matched {
			m.entries[header] = target
		}
	}
	return m
}

// Override replaces the entry for header unconditionally. The target must
// be Ignored or a valid field key for the active entity kind. Applying the
// same override twice is a no-op the second time.
func (m *Mapping) Override(header, target string) error {
	if _, ok := m.entries[header]; !ok {
		return fmt.Errorf("unknown header %q", header)
	}
	if target != Ignored {
		if _, ok := m.valid[target]; !ok {
			return fmt.Errorf("invalid field key %q for %s import", target, m.kind)
		}
	}
	m.entries[header] = target
	return nil
}

// Value returns the current target for header.
func (m *Mapping) Value(header string) (string, bool) {
	v, ok := m.entries[header]
	return v, ok
}

// Headers returns the file's headers in order.
func (m *Mapping) Headers() []string {
	return append([]string(nil), m.headers...)
}

// Entries returns a copy of the header → target map, suitable for the
// execute request.
func (m *Mapping) Entries() map[string]string {
	out := make(map[string]string, len(m.entries))
	for h, v := range m.entries {
		out[h] = v
	}
	return out
}

// SourceOf derives the provenance of a header's current value: equal to the
// deterministic match means deterministic, equal to the AI suggestion means
// AI, untouched-and-ignored means default, anything else is a manual
// override. A manual ignore is indistinguishable from the default; that is
// accepted, the badge is a UI nicety.
func (m *Mapping) SourceOf(header string) Source {
	v, ok := m.entries[header]
	if !ok {
		return SourceDefault
	}
	if det, ok := m.deterministic[header]; ok && v == det {
		return SourceDeterministic
	}
	if ai, ok := m.suggested[header]; ok && v == ai {
		return SourceAI
	}
	if v == Ignored {
		return SourceDefault
	}
	return SourceManual
}

// Kind returns the entity kind the mapping targets.
func (m *Mapping) Kind() model.EntityKind {
	return m.kind
}
