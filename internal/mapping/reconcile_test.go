package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetdock/assetdock/internal/model"
)

func TestSeedExactMatch(t *testing.T) {
	res := &model.AnalysisResult{
		Headers: []string{"Name", "Serial Number"},
		Matches: []model.HeaderMatch{
			{Header: "Name", FieldKey: "name"},
			{Header: "Serial Number", FieldKey: "serial_number"},
		},
	}

	m := Seed(res, model.KindAsset, nil)

	assert.Equal(t, map[string]string{
		"Name":          "name",
		"Serial Number": "serial_number",
	}, m.Entries())
	assert.Equal(t, SourceDeterministic, m.SourceOf("Name"))
	assert.Equal(t, SourceDeterministic, m.SourceOf("Serial Number"))
}

func TestSeedAIFillsGap(t *testing.T) {
	res := &model.AnalysisResult{
		Headers:   []string{"Name", "Dept"},
		Matches:   []model.HeaderMatch{{Header: "Name", FieldKey: "name"}},
		Suggested: map[string]string{"Dept": "location"},
	}

	m := Seed(res, model.KindAsset, nil)

	assert.Equal(t, map[string]string{
		"Name": "name",
		"Dept": "location",
	}, m.Entries())
	assert.Equal(t, SourceAI, m.SourceOf("Dept"))
}

func TestSeedDeterministicWinsOverAI(t *testing.T) {
	res := &model.AnalysisResult{
		Headers:   []string{"Location"},
		Matches:   []model.HeaderMatch{{Header: "Location", FieldKey: "location"}},
		Suggested: map[string]string{"Location": "vendor"},
	}

	m := Seed(res, model.KindAsset, nil)

	v, ok := m.Value("Location")
	require.True(t, ok)
	assert.Equal(t, "location", v)
	assert.Equal(t, SourceDeterministic, m.SourceOf("Location"))
}

func TestSeedOneEntryPerHeader(t *testing.T) {
	res := &model.AnalysisResult{
		Headers:   []string{"Name", "Color", "Weight", "Dept"},
		Matches:   []model.HeaderMatch{{Header: "Name", FieldKey: "name"}},
		Suggested: map[string]string{"Dept": "location"},
	}

	m := Seed(res, model.KindAsset, nil)

	entries := m.Entries()
	assert.Len(t, entries, len(res.Headers))
	for _, h := range res.Headers {
		_, ok := entries[h]
		assert.True(t, ok, "header %q must have an entry", h)
	}
	assert.Equal(t, Ignored, entries["Color"])
	assert.Equal(t, Ignored, entries["Weight"])
	assert.Equal(t, SourceDefault, m.SourceOf("Color"))
}

func TestSeedIgnoresMatchForAbsentHeader(t *testing.T) {
	res := &model.AnalysisResult{
		Headers:   []string{"Name"},
		Matches:   []model.HeaderMatch{{Header: "Ghost", FieldKey: "vendor"}},
		Suggested: map[string]string{"Phantom": "location"},
	}

	m := Seed(res, model.KindAsset, nil)

	entries := m.Entries()
	assert.Len(t, entries, 1)
	_, ok := entries["Ghost"]
	assert.False(t, ok)
}

func TestOverrideReplacesAndIsIdempotent(t *testing.T) {
	res := &model.AnalysisResult{
		Headers: []string{"Dept"},
	}
	m := Seed(res, model.KindAsset, nil)

	require.NoError(t, m.Override("Dept", "location"))
	first := m.Entries()

	require.NoError(t, m.Override("Dept", "location"))
	assert.Equal(t, first, m.Entries())
	assert.Equal(t, SourceManual, m.SourceOf("Dept"))
}

func TestOverrideToIgnored(t *testing.T) {
	res := &model.AnalysisResult{
		Headers: []string{"Name"},
		Matches: []model.HeaderMatch{{Header: "Name", FieldKey: "name"}},
	}
	m := Seed(res, model.KindAsset, nil)

	require.NoError(t, m.Override("Name", Ignored))

	v, _ := m.Value("Name")
	assert.Equal(t, Ignored, v)
}

func TestOverrideRejectsUnknownHeader(t *testing.T) {
	m := Seed(&model.AnalysisResult{Headers: []string{"Name"}}, model.KindAsset, nil)
	assert.Error(t, m.Override("Nope", "name"))
}

func TestOverrideRejectsInvalidFieldKey(t *testing.T) {
	m := Seed(&model.AnalysisResult{Headers: []string{"Name"}}, model.KindAsset, nil)
	assert.Error(t, m.Override("Name", "favourite_color"))

	// User imports must not accept asset-only keys.
	mu := Seed(&model.AnalysisResult{Headers: []string{"Name"}}, model.KindUser, nil)
	assert.Error(t, mu.Override("Name", "serial_number"))
	assert.NoError(t, mu.Override("Name", "full_name"))
}

func TestOverrideAcceptsCustomFieldKey(t *testing.T) {
	m := Seed(&model.AnalysisResult{Headers: []string{"Warranty Provider"}}, model.KindAsset, []string{"warranty_provider"})
	assert.NoError(t, m.Override("Warranty Provider", "warranty_provider"))
}

func TestManualOverrideShadowsAIProvenance(t *testing.T) {
	res := &model.AnalysisResult{
		Headers:   []string{"Dept"},
		Suggested: map[string]string{"Dept": "location"},
	}
	m := Seed(res, model.KindAsset, nil)
	assert.Equal(t, SourceAI, m.SourceOf("Dept"))

	require.NoError(t, m.Override("Dept", "vendor"))
	assert.Equal(t, SourceManual, m.SourceOf("Dept"))

	// Overriding back to the suggested value reads as AI again; provenance
	// is value-derived, not stored.
	require.NoError(t, m.Override("Dept", "location"))
	assert.Equal(t, SourceAI, m.SourceOf("Dept"))
}
