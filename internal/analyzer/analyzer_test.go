package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetdock/assetdock/internal/model"
	"github.com/assetdock/assetdock/internal/tabular"
)

type fakeSuggester struct {
	suggestions []model.Suggestion
	err         error
	gotHeaders  []string
	calls       int
}

func (f *fakeSuggester) Suggest(_ context.Context, _ model.EntityKind, headers []string, _ []map[string]string, _ []string) ([]model.Suggestion, error) {
	f.calls++
	f.gotHeaders = headers
	return f.suggestions, f.err
}

type fakeFields struct {
	keys []string
}

func (f *fakeFields) Keys(context.Context, string) ([]string, error) {
	return f.keys, nil
}

func sampleTable() *tabular.Table {
	return &tabular.Table{
		Headers: []string{"Name", "Serial Number", "Dept"},
		Rows: []map[string]string{
			{"Name": "MacBook", "Serial Number": "SN-1", "Dept": "Berlin"},
			{"Name": "ThinkPad", "Serial Number": "SN-2", "Dept": "Vienna"},
		},
	}
}

func TestAnalyzeDeterministicOnly(t *testing.T) {
	a := New(nil, nil, nil)
	res, err := a.Analyze(context.Background(), sampleTable(), model.KindAsset, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Serial Number", "Dept"}, res.Headers)
	require.Len(t, res.Matches, 2)
	assert.Equal(t, "name", res.Matches[0].FieldKey)
	assert.Equal(t, "serial_number", res.Matches[1].FieldKey)
	assert.Empty(t, res.Suggested)
	assert.Equal(t, 2, res.TotalRows)
}

func TestAnalyzeAskSuggesterOnlyUnmatched(t *testing.T) {
	fake := &fakeSuggester{suggestions: []model.Suggestion{
		{Header: "Dept", Target: "location", Confidence: 0.8},
	}}
	a := New(fake, nil, nil)
	res, err := a.Analyze(context.Background(), sampleTable(), model.KindAsset, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"Dept"}, fake.gotHeaders)
	assert.Equal(t, map[string]string{"Dept": "location"}, res.Suggested)
	require.Len(t, res.Suggestions, 1)
}

func TestAnalyzeNoAIRequestedSkipsSuggester(t *testing.T) {
	fake := &fakeSuggester{}
	a := New(fake, nil, nil)
	_, err := a.Analyze(context.Background(), sampleTable(), model.KindAsset, false)
	require.NoError(t, err)
	assert.Zero(t, fake.calls)
}

func TestAnalyzeAllMatchedSkipsSuggester(t *testing.T) {
	fake := &fakeSuggester{}
	a := New(fake, nil, nil)
	table := &tabular.Table{Headers: []string{"Name", "Status"}}
	_, err := a.Analyze(context.Background(), table, model.KindAsset, true)
	require.NoError(t, err)
	assert.Zero(t, fake.calls)
}

func TestAnalyzeSuggesterFailureDegrades(t *testing.T) {
	fake := &fakeSuggester{err: errors.New("llm down")}
	a := New(fake, nil, nil)
	res, err := a.Analyze(context.Background(), sampleTable(), model.KindAsset, true)
	require.NoError(t, err)
	assert.Empty(t, res.Suggested)
	require.Len(t, res.Matches, 2)
}

func TestAnalyzeCustomFieldKeysMatch(t *testing.T) {
	fields := &fakeFields{keys: []string{"dept"}}
	a := New(nil, fields, nil)
	res, err := a.Analyze(context.Background(), sampleTable(), model.KindAsset, false)
	require.NoError(t, err)
	require.Len(t, res.Matches, 3)
	assert.Equal(t, "dept", res.Matches[2].FieldKey)
}
