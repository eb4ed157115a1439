// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/kb-engine/pkg/types"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", YAML, false},
		{"yaml", YAML, false},
		{"yml", YAML, false},
		{"json", JSON, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSuggestionsYAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	x := New(fs, "kb-data")

	path, err := x.Suggestions([]types.ArticleSuggestion{
		{Title: "How to export data", Frequency: 20, Priority: 77.4, Source: types.SourceGapDetection},
	}, YAML)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("kb-data", "exports", "suggestions.yaml"), path)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	var got []types.ArticleSuggestion
	require.NoError(t, yaml.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "How to export data", got[0].Title)
	assert.Equal(t, types.SourceGapDetection, got[0].Source)

	tmp, err := afero.Exists(fs, path+".tmp")
	require.NoError(t, err)
	assert.False(t, tmp)
}

func TestFAQJSONAndEmptyLists(t *testing.T) {
	fs := afero.NewMemMapFs()
	x := New(fs, "kb-data")

	path, err := x.FAQ([]types.FAQCandidate{{Question: "How do I export data?", Status: types.FAQDraft}}, JSON)
	require.NoError(t, err)
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status": "draft"`)

	path, err = x.Recommendations(nil, JSON)
	require.NoError(t, err)
	data, err = afero.ReadFile(fs, path)
	require.NoError(t, err)
	var recs []types.UpdateRecommendation
	require.NoError(t, json.Unmarshal(data, &recs))
	assert.NotNil(t, recs)
	assert.Empty(t, recs)

	_, err = x.Gaps(nil, Format("xml"))
	assert.Error(t, err)
}

func TestOverwriteReplacesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	x := New(fs, "kb-data")

	_, err := x.Gaps([]types.KnowledgeGap{{Topic: "a"}, {Topic: "b"}}, YAML)
	require.NoError(t, err)
	path, err := x.Gaps([]types.KnowledgeGap{{Topic: "c"}}, YAML)
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	var got []types.KnowledgeGap
	require.NoError(t, yaml.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].Topic)
}
