package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlty-sh/qlty/internal/qlty/issue"
)

func TestBiomeParsesDiagnosticWithSourceRange(t *testing.T) {
	input := `{
		"diagnostics": [{
			"category": "lint/style/useConst",
			"severity": "error",
			"description": "use const",
			"location": {
				"path": {"file": "src/a.js"},
				"span": [4, 9],
				"sourceCode": "let x = 1;\nlet y = 2;\n"
			}
		}]
	}`

	issues, err := Biome{}.Parse("biome", input)
	require.NoError(t, err)
	require.Len(t, issues, 1)

	got := issues[0]
	assert.Equal(t, "lint/style/useConst", got.RuleKey)
	assert.Equal(t, issue.LevelHigh, got.Level)
	require.NotNil(t, got.Location)
	assert.Equal(t, "src/a.js", got.Location.Path)
	require.NotNil(t, got.Location.Range)
	assert.Equal(t, uint32(1), got.Location.Range.StartLine)
}

func TestBiomeNoRangeWithoutSourceCode(t *testing.T) {
	input := `{"diagnostics": [{"category": "lint/x", "severity": "warning", "description": "d", "location": {"path": {"file": "a.js"}}}]}`

	issues, err := Biome{}.Parse("biome", input)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Nil(t, issues[0].Location.Range)
}

func TestBiomeCalculateLineAndColumn(t *testing.T) {
	source := "abc\ndef\nghi"
	startLine, startColumn, endLine, endColumn := biomeCalculateLineAndColumn(source, 4, 6)
	assert.Equal(t, uint32(2), startLine)
	assert.Equal(t, uint32(1), startColumn)
	assert.Equal(t, uint32(2), endLine)
	assert.Equal(t, uint32(3), endColumn)
}

func TestBiomeBuildSuggestionsNoAdvicesReturnsEmpty(t *testing.T) {
	diag := biomeDiagnostic{
		Location: biomeLocation{SourceCode: strPtr("abc")},
	}
	assert.Empty(t, biomeBuildSuggestions(diag))
}

func strPtr(s string) *string { return &s }
