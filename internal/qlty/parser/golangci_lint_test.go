package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlty-sh/qlty/internal/qlty/issue"
)

func TestGolangciLintParsesIssue(t *testing.T) {
	input := `{"Issues": [{"FromLinter": "errcheck", "Text": "Error return value not checked", "Severity": "error", "Pos": {"Filename": "main.go", "Line": 12, "Column": 4}}]}`

	issues, err := GolangciLint{}.Parse("golangci-lint", input)
	require.NoError(t, err)
	require.Len(t, issues, 1)

	got := issues[0]
	assert.Equal(t, "errcheck", got.RuleKey)
	assert.Equal(t, issue.LevelHigh, got.Level)
	assert.Equal(t, "main.go", got.Location.Path)
	assert.Equal(t, uint32(12), got.Location.Range.StartLine)
}

func TestGolangciLintBuildsSuggestionFromReplacement(t *testing.T) {
	input := `{"Issues": [{"FromLinter": "gofmt", "Text": "File is not gofmt-ed", "Pos": {"Filename": "main.go", "Line": 1, "Column": 1}, "Replacement": {"NewLines": ["package main"]}}]}`

	issues, err := GolangciLint{}.Parse("golangci-lint", input)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Len(t, issues[0].Suggestions, 1)
	assert.Equal(t, "package main", issues[0].Suggestions[0].Replacements[0].Data)
}
