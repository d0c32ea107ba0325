package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlty-sh/qlty/internal/qlty/issue"
)

func TestRegexParsesNamedGroups(t *testing.T) {
	p, err := NewRegex(`(?P<path>\S+):(?P<line>\d+):(?P<column>\d+): (?P<level>error|warning): (?P<message>.+)`, issue.LevelMedium, issue.CategoryLint)
	require.NoError(t, err)

	output := "app/models/user.rb:10:5: error: undefined method `foo'\napp/models/post.rb:2:1: warning: unused variable"
	issues, err := p.Parse("rubocop", output)
	require.NoError(t, err)
	require.Len(t, issues, 2)

	assert.Equal(t, "app/models/user.rb", issues[0].Location.Path)
	assert.Equal(t, uint32(10), issues[0].Location.Range.StartLine)
	assert.Equal(t, issue.LevelHigh, issues[0].Level)
	assert.Equal(t, issue.LevelMedium, issues[1].Level)
}

func TestRegexSkipsNonMatchingLines(t *testing.T) {
	p, err := NewRegex(`(?P<path>\S+):(?P<line>\d+): (?P<message>.+)`, issue.LevelMedium, issue.CategoryLint)
	require.NoError(t, err)

	issues, err := p.Parse("tool", "no match here\na.txt:5: a real message")
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "a real message", issues[0].Message)
}

func TestRegexInvalidPatternErrors(t *testing.T) {
	_, err := NewRegex("(unterminated", issue.LevelMedium, issue.CategoryLint)
	assert.Error(t, err)
}
