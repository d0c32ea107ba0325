package suppress

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlty-sh/qlty/internal/qlty/issue"
)

type fakeSourceReader map[string]string

func (f fakeSourceReader) Read(path string) (string, error) {
	content, ok := f[path]
	if !ok {
		return "", errors.New("not found")
	}
	return content, nil
}

func issueAt(tool, ruleKey, path string, line uint32) issue.Issue {
	return issue.Issue{
		Tool:     tool,
		RuleKey:  ruleKey,
		Location: &issue.Location{Path: path, Range: &issue.Range{StartLine: line}},
	}
}

func TestIssueMuterSuppressesByToolName(t *testing.T) {
	source := strings.Join([]string{
		"def foo():",
		"    dangerous_call()  # qlty-ignore: bandit",
	}, "\n")
	reader := fakeSourceReader{"app.py": source}
	muter := NewIssueMuter(reader)

	_, kept := muter.Transform(issueAt("bandit", "B101", "app.py", 2))
	assert.False(t, kept)
}

func TestIssueMuterSuppressesByToolSlashRuleKey(t *testing.T) {
	source := "x = 1  # qlty-ignore(bandit/B101)"
	reader := fakeSourceReader{"app.py": source}
	muter := NewIssueMuter(reader)

	_, kept := muter.Transform(issueAt("bandit", "B101", "app.py", 1))
	assert.False(t, kept)

	_, kept = muter.Transform(issueAt("bandit", "B999", "app.py", 1))
	assert.True(t, kept, "a different rule key on the same tool is not suppressed by a rule-scoped directive")
}

func TestIssueMuterSuppressesByToolColonRuleKey(t *testing.T) {
	source := "x = 1  # qlty-ignore(bandit:B101)"
	reader := fakeSourceReader{"app.py": source}
	muter := NewIssueMuter(reader)

	_, kept := muter.Transform(issueAt("bandit", "B101", "app.py", 1))
	assert.False(t, kept)
}

func TestIssueMuterPassesThroughUnrelatedIssues(t *testing.T) {
	source := "x = 1  # qlty-ignore: bandit"
	reader := fakeSourceReader{"app.py": source}
	muter := NewIssueMuter(reader)

	_, kept := muter.Transform(issueAt("other-tool", "R1", "app.py", 1))
	assert.True(t, kept)
}

func TestIssueMuterPassesThroughIssuesWithoutLocation(t *testing.T) {
	muter := NewIssueMuter(fakeSourceReader{})
	_, kept := muter.Transform(issue.Issue{Tool: "x", RuleKey: "y"})
	assert.True(t, kept)
}

func TestIssueMuterHandlesUnreadableSourceGracefully(t *testing.T) {
	muter := NewIssueMuter(fakeSourceReader{})
	_, kept := muter.Transform(issueAt("bandit", "B101", "missing.py", 1))
	assert.True(t, kept)
}

func TestIssueMuterWorksOnUnknownExtension(t *testing.T) {
	source := "print('x')  # qlty-ignore: a-rule"
	reader := fakeSourceReader{"script.weirdext": source}
	muter := NewIssueMuter(reader)

	_, kept := muter.Transform(issueAt("a-rule", "", "script.weirdext", 1))
	assert.False(t, kept)
}

func TestIssueMuterCachesParsedFiles(t *testing.T) {
	source := "x = 1  # qlty-ignore: r"
	reader := fakeSourceReader{"app.py": source}
	muter := NewIssueMuter(reader)

	first := muter.parserFor("app.py")
	second := muter.parserFor("app.py")
	require.Same(t, first, second)
}
