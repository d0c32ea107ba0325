package execute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlty-sh/qlty/internal/qlty/issue"
	"github.com/qlty-sh/qlty/internal/qlty/plan"
)

func manyIssues(n int) []issue.Issue {
	out := make([]issue.Issue, n)
	for i := range out {
		out[i] = issue.Issue{RuleKey: "R", Message: "m", Location: &issue.Location{Path: "a.go"}}
	}
	return out
}

func TestTruncatePerFileDropsAllIssuesOverMaxIssuesPerFile(t *testing.T) {
	e := &Executor{}
	result := &InvocationResult{
		FileResults: []FileResult{{Path: "a.go", Issues: manyIssues(MaxIssuesPerFile + 1)}},
	}

	e.truncatePerFile(result, &plan.InvocationPlan{PluginName: "test"})

	assert.Len(t, result.FileResults[0].Issues, 0)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "invocation.limit.issue_count", result.Messages[0].Type)
}

func TestTruncatePerFileLeavesUnderLimitUntouched(t *testing.T) {
	e := &Executor{}
	result := &InvocationResult{
		FileResults: []FileResult{{Path: "a.go", Issues: manyIssues(5)}},
	}

	e.truncatePerFile(result, &plan.InvocationPlan{PluginName: "test"})

	assert.Len(t, result.FileResults[0].Issues, 5)
	assert.Empty(t, result.Messages)
}

type dropTransformer struct{ ruleKey string }

func (d dropTransformer) Transform(iss issue.Issue) (issue.Issue, bool) {
	if iss.RuleKey == d.ruleKey {
		return iss, false
	}
	return iss, true
}

func TestApplyTransformersDropsMatchingIssues(t *testing.T) {
	e := &Executor{Transformers: []Transformer{dropTransformer{ruleKey: "drop-me"}}}
	result := &InvocationResult{
		FileResults: []FileResult{{Path: "a.go", Issues: []issue.Issue{
			{RuleKey: "keep-me"},
			{RuleKey: "drop-me"},
		}}},
	}

	e.applyTransformers(result)

	require.Len(t, result.FileResults[0].Issues, 1)
	assert.Equal(t, "keep-me", result.FileResults[0].Issues[0].RuleKey)
}

func TestBuildResultsCapsAtMaxIssuesAndRecordsMessage(t *testing.T) {
	e := &Executor{}
	inv := &InvocationResult{
		PluginName:  "big",
		Status:      InvocationStatusSuccess,
		FileResults: []FileResult{{Path: "a.go", Issues: manyIssues(MaxIssues + 5)}},
	}

	results := e.buildResults([]*InvocationResult{inv})

	assert.Len(t, results.Issues, MaxIssues)
	found := false
	for _, m := range results.Messages {
		if m.Type == "executor.limit.total_issue_count" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestBuildResultsExactlyAtMaxIssuesRecordsNoOverflowMessage(t *testing.T) {
	e := &Executor{}
	inv := &InvocationResult{
		PluginName:  "exact",
		Status:      InvocationStatusSuccess,
		FileResults: []FileResult{{Path: "a.go", Issues: manyIssues(MaxIssues)}},
	}

	results := e.buildResults([]*InvocationResult{inv})

	assert.Len(t, results.Issues, MaxIssues)
	for _, m := range results.Messages {
		assert.NotEqual(t, "executor.limit.total_issue_count", m.Type)
	}
}

func TestBuildResultsDropsErroredPluginIssuesWhenSkipConfigured(t *testing.T) {
	e := &Executor{SkipErroredPlugins: true}
	good := &InvocationResult{
		PluginName:  "good",
		Status:      InvocationStatusSuccess,
		FileResults: []FileResult{{Path: "a.go", Issues: manyIssues(2)}},
	}
	bad := &InvocationResult{
		PluginName:  "bad",
		Status:      InvocationStatusParseError,
		FileResults: []FileResult{{Path: "b.go", Issues: manyIssues(3)}},
	}

	results := e.buildResults([]*InvocationResult{good, bad})

	assert.Len(t, results.Issues, 2)
}

func TestNewExecutorSetsJobs(t *testing.T) {
	e := NewExecutor(nil, 2)
	assert.Equal(t, 2, e.Jobs)
}
