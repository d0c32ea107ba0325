package parser

import (
	"encoding/json"
	"fmt"

	"github.com/qlty-sh/qlty/internal/qlty/issue"
)

// genericJSONFile is the shape shared by most of the tools in the
// pack that emit structured JSON without a dedicated parser of their
// own: an array of per-file entries, each with an array of
// diagnostics carrying a 1-based line/column, a message, and an
// optional rule identifier. pylint, ruff, mypy, bandit, knip,
// php_codesniffer, radarlint and friends all fit this shape closely
// enough (field names vary, so both the common ESLint-style
// "filePath"/"messages" keys and a flatter "file"/"issues" shape are
// tried).
type genericJSONFile struct {
	FilePath    string               `json:"filePath"`
	File        string               `json:"file"`
	Path        string               `json:"path"`
	Messages    []genericJSONMessage `json:"messages"`
	Issues      []genericJSONMessage `json:"issues"`
	Diagnostics []genericJSONMessage `json:"diagnostics"`
}

type genericJSONMessage struct {
	RuleID    string `json:"ruleId"`
	Rule      string `json:"rule"`
	Code      string `json:"code"`
	Symbol    string `json:"symbol"`
	Message   string `json:"message"`
	Text      string `json:"text"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   int    `json:"endLine"`
	EndColumn int    `json:"endColumn"`
	Severity  string `json:"severity"`
	Level     string `json:"level"`
}

// GenericJSON covers every OutputFormat the pack never retrieved a
// dedicated parser source for. It accepts a top-level array of
// genericJSONFile (the common shape) and degrades gracefully: a
// message with no usable line/path still becomes an issue so nothing
// is silently dropped, it just loses location precision.
type GenericJSON struct {
	Level    issue.Level
	Category issue.Category
}

// NewGenericJSON constructs a GenericJSON parser with the given
// per-plugin defaults for level/category.
func NewGenericJSON(level issue.Level, category issue.Category) GenericJSON {
	return GenericJSON{Level: level, Category: category}
}

func (g GenericJSON) Parse(pluginName string, output string) ([]issue.Issue, error) {
	var files []genericJSONFile
	if err := json.Unmarshal([]byte(output), &files); err != nil {
		return nil, fmt.Errorf("parser: generic json: %w", err)
	}

	var issues []issue.Issue
	for _, file := range files {
		path := firstNonEmpty(file.FilePath, file.File, file.Path)
		for _, group := range [][]genericJSONMessage{file.Messages, file.Issues, file.Diagnostics} {
			for _, m := range group {
				issues = append(issues, g.toIssue(pluginName, path, m))
			}
		}
	}

	return issues, nil
}

func (g GenericJSON) toIssue(pluginName, path string, m genericJSONMessage) issue.Issue {
	ruleKey := firstNonEmpty(m.RuleID, m.Rule, m.Code, m.Symbol)
	message := firstNonEmpty(m.Message, m.Text)

	startLine := uint32(1)
	if m.Line > 0 {
		startLine = uint32(m.Line)
	}
	startColumn := uint32(1)
	if m.Column > 0 {
		startColumn = uint32(m.Column)
	}
	endLine := startLine
	if m.EndLine > 0 {
		endLine = uint32(m.EndLine)
	}
	endColumn := startColumn
	if m.EndColumn > 0 {
		endColumn = uint32(m.EndColumn)
	}

	level := g.Level
	if sev := firstNonEmpty(m.Severity, m.Level); sev != "" {
		level = regexLevelFromString(sev, g.Level)
	}

	var loc *issue.Location
	if path != "" {
		loc = &issue.Location{
			Path: path,
			Range: &issue.Range{
				StartLine:   startLine,
				StartColumn: startColumn,
				EndLine:     endLine,
				EndColumn:   endColumn,
			},
		}
	}

	return issue.Issue{
		Tool:     pluginName,
		RuleKey:  ruleKey,
		Message:  message,
		Category: g.Category,
		Level:    level,
		Location: loc,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
