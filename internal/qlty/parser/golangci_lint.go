package parser

import (
	"encoding/json"
	"fmt"

	"github.com/qlty-sh/qlty/internal/qlty/issue"
)

// golangciLintOutput is golangci-lint's `--out-format json` shape.
type golangciLintOutput struct {
	Issues []golangciLintIssue `json:"Issues"`
}

type golangciLintIssue struct {
	FromLinter  string              `json:"FromLinter"`
	Text        string              `json:"Text"`
	Severity    string              `json:"Severity"`
	Replacement *golangciReplacement `json:"Replacement"`
	Pos         golangciPosition    `json:"Pos"`
}

type golangciReplacement struct {
	NeedOnlyDelete bool     `json:"NeedOnlyDelete"`
	NewLines       []string `json:"NewLines"`
}

type golangciPosition struct {
	Filename string `json:"Filename"`
	Line     int    `json:"Line"`
	Column   int    `json:"Column"`
}

// GolangciLint parses golangci-lint's JSON report.
type GolangciLint struct{}

func (GolangciLint) Parse(pluginName string, output string) ([]issue.Issue, error) {
	var doc golangciLintOutput
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		return nil, fmt.Errorf("parser: golangci_lint: %w", err)
	}

	var issues []issue.Issue
	for _, i := range doc.Issues {
		level := issue.LevelMedium
		switch i.Severity {
		case "error":
			level = issue.LevelHigh
		case "warning", "":
			level = issue.LevelMedium
		}

		var suggestions []issue.Suggestion
		if i.Replacement != nil && len(i.Replacement.NewLines) > 0 {
			data := ""
			for idx, l := range i.Replacement.NewLines {
				if idx > 0 {
					data += "\n"
				}
				data += l
			}
			suggestions = []issue.Suggestion{{
				Source: issue.SuggestionSourceTool,
				Replacements: []issue.Replacement{{
					Data: data,
					Location: &issue.Location{
						Path: i.Pos.Filename,
						Range: &issue.Range{
							StartLine:   uint32(i.Pos.Line),
							StartColumn: uint32(i.Pos.Column),
							EndLine:     uint32(i.Pos.Line),
							EndColumn:   uint32(i.Pos.Column),
						},
					},
				}},
			}}
		}

		issues = append(issues, issue.Issue{
			Tool:     pluginName,
			RuleKey:  i.FromLinter,
			Message:  i.Text,
			Category: issue.CategoryLint,
			Level:    level,
			Location: &issue.Location{
				Path: i.Pos.Filename,
				Range: &issue.Range{
					StartLine:   uint32(i.Pos.Line),
					StartColumn: uint32(i.Pos.Column),
					EndLine:     uint32(i.Pos.Line),
					EndColumn:   uint32(i.Pos.Column),
				},
			},
			Suggestions: suggestions,
		})
	}

	return issues, nil
}
