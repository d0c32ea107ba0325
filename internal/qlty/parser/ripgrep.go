package parser

import (
	"encoding/json"
	"strings"

	"github.com/qlty-sh/qlty/internal/qlty/issue"
)

// ripgrepMessage is one line of `rg --json` output. Only "match"
// messages carry a finding; "begin"/"end"/"summary" lines are
// skipped. qlty uses ripgrep as the driver behind its secret/pattern
// based plugins (the rule itself lives in the plugin's own config,
// not in ripgrep's output), so every match becomes a CategorySecret
// issue keyed by the matched text.
type ripgrepMessage struct {
	Type string          `json:"type"`
	Data ripgrepMatchData `json:"data"`
}

type ripgrepMatchData struct {
	Path       ripgrepText   `json:"path"`
	Lines      ripgrepText   `json:"lines"`
	LineNumber uint32        `json:"line_number"`
	Submatches []ripgrepSubmatch `json:"submatches"`
}

type ripgrepText struct {
	Text string `json:"text"`
}

type ripgrepSubmatch struct {
	Match ripgrepText `json:"match"`
	Start uint32      `json:"start"`
	End   uint32      `json:"end"`
}

// Ripgrep parses one JSON object per line, as emitted by `rg --json`.
type Ripgrep struct{}

func (Ripgrep) Parse(pluginName string, output string) ([]issue.Issue, error) {
	var issues []issue.Issue

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var msg ripgrepMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			continue
		}
		if msg.Type != "match" {
			continue
		}

		message := strings.TrimRight(msg.Data.Lines.Text, "\n")

		for _, sm := range msg.Data.Submatches {
			issues = append(issues, issue.Issue{
				Tool:     pluginName,
				RuleKey:  sm.Match.Text,
				Message:  message,
				Category: issue.CategorySecret,
				Level:    issue.LevelHigh,
				Location: &issue.Location{
					Path: msg.Data.Path.Text,
					Range: &issue.Range{
						StartLine:   msg.Data.LineNumber,
						StartColumn: sm.Start + 1,
						EndLine:     msg.Data.LineNumber,
						EndColumn:   sm.End + 1,
					},
				},
			})
		}
	}

	return issues, nil
}
