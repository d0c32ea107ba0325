package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/qlty-sh/qlty/internal/qlty/issue"
)

const (
	defaultESLintURLFormat       = "https://eslint.org/docs/rules/${rule}"
	reactHooksURL                = "https://react.dev/reference/rules/rules-of-hooks"
	reactURLFormat               = "https://github.com/jsx-eslint/eslint-plugin-react/blob/master/docs/rules/${rule}.md"
	importURLFormat              = "https://github.com/import-js/eslint-plugin-import/blob/main/docs/rules/${rule}.md"
	jsxA11yURLFormat             = "https://github.com/jsx-eslint/eslint-plugin-jsx-a11y/blob/main/docs/rules/${rule}.md"
	testingLibraryURLFormat      = "https://github.com/testing-library/eslint-plugin-testing-library/tree/main/docs/rules/${rule}.md"
	typescriptESLintURLFormat    = "https://typescript-eslint.io/rules/${rule}"
)

type eslintFile struct {
	FilePath string          `json:"filePath"`
	Messages []eslintMessage `json:"messages"`
	Source   *string         `json:"source"`
}

type eslintMessage struct {
	RuleID      *string            `json:"ruleId"`
	Fatal       *bool              `json:"fatal"`
	Severity    int                `json:"severity"`
	Message     string             `json:"message"`
	Line        *int               `json:"line"`
	Column      *int               `json:"column"`
	EndLine     *int               `json:"endLine"`
	EndColumn   *int               `json:"endColumn"`
	Suggestions []eslintSuggestion `json:"suggestions"`
	Fix         *eslintFix         `json:"fix"`
}

type eslintSuggestion struct {
	MessageID string    `json:"messageId"`
	Desc      string    `json:"desc"`
	Fix       eslintFix `json:"fix"`
}

type eslintFix struct {
	Range []int  `json:"range"`
	Text  string `json:"text"`
}

// Eslint parses ESLint's `--format json` array-of-files output.
type Eslint struct{}

func (Eslint) Parse(pluginName string, output string) ([]issue.Issue, error) {
	var files []eslintFile
	if err := json.Unmarshal([]byte(output), &files); err != nil {
		return nil, fmt.Errorf("parser: eslint: %w", err)
	}

	var issues []issue.Issue
	for _, file := range files {
		for _, message := range file.Messages {
			line := 1
			if message.Line != nil {
				line = *message.Line
			}
			column := 1
			if message.Column != nil {
				column = *message.Column
			}
			ruleKey := ""
			if message.RuleID != nil {
				ruleKey = *message.RuleID
			}

			startLine := uint32(line)
			startColumn := uint32(column)
			endLine := startLine
			if message.EndLine != nil {
				endLine = uint32(*message.EndLine)
			}
			endColumn := startColumn
			if message.EndColumn != nil {
				endColumn = uint32(*message.EndColumn)
			}

			suggestions := eslintBuildSuggestions(message, file, startLine, startColumn, endLine, endColumn)

			issues = append(issues, issue.Issue{
				Tool:             "eslint",
				Message:          message.Message,
				Category:         eslintCategory(ruleKey),
				Level:            eslintSeverityToLevel(message.Fatal, message.Severity),
				DocumentationURL: eslintDocumentationURL(ruleKey),
				RuleKey:          ruleKey,
				Location: &issue.Location{
					Path: file.FilePath,
					Range: &issue.Range{
						StartLine:   startLine,
						StartColumn: startColumn,
						EndLine:     endLine,
						EndColumn:   endColumn,
					},
				},
				Suggestions: suggestions,
			})
		}
	}

	return issues, nil
}

func eslintBuildSuggestions(message eslintMessage, file eslintFile, startLine, startColumn, endLine, endColumn uint32) []issue.Suggestion {
	if message.Fix != nil {
		startByte, endByte := eslintTranslateRange(message.Fix.Range, file)
		return []issue.Suggestion{{
			Source: issue.SuggestionSourceTool,
			Replacements: []issue.Replacement{{
				Data: message.Fix.Text,
				Location: &issue.Location{
					Path: file.FilePath,
					Range: &issue.Range{
						StartByte:   &startByte,
						EndByte:     &endByte,
						StartLine:   startLine,
						StartColumn: startColumn,
						EndLine:     endLine,
						EndColumn:   endColumn,
					},
				},
			}},
		}}
	}

	var out []issue.Suggestion
	for _, s := range message.Suggestions {
		startByte, endByte := eslintTranslateRange(s.Fix.Range, file)
		out = append(out, issue.Suggestion{
			Source: issue.SuggestionSourceTool,
			Replacements: []issue.Replacement{{
				Data: s.Fix.Text,
				Location: &issue.Location{
					Path: file.FilePath,
					Range: &issue.Range{
						StartByte:   &startByte,
						EndByte:     &endByte,
						StartLine:   startLine,
						StartColumn: startColumn,
						EndLine:     endLine,
						EndColumn:   endColumn,
					},
				},
			}},
		})
	}
	return out
}

// eslintTranslateRange converts ESLint's character-offset fix ranges
// to byte offsets when source is available, since qlty.analysis.v1
// ranges are always byte-anchored.
func eslintTranslateRange(r []int, file eslintFile) (uint32, uint32) {
	if len(r) < 2 {
		return 0, 0
	}
	start, end := r[0], r[1]
	if file.Source == nil {
		return uint32(start), uint32(end)
	}

	source := *file.Source
	return uint32(runeIndexToByteOffset(source, start)), uint32(runeIndexToByteOffset(source, end))
}

func runeIndexToByteOffset(s string, runeIdx int) int {
	i := 0
	for byteOffset := range s {
		if i == runeIdx {
			return byteOffset
		}
		i++
	}
	return len(s)
}

func eslintCategory(ruleKey string) issue.Category {
	if strings.Contains(ruleKey, "a11y") {
		return issue.CategoryAccessibility
	}
	return issue.CategoryLint
}

func eslintDocumentationURL(ruleKey string) string {
	parts := strings.SplitN(ruleKey, "/", 2)
	if len(parts) == 1 {
		return strings.ReplaceAll(defaultESLintURLFormat, "${rule}", ruleKey)
	}

	pkg, rule := parts[0], parts[1]
	format, ok := eslintPackageURLFormat(pkg)
	if !ok {
		return ""
	}
	return strings.ReplaceAll(format, "${rule}", rule)
}

func eslintPackageURLFormat(pkg string) (string, bool) {
	switch pkg {
	case "@typescript-eslint":
		return typescriptESLintURLFormat, true
	case "import":
		return importURLFormat, true
	case "jsx-a11y":
		return jsxA11yURLFormat, true
	case "react-hooks":
		return reactHooksURL, true
	case "react":
		return reactURLFormat, true
	case "testing-library":
		return testingLibraryURLFormat, true
	default:
		return "", false
	}
}

func eslintSeverityToLevel(fatal *bool, severity int) issue.Level {
	if fatal != nil && *fatal {
		return issue.LevelHigh
	}
	switch severity {
	case 1:
		return issue.LevelLow
	default:
		return issue.LevelMedium
	}
}
