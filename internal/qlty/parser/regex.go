package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/qlty-sh/qlty/internal/qlty/issue"
)

// Regex parses line-oriented tool output using a driver-supplied
// pattern with named capture groups. Supported group names: path,
// line, column, end_line, end_column, level, code, message. Only
// "path" is required; an empty or missing message falls back to the
// whole matched line, and everything else defaults when the pattern
// omits it. This is the fallback for tools
// whose output has no structured (JSON/SARIF) format at all —
// hadolint, shellcheck, actionlint, and similar all run their driver
// with output_format: regex and a pattern tuned to their own text.
type Regex struct {
	pattern  *regexp.Regexp
	level    issue.Level
	category issue.Category
}

// NewRegex compiles pattern once so Parse can run it per output line
// without recompiling.
func NewRegex(pattern string, level issue.Level, category issue.Category) (Regex, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Regex{}, fmt.Errorf("parser: compiling output_regex: %w", err)
	}
	return Regex{pattern: re, level: level, category: category}, nil
}

func (r Regex) Parse(pluginName string, output string) ([]issue.Issue, error) {
	names := r.pattern.SubexpNames()

	var issues []issue.Issue
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		match := r.pattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		fields := make(map[string]string, len(names))
		for i, name := range names {
			if name == "" || i >= len(match) {
				continue
			}
			fields[name] = match[i]
		}

		path, ok := fields["path"]
		if !ok || path == "" {
			continue
		}

		startLine := regexParseUint(fields["line"], 1)
		startColumn := regexParseUint(fields["column"], 1)
		endLine := startLine
		if v, ok := fields["end_line"]; ok {
			endLine = regexParseUint(v, startLine)
		}
		endColumn := startColumn
		if v, ok := fields["end_column"]; ok {
			endColumn = regexParseUint(v, startColumn)
		}

		level := r.level
		if l, ok := fields["level"]; ok {
			level = regexLevelFromString(l, r.level)
		}

		message := fields["message"]
		if message == "" {
			message = line
		}

		issues = append(issues, issue.Issue{
			Tool:     pluginName,
			RuleKey:  fields["code"],
			Message:  message,
			Category: r.category,
			Level:    level,
			Location: &issue.Location{
				Path: path,
				Range: &issue.Range{
					StartLine:   startLine,
					StartColumn: startColumn,
					EndLine:     endLine,
					EndColumn:   endColumn,
				},
			},
		})
	}

	return issues, nil
}

func regexParseUint(s string, def uint32) uint32 {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return uint32(n)
}

func regexLevelFromString(s string, def issue.Level) issue.Level {
	switch strings.ToLower(s) {
	case "error", "high", "fatal":
		return issue.LevelHigh
	case "warning", "warn", "medium":
		return issue.LevelMedium
	case "info", "note", "low":
		return issue.LevelLow
	default:
		return def
	}
}
