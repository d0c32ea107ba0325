package parser

import (
	"encoding/json"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/qlty-sh/qlty/internal/qlty/issue"
)

type clippyMessageLine struct {
	Message      *clippyMessage `json:"message"`
	Success      *bool          `json:"success"`
	ManifestPath *string        `json:"manifest_path"`
	PackageID    *string        `json:"package_id"`

	packageName string
	pathPrefix  string
}

type clippyMessage struct {
	Rendered *string         `json:"rendered"`
	Code     *clippyCode     `json:"code"`
	Spans    []clippySpan    `json:"spans"`
	Level    string          `json:"level"`
	Message  string          `json:"message"`
	Children []clippyMessage `json:"children"`
}

type clippyCode struct {
	Code string `json:"code"`
}

type clippySpan struct {
	ByteStart               uint32  `json:"byte_start"`
	ByteEnd                 uint32  `json:"byte_end"`
	ColumnEnd               uint32  `json:"column_end"`
	ColumnStart             uint32  `json:"column_start"`
	LineEnd                 uint32  `json:"line_end"`
	LineStart               uint32  `json:"line_start"`
	FileName                string  `json:"file_name"`
	SuggestedReplacement    *string `json:"suggested_replacement"`
	SuggestionApplicability *string `json:"suggestion_applicability"`
}

func (c *clippyMessageLine) initialize() {
	if c.PackageID != nil {
		fields := strings.Fields(*c.PackageID)
		if len(fields) > 0 {
			last := strings.NewReplacer("(", "", ")", "").Replace(fields[len(fields)-1])
			if u, err := url.Parse(last); err == nil {
				segments := strings.Split(strings.Trim(u.Path, "/"), "/")
				if len(segments) > 0 {
					c.packageName = segments[len(segments)-1]
				}
			}
		}
	}

	if c.ManifestPath != nil {
		if filepath.Base(*c.ManifestPath) == "Cargo.toml" {
			c.pathPrefix = filepath.Dir(*c.ManifestPath)
		} else {
			c.pathPrefix = *c.ManifestPath
		}
	}
}

func (c *clippyMessageLine) resolvePath(fileName string) string {
	p := fileName
	if c.packageName != "" {
		first, rest, found := strings.Cut(p, string(filepath.Separator))
		if first == c.packageName && found {
			p = rest
		} else if p == c.packageName {
			p = ""
		}
	}
	return filepath.Clean(filepath.Join(c.pathPrefix, p))
}

// Clippy parses cargo-clippy's one-JSON-object-per-line message
// stream, keeping only "compiler-message" lines that carry a code and
// manifest path, plus one build_failure issue for a build-finished
// line reporting success false; everything else (artifacts, successful
// build-finished markers, warnings with no code) is skipped.
type Clippy struct{}

func (Clippy) Parse(pluginName string, output string) ([]issue.Issue, error) {
	var issues []issue.Issue

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var ci clippyMessageLine
		if err := json.Unmarshal([]byte(line), &ci); err != nil {
			continue
		}
		ci.initialize()

		if ci.Success != nil && !*ci.Success {
			issues = append(issues, issue.Issue{
				Tool:    "clippy",
				RuleKey: "build_failure",
				Message: "Clippy failed to run because Rust could not compile.",
				Level:   issue.LevelHigh,
			})
		}

		if ci.Message == nil || ci.Message.Code == nil || ci.ManifestPath == nil {
			continue
		}
		if len(ci.Message.Spans) == 0 {
			continue
		}

		msg := ci.Message
		span := msg.Spans[0]
		startByte := span.ByteStart
		endByte := span.ByteEnd

		rendered := ""
		if msg.Rendered != nil {
			rendered = *msg.Rendered
		}

		issues = append(issues, issue.Issue{
			Tool:             "clippy",
			Message:          msg.Message,
			Category:         issue.CategoryLint,
			Level:            issue.LevelMedium,
			RuleKey:          strings.TrimPrefix(msg.Code.Code, "clippy::"),
			DocumentationURL: clippyExtractURL(rendered),
			Suggestions:      clippyBuildSuggestion(msg, &ci),
			Location: &issue.Location{
				Path: ci.resolvePath(span.FileName),
				Range: &issue.Range{
					StartLine:   span.LineStart,
					StartColumn: span.ColumnStart,
					EndLine:     span.LineEnd,
					EndColumn:   span.ColumnEnd,
					StartByte:   &startByte,
					EndByte:     &endByte,
				},
			},
		})
	}

	return issues, nil
}

var clippyURLRegex = regexp.MustCompile(`https?://\S+`)

func clippyExtractURL(s string) string {
	return clippyURLRegex.FindString(s)
}

func clippyBuildSuggestion(msg *clippyMessage, ci *clippyMessageLine) []issue.Suggestion {
	var replacements []issue.Replacement
	for _, child := range msg.Children {
		if child.Level != "help" {
			continue
		}
		replacements = append(replacements, clippyCollectReplacements(child, ci)...)
	}

	if len(replacements) == 0 {
		return nil
	}
	return []issue.Suggestion{{Source: issue.SuggestionSourceTool, Replacements: replacements}}
}

func clippyCollectReplacements(msg clippyMessage, ci *clippyMessageLine) []issue.Replacement {
	var out []issue.Replacement
	for _, span := range msg.Spans {
		if span.SuggestedReplacement == nil {
			continue
		}
		if span.SuggestionApplicability == nil || *span.SuggestionApplicability != "MachineApplicable" {
			continue
		}
		out = append(out, issue.Replacement{
			Data: *span.SuggestedReplacement,
			Location: &issue.Location{
				Path:  ci.resolvePath(span.FileName),
				Range: clippyReplacementRange(span),
			},
		})
	}
	return out
}

// clippyReplacementRange computes the replacement's own end
// line/column from how many lines the replacement text itself spans,
// matching calculate_replacement_range/offset_to_location.
func clippyReplacementRange(span clippySpan) *issue.Range {
	replacement := *span.SuggestedReplacement
	repEndLine, repEndColumn := offsetToLineColumn(replacement, len(replacement))

	endLine := span.LineStart + uint32(repEndLine) - 1
	var endColumn uint32
	if repEndLine == 1 {
		endColumn = span.ColumnStart + uint32(repEndColumn) - 1
	} else {
		endColumn = uint32(repEndColumn)
	}

	startByte := span.ByteStart
	endByte := span.ByteEnd
	return &issue.Range{
		StartLine:   span.LineStart,
		EndLine:     endLine,
		StartColumn: span.ColumnStart,
		EndColumn:   endColumn,
		StartByte:   &startByte,
		EndByte:     &endByte,
	}
}

// offsetToLineColumn returns the 1-based (line, column) that offset
// (a byte index into s) lands on, counting a trailing offset at the
// very end of the final line as one past its last character.
func offsetToLineColumn(s string, offset int) (int, int) {
	if offset > len(s) {
		offset = len(s)
	}
	line := 1
	lastNewline := -1
	for i := 0; i < offset; i++ {
		if s[i] == '\n' {
			line++
			lastNewline = i
		}
	}
	column := offset - lastNewline
	return line, column
}
