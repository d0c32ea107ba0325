package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/qlty-sh/qlty/internal/qlty/issue"
)

type biomeOutput struct {
	Diagnostics []biomeDiagnostic `json:"diagnostics"`
}

type biomeDiagnostic struct {
	Category    string        `json:"category"`
	Severity    string        `json:"severity"`
	Description string        `json:"description"`
	Location    biomeLocation `json:"location"`
	Advices     *biomeAdvices `json:"advices"`
}

type biomeLocation struct {
	Path       biomePath `json:"path"`
	Span       []uint64  `json:"span"`
	SourceCode *string   `json:"sourceCode"`
}

type biomePath struct {
	File string `json:"file"`
}

type biomeAdvices struct {
	Advices []biomeAdvice `json:"advices"`
}

type biomeAdvice struct {
	Diff *biomeDiff `json:"diff"`
}

type biomeDiff struct {
	Dictionary string        `json:"dictionary"`
	Ops        []biomeDiffOp `json:"ops"`
}

type biomeDiffOp struct {
	DiffOp     *biomeDiffOpWrapper `json:"diffOp"`
	EqualLines *biomeEqualLines    `json:"equalLines"`
}

type biomeDiffOpWrapper struct {
	Equal  *biomeDiffRange `json:"equal"`
	Insert *biomeDiffRange `json:"insert"`
	Delete *biomeDiffRange `json:"delete"`
}

type biomeEqualLines struct {
	LineCount uint32 `json:"lineCount"`
}

type biomeDiffRange struct {
	Range []uint64 `json:"range"`
}

// Biome parses biome's JSON diagnostics, including its advices-based
// diff format for autofix suggestions.
type Biome struct{}

func (Biome) Parse(pluginName string, output string) ([]issue.Issue, error) {
	var doc biomeOutput
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		return nil, fmt.Errorf("parser: biome: %w", err)
	}

	var issues []issue.Issue
	for _, diag := range doc.Diagnostics {
		suggestions := biomeBuildSuggestions(diag)

		var rng *issue.Range
		if diag.Location.SourceCode != nil {
			source := *diag.Location.SourceCode
			var startLine, startColumn, endLine, endColumn uint32
			if len(diag.Location.Span) >= 2 {
				startLine, startColumn, endLine, endColumn = biomeCalculateLineAndColumn(source, diag.Location.Span[0], diag.Location.Span[1])
			}
			rng = &issue.Range{StartLine: startLine, StartColumn: startColumn, EndLine: endLine, EndColumn: endColumn}
		}

		issues = append(issues, issue.Issue{
			Tool:     pluginName,
			RuleKey:  diag.Category,
			Message:  diag.Description,
			Category: issue.CategoryLint,
			Level:    biomeSeverityToLevel(diag.Severity),
			Location: &issue.Location{
				Path:  diag.Location.Path.File,
				Range: rng,
			},
			Suggestions: suggestions,
		})
	}

	return issues, nil
}

func biomeBuildSuggestions(diag biomeDiagnostic) []issue.Suggestion {
	if diag.Advices == nil || diag.Location.SourceCode == nil {
		return nil
	}

	var out []issue.Suggestion
	for _, advice := range diag.Advices.Advices {
		replacements := biomeBuildReplacements(advice.Diff, *diag.Location.SourceCode)
		if len(replacements) == 0 {
			continue
		}
		out = append(out, issue.Suggestion{Source: issue.SuggestionSourceTool, Replacements: replacements})
	}
	return out
}

// biomeBuildReplacements replays a biome diff's ops in order,
// tracking the cumulative offset equalLines ops introduce (biome's
// diff operates on a "dictionary" string distinct from the source, so
// insert/delete offsets need translating back into source-code space
// before they can be turned into line/column locations).
func biomeBuildReplacements(diff *biomeDiff, sourceCode string) []issue.Replacement {
	if diff == nil {
		return nil
	}

	var cumulativeOffset uint64
	lines := strings.Split(sourceCode, "\n")
	lineIdx := 0
	var currentLine int
	var lastEndOffset uint64

	var out []issue.Replacement
	for _, op := range diff.Ops {
		switch {
		case op.EqualLines != nil:
			currentLine = biomeGetEndLineFromRange(sourceCode, lastEndOffset)
			cumulativeOffset += biomeCalculateEqualLinesOffset(lines, &lineIdx, op.EqualLines.LineCount, currentLine)
			currentLine += int(op.EqualLines.LineCount)

		case op.DiffOp != nil && op.DiffOp.Insert != nil:
			r := op.DiffOp.Insert.Range
			if len(r) == 2 {
				lastEndOffset = r[1] + cumulativeOffset
				if rep := biomeBuildInsertReplacement(diff.Dictionary, r, sourceCode, cumulativeOffset); rep != nil {
					out = append(out, *rep)
				}
			}

		case op.DiffOp != nil && op.DiffOp.Delete != nil:
			r := op.DiffOp.Delete.Range
			if len(r) == 2 {
				startOffset := r[0] + cumulativeOffset
				endOffset := r[1] + cumulativeOffset
				lastEndOffset = endOffset
				if rep := biomeBuildDeleteReplacement(sourceCode, startOffset, endOffset); rep != nil {
					out = append(out, *rep)
				}
			}

		case op.DiffOp != nil && op.DiffOp.Equal != nil:
			r := op.DiffOp.Equal.Range
			if len(r) == 2 {
				lastEndOffset = r[1] + cumulativeOffset
			}
		}
	}

	return out
}

func biomeCalculateEqualLinesOffset(lines []string, lineIdx *int, lineCount uint32, currentLine int) uint64 {
	var offset uint64
	for *lineIdx < len(lines) {
		idx := *lineIdx
		if idx >= currentLine && idx < currentLine+int(lineCount) {
			offset += uint64(len(lines[idx])) + 1
		} else if idx >= currentLine+int(lineCount) {
			break
		}
		*lineIdx++
	}
	return offset + 1
}

func biomeGetEndLineFromRange(sourceCode string, endOffset uint64) int {
	var currentOffset uint64
	lines := strings.Split(sourceCode, "\n")
	for idx, line := range lines {
		lineLength := uint64(len([]rune(line))) + 1
		if currentOffset > endOffset {
			return idx
		}
		currentOffset += lineLength
	}
	return len(lines)
}

func biomeBuildInsertReplacement(dictionary string, r []uint64, sourceCode string, cumulativeOffset uint64) *issue.Replacement {
	start, end := r[0], r[1]
	if int(end) > len(dictionary) || int(start) > int(end) {
		return nil
	}
	data := dictionary[start:end]

	startLine, startColumn, _, _ := biomeCalculateLineAndColumn(sourceCode, start+cumulativeOffset, end+cumulativeOffset)

	return &issue.Replacement{
		Data: data,
		Location: &issue.Location{
			Path: "",
			Range: &issue.Range{
				StartLine:   startLine,
				StartColumn: startColumn,
				EndLine:     startLine,
				EndColumn:   startColumn,
			},
		},
	}
}

func biomeBuildDeleteReplacement(sourceCode string, startOffset, endOffset uint64) *issue.Replacement {
	startLine, startColumn, endLine, endColumn := biomeCalculateLineAndColumn(sourceCode, startOffset, endOffset)
	return &issue.Replacement{
		Data: "",
		Location: &issue.Location{
			Path: "",
			Range: &issue.Range{
				StartLine:   startLine,
				StartColumn: startColumn,
				EndLine:     endLine,
				EndColumn:   endColumn,
			},
		},
	}
}

// biomeCalculateLineAndColumn walks source line by line, converting
// byte offsets into 1-based line/column pairs for both ends of a
// span in one pass.
func biomeCalculateLineAndColumn(sourceCode string, startOffset, endOffset uint64) (startLine, startColumn, endLine, endColumn uint32) {
	var currentOffset uint64
	var haveStart, haveEnd bool

	lines := strings.Split(sourceCode, "\n")
	for idx, line := range lines {
		lineLength := uint64(len(line)) + 1

		if !haveStart && currentOffset <= startOffset && startOffset < currentOffset+lineLength {
			startLine = uint32(idx) + 1
			startColumn = uint32(startOffset-currentOffset) + 1
			haveStart = true
		}

		if !haveEnd && currentOffset <= endOffset && endOffset < currentOffset+lineLength {
			endLine = uint32(idx) + 1
			endColumn = uint32(endOffset-currentOffset) + 1
			haveEnd = true
		}

		currentOffset += lineLength

		if haveStart && haveEnd {
			break
		}
	}

	return startLine, startColumn, endLine, endColumn
}

func biomeSeverityToLevel(severity string) issue.Level {
	switch severity {
	case "error":
		return issue.LevelHigh
	default:
		return issue.LevelMedium
	}
}
