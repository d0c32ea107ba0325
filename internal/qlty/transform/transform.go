// Package transform assembles the ordered chain of execute.Transformer
// stages applied to every parsed issue: CLI filtering, source-snippet
// extraction, in-source suppression, patch synthesis, and (a stub for)
// AI-based suggestions.
package transform

import (
	"strings"

	"github.com/qlty-sh/qlty/internal/qlty/issue"
	"github.com/qlty-sh/qlty/internal/qlty/patch"
	"github.com/qlty-sh/qlty/internal/qlty/suppress"
	"github.com/qlty-sh/qlty/pkg/stringutil"
)

// Transformer mirrors execute.Transformer's signature. Declared
// locally, not imported, so neither this package nor execute imports
// the other; internal/qlty/engine converts between the two.
type Transformer interface {
	Transform(iss issue.Issue) (out issue.Issue, ok bool)
}

// Chain is the full ordered pipeline named in spec §4.3/§4.6/§4.8:
// CLI filters, source extraction, suppression, patch synthesis,
// optional AI suggestions.
func Chain(filters []string, reader suppress.SourceReader) []Transformer {
	return []Transformer{
		NewCheckFilters(filters),
		NewSourceExtractor(reader),
		suppress.NewIssueMuter(reader),
		patch.NewBuilder(reader),
		NoOpAISuggester{},
	}
}

// CheckFilters drops any issue whose tool isn't named by the run's CLI
// filters. An empty filter list means "no filtering" (every issue
// passes). A filter may also scope to one rule via "tool/rule" or
// "tool:rule", the same two-separator convention
// suppress.ruleKeyIsIgnored uses for qlty-ignore directives.
type CheckFilters struct {
	filters []string
}

// NewCheckFilters builds a CheckFilters for the given CLI filter list.
func NewCheckFilters(filters []string) *CheckFilters {
	return &CheckFilters{filters: filters}
}

// Transform passes iss through unchanged if it matches a filter (or no
// filters were given), otherwise drops it.
func (c *CheckFilters) Transform(iss issue.Issue) (issue.Issue, bool) {
	if len(c.filters) == 0 {
		return iss, true
	}
	for _, f := range c.filters {
		tool, rule, scoped := stringutil.SplitToolRule(f)
		if tool != iss.Tool {
			continue
		}
		if !scoped || stringutil.NormalizeRuleKey(rule) == stringutil.NormalizeRuleKey(iss.RuleKey) {
			return iss, true
		}
	}
	return iss, false
}

// SourceExtractor fills Snippet (the issue's exact line range) and
// SnippetWithContext (the same range padded with a few surrounding
// lines) by reading the file named in the issue's location. It never
// drops an issue; a file that can't be read just leaves both fields
// blank.
type SourceExtractor struct {
	Reader       suppress.SourceReader
	ContextLines int
}

// DefaultContextLines is how many lines of surrounding code
// SnippetWithContext pads the exact range with on each side.
const DefaultContextLines = 2

// MaxSnippetLength caps a rendered snippet's length; a minified or
// single-line-generated source file can otherwise turn one issue's
// snippet into megabytes of text.
const MaxSnippetLength = 2000

// NewSourceExtractor builds a SourceExtractor reading through reader.
func NewSourceExtractor(reader suppress.SourceReader) *SourceExtractor {
	return &SourceExtractor{Reader: reader, ContextLines: DefaultContextLines}
}

// Transform reads iss's file and slices out its snippet and
// snippet-with-context.
func (s *SourceExtractor) Transform(iss issue.Issue) (issue.Issue, bool) {
	if iss.Location == nil || iss.Location.Path == "" || iss.Location.Range == nil {
		return iss, true
	}

	source, err := s.Reader.Read(iss.Location.Path)
	if err != nil {
		return iss, true
	}

	lines := splitLines(source)
	r := iss.Location.Range

	start := int(r.StartLine)
	end := int(r.EndLine)
	if end < start {
		end = start
	}

	out := iss.Clone()
	out.Snippet = stringutil.Truncate(joinLineRange(lines, start, end), MaxSnippetLength)
	out.SnippetWithContext = stringutil.Truncate(joinLineRange(lines, start-s.ContextLines, end+s.ContextLines), MaxSnippetLength)
	return out, true
}

// splitLines splits source into 1-indexable lines (index 0 unused),
// dropping the spurious trailing empty element strings.Split leaves
// when source ends with a newline.
func splitLines(source string) []string {
	lines := strings.Split(source, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return append([]string{""}, lines...)
}

// joinLineRange joins lines[start..end] (1-indexed, inclusive,
// clamped to the file's bounds) with newlines; an out-of-range
// request yields "".
func joinLineRange(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines)-1 {
		end = len(lines) - 1
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start:end+1], "\n")
}

// NoOpAISuggester is the placeholder for the AI-suggestion stage spec
// §1's non-goals explicitly exclude the internals of: it passes every
// issue through untouched. A real implementation would sit here
// without changing anything else in the chain.
type NoOpAISuggester struct{}

// Transform always passes iss through unchanged.
func (NoOpAISuggester) Transform(iss issue.Issue) (issue.Issue, bool) {
	return iss, true
}
