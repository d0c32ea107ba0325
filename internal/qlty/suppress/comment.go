package suppress

import (
	"context"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Comment is one source comment, already classified as full-line or
// trailing, with whatever qlty-ignore directives it carries.
type Comment struct {
	// StartLine is the 0-indexed row the comment begins on.
	StartLine int
	// Lines is how many source lines the comment spans.
	Lines int
	// IsFullLine is true when the comment is the only thing on every
	// line it occupies (as opposed to trailing code on its first
	// line).
	IsFullLine bool
	Rules      []RuleSpecifier
}

type grammar struct {
	language     *sitter.Language
	commentTypes []string
}

// grammars covers the languages most qlty plugins target. A language
// with no wired grammar falls back to extractCommentsFromUnknownLanguage,
// the same regex-based path the original parser uses for a language it
// doesn't recognize at all.
var grammars = map[string]grammar{
	"go":         {golang.GetLanguage(), []string{"comment"}},
	"javascript": {javascript.GetLanguage(), []string{"comment"}},
	"typescript": {typescript.GetLanguage(), []string{"comment"}},
	"python":     {python.GetLanguage(), []string{"comment"}},
	"ruby":       {ruby.GetLanguage(), []string{"comment"}},
	"rust":       {rust.GetLanguage(), []string{"line_comment", "block_comment"}},
}

// extractComments finds every comment in source and parses out its
// qlty-ignore directives, keyed by the 0-indexed line it starts on.
func extractComments(source, language string) map[int]Comment {
	g, ok := grammars[strings.ToLower(language)]
	if !ok {
		return extractCommentsFromUnknownLanguage(source)
	}
	return extractCommentsTreeSitter(source, g)
}

func extractCommentsTreeSitter(source string, g grammar) map[int]Comment {
	comments := make(map[int]Comment)

	parser := sitter.NewParser()
	parser.SetLanguage(g.language)

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(source))
	if err != nil || tree == nil {
		return extractCommentsFromUnknownLanguage(source)
	}

	pattern := "[" + joinParens(g.commentTypes) + "]"
	query, err := sitter.NewQuery([]byte(pattern), g.language)
	if err != nil {
		return extractCommentsFromUnknownLanguage(source)
	}

	cursor := sitter.NewQueryCursor()
	cursor.Exec(query, tree.RootNode())

	srcBytes := []byte(source)
	lines := linesOf(source)

	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		for _, capture := range match.Captures {
			node := capture.Node
			text := node.Content(srcBytes)
			startRow := int(node.StartPoint().Row)
			endRow := int(node.EndPoint().Row)
			comments[startRow] = buildComment(text, startRow, endRow, lines)
		}
	}

	return comments
}

var commentMarkers = []string{"//", "#", "/*"}

// extractCommentsFromUnknownLanguage is a single-line heuristic for
// languages with no wired tree-sitter grammar: it finds the earliest
// "//", "#", or "/*" marker on each line and treats everything from
// there to end of line as a comment, full-line when nothing but
// whitespace precedes the marker.
func extractCommentsFromUnknownLanguage(source string) map[int]Comment {
	comments := make(map[int]Comment)
	for i, line := range linesOf(source) {
		idx := findCommentMarker(line)
		if idx < 0 {
			continue
		}
		text := line[idx:]
		comments[i] = Comment{
			StartLine:  i,
			Lines:      1,
			IsFullLine: strings.TrimSpace(line[:idx]) == "",
			Rules:      extractIgnoredRules(text),
		}
	}
	return comments
}

func findCommentMarker(line string) int {
	best := -1
	for _, marker := range commentMarkers {
		if idx := strings.Index(line, marker); idx >= 0 && (best < 0 || idx < best) {
			best = idx
		}
	}
	return best
}

func buildComment(text string, startRow, endRow int, sourceLines []string) Comment {
	commentLines := strings.Split(text, "\n")
	isFullLine := false
	for i, cl := range commentLines {
		row := startRow + i
		if row >= len(sourceLines) {
			continue
		}
		if strings.TrimSpace(cl) == strings.TrimSpace(sourceLines[row]) {
			isFullLine = true
			break
		}
	}

	return Comment{
		StartLine:  startRow,
		Lines:      endRow - startRow + 1,
		IsFullLine: isFullLine,
		Rules:      extractIgnoredRules(text),
	}
}

func joinParens(types []string) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = "(" + t + ")"
	}
	return strings.Join(parts, " ")
}

// linesOf splits source the way Rust's str::lines() does: no trailing
// empty element when source ends with a line terminator.
func linesOf(source string) []string {
	lines := strings.Split(source, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func countIndent(line string) int {
	n := 0
	for _, r := range line {
		if !unicode.IsSpace(r) {
			break
		}
		n++
	}
	return n
}
