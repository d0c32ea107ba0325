package suppress

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// unknownLang is any string not present in the grammars table, forcing
// extractComments through the single-line regex fallback so these
// tests don't depend on tree-sitter grammar behavior.
const unknownLang = "unknown"

func TestIgnoreParserFullLineTrailingAndIgnoreNext(t *testing.T) {
	source := strings.Join([]string{
		"package main",
		"",
		"// qlty-ignore: no-rule",
		"func a() {}",
		"",
		"func b() { // qlty-ignore: trailing-rule",
		"\tx := 1",
		"\t_ = x",
		"}",
		"",
		"// qlty-ignore(>next-rule)",
		"func c() {}",
		"",
		"func d() {}",
	}, "\n")

	p := NewIgnoreParser(source, unknownLang)

	assert.True(t, p.IgnoredAt(4, "no-rule"), "func a() {} should be suppressed for no-rule")
	assert.True(t, p.IgnoredAt(6, "trailing-rule"), "func b()'s declaration line should be suppressed for trailing-rule")
	assert.True(t, p.IgnoredAt(12, "next-rule"), "func c() {} should be suppressed for next-rule")

	assert.False(t, p.IgnoredAt(14, "next-rule"), "func d() {} is unaffected")
	assert.False(t, p.IgnoredAt(7, "no-rule"), "body of func b is unaffected by no-rule")
	assert.False(t, p.IgnoredAt(4, "unrelated-rule"), "unrelated rules are never suppressed")
}

func TestIgnoreParserUntilMatchingIndentSpansNestedBlock(t *testing.T) {
	source := strings.Join([]string{
		"# qlty-ignore: rule",
		"if x:",
		"    nested_call()",
		"    another_nested()",
		"end_stmt()",
		"trailing_unaffected()",
	}, "\n")

	p := NewIgnoreParser(source, unknownLang)

	assert.True(t, p.IgnoredAt(2, "rule"))
	assert.True(t, p.IgnoredAt(3, "rule"))
	assert.True(t, p.IgnoredAt(4, "rule"))
	assert.True(t, p.IgnoredAt(5, "rule"), "the dedent line itself still gets one grace application")
	assert.False(t, p.IgnoredAt(6, "rule"), "the rule no longer applies once the block has fully closed")
}

func TestIgnoreParserBlankLinesDoNotResetState(t *testing.T) {
	source := strings.Join([]string{
		"# qlty-ignore: rule",
		"",
		"still_within_block()",
	}, "\n")

	p := NewIgnoreParser(source, unknownLang)
	assert.True(t, p.IgnoredAt(3, "rule"))
}

func TestCountIndent(t *testing.T) {
	assert.Equal(t, 0, countIndent("no indent"))
	assert.Equal(t, 2, countIndent("  two spaces"))
	assert.Equal(t, 1, countIndent("\ttab"))
}

func TestLinesOfDropsTrailingEmptyLine(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, linesOf("a\nb\n"))
	assert.Equal(t, []string{"a", "b"}, linesOf("a\nb"))
}
