package suppress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractIgnoredRulesParenForm(t *testing.T) {
	specs := extractIgnoredRules("# qlty-ignore(+rule-a, -rule-b)")
	assert.Equal(t, []RuleSpecifier{
		{Kind: Enable, Rule: "rule-a"},
		{Kind: Disable, Rule: "rule-b"},
	}, specs)
}

func TestExtractIgnoredRulesColonForm(t *testing.T) {
	specs := extractIgnoredRules("// qlty-ignore: rule-one")
	assert.Equal(t, []RuleSpecifier{{Kind: IgnoreUntilMatchingIndent, Rule: "rule-one"}}, specs)
}

func TestExtractIgnoredRulesSpaceForm(t *testing.T) {
	specs := extractIgnoredRules("# qlty-ignore rule-one")
	assert.Equal(t, []RuleSpecifier{{Kind: IgnoreUntilMatchingIndent, Rule: "rule-one"}}, specs)
}

func TestExtractIgnoredRulesBlockCommentForm(t *testing.T) {
	specs := extractIgnoredRules("/* qlty-ignore: >next-rule */")
	assert.Equal(t, []RuleSpecifier{{Kind: IgnoreNext, Rule: "next-rule"}}, specs)
}

func TestExtractIgnoredRulesRejectsNonMatchingPrefix(t *testing.T) {
	assert.Nil(t, extractIgnoredRules("// not-qlty-ignore: rule"))
}

func TestExtractIgnoredRulesRejectsPlainComment(t *testing.T) {
	assert.Nil(t, extractIgnoredRules("// just a comment"))
}

func TestExtractRule(t *testing.T) {
	assert.Equal(t, RuleSpecifier{Kind: Enable, Rule: "foo"}, extractRule("+foo"))
	assert.Equal(t, RuleSpecifier{Kind: Disable, Rule: "foo"}, extractRule("-foo"))
	assert.Equal(t, RuleSpecifier{Kind: IgnoreNext, Rule: "foo"}, extractRule(">foo"))
	assert.Equal(t, RuleSpecifier{Kind: IgnoreUntilMatchingIndent, Rule: "foo"}, extractRule("foo"))
}
