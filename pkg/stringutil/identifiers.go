package stringutil

import "strings"

// SplitToolRule splits a "tool/rule_key" or "tool:rule_key" specifier
// into its two parts, the two forms accepted by qlty-ignore
// directives and by EnabledPlugin driver references. ok is false when
// the specifier carries no separator, meaning it names a tool as a
// whole rather than one of its rules.
//
// Examples:
//
//	SplitToolRule("clippy/needless_if")  // "clippy", "needless_if", true
//	SplitToolRule("eslint:no-unused")    // "eslint", "no-unused", true
//	SplitToolRule("clippy")              // "clippy", "", false
func SplitToolRule(specifier string) (tool, rule string, ok bool) {
	if idx := strings.IndexByte(specifier, '/'); idx >= 0 {
		return specifier[:idx], specifier[idx+1:], true
	}
	if idx := strings.IndexByte(specifier, ':'); idx >= 0 {
		return specifier[:idx], specifier[idx+1:], true
	}
	return specifier, "", false
}

// NormalizeRuleKey converts dash-separated rule identifiers to the
// underscore-separated form most parsers emit (e.g. clippy's
// "needless-if" config alias vs its "needless_if" rule_key).
func NormalizeRuleKey(key string) string {
	return strings.ReplaceAll(key, "-", "_")
}
