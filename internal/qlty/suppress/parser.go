package suppress

import "strings"

// matchingIndentRule is one entry of the "ignore until matching
// indent" tracking set: removeNext is set by a non-blank line at or
// below indent and cleared by a more-indented one, and the rule is
// dropped when a line at or below indent arrives while removeNext is
// already set.
type matchingIndentRule struct {
	rule       string
	indent     int
	removeNext bool
}

// IgnoreParser walks a source file's lines once and records, for each
// 1-indexed line of code, which rules a qlty-ignore comment suppresses
// on that line.
type IgnoreParser struct {
	lines map[int]map[string]struct{}

	enabledRules    map[string]struct{}
	onceAddRules    map[string]struct{}
	onceRemoveRules map[string]struct{}

	matchingIndentRules map[matchingIndentRule]struct{}
}

// NewIgnoreParser parses source (using language's tree-sitter grammar
// when one is wired, else a regex fallback) and returns a parser ready
// for IgnoredAt queries.
func NewIgnoreParser(source, language string) *IgnoreParser {
	p := &IgnoreParser{
		lines:               make(map[int]map[string]struct{}),
		enabledRules:        make(map[string]struct{}),
		onceAddRules:        make(map[string]struct{}),
		onceRemoveRules:     make(map[string]struct{}),
		matchingIndentRules: make(map[matchingIndentRule]struct{}),
	}
	p.parse(source, language)
	return p
}

// IgnoredAt reports whether rule is suppressed on the given 1-indexed
// line.
func (p *IgnoreParser) IgnoredAt(line int, rule string) bool {
	rules, ok := p.lines[line]
	if !ok {
		return false
	}
	_, ok = rules[rule]
	return ok
}

func (p *IgnoreParser) parse(source, language string) {
	comments := extractComments(source, language)
	lines := linesOf(source)

	index := 0
	for index < len(lines) {
		comment, hasComment := comments[index]
		var cp *Comment
		if hasComment {
			cp = &comment
		}

		p.parseUpdateState(cp, lines[index])
		p.parseApplyRules(cp, lines[index], index)

		if hasComment && comment.Lines > 0 {
			index += comment.Lines
		} else {
			index++
		}
	}
}

func (p *IgnoreParser) parseUpdateState(comment *Comment, line string) {
	if comment == nil {
		return
	}

	for _, spec := range comment.Rules {
		if comment.IsFullLine {
			switch spec.Kind {
			case Enable:
				p.enabledRules[spec.Rule] = struct{}{}
			case Disable:
				delete(p.enabledRules, spec.Rule)
			case IgnoreNext:
				p.onceAddRules[spec.Rule] = struct{}{}
			case IgnoreUntilMatchingIndent:
				p.matchingIndentRules[matchingIndentRule{rule: spec.Rule, indent: countIndent(line)}] = struct{}{}
			}
		} else {
			// A trailing comment's directive always applies only to
			// the line it trails, regardless of its verb.
			switch spec.Kind {
			case Disable:
				p.onceRemoveRules[spec.Rule] = struct{}{}
			default:
				p.onceAddRules[spec.Rule] = struct{}{}
			}
		}
	}
}

func (p *IgnoreParser) parseApplyRules(comment *Comment, line string, index int) {
	clearRulesAfterUse := true
	if comment != nil {
		clearRulesAfterUse = !comment.IsFullLine
	}

	if strings.TrimSpace(line) == "" {
		return
	}

	lineIndent := countIndent(line)

	newMatchingIndentRules := make(map[matchingIndentRule]struct{})
	for k := range p.matchingIndentRules {
		shouldRemoveNext := lineIndent <= k.indent
		if shouldRemoveNext && k.removeNext {
			continue
		}
		newMatchingIndentRules[matchingIndentRule{rule: k.rule, indent: k.indent, removeNext: shouldRemoveNext}] = struct{}{}
	}

	if clearRulesAfterUse {
		p.matchingIndentRules = make(map[matchingIndentRule]struct{})
	}
	for k := range newMatchingIndentRules {
		p.matchingIndentRules[k] = struct{}{}
	}

	rules := make(map[string]struct{})
	for r := range p.enabledRules {
		rules[r] = struct{}{}
	}
	for r := range p.onceAddRules {
		rules[r] = struct{}{}
	}
	for k := range p.matchingIndentRules {
		rules[k.rule] = struct{}{}
	}
	if clearRulesAfterUse {
		for r := range p.onceRemoveRules {
			delete(rules, r)
		}
	}

	if len(rules) > 0 {
		p.lines[index+1] = rules
	}

	if clearRulesAfterUse {
		p.onceAddRules = make(map[string]struct{})
		p.onceRemoveRules = make(map[string]struct{})
	}
}
