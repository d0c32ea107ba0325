// Package patch renders issue suggestions into unified diffs: given a
// suggestion's sorted replacements, it rewrites the affected source
// file in memory and diffs the before/after text.
package patch

import (
	"sort"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"

	"github.com/qlty-sh/qlty/internal/qlty/issue"
	"github.com/qlty-sh/qlty/internal/qlty/suppress"
)

// ContextLength is how many lines of unchanged context surround each
// hunk in a generated patch.
const ContextLength = 3

// Builder implements execute.Transformer: it fills in each
// suggestion's Patch field from its Replacements.
type Builder struct {
	Reader suppress.SourceReader
}

// NewBuilder adapts reader for patch generation.
func NewBuilder(reader suppress.SourceReader) *Builder {
	return &Builder{Reader: reader}
}

// Transform builds a unified diff for every suggestion on iss. It
// never drops an issue; a suggestion whose patch can't be built is
// left with an empty Patch but untouched Replacements.
func (b *Builder) Transform(iss issue.Issue) (issue.Issue, bool) {
	out := iss.Clone()
	for i := range out.Suggestions {
		s := &out.Suggestions[i]
		s.Replacements = sortedReplacements(s.Replacements)
		s.Patch = b.buildPatch(s.Replacements, out.Location)
	}
	return out, true
}

func sortedReplacements(replacements []issue.Replacement) []issue.Replacement {
	sorted := make([]issue.Replacement, len(replacements))
	copy(sorted, replacements)
	sort.SliceStable(sorted, func(i, j int) bool {
		return endByte(sorted[i]) < endByte(sorted[j])
	})
	return sorted
}

func endByte(r issue.Replacement) uint32 {
	if r.Location != nil && r.Location.Range != nil && r.Location.Range.EndByte != nil {
		return *r.Location.Range.EndByte
	}
	return 0
}

func (b *Builder) buildPatch(replacements []issue.Replacement, location *issue.Location) string {
	if len(replacements) == 0 {
		return ""
	}

	filePath := ""
	if location != nil {
		filePath = location.Path
	} else if replacements[0].Location != nil {
		filePath = replacements[0].Location.Path
	}
	if filePath == "" {
		return ""
	}

	original, err := b.Reader.Read(filePath)
	if err != nil {
		return ""
	}

	modified := original
	ok := true
	for i := len(replacements) - 1; i >= 0; i-- {
		r := replacements[i]
		startByte, endB, resolved := byteRange(modified, r)
		if !resolved {
			ok = false
			break
		}
		modified, ok = replaceInRange(modified, startByte, endB, r.Data)
		if !ok {
			break
		}
	}

	if !ok {
		return ""
	}

	return unifiedDiff("original", "modified", original, modified, ContextLength)
}

func byteRange(content string, r issue.Replacement) (start, end int, ok bool) {
	if r.Location == nil || r.Location.Range == nil {
		return 0, 0, false
	}
	rng := r.Location.Range
	if rng.StartByte != nil && rng.EndByte != nil {
		return int(*rng.StartByte), int(*rng.EndByte), true
	}

	startOffset, sok := calculateByteOffset(content, int(rng.StartLine), int(rng.StartColumn))
	endOffset, eok := calculateByteOffset(content, int(rng.EndLine), int(rng.EndColumn))
	if !sok || !eok {
		return 0, 0, false
	}
	return startOffset, endOffset, true
}

// calculateByteOffset converts a 1-indexed (line, column) position
// into a byte offset into content, matching the original's treatment
// of a missing/zero column as the start of the line.
func calculateByteOffset(content string, line, column int) (int, bool) {
	lines := linesOf(content)
	if line <= 0 || line > len(lines) {
		return 0, false
	}

	lineStr := lines[line-1]
	index := 0
	if column > 0 {
		index = column - 1
	}

	runes := []rune(lineStr)
	var byteOffset int
	if index < len(runes) {
		byteOffset = len(string(runes[:index]))
		for _, l := range lines[:line-1] {
			byteOffset += len(l) + 1
		}
	} else {
		byteOffset = 0
		for _, l := range lines[:line] {
			byteOffset += len(l) + 1
		}
		byteOffset--
	}

	return byteOffset, true
}

// linesOf splits content the way Rust's str::lines() does: no
// trailing empty element when content ends with a line terminator.
func linesOf(content string) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// replaceInRange splices replacement into content[start:end], nudging
// end back one byte when it lands exactly on content's length (the
// same off-by-one guard the original applies).
func replaceInRange(content string, start, end int, replacement string) (string, bool) {
	if end == len(content) && end != 0 {
		end--
	}
	if start < 0 || end < start || start >= len(content) || end > len(content) {
		return content, false
	}
	return content[:start] + replacement + content[end:], true
}

// unifiedDiff computes a line-level diff between original and
// modified and renders it as unified-diff text via go-diff's
// FileDiff printer. The diff itself is a straightforward LCS-based
// line matcher: go-diff only parses and prints diffs, it doesn't
// compute them.
func unifiedDiff(origName, newName, original, modified string, context int) string {
	origLines := splitKeepLines(original)
	newLines := splitKeepLines(modified)

	ops := lcsDiff(origLines, newLines)
	hunks := buildHunks(ops, context)
	if len(hunks) == 0 {
		return ""
	}

	fd := &godiff.FileDiff{
		OrigName: origName,
		NewName:  newName,
		Hunks:    hunks,
	}

	out, err := godiff.PrintFileDiff(fd)
	if err != nil {
		return ""
	}
	return string(out)
}

// splitKeepLines splits text into lines, each retaining its trailing
// "\n" (absent only for a final line with none), so hunk bodies can
// be reassembled byte-for-byte.
func splitKeepLines(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

type diffOpKind int

const (
	opEqual diffOpKind = iota
	opDelete
	opInsert
)

type diffOp struct {
	kind diffOpKind
	line string
}

// lcsDiff computes a minimal line-level edit script via dynamic
// programming over the longest common subsequence. Quadratic in the
// number of lines; source files diffed here are small (single-file
// suggestion patches), so this trades asymptotic elegance for a
// direct, auditable implementation.
func lcsDiff(a, b []string) []diffOp {
	n, m := len(a), len(b)
	lengths := make([][]int, n+1)
	for i := range lengths {
		lengths[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lengths[i][j] = lengths[i+1][j+1] + 1
			} else if lengths[i+1][j] >= lengths[i][j+1] {
				lengths[i][j] = lengths[i+1][j]
			} else {
				lengths[i][j] = lengths[i][j+1]
			}
		}
	}

	var ops []diffOp
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			ops = append(ops, diffOp{opEqual, a[i]})
			i++
			j++
		case lengths[i+1][j] >= lengths[i][j+1]:
			ops = append(ops, diffOp{opDelete, a[i]})
			i++
		default:
			ops = append(ops, diffOp{opInsert, b[j]})
			j++
		}
	}
	for ; i < n; i++ {
		ops = append(ops, diffOp{opDelete, a[i]})
	}
	for ; j < m; j++ {
		ops = append(ops, diffOp{opInsert, b[j]})
	}
	return ops
}

// buildHunks groups a diff op stream into unified-diff hunks, each
// padded with up to `context` lines of surrounding equal lines and
// merged with a neighboring hunk when their context windows overlap.
func buildHunks(ops []diffOp, context int) []*godiff.Hunk {
	type span struct{ start, end int }

	var changedSpans []span
	for i, op := range ops {
		if op.kind != opEqual {
			if len(changedSpans) > 0 && changedSpans[len(changedSpans)-1].end == i {
				changedSpans[len(changedSpans)-1].end = i + 1
			} else {
				changedSpans = append(changedSpans, span{i, i + 1})
			}
		}
	}
	if len(changedSpans) == 0 {
		return nil
	}

	var merged []span
	for _, s := range changedSpans {
		start := s.start - context
		if start < 0 {
			start = 0
		}
		end := s.end + context
		if end > len(ops) {
			end = len(ops)
		}
		if len(merged) > 0 && start <= merged[len(merged)-1].end {
			if end > merged[len(merged)-1].end {
				merged[len(merged)-1].end = end
			}
		} else {
			merged = append(merged, span{start, end})
		}
	}

	hunks := make([]*godiff.Hunk, 0, len(merged))
	for _, s := range merged {
		hunks = append(hunks, buildHunk(ops[s.start:s.end], ops, s.start))
	}
	return hunks
}

func buildHunk(window []diffOp, all []diffOp, windowStart int) *godiff.Hunk {
	origStart := 1
	for i := 0; i < windowStart; i++ {
		if all[i].kind != opInsert {
			origStart++
		}
	}
	newStart := 1
	for i := 0; i < windowStart; i++ {
		if all[i].kind != opDelete {
			newStart++
		}
	}

	var body strings.Builder
	origLines, newLines := 0, 0
	for _, op := range window {
		switch op.kind {
		case opEqual:
			body.WriteString(" " + op.line)
			origLines++
			newLines++
		case opDelete:
			body.WriteString("-" + op.line)
			origLines++
		case opInsert:
			body.WriteString("+" + op.line)
			newLines++
		}
	}

	return &godiff.Hunk{
		OrigStartLine: int32(origStart),
		OrigLines:     int32(origLines),
		NewStartLine:  int32(newStart),
		NewLines:      int32(newLines),
		Body:          []byte(body.String()),
	}
}
