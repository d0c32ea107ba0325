package suppress

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/qlty-sh/qlty/internal/qlty/issue"
	"github.com/qlty-sh/qlty/pkg/sliceutil"
)

// SourceReader loads the text a path's comments are parsed from. It is
// an interface (rather than a direct os.ReadFile call) so tests can
// supply in-memory fixtures the way the original's SourceReaderFs test
// double does.
type SourceReader interface {
	Read(path string) (string, error)
}

// SourceReaderFs reads source files directly off disk, optionally
// rooted at a directory (so callers can pass workspace-relative
// issue paths).
type SourceReaderFs struct {
	Root string
}

func (r SourceReaderFs) Read(path string) (string, error) {
	full := path
	if r.Root != "" && !filepath.IsAbs(path) {
		full = filepath.Join(r.Root, path)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// filenameToLanguage maps a file's extension to the grammar name used
// by extractComments. Extensions with no entry fall back to the
// regex-based unknown-language comment extractor.
var filenameToLanguage = map[string]string{
	".go":    "go",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".py":    "python",
	".rb":    "ruby",
	".rs":    "rust",
}

func languageFor(path string) string {
	return filenameToLanguage[strings.ToLower(filepath.Ext(path))]
}

// IssueMuter implements execute.Transformer: it drops any issue whose
// line carries a matching qlty-ignore directive. Parsed files are
// cached per path since a single run calls Transform once per issue
// but many issues land in the same file.
type IssueMuter struct {
	Reader SourceReader

	mu      sync.Mutex
	parsers map[string]*IgnoreParser
}

// NewIssueMuter builds a muter that reads source through reader.
func NewIssueMuter(reader SourceReader) *IssueMuter {
	return &IssueMuter{Reader: reader, parsers: make(map[string]*IgnoreParser)}
}

// Transform drops iss if its line is qlty-ignored for its tool or
// rule key; otherwise it passes iss through unchanged.
func (m *IssueMuter) Transform(iss issue.Issue) (issue.Issue, bool) {
	if iss.Location == nil || iss.Location.Path == "" || iss.Location.Range == nil {
		return iss, true
	}

	parser := m.parserFor(iss.Location.Path)
	if parser == nil {
		return iss, true
	}

	line := int(iss.Location.Range.StartLine)
	if ruleKeyIsIgnored(parser, line, iss.Tool, iss.RuleKey) {
		return iss, false
	}
	return iss, true
}

func (m *IssueMuter) parserFor(path string) *IgnoreParser {
	m.mu.Lock()
	if p, ok := m.parsers[path]; ok {
		m.mu.Unlock()
		return p
	}
	m.mu.Unlock()

	source, err := m.Reader.Read(path)
	if err != nil {
		return nil
	}

	p := NewIgnoreParser(source, languageFor(path))

	m.mu.Lock()
	m.parsers[path] = p
	m.mu.Unlock()
	return p
}

// ruleKeyIsIgnored checks the three forms a qlty-ignore directive may
// name a rule in: the bare tool name, "tool/rule_key", and
// "tool:rule_key".
func ruleKeyIsIgnored(parser *IgnoreParser, line int, tool, ruleKey string) bool {
	if parser.IgnoredAt(line, tool) {
		return true
	}
	if ruleKey == "" {
		return false
	}
	if parser.IgnoredAt(line, tool+"/"+ruleKey) {
		return true
	}
	if parser.IgnoredAt(line, tool+":"+ruleKey) {
		return true
	}
	return false
}
