package execute

import "github.com/qlty-sh/qlty/internal/qlty/issue"

// ExitResult classifies a completed invocation's exit code against
// its driver's success_codes/error_codes/no_issue_codes lists.
type ExitResult int

const (
	ExitResultUnspecified ExitResult = iota
	ExitResultSuccess
	ExitResultKnownError
	ExitResultUnknownError
	ExitResultNoIssues
)

var exitResultNames = map[ExitResult]string{
	ExitResultUnspecified:  "EXIT_RESULT_UNSPECIFIED",
	ExitResultSuccess:      "EXIT_RESULT_SUCCESS",
	ExitResultKnownError:   "EXIT_RESULT_KNOWN_ERROR",
	ExitResultUnknownError: "EXIT_RESULT_UNKNOWN_ERROR",
	ExitResultNoIssues:     "EXIT_RESULT_NO_ISSUES",
}

func (e ExitResult) String() string {
	if name, ok := exitResultNames[e]; ok {
		return name
	}
	return "EXIT_RESULT_UNSPECIFIED"
}

func (e ExitResult) MarshalJSON() ([]byte, error) {
	return []byte(`"` + e.String() + `"`), nil
}

// InvocationStatus is the outcome recorded against an invocation,
// distinct from ExitResult: a spawn failure or a parser error never
// reaches exit-code classification at all.
type InvocationStatus int

const (
	InvocationStatusUnspecified InvocationStatus = iota
	InvocationStatusSuccess
	InvocationStatusParseError
	InvocationStatusLintError
	InvocationStatusToolError
)

var invocationStatusNames = map[InvocationStatus]string{
	InvocationStatusUnspecified: "INVOCATION_STATUS_UNSPECIFIED",
	InvocationStatusSuccess:     "INVOCATION_STATUS_SUCCESS",
	InvocationStatusParseError:  "INVOCATION_STATUS_PARSE_ERROR",
	InvocationStatusLintError:   "INVOCATION_STATUS_LINT_ERROR",
	InvocationStatusToolError:   "INVOCATION_STATUS_TOOL_ERROR",
}

func (s InvocationStatus) String() string {
	if name, ok := invocationStatusNames[s]; ok {
		return name
	}
	return "INVOCATION_STATUS_UNSPECIFIED"
}

func (s InvocationStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// FileResult groups the issues a single invocation produced for one
// path. Path is "" for issues the parser could not anchor to any
// file (pathless), and may repeat a target's path with zero issues
// so formatters and callers can tell "ran clean" from "never ran".
type FileResult struct {
	Path   string        `json:"path"`
	Issues []issue.Issue `json:"issues"`
}

// InvocationResult is everything a completed (or failed-to-complete)
// driver invocation produced: its classification, its raw output,
// and the per-file issues the parser derived from that output.
type InvocationResult struct {
	ID           string           `json:"id"`
	PluginName   string           `json:"pluginName"`
	DriverName   string           `json:"driverName"`
	Script       string           `json:"script"`
	ExitCode     *int             `json:"exitCode,omitempty"`
	ExitResult   ExitResult       `json:"exitResult"`
	Status       InvocationStatus `json:"status"`
	Stdout       string           `json:"-"`
	Stderr       string           `json:"-"`
	DurationSecs float64          `json:"durationSecs"`
	FileResults  []FileResult     `json:"fileResults,omitempty"`
	Formatted    []string         `json:"formatted,omitempty"`
	Messages     []Message        `json:"messages,omitempty"`
	CacheHit     bool             `json:"cacheHit,omitempty"`
}

// IssuesCount is the total number of issues across all of this
// invocation's file results, used against the run-wide total_issues
// ceiling.
func (r *InvocationResult) IssuesCount() int {
	count := 0
	for _, fr := range r.FileResults {
		count += len(fr.Issues)
	}
	return count
}

func (r *InvocationResult) pushMessage(level MessageLevel, ty, message string) {
	r.Messages = append(r.Messages, Message{Module: "qlty.execute", Type: ty, Level: level, Message: message})
}

// Results is the top-level output of a run: every structured
// message, every invocation (for diagnostics/`qlty check --verbose`),
// the issue list (capped at MaxIssues), and the paths formatters
// rewrote.
type Results struct {
	Messages       []Message           `json:"messages"`
	Invocations    []InvocationResult  `json:"invocations"`
	Issues         []issue.Issue       `json:"issues"`
	FormattedPaths []string            `json:"formattedPaths"`
}
